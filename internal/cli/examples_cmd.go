package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alexanderramin/aicanvas/internal/cli/formatter"
	"github.com/alexanderramin/aicanvas/internal/generator"
)

// SamplePrompts exercise the main component types from an empty page.
var SamplePrompts = []string{
	"Create a simple dashboard with a bar chart showing sales by month",
	"Build me a widget that shows incident volume by assignment group with filters for last 7/30/90 days",
	"Create a map showing office locations in New York, London, and Tokyo",
	"Make a dashboard with a markdown header saying 'Sales Dashboard' and a line chart showing revenue trends",
}

type exampleRun struct {
	Prompt string           `json:"prompt"`
	Result generator.Result `json:"result"`
}

func newExamplesCmd(app *App) *cobra.Command {
	var concurrency int
	var outDir string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "examples",
		Short: "Run the sample prompts against the configured model",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := app.runExamples(cmd.Context(), SamplePrompts, concurrency)
			if err != nil {
				return err
			}

			failed := 0
			for i, r := range runs {
				if !r.Result.OK {
					failed++
					continue
				}
				if outDir != "" {
					if err := writeExample(outDir, i+1, r.Result); err != nil {
						return err
					}
				}
			}

			w := cmd.OutOrStdout()
			if app.styled(asJSON) {
				fmt.Fprint(w, formatExamples(runs))
			} else if err := writeJSON(w, runs); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d example(s)", ErrGenerationFailed, failed, len(runs))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 2, "Maximum concurrent model calls")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Write each generated page to this directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}

// runExamples generates every prompt from an empty page. Failures are kept
// in the results; only context cancellation aborts the run.
func (a *App) runExamples(ctx context.Context, prompts []string, concurrency int) ([]exampleRun, error) {
	runs := make([]exampleRun, len(prompts))
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, p := range prompts {
		g.Go(func() error {
			res := a.Generator.Generate(gctx, generator.Request{Prompt: p, Credential: a.credential()})
			runs[i] = exampleRun{Prompt: p, Result: res}
			if res.Kind == generator.KindCancelled {
				return context.Cause(gctx)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return runs, nil
}

func writeExample(dir string, n int, res generator.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	doc, err := res.Page.JSON()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("example-%d.json", n))
	if err := os.WriteFile(path, append(doc, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func formatExamples(runs []exampleRun) string {
	rows := make([][]string, 0, len(runs))
	for i, r := range runs {
		detail := ""
		components := "--"
		if r.Result.OK {
			components = fmt.Sprintf("%d", len(r.Result.Page.Components))
		} else {
			detail = formatter.Truncate(formatter.FirstLine(r.Result.Error), 48)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			formatter.Truncate(r.Prompt, 56),
			formatter.OutcomePill(r.Result.Outcome()),
			components,
			detail,
		})
	}
	return formatter.RenderTable([]string{"#", "PROMPT", "OUTCOME", "COMPONENTS", "ERROR"}, rows)
}
