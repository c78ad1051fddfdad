package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/aicanvas/internal/cli/formatter"
	"github.com/alexanderramin/aicanvas/internal/generator"
	"github.com/alexanderramin/aicanvas/internal/page"
)

// ErrGenerationFailed marks a generation that ended without a page. The
// failure itself has already been printed.
var ErrGenerationFailed = errors.New("generation failed")

func newGenerateCmd(app *App) *cobra.Command {
	var currentPath, outPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "generate [request...]",
		Short: "Create or edit a page from a natural-language request",
		Long: `Sends the request and the current page to the model and prints the
validated page. Without arguments the request is read from stdin.`,
		Example: `  canvas generate "bar chart of sales by month"
  canvas generate --current page.json --out page.json "add a revenue line chart"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			request := strings.Join(args, " ")
			if len(args) == 0 || request == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading request: %w", err)
				}
				request = string(data)
			}

			var current *page.Page
			if currentPath != "" {
				p, err := app.loadPage(cmd, currentPath)
				if err != nil {
					return err
				}
				current = p
			}

			stop := func() {}
			if app.styled(asJSON) {
				stop = formatter.StartSpinner(cmd.ErrOrStderr(), "Generating dashboard...")
			}
			res := app.Generator.Generate(cmd.Context(), generator.Request{
				Prompt:     request,
				Current:    current,
				Credential: app.credential(),
			})
			stop()

			if err := printGeneration(cmd, app, res, asJSON); err != nil {
				return err
			}
			if !res.OK {
				return fmt.Errorf("%w: %s", ErrGenerationFailed, res.Kind)
			}

			if outPath != "" {
				doc, err := res.Page.JSON()
				if err != nil {
					return err
				}
				if err := os.WriteFile(outPath, append(doc, '\n'), 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", outPath, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&currentPath, "current", "", "Page file (JSON or YAML) to edit")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the generated page to this file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON even on a terminal")

	return cmd
}

func printGeneration(cmd *cobra.Command, app *App, res generator.Result, asJSON bool) error {
	w := cmd.OutOrStdout()
	if app.styled(asJSON) {
		fmt.Fprintln(w, formatter.FormatGeneration(res))
		return nil
	}
	if res.OK {
		return writeJSON(w, res.Page)
	}
	return writeJSON(w, res)
}
