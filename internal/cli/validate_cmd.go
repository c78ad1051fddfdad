package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexanderramin/aicanvas/internal/cli/formatter"
	"github.com/alexanderramin/aicanvas/internal/schema"
)

// ErrInvalidPage is returned when at least one validated document failed.
var ErrInvalidPage = errors.New("invalid page")

const watchDebounce = 200 * time.Millisecond

type fileResult struct {
	File string `json:"file"`
	schema.Result
}

func newValidateCmd(app *App) *cobra.Command {
	var watch, asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate page files (JSON or YAML) against the page schema",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				if !app.validateFile(cmd, path, asJSON) {
					failed++
				}
			}
			if watch {
				return app.watchFiles(cmd.Context(), cmd, args, asJSON)
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d file(s)", ErrInvalidPage, failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-validate whenever a file changes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}

// validateFile validates and prints one file, reporting whether it is valid.
func (a *App) validateFile(cmd *cobra.Command, path string, asJSON bool) bool {
	w := cmd.OutOrStdout()
	var res schema.Result
	doc, err := readDocument(cmd, path)
	if err != nil {
		res = schema.Result{Errors: []schema.StructuredError{{Keyword: schema.KeywordEncoding, Message: err.Error()}}}
	} else {
		res = a.Validator.ValidateJSON(doc)
	}

	if a.styled(asJSON) {
		fmt.Fprint(w, formatter.FormatValidation(path, res))
	} else {
		_ = writeJSON(w, fileResult{File: path, Result: res})
	}
	return res.Valid
}

// watchFiles re-validates files on change until ctx is done. Directories are
// watched rather than files so editors that replace on save are followed.
func (a *App) watchFiles(ctx context.Context, cmd *cobra.Command, paths []string, asJSON bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	tracked := make(map[string]string, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		tracked[abs] = p
		dir := filepath.Dir(abs)
		if !dirs[dir] {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("watching %s: %w", dir, err)
			}
			dirs[dir] = true
		}
	}

	if a.styled(asJSON) {
		fmt.Fprintln(cmd.ErrOrStderr(), formatter.Dim("Watching for changes. Press Ctrl+C to stop."))
	}
	return runWatch(ctx, watcher.Events, watcher.Errors, tracked, func(path string) {
		if a.styled(asJSON) {
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim(time.Now().Format("15:04:05")))
		}
		a.validateFile(cmd, path, asJSON)
	}, a.Log)
}

// runWatch debounces events for tracked files and calls onChange with the
// path as the user typed it.
func runWatch(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error,
	tracked map[string]string, onChange func(string), log *zap.Logger) error {
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(watchDebounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if name, ok := tracked[abs]; ok {
				pending[name] = time.Now()
			}

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))

		case now := <-ticker.C:
			for name, at := range pending {
				if now.Sub(at) >= watchDebounce {
					delete(pending, name)
					onChange(name)
				}
			}
		}
	}
}
