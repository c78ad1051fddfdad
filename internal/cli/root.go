package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexanderramin/aicanvas/internal/config"
	"github.com/alexanderramin/aicanvas/internal/generator"
	"github.com/alexanderramin/aicanvas/internal/journal"
	"github.com/alexanderramin/aicanvas/internal/llm"
	"github.com/alexanderramin/aicanvas/internal/logging"
	"github.com/alexanderramin/aicanvas/internal/schema"
)

// ErrJournalDisabled is returned by commands that read the journal when it
// is switched off.
var ErrJournalDisabled = errors.New("generation journal is disabled (set journal.enabled = true)")

// App holds everything CLI commands use. Fields left nil are built from the
// configuration before the first command runs.
type App struct {
	Version string

	Config    config.Config
	Log       *zap.Logger
	Validator *schema.Validator
	Generator *generator.Generator
	Journal   *journal.Store

	// IsInteractive reports whether stdout is a terminal. Non-interactive
	// output is plain JSON.
	IsInteractive func() bool

	configPath string
	verbose    bool
	ready      bool
}

// NewRootCmd creates the top-level "canvas" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "canvas",
		Short:         "Generate and edit declarative dashboards with a language model",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.Log != nil {
				_ = app.Log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&app.configPath, "config", "", "Config file (default ~/.canvas/config.toml, or $CANVAS_CONFIG)")
	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newGenerateCmd(app),
		newValidateCmd(app),
		newPromptCmd(app),
		newSchemaCmd(app),
		newPrepareCmd(app),
		newServeCmd(app),
		newExamplesCmd(app),
		newHistoryCmd(app),
		newConfigCmd(app),
	)

	return root
}

// init loads configuration and wires whatever the caller did not provide.
func (a *App) init() error {
	if a.ready {
		return nil
	}

	if a.Generator == nil || a.Log == nil {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.Config = cfg
	}

	if a.Log == nil {
		log, err := logging.New(logging.Options{
			Level:       a.Config.Log.Level,
			Development: a.Config.Log.Development,
			Verbose:     a.verbose,
		})
		if err != nil {
			return err
		}
		a.Log = log
	}
	if a.Validator == nil {
		a.Validator = schema.NewValidator()
	}
	if a.IsInteractive == nil {
		a.IsInteractive = func() bool { return false }
	}

	if a.Generator == nil {
		opts := []generator.Option{generator.WithLogger(a.Log)}
		if a.Config.Journal.Enabled && a.Journal == nil {
			store, err := journal.Open(a.Config.Journal.Path, a.Config.Journal.Retain)
			if err != nil {
				// The journal is operational history; generation works without it.
				a.Log.Warn("journal unavailable", zap.String("path", a.Config.Journal.Path), zap.Error(err))
			} else {
				a.Journal = store
			}
		}
		if a.Journal != nil {
			opts = append(opts, generator.WithObserver(journal.NewRecorder(a.Journal, a.Log)))
		}

		var observer llm.Observer = llm.NoopObserver{}
		if a.Config.LLM.LogCalls {
			observer = llm.NewLogObserver(a.Log)
		}
		a.Generator = generator.New(llm.NewFactory(a.Config.LLM, observer), a.Validator, opts...)
	}

	a.ready = true
	return nil
}

// Close releases resources opened by init.
func (a *App) Close() error {
	if a.Journal != nil {
		if err := a.Journal.Close(); err != nil {
			return fmt.Errorf("closing journal: %w", err)
		}
	}
	return nil
}

func (a *App) credential() string {
	return a.Config.LLM.APIKey
}
