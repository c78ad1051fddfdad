package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/aicanvas/internal/cli/formatter"
)

func newHistoryCmd(app *App) *cobra.Command {
	var limit int
	var stats, asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent generations from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Journal == nil {
				return ErrJournalDisabled
			}
			w := cmd.OutOrStdout()

			if stats {
				st, err := app.Journal.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if app.styled(asJSON) {
					fmt.Fprintln(w, formatter.RenderBox("Generations", formatter.FormatStats(st)))
					return nil
				}
				return writeJSON(w, st)
			}

			entries, err := app.Journal.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if app.styled(asJSON) {
				fmt.Fprint(w, formatter.FormatHistory(entries, time.Now()))
				return nil
			}
			return writeJSON(w, entries)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&stats, "stats", false, "Show totals per outcome instead")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}
