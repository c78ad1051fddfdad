package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/aicanvas/internal/mcp"
	"github.com/alexanderramin/aicanvas/internal/render"
)

func newPrepareCmd(app *App) *cobra.Command {
	var html bool

	cmd := &cobra.Command{
		Use:   "prepare <file>",
		Short: "Print the render payload (chart specs with data, map views) for a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.loadPage(cmd, args[0])
			if err != nil {
				return err
			}
			if !html {
				return writeJSON(cmd.OutOrStdout(), render.Prepare(p))
			}

			srv := mcp.NewServer(app.Generator, app.Validator, nil, mcp.Config{
				WidgetPath: app.Config.Server.WidgetPath,
			}, mcp.WithLogger(app.Log))
			srv.Store().Replace(p)
			out, err := srv.WidgetHTML()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().BoolVar(&html, "html", false, "Print the widget HTML with the page injected instead")

	return cmd
}
