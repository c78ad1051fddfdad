package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexanderramin/aicanvas/internal/mcp"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string
	var useHTTP bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard tools over MCP (stdio by default)",
		Long: `Serves show_declarative_ui and generate_declarative_ui to an agent host.
With --http, serves the streamable MCP endpoint at /mcp together with
POST /api/generate, GET /widget and GET /healthz.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := app.newMCPServer()

			if !useHTTP && addr == "" {
				app.Log.Info("serving MCP on stdio")
				return srv.ServeStdio()
			}
			if addr == "" {
				addr = app.Config.Server.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			app.Log.Info("serving MCP over HTTP", zap.String("addr", addr))
			return srv.ServeHTTP(ctx, addr)
		},
	}

	cmd.Flags().BoolVar(&useHTTP, "http", false, "Serve over HTTP on server.addr")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (implies --http)")

	return cmd
}

func (a *App) newMCPServer() *mcp.Server {
	return mcp.NewServer(a.Generator, a.Validator, mcp.NewMemoryStore(), mcp.Config{
		Name:       a.Config.Server.Name,
		Version:    a.Version,
		WidgetPath: a.Config.Server.WidgetPath,
		Credential: a.credential(),
	}, mcp.WithLogger(a.Log))
}
