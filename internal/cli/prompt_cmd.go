package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/aicanvas/internal/mcp"
	"github.com/alexanderramin/aicanvas/internal/page"
	"github.com/alexanderramin/aicanvas/internal/prompt"
	"github.com/alexanderramin/aicanvas/internal/schema"
)

func newPromptCmd(app *App) *cobra.Command {
	var currentPath string

	cmd := &cobra.Command{
		Use:   "prompt [request...]",
		Short: "Print the system prompt, and the user message for a request",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, prompt.SystemPrompt())
			if len(args) == 0 {
				return nil
			}

			var current *page.Page
			if currentPath != "" {
				p, err := app.loadPage(cmd, currentPath)
				if err != nil {
					return err
				}
				current = p
			}
			msg, err := prompt.UserMessage(current, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "\n---")
			fmt.Fprintln(w, msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&currentPath, "current", "", "Page file (JSON or YAML) to embed as the current page")

	return cmd
}

func newSchemaCmd(app *App) *cobra.Command {
	var tool string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the page schema or an MCP tool input schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if tool == "" {
				_, err := w.Write(schema.JSON())
				return err
			}
			raw, ok := mcp.ToolInputSchema(tool)
			if !ok {
				return fmt.Errorf("unknown tool %q (want %s or %s)", tool, mcp.ToolShow, mcp.ToolGenerate)
			}
			var v any
			if err := jsonUnmarshal(raw, &v); err != nil {
				return err
			}
			return writeJSON(w, v)
		},
	}

	cmd.Flags().StringVar(&tool, "tool", "", "Print the input schema of this MCP tool instead")

	return cmd
}
