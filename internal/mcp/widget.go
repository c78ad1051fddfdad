package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/alexanderramin/aicanvas/internal/page"
	"github.com/alexanderramin/aicanvas/internal/render"
)

const (
	// WidgetURI is the resource the agent host renders tool output with.
	WidgetURI  = "ui://widget/declarative-ui.html"
	WidgetMIME = "text/html+skybridge"
)

const fallbackWidget = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>Declarative UI Widget</title>
  </head>
  <body>
    <div style="padding:24px;font-family:system-ui">No widget build found. Build the renderer and set <code>server.widget_path</code>.</div>
  </body>
</html>`

// loadWidget reads the widget shell, falling back to a placeholder when no
// build exists at path.
func loadWidget(path string) (string, error) {
	if path == "" {
		return fallbackWidget, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fallbackWidget, nil
	}
	if err != nil {
		return "", fmt.Errorf("reading widget: %w", err)
	}
	return string(data), nil
}

// InjectPage inserts the page and its prepared render payload as globals
// before </head>. HTML without a head is returned unchanged.
func InjectPage(html string, p *page.Page) (string, error) {
	if p == nil {
		return html, nil
	}
	idx := strings.Index(html, "</head>")
	if idx < 0 {
		return html, nil
	}
	// json.Marshal escapes <, > and &, so the payload cannot close the script.
	doc, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding page: %w", err)
	}
	payload, err := json.Marshal(render.Prepare(p))
	if err != nil {
		return "", fmt.Errorf("encoding render payload: %w", err)
	}

	var b strings.Builder
	b.Grow(len(html) + len(doc) + len(payload) + 96)
	b.WriteString(html[:idx])
	b.WriteString("<script>window.__COMPONENT_DATA__ = ")
	b.Write(doc)
	b.WriteString(";window.__RENDER_PAYLOAD__ = ")
	b.Write(payload)
	b.WriteString(";</script>")
	b.WriteString(html[idx:])
	return b.String(), nil
}

// WidgetHTML returns the widget shell with the current page injected.
func (s *Server) WidgetHTML() (string, error) {
	html, err := loadWidget(s.cfg.WidgetPath)
	if err != nil {
		return "", err
	}
	return InjectPage(html, CurrentPage(s.store))
}
