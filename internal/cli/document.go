package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alexanderramin/aicanvas/internal/page"
)

// readDocument reads a page document as JSON. Files ending in .yaml or .yml
// are converted; "-" reads stdin.
func readDocument(cmd *cobra.Command, path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !isYAML(path) {
		return json.RawMessage(data), nil
	}
	return yamlToJSON(data)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func yamlToJSON(data []byte) (json.RawMessage, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("converting YAML to JSON: %w", err)
	}
	return out, nil
}

// loadPage reads and validates a page file. Invalid documents are rejected
// with their diagnostics.
func (a *App) loadPage(cmd *cobra.Command, path string) (*page.Page, error) {
	doc, err := readDocument(cmd, path)
	if err != nil {
		return nil, err
	}
	res := a.Validator.ValidateJSON(doc)
	if !res.Valid {
		msgs := make([]string, len(res.Errors))
		for i, e := range res.Errors {
			msgs[i] = e.String()
		}
		return nil, fmt.Errorf("%s is not a valid page:\n  %s", path, strings.Join(msgs, "\n  "))
	}
	return page.Parse(doc)
}

func jsonUnmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding JSON: %w", err)
	}
	return nil
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func (a *App) styled(asJSON bool) bool {
	return !asJSON && a.IsInteractive()
}
