package page

import (
	"encoding/json"
	"fmt"
)

// Column is one table or form column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// TableConfig configures table and form components. Keys other than columns
// are kept in Extra.
type TableConfig struct {
	Columns []Column
	Extra   map[string]any
}

func (c TableConfig) MarshalJSON() ([]byte, error) {
	return marshalObject(c.Extra, map[string]any{"columns": c.Columns})
}

func (c *TableConfig) UnmarshalJSON(data []byte) error {
	fields, err := splitObject(data)
	if err != nil {
		return err
	}
	if raw, ok := fields["columns"]; ok {
		if err := decodeJSON(raw, &c.Columns); err != nil {
			return fmt.Errorf("columns: %w", err)
		}
		delete(fields, "columns")
	}
	c.Extra, err = decodeExtra(fields)
	return err
}

// MarkdownConfig carries the markdown source in MD.
type MarkdownConfig struct {
	MD    string
	Extra map[string]any
}

func (c MarkdownConfig) MarshalJSON() ([]byte, error) {
	return marshalObject(c.Extra, map[string]any{"md": c.MD})
}

func (c *MarkdownConfig) UnmarshalJSON(data []byte) error {
	fields, err := splitObject(data)
	if err != nil {
		return err
	}
	if err := popString(fields, "md", &c.MD); err != nil {
		return err
	}
	c.Extra, err = decodeExtra(fields)
	return err
}

// MermaidConfig carries the diagram definition.
type MermaidConfig struct {
	Source string
	Extra  map[string]any
}

func (c MermaidConfig) MarshalJSON() ([]byte, error) {
	return marshalObject(c.Extra, map[string]any{"mermaid": c.Source})
}

func (c *MermaidConfig) UnmarshalJSON(data []byte) error {
	fields, err := splitObject(data)
	if err != nil {
		return err
	}
	if err := popString(fields, "mermaid", &c.Source); err != nil {
		return err
	}
	c.Extra, err = decodeExtra(fields)
	return err
}

// MapConfig is the MapLibre configuration. Style is either a style URL
// string or an inline style object.
type MapConfig struct {
	Style   any
	Options map[string]any
	Extra   map[string]any
}

// StyleURL returns the style when it is given as a URL.
func (c *MapConfig) StyleURL() (string, bool) {
	if c == nil {
		return "", false
	}
	s, ok := c.Style.(string)
	return s, ok
}

// StyleObject returns the style when it is given inline.
func (c *MapConfig) StyleObject() (map[string]any, bool) {
	if c == nil {
		return nil, false
	}
	m, ok := c.Style.(map[string]any)
	return m, ok
}

func (c MapConfig) MarshalJSON() ([]byte, error) {
	known := map[string]any{}
	if c.Style != nil {
		known["style"] = c.Style
	}
	if c.Options != nil {
		known["options"] = c.Options
	}
	return marshalObject(c.Extra, known)
}

func (c *MapConfig) UnmarshalJSON(data []byte) error {
	fields, err := splitObject(data)
	if err != nil {
		return err
	}
	if raw, ok := fields["style"]; ok {
		if err := decodeJSON(raw, &c.Style); err != nil {
			return fmt.Errorf("style: %w", err)
		}
		delete(fields, "style")
	}
	if raw, ok := fields["options"]; ok {
		if err := decodeJSON(raw, &c.Options); err != nil {
			return fmt.Errorf("options: %w", err)
		}
		delete(fields, "options")
	}
	c.Extra, err = decodeExtra(fields)
	return err
}

func splitObject(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := decodeJSON(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	return fields, nil
}

func popString(fields map[string]json.RawMessage, key string, dst *string) error {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	delete(fields, key)
	if err := decodeJSON(raw, dst); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func decodeExtra(fields map[string]json.RawMessage) (map[string]any, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	extra := make(map[string]any, len(fields))
	for k, raw := range fields {
		var v any
		if err := decodeJSON(raw, &v); err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		extra[k] = v
	}
	return extra, nil
}

// marshalObject merges the known keys over the extra keys.
func marshalObject(extra, known map[string]any) ([]byte, error) {
	out := make(map[string]any, len(extra)+len(known))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range known {
		out[k] = v
	}
	return json.Marshal(out)
}
