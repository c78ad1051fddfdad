package page

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Type is the component discriminator.
type Type string

const (
	TypeVegaLite Type = "vegalite5"
	TypeMap      Type = "map"
	TypeList     Type = "list"
	TypeForm     Type = "form"
	TypeTable    Type = "table"
	TypeMarkdown Type = "markdown"
	TypeMermaid  Type = "mermaid"
)

// Types returns the closed set of component types, in schema order.
func Types() []Type {
	return []Type{TypeVegaLite, TypeMap, TypeList, TypeForm, TypeTable, TypeMarkdown, TypeMermaid}
}

// Component is one renderable tile. The set of implementations is closed:
// *Chart, *Map, *Table, *Form, *List, *Markdown and *Mermaid.
type Component interface {
	Type() Type
	Info() Base
	payload() (config, spec any)
}

// Base carries the keys shared by every component type.
type Base struct {
	Title   *string
	DataRef string
}

// Info returns the shared keys.
func (b Base) Info() Base { return b }

// TitleText returns the title or an empty string.
func (b Base) TitleText() string {
	if b.Title == nil {
		return ""
	}
	return *b.Title
}

// Chart is a Vega-Lite v5 chart. Data rows are attached by the renderer from
// DataRef; Spec is expected to omit them.
type Chart struct {
	Base
	Spec   map[string]any
	Config map[string]any
}

func (*Chart) Type() Type { return TypeVegaLite }

func (c *Chart) payload() (any, any) { return mapOrNil(c.Config), mapOrNil(c.Spec) }

// Map is a MapLibre map fed from a dataset of point rows.
type Map struct {
	Base
	Config *MapConfig
}

func (*Map) Type() Type { return TypeMap }

func (c *Map) payload() (any, any) {
	if c.Config == nil {
		return nil, nil
	}
	return c.Config, nil
}

// Table renders dataset rows as columns.
type Table struct {
	Base
	Config TableConfig
}

func (*Table) Type() Type { return TypeTable }

func (c *Table) payload() (any, any) { return c.Config, nil }

// Form shares the table configuration shape.
type Form struct {
	Base
	Config TableConfig
}

func (*Form) Type() Type { return TypeForm }

func (c *Form) payload() (any, any) { return c.Config, nil }

// List has a free-form configuration.
type List struct {
	Base
	Config map[string]any
}

func (*List) Type() Type { return TypeList }

func (c *List) payload() (any, any) { return mapOrNil(c.Config), nil }

// Markdown renders config.md.
type Markdown struct {
	Base
	Config MarkdownConfig
}

func (*Markdown) Type() Type { return TypeMarkdown }

func (c *Markdown) payload() (any, any) { return c.Config, nil }

// Mermaid renders a diagram from config.mermaid.
type Mermaid struct {
	Base
	Config MermaidConfig
}

func (*Mermaid) Type() Type { return TypeMermaid }

func (c *Mermaid) payload() (any, any) { return c.Config, nil }

func mapOrNil(m map[string]any) any {
	if m == nil {
		return nil
	}
	return m
}

// componentWire is the JSON shape shared by all component types.
type componentWire struct {
	Type    Type            `json:"type"`
	Title   *string         `json:"title,omitempty"`
	DataRef string          `json:"dataRef,omitempty"`
	Config  json.RawMessage `json:"config,omitempty"`
	Spec    json.RawMessage `json:"spec,omitempty"`
}

// EncodeComponent encodes a component with its type tag.
func EncodeComponent(c Component) ([]byte, error) {
	info := c.Info()
	w := componentWire{Type: c.Type(), Title: info.Title, DataRef: info.DataRef}
	config, spec := c.payload()
	var err error
	if config != nil {
		if w.Config, err = json.Marshal(config); err != nil {
			return nil, fmt.Errorf("encoding %s config: %w", c.Type(), err)
		}
	}
	if spec != nil {
		if w.Spec, err = json.Marshal(spec); err != nil {
			return nil, fmt.Errorf("encoding %s spec: %w", c.Type(), err)
		}
	}
	return json.Marshal(w)
}

// DecodeComponent decodes a component, dispatching on its type tag.
func DecodeComponent(data []byte) (Component, error) {
	var w componentWire
	if err := decodeJSON(data, &w); err != nil {
		return nil, err
	}
	base := Base{Title: w.Title, DataRef: w.DataRef}

	switch w.Type {
	case TypeVegaLite:
		c := &Chart{Base: base}
		if err := decodeOptional(w.Spec, &c.Spec); err != nil {
			return nil, fmt.Errorf("spec: %w", err)
		}
		if err := decodeOptional(w.Config, &c.Config); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		return c, nil
	case TypeMap:
		c := &Map{Base: base}
		if len(w.Config) > 0 {
			c.Config = &MapConfig{}
			if err := decodeJSON(w.Config, c.Config); err != nil {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
		return c, nil
	case TypeTable:
		c := &Table{Base: base}
		return c, decodeOptional(w.Config, &c.Config)
	case TypeForm:
		c := &Form{Base: base}
		return c, decodeOptional(w.Config, &c.Config)
	case TypeList:
		c := &List{Base: base}
		return c, decodeOptional(w.Config, &c.Config)
	case TypeMarkdown:
		c := &Markdown{Base: base}
		return c, decodeOptional(w.Config, &c.Config)
	case TypeMermaid:
		c := &Mermaid{Base: base}
		return c, decodeOptional(w.Config, &c.Config)
	case "":
		return nil, fmt.Errorf("component type is required")
	default:
		return nil, fmt.Errorf("unknown component type %q", w.Type)
	}
}

func decodeOptional(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return decodeJSON(raw, v)
}

// Components maps component id to component.
type Components map[string]Component

// MarshalJSON encodes every component with its type tag.
func (cs Components) MarshalJSON() ([]byte, error) {
	if len(cs) == 0 {
		return []byte("{}"), nil
	}
	ids := make([]string, 0, len(cs))
	for id := range cs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string]json.RawMessage, len(cs))
	for _, id := range ids {
		data, err := EncodeComponent(cs[id])
		if err != nil {
			return nil, fmt.Errorf("component %q: %w", id, err)
		}
		out[id] = data
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes each component according to its type tag.
func (cs *Components) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := decodeJSON(data, &raw); err != nil {
		return err
	}
	out := make(Components, len(raw))
	for id, r := range raw {
		c, err := DecodeComponent(r)
		if err != nil {
			return fmt.Errorf("component %q: %w", id, err)
		}
		out[id] = c
	}
	*cs = out
	return nil
}
