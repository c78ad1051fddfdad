// Package page holds the dashboard document exchanged between the generator
// and the renderer. Documents are validated against the page schema before
// they are decoded into these types.
package page

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

const (
	// EngineRGL identifies the react-grid-layout grid system.
	EngineRGL = "rgl"

	DefaultCols      = 24
	DefaultRowHeight = 30

	// SourceInline is the only dataset source kind.
	SourceInline = "inline"
)

var (
	DefaultMargin           = []int{10, 10}
	DefaultContainerPadding = []int{0, 0}
)

// Page is the root dashboard document.
type Page struct {
	Meta       *Meta      `json:"meta,omitempty"`
	Layout     Layout     `json:"layout"`
	Components Components `json:"components"`
	Data       Datasets   `json:"data"`
}

// Meta is optional descriptive metadata.
type Meta struct {
	Title       string  `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Version     *string `json:"version,omitempty"`
}

// Layout describes the grid and the placed items. Optional numeric fields are
// pointers so an absent key survives a decode/encode round trip.
type Layout struct {
	Engine           string       `json:"engine"`
	Cols             *int         `json:"cols,omitempty"`
	RowHeight        *int         `json:"rowHeight,omitempty"`
	Margin           []int        `json:"margin,omitempty"`
	ContainerPadding []int        `json:"containerPadding,omitempty"`
	Items            []LayoutItem `json:"items"`
}

// Columns returns the grid column count, applying the default.
func (l Layout) Columns() int {
	if l.Cols == nil {
		return DefaultCols
	}
	return *l.Cols
}

// RowHeightPx returns the row height in pixels, applying the default.
func (l Layout) RowHeightPx() int {
	if l.RowHeight == nil {
		return DefaultRowHeight
	}
	return *l.RowHeight
}

// UnmarshalJSON accepts any integral JSON number for the grid settings.
func (l *Layout) UnmarshalJSON(data []byte) error {
	var w struct {
		Engine           string        `json:"engine"`
		Cols             *json.Number  `json:"cols"`
		RowHeight        *json.Number  `json:"rowHeight"`
		Margin           []json.Number `json:"margin"`
		ContainerPadding []json.Number `json:"containerPadding"`
		Items            []LayoutItem  `json:"items"`
	}
	if err := decodeJSON(data, &w); err != nil {
		return err
	}
	out := Layout{Engine: w.Engine, Items: w.Items}
	var err error
	if out.Cols, err = optionalInt(w.Cols); err != nil {
		return fmt.Errorf("cols: %w", err)
	}
	if out.RowHeight, err = optionalInt(w.RowHeight); err != nil {
		return fmt.Errorf("rowHeight: %w", err)
	}
	if out.Margin, err = intSlice(w.Margin); err != nil {
		return fmt.Errorf("margin: %w", err)
	}
	if out.ContainerPadding, err = intSlice(w.ContainerPadding); err != nil {
		return fmt.Errorf("containerPadding: %w", err)
	}
	*l = out
	return nil
}

// Item returns the layout item placing the given component.
func (l Layout) Item(id string) (LayoutItem, bool) {
	for _, it := range l.Items {
		if it.I == id {
			return it, true
		}
	}
	return LayoutItem{}, false
}

// LayoutItem places one component on the grid.
type LayoutItem struct {
	I      string `json:"i"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	W      int    `json:"w"`
	H      int    `json:"h"`
	Static *bool  `json:"static,omitempty"`
}

// UnmarshalJSON accepts any integral JSON number for the grid fields.
func (it *LayoutItem) UnmarshalJSON(data []byte) error {
	var w struct {
		I      string      `json:"i"`
		X      json.Number `json:"x"`
		Y      json.Number `json:"y"`
		W      json.Number `json:"w"`
		H      json.Number `json:"h"`
		Static *bool       `json:"static"`
	}
	if err := decodeJSON(data, &w); err != nil {
		return err
	}
	out := LayoutItem{I: w.I, Static: w.Static}
	for _, f := range []struct {
		key string
		n   json.Number
		dst *int
	}{{"x", w.X, &out.X}, {"y", w.Y, &out.Y}, {"w", w.W, &out.W}, {"h", w.H, &out.H}} {
		if f.n == "" {
			continue
		}
		v, err := intValue(f.n)
		if err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = v
	}
	*it = out
	return nil
}

// IsStatic reports whether the item is locked in place.
func (it LayoutItem) IsStatic() bool {
	return it.Static != nil && *it.Static
}

// InlineDataset is a named table of rows owned by the page.
type InlineDataset struct {
	Source string           `json:"source"`
	Rows   []map[string]any `json:"rows"`
}

// Datasets maps dataset name to dataset.
type Datasets map[string]InlineDataset

// MarshalJSON encodes a nil map as an empty object.
func (d Datasets) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]InlineDataset(d))
}

// New returns an empty page skeleton. It is not valid until at least one
// component is placed.
func New() *Page {
	return &Page{
		Layout: Layout{
			Engine: EngineRGL,
			Items:  []LayoutItem{},
		},
		Components: Components{},
		Data:       Datasets{},
	}
}

// Parse decodes a document that has already passed schema validation.
// Free-form values keep their numbers as json.Number, so integers beyond
// float64 precision survive a round trip.
func Parse(data []byte) (*Page, error) {
	var p Page
	if err := decodeJSON(data, &p); err != nil {
		return nil, fmt.Errorf("decoding page: %w", err)
	}
	if p.Components == nil {
		p.Components = Components{}
	}
	if p.Data == nil {
		p.Data = Datasets{}
	}
	return &p, nil
}

// JSON encodes the page with two-space indentation.
func (p *Page) JSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Clone returns a deep copy of the page.
func (p *Page) Clone() (*Page, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("cloning page: %w", err)
	}
	return Parse(data)
}

// ComponentIDs returns the component keys in sorted order.
func (p *Page) ComponentIDs() []string {
	ids := make([]string, 0, len(p.Components))
	for id := range p.Components {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dataset resolves a dataset reference.
func (p *Page) Dataset(name string) (*InlineDataset, bool) {
	if name == "" {
		return nil, false
	}
	ds, ok := p.Data[name]
	if !ok {
		return nil, false
	}
	return &ds, true
}

// decodeJSON decodes one value with UseNumber. Custom decoders in this
// package call it too, so nested free-form values keep exact digits.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// intValue converts an integral JSON number. JSON Schema treats 24.0 as an
// integer, so it is accepted here as well.
func intValue(n json.Number) (int, error) {
	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%s is not an integer", n)
	}
	return int(f), nil
}

func optionalInt(n *json.Number) (*int, error) {
	if n == nil {
		return nil, nil
	}
	v, err := intValue(*n)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func intSlice(ns []json.Number) ([]int, error) {
	if ns == nil {
		return nil, nil
	}
	out := make([]int, len(ns))
	for i, n := range ns {
		v, err := intValue(n)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
