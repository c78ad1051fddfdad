// Package render prepares validated pages for a renderer: chart specs get
// their dataset rows attached and map components get a GeoJSON source and
// default layers.
package render

import (
	"github.com/alexanderramin/aicanvas/internal/page"
)

// Payload is the per-component data a renderer draws from.
type Payload struct {
	Charts map[string]map[string]any `json:"charts"`
	Maps   map[string]View           `json:"maps"`
}

// Prepare resolves every chart and map of p against its datasets.
func Prepare(p *page.Page) Payload {
	out := Payload{
		Charts: map[string]map[string]any{},
		Maps:   map[string]View{},
	}
	if p == nil {
		return out
	}
	for _, id := range p.ComponentIDs() {
		switch c := p.Components[id].(type) {
		case *page.Chart:
			ds, _ := p.Dataset(c.DataRef)
			out.Charts[id] = ChartSpec(c, ds)
		case *page.Map:
			ds, _ := p.Dataset(c.DataRef)
			out.Maps[id] = MapView(c, ds)
		}
	}
	return out
}

// ChartSpec returns a copy of the chart's spec with data: {values: rows}
// attached when ds is non-nil. The page itself is not modified.
func ChartSpec(c *page.Chart, ds *page.InlineDataset) map[string]any {
	spec, _ := cloneValue(c.Spec).(map[string]any)
	if spec == nil {
		spec = map[string]any{}
	}
	if ds != nil {
		spec["data"] = map[string]any{"values": rowsValue(ds.Rows)}
	}
	return spec
}

func rowsValue(rows []map[string]any) []any {
	out := make([]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, cloneValue(map[string]any(r)))
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return nil
		}
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = cloneValue(val)
		}
		return s
	default:
		return v
	}
}
