package render

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/alexanderramin/aicanvas/internal/page"
)

// SourceID is the id of the GeoJSON source injected into map styles.
const SourceID = "data"

const (
	defaultPointColor  = "#2563eb"
	defaultPointRadius = 6
)

// View is a map ready to draw. For inline styles the source and layers are
// already merged into Style; for URL styles they are returned alongside and
// the renderer adds them after the style loads.
type View struct {
	Style   any              `json:"style,omitempty"`
	Options map[string]any   `json:"options,omitempty"`
	Source  map[string]any   `json:"source"`
	Layers  []map[string]any `json:"layers,omitempty"`
}

// FeatureCollection converts rows to GeoJSON points. Coordinates come from
// longitude/latitude or lng/lat, as numbers or numeric strings; rows without
// both are skipped. Every other field becomes a feature property.
func FeatureCollection(rows []map[string]any) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, row := range rows {
		lng, lat, ok := coordinates(row)
		if !ok {
			continue
		}
		f := geojson.NewFeature(orb.Point{lng, lat})
		for k, v := range row {
			switch k {
			case "longitude", "latitude", "lng", "lat":
				continue
			}
			f.Properties[k] = v
		}
		fc.Append(f)
	}
	return fc
}

func coordinates(row map[string]any) (float64, float64, bool) {
	lng, okLng := number(row["longitude"])
	if !okLng {
		lng, okLng = number(row["lng"])
	}
	lat, okLat := number(row["latitude"])
	if !okLat {
		lat, okLat = number(row["lat"])
	}
	return lng, lat, okLng && okLat
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// MapView builds the drawable map for c. ds may be nil, which yields an
// empty source.
func MapView(c *page.Map, ds *page.InlineDataset) View {
	var rows []map[string]any
	if ds != nil {
		rows = ds.Rows
	}
	source := map[string]any{"type": "geojson", "data": FeatureCollection(rows)}
	layers := defaultLayers(rows)

	var view View
	if c.Config != nil {
		view.Options, _ = cloneValue(c.Config.Options).(map[string]any)
	}

	if style, ok := c.Config.StyleObject(); ok {
		merged, _ := cloneValue(style).(map[string]any)
		sources, _ := merged["sources"].(map[string]any)
		if sources == nil {
			sources = map[string]any{}
		}
		sources[SourceID] = source
		merged["sources"] = sources

		existing, _ := merged["layers"].([]any)
		if !targetsSource(existing) {
			for _, l := range layers {
				existing = append(existing, l)
			}
		}
		merged["layers"] = existing
		view.Style = merged
		view.Source = source
		return view
	}

	if url, ok := c.Config.StyleURL(); ok {
		view.Style = url
	}
	view.Source = source
	view.Layers = layers
	return view
}

func targetsSource(layers []any) bool {
	for _, l := range layers {
		m, _ := l.(map[string]any)
		if s, _ := m["source"].(string); s == SourceID {
			return true
		}
	}
	return false
}

func defaultLayers(rows []map[string]any) []map[string]any {
	layers := []map[string]any{{
		"id":     "data-points",
		"type":   "circle",
		"source": SourceID,
		"paint": map[string]any{
			"circle-color":        []any{"coalesce", []any{"get", "color"}, defaultPointColor},
			"circle-radius":       []any{"coalesce", []any{"get", "radius"}, defaultPointRadius},
			"circle-stroke-color": "#ffffff",
			"circle-stroke-width": 1,
		},
	}}
	if hasNames(rows) {
		layers = append(layers, map[string]any{
			"id":     "data-labels",
			"type":   "symbol",
			"source": SourceID,
			"layout": map[string]any{
				"text-field":  []any{"get", "name"},
				"text-size":   12,
				"text-offset": []any{0, 1.2},
				"text-anchor": "top",
			},
			"paint": map[string]any{
				"text-color":      "#1f2937",
				"text-halo-color": "#ffffff",
				"text-halo-width": 1,
			},
		})
	}
	return layers
}

func hasNames(rows []map[string]any) bool {
	for _, r := range rows {
		if s, ok := r["name"].(string); ok && s != "" {
			return true
		}
	}
	return false
}
