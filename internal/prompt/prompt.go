// Package prompt builds the instructions sent to the model for one page edit.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/alexanderramin/aicanvas/internal/page"
	"github.com/alexanderramin/aicanvas/internal/schema"
)

// BasemapURL is the public MapLibre style every generated map uses.
const BasemapURL = "https://basemaps.cartocdn.com/gl/voyager-gl-style/style.json"

const preamble = `You are an assistant that edits a dashboard JSON document called page.json.
Return ONLY valid JSON (no markdown fences, no prose before or after it).`

// Rule groups. Component type and required-key rules are derived from the
// schema in componentRules.
var (
	conversationRules = []string{
		"If the user message is not a dashboard-edit request (for example a greeting like 'hello'), return the current page JSON unchanged.",
	}

	gridRules = []string{
		fmt.Sprintf("The grid uses %d columns. Set layout.cols=%d unless the user explicitly asks otherwise. A full-width component uses x=0 and w=%d.", page.DefaultCols, page.DefaultCols, page.DefaultCols),
		fmt.Sprintf("For dashboards with many components set layout.rowHeight to 40-50; the default of %d makes tiles too compressed.", page.DefaultRowHeight),
		"layout.items is an array of grid items with ONLY these keys: i, x, y, w, h, static (optional). Do NOT use 'id' and do NOT put 'type' inside layout items.",
		"Every layout.items[*].i MUST match an existing key in components, and each i appears once.",
		"CRITICAL: layout.items MUST contain at least 1 item. Never return an empty layout.items array. If the user asks to remove every component, keep one placeholder component.",
	}

	dataRules = []string{
		"All inline data rows live under page.data.<datasetName> as { source: 'inline', rows: [...] }. Components reference datasets through dataRef, and every dataRef MUST name an existing dataset.",
		"CRITICAL: for tabular data use type='table' with config.columns (each column is exactly { key, label }) or type='list'. NEVER put raw data arrays in component.config or component.data.",
	}

	chartRules = []string{
		"Charts MUST be type='vegalite5'. The Vega-Lite v5 spec lives under component.spec and MUST include $schema.",
		"Renderer contract for charts: the app injects the dataset named by component.dataRef into the spec at runtime as data: { values: rows }.",
		"Therefore the spec SHOULD omit 'data' entirely. Do NOT use spec.data.values, spec.datasets or any other inline data mechanism.",
		"Use only Vega-Lite constructs (mark, encoding, transform, layer, hconcat, vconcat, repeat, facet). Do NOT use Vega-only features such as signals, scales or raw Vega marks.",
		"For text-only banner or title tiles use a Vega-Lite text mark with encoding.text.value. To align left, center or right you MUST set encoding.x.value (and usually encoding.y.value); mark.align only changes anchoring around x.",
		`CRITICAL for KPI or metric tiles: do NOT position text with absolute x/y values. Use {"width": "container", "height": "container", "mark": {"type": "text", "fontSize": 48, "fontWeight": "bold"}, "encoding": {"text": {"field": "value", "type": "quantitative"}}} so the value is centered and visible.`,
	}

	mapRules = []string{
		"Map data MUST come from page.data through component.dataRef. The renderer converts that dataset into a GeoJSON FeatureCollection and adds it to the map style as a GeoJSON source with id='data'.",
		"If no style layer reads source 'data', the renderer adds a default circle layer.",
		"Map point rows must include longitude/latitude (or lng/lat). Rows may include color and radius, which the default circle layer reads from feature properties.",
		"To label points, include a string field 'name' in each row; the renderer displays it automatically.",
		"For basemaps ALWAYS use this public style URL:\n" + BasemapURL,
		"Do NOT generate or modify inline MapLibre style objects and do NOT use config.layers. Keep an existing string style URL unchanged unless the user asks for another basemap.",
		"MapLibre layer types are fill, line, symbol, circle, heatmap, fill-extrusion, raster, hillshade and background. 'vector' is a source type, never a layer type.",
		"When adding a map with points, also set config.options.center and config.options.zoom, unless the view should fit the points.",
		"Do NOT use component.config.markers unless the user explicitly asks for DOM markers.",
		"A map component puts its MapLibre configuration under component.config as { style: <style-url-string>, options: {...} }.",
	}

	textRules = []string{
		"For markdown content (documentation, reports, formatted text) use type='markdown' with config.md holding the markdown string. Markdown components do NOT use dataRef.",
		"For diagrams (flowchart, sequenceDiagram, classDiagram, stateDiagram, erDiagram, gantt, pie and more) use type='mermaid' with config.mermaid holding the diagram definition. Mermaid components do NOT use dataRef and render with zoom controls.",
		`CRITICAL for Mermaid syntax: when a node label contains parentheses, brackets or quotes, wrap the ENTIRE label in double quotes, e.g. A["Label with (special) chars"] --> B["Another label"]. Avoid parentheses in node ids.`,
		"IMPORTANT: for hierarchical parent-child structures (for example ESXi -> VMs -> Containers) PREFER type='mermaid' with a flowchart (\"flowchart TD\") over Vega-Lite. Use Vega-Lite network views only when custom positioning is required.",
	}

	editRules = []string{
		"Keep existing content unless the user explicitly asks to remove it.",
		"If the current page is empty, create a minimal valid page skeleton (layout, components, data) and then apply the user's request.",
	}
)

// componentRules projects the per-type schema requirements into prompt rules.
func componentRules() []string {
	reqs := schema.Requirements()
	types := make([]string, 0, len(reqs))
	for _, r := range reqs {
		types = append(types, "'"+string(r.Type)+"'")
	}

	rules := []string{
		fmt.Sprintf("Allowed component types are ONLY: %s. Do NOT invent types like 'pie', 'json' or 'text'.", strings.Join(types, ", ")),
		"Each component object MUST have a 'type' field set to one of the allowed types.",
		"Each component object may ONLY use these keys: type, title, dataRef, config, spec. Do NOT add keys like 'data' inside a component.",
	}
	for _, r := range reqs {
		var parts []string
		for _, k := range r.Keys {
			parts = append(parts, "'"+k+"'")
		}
		for _, k := range r.ConfigKeys {
			parts = append(parts, "'config."+k+"'")
		}
		var line string
		if len(parts) > 0 {
			line = fmt.Sprintf("type='%s' MUST include %s", r.Type, strings.Join(parts, " and "))
		}
		if len(r.Forbidden) > 0 {
			forbidden := "MUST NOT include '" + strings.Join(r.Forbidden, "', '") + "'"
			if line == "" {
				line = fmt.Sprintf("type='%s' %s", r.Type, forbidden)
			} else {
				line += " and " + forbidden
			}
		}
		if line != "" {
			rules = append(rules, line+".")
		}
	}
	return rules
}

var (
	systemOnce   sync.Once
	systemPrompt string
)

// SystemPrompt returns the fixed instructions: preamble, the page schema
// verbatim and the rule set. The text is built once and reused.
func SystemPrompt() string {
	systemOnce.Do(func() {
		systemPrompt = buildSystemPrompt()
	})
	return systemPrompt
}

func buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n\n## Schema\nThe JSON must conform to this JSON Schema:\n")
	b.Write(schema.JSON())
	b.WriteString("\n\n## Rules\n")

	groups := [][]string{conversationRules, gridRules, componentRules(), dataRules, chartRules, mapRules, textRules, editRules}
	for _, group := range groups {
		for _, rule := range group {
			b.WriteString("- ")
			b.WriteString(rule)
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// UserMessage frames one edit request against the current page. A nil page
// is sent as {}.
func UserMessage(current *page.Page, request string) (string, error) {
	doc := []byte("{}")
	if current != nil {
		var err error
		doc, err = json.MarshalIndent(current, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding current page: %w", err)
		}
	}

	var b strings.Builder
	b.WriteString("Current page.json:\n")
	b.Write(doc)
	b.WriteString("\n\nUser request:\n")
	b.WriteString(strings.TrimSpace(request))
	b.WriteString("\n\nReturn the complete updated page.json as a single JSON object and nothing else.")
	return b.String(), nil
}
