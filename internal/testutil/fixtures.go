package testutil

import (
	"fmt"
	"sync/atomic"

	"github.com/alexanderramin/aicanvas/internal/page"
)

var testComponentCounter atomic.Int64

// PageOption mutates a fixture page.
type PageOption func(*page.Page)

// WithTitle sets meta.title.
func WithTitle(title string) PageOption {
	return func(p *page.Page) {
		p.Meta = &page.Meta{Title: title}
	}
}

// WithMarkdown places a markdown component on the next free row.
func WithMarkdown(id, md string) PageOption {
	return func(p *page.Page) {
		place(p, id, page.DefaultCols, 2, &page.Markdown{Config: page.MarkdownConfig{MD: md}})
	}
}

// WithBarChart adds a dataset and a bar chart bound to it.
func WithBarChart(id, dataset string, rows ...map[string]any) PageOption {
	return func(p *page.Page) {
		if len(rows) == 0 {
			rows = []map[string]any{{"label": "a", "value": 1}}
		}
		p.Data[dataset] = page.InlineDataset{Source: page.SourceInline, Rows: rows}
		chart := &page.Chart{
			Base: page.Base{DataRef: dataset},
			Spec: map[string]any{
				"mark": "bar",
				"encoding": map[string]any{
					"x": map[string]any{"field": "label", "type": "nominal"},
					"y": map[string]any{"field": "value", "type": "quantitative"},
				},
			},
		}
		place(p, id, page.DefaultCols/2, 8, chart)
	}
}

// WithOrphan adds a component without a layout item.
func WithOrphan(id string) PageOption {
	return func(p *page.Page) {
		p.Components[id] = &page.Markdown{Config: page.MarkdownConfig{MD: "orphan"}}
	}
}

func place(p *page.Page, id string, w, h int, c page.Component) {
	y := 0
	for _, it := range p.Layout.Items {
		if bottom := it.Y + it.H; bottom > y {
			y = bottom
		}
	}
	p.Layout.Items = append(p.Layout.Items, page.LayoutItem{I: id, X: 0, Y: y, W: w, H: h})
	p.Components[id] = c
}

// NewTestPage returns a page built from opts. With no options it holds a
// single markdown header, which makes it valid.
func NewTestPage(opts ...PageOption) *page.Page {
	p := page.New()
	if len(opts) == 0 {
		n := testComponentCounter.Add(1)
		opts = []PageOption{WithMarkdown(fmt.Sprintf("header%d", n), "# Test")}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PageJSON encodes p for use as a raw document.
func PageJSON(p *page.Page) []byte {
	data, err := p.JSON()
	if err != nil {
		panic(fmt.Sprintf("testutil: encoding page: %v", err))
	}
	return data
}
