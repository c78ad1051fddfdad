package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/aicanvas/internal/page"
	"github.com/alexanderramin/aicanvas/internal/schema"
)

// FormatPage renders a component table for p: id, type, title, placement
// and dataset.
func FormatPage(p *page.Page) string {
	if p == nil {
		return Dim("(empty page)")
	}

	var b strings.Builder
	title := "Dashboard"
	if p.Meta != nil && p.Meta.Title != "" {
		title = p.Meta.Title
	}
	b.WriteString(Header(title))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s  %s  %s\n\n",
		Dim(fmt.Sprintf("%d components", len(p.Components))),
		Dim(fmt.Sprintf("%d items", len(p.Layout.Items))),
		Dim(fmt.Sprintf("%d cols × %dpx", p.Layout.Columns(), p.Layout.RowHeightPx())))

	rows := make([][]string, 0, len(p.Components))
	for _, id := range p.ComponentIDs() {
		c := p.Components[id]
		place := StyleRed.Render("unplaced")
		if it, ok := p.Layout.Item(id); ok {
			place = fmt.Sprintf("%d,%d %d×%d", it.X, it.Y, it.W, it.H)
			if it.IsStatic() {
				place += " " + Dim("static")
			}
		}
		data := Dim("--")
		if ref := c.Info().DataRef; ref != "" {
			data = ref
			if ds, ok := p.Dataset(ref); ok {
				data += Dim(fmt.Sprintf(" (%d rows)", len(ds.Rows)))
			}
		}
		rows = append(rows, []string{
			Bold(id),
			StylePurple.Render(string(c.Type())),
			Truncate(c.Info().TitleText(), 32),
			place,
			data,
		})
	}
	b.WriteString(RenderTable([]string{"ID", "TYPE", "TITLE", "PLACEMENT", "DATA"}, rows))
	return b.String()
}

// FormatDiagnostics renders errors and warnings, one per line.
func FormatDiagnostics(errs, warnings []schema.StructuredError) string {
	var b strings.Builder
	for _, e := range errs {
		fmt.Fprintf(&b, "  %s %s %s\n", StyleRed.Render("✖"), StyleBlue.Render(pathOrRoot(e.Path)), e.Message)
	}
	for _, w := range warnings {
		fmt.Fprintf(&b, "  %s %s %s\n", StyleYellow.Render("▲"), StyleBlue.Render(pathOrRoot(w.Path)), w.Message)
	}
	return b.String()
}

// FormatValidation summarizes one validated document.
func FormatValidation(name string, res schema.Result) string {
	var b strings.Builder
	if res.Valid {
		fmt.Fprintf(&b, "%s %s", StyleGreen.Render("✔"), Bold(name))
		if n := len(res.Warnings); n > 0 {
			b.WriteString(StyleYellow.Render(fmt.Sprintf("  %d warning(s)", n)))
		}
	} else {
		fmt.Fprintf(&b, "%s %s %s", StyleRed.Render("✖"), Bold(name),
			StyleRed.Render(fmt.Sprintf("%d error(s)", len(res.Errors))))
	}
	b.WriteString("\n")
	b.WriteString(FormatDiagnostics(res.Errors, res.Warnings))
	return b.String()
}

func pathOrRoot(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
