package formatter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alexanderramin/aicanvas/internal/generator"
	"github.com/alexanderramin/aicanvas/internal/journal"
)

// FormatGeneration renders a generation result. Failures show the kind, the
// diagnostics and a clipped copy of the raw reply.
func FormatGeneration(res generator.Result) string {
	if res.OK {
		body := FormatPage(res.Page)
		if len(res.Warnings) > 0 {
			body += "\n" + FormatDiagnostics(nil, res.Warnings)
		}
		return RenderBox("Generated", body)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", OutcomePill(string(res.Kind)), FirstLine(res.Error))
	if len(res.ValidationErrors) > 0 {
		b.WriteString("\n")
		b.WriteString(FormatDiagnostics(res.ValidationErrors, nil))
	}
	if res.Raw != "" {
		b.WriteString("\n")
		b.WriteString(Dim("Raw model output:"))
		b.WriteString("\n")
		b.WriteString(Truncate(res.Raw, 600))
		b.WriteString("\n")
	}
	if res.Retryable() {
		b.WriteString("\n")
		b.WriteString(Dim("Retrying the request may succeed."))
		b.WriteString("\n")
	}
	return RenderBox("Generation failed", strings.TrimRight(b.String(), "\n"))
}

// FormatHistory renders journal entries newest first.
func FormatHistory(entries []*journal.Entry, now time.Time) string {
	if len(entries) == 0 {
		return Dim("No generations recorded yet.")
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			TruncID(e.ID),
			HumanTimestampFrom(e.CreatedAt, now),
			OutcomePill(e.Outcome),
			e.Model,
			FormatLatency(e.LatencyMs),
			fmt.Sprintf("%d", e.ComponentCount),
			Truncate(FirstLine(e.Error), 48),
		})
	}
	return RenderTable([]string{"ID", "WHEN", "OUTCOME", "MODEL", "LATENCY", "COMPONENTS", "ERROR"}, rows)
}

// FormatStats renders journal totals per outcome.
func FormatStats(st *journal.Stats) string {
	if st == nil || st.Total == 0 {
		return Dim("No generations recorded yet.")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d  %s %s\n\n", Bold("Total"), st.Total, Bold("Avg latency"), FormatLatency(int64(st.AvgLatencyMs)))

	rows := make([][]string, 0, len(st.ByOutcome))
	for _, outcome := range sortedKeys(st.ByOutcome) {
		n := st.ByOutcome[outcome]
		pct := float64(n) * 100 / float64(st.Total)
		rows = append(rows, []string{OutcomePill(outcome), fmt.Sprintf("%d", n), fmt.Sprintf("%.0f%%", pct)})
	}
	b.WriteString(RenderTable([]string{"OUTCOME", "COUNT", "SHARE"}, rows))
	return b.String()
}

// FirstLine returns s up to its first newline.
func FirstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
