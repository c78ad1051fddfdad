package schema

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPage = `{
	"layout": {"engine": "rgl", "cols": 24, "items": [
		{"i": "header", "x": 0, "y": 0, "w": 24, "h": 2},
		{"i": "chart", "x": 0, "y": 2, "w": 24, "h": 8}
	]},
	"components": {
		"header": {"type": "markdown", "config": {"md": "# Sales"}},
		"chart": {"type": "vegalite5", "dataRef": "sales", "spec": {"mark": "bar"}}
	},
	"data": {"sales": {"source": "inline", "rows": [{"month": "Jan", "revenue": 100}]}}
}`

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestValidate_ValidPage(t *testing.T) {
	res := NewValidator().Validate(decode(t, validPage))

	assert.True(t, res.Valid)
	assert.Nil(t, res.Errors)
	assert.Nil(t, res.Warnings)
}

func TestValidate_RawMessage(t *testing.T) {
	res := NewValidator().Validate(json.RawMessage(validPage))
	assert.True(t, res.Valid)
}

func TestValidate_DoesNotMutateCandidate(t *testing.T) {
	candidate := decode(t, validPage)
	before, err := json.Marshal(candidate)
	require.NoError(t, err)

	NewValidator().Validate(candidate)

	after, err := json.Marshal(candidate)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestValidate_MarkdownMissingMD(t *testing.T) {
	doc := decode(t, validPage)
	doc["components"].(map[string]any)["header"] = map[string]any{"type": "markdown", "config": map[string]any{}}

	res := NewValidator().Validate(doc)

	require.False(t, res.Valid)
	require.NotEmpty(t, res.Errors)
	found := false
	for _, e := range res.Errors {
		if e.Path == "/components/header/config/md" && e.Keyword == "required" {
			assert.Contains(t, e.Message, "md")
			found = true
		}
	}
	assert.True(t, found, "expected required error at /components/header/config/md, got %v", res.Errors)
}

func TestValidate_RequiredErrorPerMissingProperty(t *testing.T) {
	doc := decode(t, validPage)
	items := doc["layout"].(map[string]any)["items"].([]any)
	delete(items[0].(map[string]any), "w")
	delete(items[0].(map[string]any), "h")

	res := NewValidator().Validate(doc)

	require.False(t, res.Valid)
	var required []StructuredError
	for _, e := range res.Errors {
		if e.Keyword == "required" {
			required = append(required, e)
		}
	}
	require.Len(t, required, 2)
	assert.Equal(t, "/layout/items/0/h", required[0].Path)
	assert.Equal(t, "/layout/items/0/w", required[1].Path)
	assert.Contains(t, required[0].Message, "h")
}

func TestValidate_MarkdownMissingConfig(t *testing.T) {
	doc := decode(t, validPage)
	doc["components"].(map[string]any)["header"] = map[string]any{"type": "markdown"}

	res := NewValidator().Validate(doc)

	require.False(t, res.Valid)
	assert.Contains(t, paths(res.Errors), "/components/header/config")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	doc := decode(t, validPage)
	doc["extra"] = true
	doc["layout"].(map[string]any)["engine"] = "css-grid"
	doc["components"].(map[string]any)["chart"] = map[string]any{"type": "pie"}

	res := NewValidator().Validate(doc)

	require.False(t, res.Valid)
	got := paths(res.Errors)
	assert.Contains(t, got, "")
	assert.Contains(t, got, "/layout/engine")
	assert.Contains(t, got, "/components/chart/type")
}

func TestValidate_UnknownTypeFails(t *testing.T) {
	doc := decode(t, validPage)
	doc["components"].(map[string]any)["chart"].(map[string]any)["type"] = "pie"

	res := NewValidator().Validate(doc)

	assert.False(t, res.Valid)
	assert.Contains(t, paths(res.Errors), "/components/chart/type")
}

func TestValidate_SpecOnlyOnCharts(t *testing.T) {
	doc := decode(t, validPage)
	doc["components"].(map[string]any)["header"].(map[string]any)["spec"] = map[string]any{"mark": "bar"}

	res := NewValidator().Validate(doc)

	assert.False(t, res.Valid)
	assert.Contains(t, paths(res.Errors), "/components/header/spec")
}

func TestValidate_ChartRequiresSpec(t *testing.T) {
	doc := decode(t, validPage)
	delete(doc["components"].(map[string]any)["chart"].(map[string]any), "spec")

	res := NewValidator().Validate(doc)

	assert.False(t, res.Valid)
	assert.Contains(t, paths(res.Errors), "/components/chart")
}

func TestValidate_TableColumns(t *testing.T) {
	doc := decode(t, validPage)
	comps := doc["components"].(map[string]any)
	comps["orders"] = map[string]any{"type": "table", "config": map[string]any{"columns": []any{}}}
	items := doc["layout"].(map[string]any)["items"].([]any)
	doc["layout"].(map[string]any)["items"] = append(items, map[string]any{"i": "orders", "x": 0, "y": 10, "w": 24, "h": 4})

	res := NewValidator().Validate(doc)
	assert.False(t, res.Valid)
	assert.Contains(t, paths(res.Errors), "/components/orders/config/columns")

	comps["orders"] = map[string]any{"type": "table", "config": map[string]any{
		"columns": []any{map[string]any{"key": "month", "label": "Month", "width": 3}},
	}}
	res = NewValidator().Validate(doc)
	assert.False(t, res.Valid)
	assert.Contains(t, paths(res.Errors), "/components/orders/config/columns/0")
}

func TestValidate_EmptyItems(t *testing.T) {
	doc := decode(t, validPage)
	doc["layout"].(map[string]any)["items"] = []any{}

	res := NewValidator().Validate(doc)

	assert.False(t, res.Valid)
	assert.Contains(t, paths(res.Errors), "/layout/items")
}

func TestValidate_MissingTopLevelKeys(t *testing.T) {
	res := NewValidator().Validate(map[string]any{})

	require.False(t, res.Valid)
	assert.Contains(t, paths(res.Errors), "")
}

func TestValidate_NonObjectCandidate(t *testing.T) {
	for _, candidate := range []any{nil, "page", 42, []any{}} {
		res := NewValidator().Validate(candidate)
		assert.False(t, res.Valid)
		assert.NotEmpty(t, res.Errors)
	}
}

func TestValidate_NotEncodable(t *testing.T) {
	res := NewValidator().Validate(map[string]any{"layout": make(chan int)})

	require.False(t, res.Valid)
	assert.Equal(t, KeywordEncoding, res.Errors[0].Keyword)
}

func TestValidate_UnknownLayoutReference(t *testing.T) {
	doc := decode(t, validPage)
	items := doc["layout"].(map[string]any)["items"].([]any)
	items[1].(map[string]any)["i"] = "missing"

	res := NewValidator().Validate(doc)

	require.False(t, res.Valid)
	assert.Contains(t, res.Errors, StructuredError{
		Path:    "/layout/items/1/i",
		Keyword: KeywordReference,
		Message: `component "missing" is not defined`,
	})
}

func TestValidate_DuplicateItemIDs(t *testing.T) {
	doc := decode(t, validPage)
	items := doc["layout"].(map[string]any)["items"].([]any)
	items[1].(map[string]any)["i"] = "header"

	res := NewValidator().Validate(doc)

	require.False(t, res.Valid)
	assert.Contains(t, keywords(res.Errors), KeywordUniqueID)
}

func TestValidate_UnknownDataRefIsAWarning(t *testing.T) {
	doc := decode(t, validPage)
	doc["components"].(map[string]any)["chart"].(map[string]any)["dataRef"] = "orders"

	res := NewValidator().Validate(doc)

	assert.True(t, res.Valid)
	assert.Nil(t, res.Errors)
	assert.Equal(t, []StructuredError{{
		Path:    "/components/chart/dataRef",
		Keyword: WarnUnresolvedRef,
		Message: `dataset "orders" is not defined; the component renders without rows`,
	}}, res.Warnings)
}

func TestValidate_IntegralFloatsAreIntegers(t *testing.T) {
	doc := `{
		"layout": {"engine": "rgl", "cols": 24.0, "items": [{"i": "header", "x": 12.0, "y": 0, "w": 24.0, "h": 2}]},
		"components": {"header": {"type": "markdown", "config": {"md": "# Sales"}}},
		"data": {}
	}`

	res := NewValidator().Validate(json.RawMessage(doc))

	assert.True(t, res.Valid, res.Errors)
	assert.Equal(t, []string{WarnOverflow}, keywords(res.Warnings))
}

func TestValidate_InlineChartDataIsAWarning(t *testing.T) {
	doc := decode(t, validPage)
	chart := doc["components"].(map[string]any)["chart"].(map[string]any)
	chart["spec"] = map[string]any{"mark": "bar", "data": map[string]any{"values": []any{map[string]any{"a": 1}}}}

	res := NewValidator().Validate(doc)

	assert.True(t, res.Valid)
	assert.Contains(t, keywords(res.Warnings), WarnInlineData)
}

func TestValidate_ChartConfigMayNotCarryData(t *testing.T) {
	doc := decode(t, validPage)
	chart := doc["components"].(map[string]any)["chart"].(map[string]any)
	chart["config"] = map[string]any{"data": []any{}}

	res := NewValidator().Validate(doc)

	assert.False(t, res.Valid)
	assert.Contains(t, paths(res.Errors), "/components/chart/config")
}

func TestValidate_LintWarnings(t *testing.T) {
	doc := decode(t, validPage)
	comps := doc["components"].(map[string]any)
	comps["header"].(map[string]any)["dataRef"] = "sales"
	comps["notes"] = map[string]any{"type": "list", "config": map[string]any{}}
	items := doc["layout"].(map[string]any)["items"].([]any)
	items[1].(map[string]any)["x"] = 12

	res := NewValidator().Validate(doc)

	assert.True(t, res.Valid)
	assert.Equal(t, []StructuredError{
		{Path: "/components/header/dataRef", Keyword: WarnUnusedDataRef, Message: "markdown components do not read datasets"},
		{Path: "/components/notes", Keyword: WarnUnplaced, Message: `component "notes" has no layout item`},
		{Path: "/layout/items/1", Keyword: WarnOverflow, Message: "item spans columns 12 to 36 of 24"},
	}, res.Warnings)
}

func TestValidate_ErrorsSortedByPath(t *testing.T) {
	doc := decode(t, validPage)
	doc["layout"].(map[string]any)["engine"] = "css-grid"
	doc["components"].(map[string]any)["chart"].(map[string]any)["type"] = "pie"

	res := NewValidator().Validate(doc)

	require.False(t, res.Valid)
	got := paths(res.Errors)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1], got[i])
	}
}

func TestValidate_Concurrent(t *testing.T) {
	v := NewValidator()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, v.Validate(json.RawMessage(validPage)).Valid)
		}()
	}
	wg.Wait()
}

func TestPointer(t *testing.T) {
	assert.Equal(t, "", Pointer())
	assert.Equal(t, "/components/a~1b/config", Pointer("components", "a/b", "config"))
	assert.Equal(t, "/x~0y", Pointer("x~y"))
}

func paths(errs []StructuredError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Path)
	}
	return out
}

func keywords(errs []StructuredError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Keyword)
	}
	return out
}
