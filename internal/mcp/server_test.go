package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/aicanvas/internal/generator"
	"github.com/alexanderramin/aicanvas/internal/llm"
	"github.com/alexanderramin/aicanvas/internal/page"
	"github.com/alexanderramin/aicanvas/internal/schema"
	"github.com/alexanderramin/aicanvas/internal/testutil"
)

const testPage = `{
  "layout": {"engine": "rgl", "items": [{"i": "header", "x": 0, "y": 0, "w": 24, "h": 2}]},
  "components": {"header": {"type": "markdown", "config": {"md": "# Sales"}}}
}`

const chartPage = `{
  "layout": {"engine": "rgl", "items": [{"i": "chart", "x": 0, "y": 0, "w": 12, "h": 8}]},
  "components": {"chart": {"type": "vegalite5", "dataRef": "sales", "spec": {"mark": "bar"}}},
  "data": {"sales": {"source": "inline", "rows": [{"month": "Jan", "revenue": 1}]}}
}`

type scriptedClient struct {
	text string

	mu      sync.Mutex
	prompts []string
}

func (c *scriptedClient) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, req.UserPrompt)
	c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &llm.GenerateResponse{Text: c.text, Model: "scripted"}, nil
}

func (c *scriptedClient) lastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	return c.prompts[len(c.prompts)-1]
}

func newTestServer(t *testing.T, reply string, credential string) (*Server, *scriptedClient) {
	t.Helper()
	client := &scriptedClient{text: reply}
	factory := func(string) (llm.LLMClient, error) { return client, nil }
	v := schema.NewValidator()
	gen := generator.New(factory, v)
	return NewServer(gen, v, nil, Config{Credential: credential}), client
}

func callTool(args map[string]any) mcplib.CallToolRequest {
	var req mcplib.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcplib.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcplib.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func decodeObject(t *testing.T, s string) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	assert.Nil(t, s.Current())
	assert.Nil(t, CurrentPage(s))

	p := page.New()
	first := s.Replace(p)
	require.NotNil(t, first)
	assert.NotEmpty(t, first.ID)
	assert.Same(t, p, CurrentPage(s))

	second := s.Replace(page.New())
	assert.NotEqual(t, first.ID, second.ID)
	assert.Same(t, second, s.Current())
}

func TestHandleShow_Valid(t *testing.T) {
	srv, _ := newTestServer(t, "", "key")

	res, err := srv.handleShow(context.Background(), callTool(map[string]any{
		"componentData": decodeObject(t, testPage),
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "rendered successfully (1 components, 1 layout items)")

	cur := CurrentPage(srv.Store())
	require.NotNil(t, cur)
	assert.Contains(t, cur.Components, "header")
}

func TestHandleShow_StringArgument(t *testing.T) {
	srv, _ := newTestServer(t, "", "key")

	res, err := srv.handleShow(context.Background(), callTool(map[string]any{"componentData": testPage}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.NotNil(t, CurrentPage(srv.Store()))
}

func TestHandleShow_InvalidKeepsPreviousPage(t *testing.T) {
	srv, _ := newTestServer(t, "", "key")
	_, _, err := srv.Show(json.RawMessage(testPage))
	require.NoError(t, err)
	before := srv.Store().Current()

	bad := decodeObject(t, testPage)
	bad["components"] = map[string]any{"header": map[string]any{"type": "markdown"}}

	res, err := srv.handleShow(context.Background(), callTool(map[string]any{"componentData": bad}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	text := resultText(t, res)
	assert.True(t, strings.HasPrefix(text, "Invalid page:"))
	assert.Contains(t, text, "/components/header")
	assert.Same(t, before, srv.Store().Current())
}

func TestHandleShow_MissingArgument(t *testing.T) {
	srv, _ := newTestServer(t, "", "key")

	res, err := srv.handleShow(context.Background(), callTool(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "componentData is required", resultText(t, res))
}

func TestHandleShow_ReportsWarnings(t *testing.T) {
	srv, _ := newTestServer(t, "", "key")
	doc := decodeObject(t, testPage)
	doc["components"].(map[string]any)["orphan"] = map[string]any{"type": "markdown", "config": map[string]any{"md": "x"}}

	res, err := srv.handleShow(context.Background(), callTool(map[string]any{"componentData": doc}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Warnings:")
	assert.Contains(t, resultText(t, res), `component "orphan" has no layout item`)
}

func TestShow_FixturePage(t *testing.T) {
	srv, _ := newTestServer(t, "", "key")
	p := testutil.NewTestPage(
		testutil.WithTitle("Revenue"),
		testutil.WithMarkdown("intro", "# Revenue"),
		testutil.WithBarChart("chart", "sales"),
		testutil.WithOrphan("spare"),
	)

	snap, res, err := srv.Show(json.RawMessage(testutil.PageJSON(p)))
	require.NoError(t, err)
	require.True(t, res.Valid, res.Errors)
	assert.Len(t, res.Warnings, 1)
	assert.Len(t, snap.Page.Layout.Items, 2)
	assert.Equal(t, "Revenue", snap.Page.Meta.Title)
}

func TestHandleGenerate_Success(t *testing.T) {
	srv, client := newTestServer(t, chartPage, "key")
	_, _, err := srv.Show(json.RawMessage(testPage))
	require.NoError(t, err)

	res, err := srv.handleGenerate(context.Background(), callTool(map[string]any{"prompt": "add a bar chart"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Generated dashboard with 1 components and 1 layout items.")

	assert.Contains(t, client.lastPrompt(), `"header"`, "the current page is sent by default")
	cur := CurrentPage(srv.Store())
	require.NotNil(t, cur)
	assert.Contains(t, cur.Components, "chart")
}

func TestHandleGenerate_KeepExistingFalse(t *testing.T) {
	srv, client := newTestServer(t, chartPage, "key")
	_, _, err := srv.Show(json.RawMessage(testPage))
	require.NoError(t, err)

	res, err := srv.handleGenerate(context.Background(), callTool(map[string]any{
		"prompt":       "start over",
		"keepExisting": false,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.NotContains(t, client.lastPrompt(), `"header"`)
}

func TestHandleGenerate_FailureKeepsPageAndReturnsRaw(t *testing.T) {
	srv, _ := newTestServer(t, "not json", "key")
	_, _, err := srv.Show(json.RawMessage(testPage))
	require.NoError(t, err)
	before := srv.Store().Current()

	res, err := srv.handleGenerate(context.Background(), callTool(map[string]any{"prompt": "anything"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	text := resultText(t, res)
	assert.True(t, strings.HasPrefix(text, generator.MsgInvalidJSON))
	assert.Contains(t, text, "Raw model output:\nnot json")
	assert.Same(t, before, srv.Store().Current())
}

func TestHandleGenerate_MissingPrompt(t *testing.T) {
	srv, _ := newTestServer(t, chartPage, "key")

	res, err := srv.handleGenerate(context.Background(), callTool(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestGenerate_CancelledDoesNotReplace(t *testing.T) {
	srv, _ := newTestServer(t, chartPage, "key")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := srv.Generate(ctx, "anything", true)
	assert.False(t, res.OK)
	assert.Equal(t, generator.KindCancelled, res.Kind)
	assert.Nil(t, srv.Store().Current())
}

func TestGenerate_MissingCredential(t *testing.T) {
	srv, _ := newTestServer(t, chartPage, "")

	res := srv.Generate(context.Background(), "anything", true)
	assert.False(t, res.OK)
	assert.Equal(t, generator.KindConfiguration, res.Kind)
}

func TestToolSchemas(t *testing.T) {
	show := decodeObject(t, string(showInputSchema()))
	assert.Equal(t, "object", show["type"])
	assert.Equal(t, []any{"componentData"}, show["required"])
	assert.Contains(t, show["$defs"], "Component")
	props := show["properties"].(map[string]any)
	data := props["componentData"].(map[string]any)
	assert.NotContains(t, data, "$defs")
	assert.NotContains(t, data, "$id")
	assert.Contains(t, data["properties"], "layout")

	gen := decodeObject(t, string(generateInputSchema()))
	assert.Equal(t, []any{"prompt"}, gen["required"])
	assert.Contains(t, gen["properties"], "keepExisting")
	assert.Equal(t, false, gen["additionalProperties"])
	assert.NotContains(t, gen, "$schema")
}

func TestTools_BindWidgetTemplate(t *testing.T) {
	srv, _ := newTestServer(t, "", "key")
	mcpSrv := srv.MCPServer()

	for _, name := range []string{ToolShow, ToolGenerate} {
		tool := mcpSrv.GetTool(name)
		require.NotNil(t, tool, name)
		require.NotNil(t, tool.Tool.Meta, name)
		fields := tool.Tool.Meta.AdditionalFields
		assert.Equal(t, WidgetURI, fields[MetaOutputTemplate], name)
		assert.NotEmpty(t, fields[MetaInvoking], name)
		assert.Equal(t, "Declarative UI ready", fields[MetaInvoked], name)

		encoded, err := json.Marshal(tool.Tool)
		require.NoError(t, err)
		assert.Contains(t, string(encoded), `"openai/outputTemplate":"ui://widget/declarative-ui.html"`)
	}
}

func TestHandleShow_ReturnsStructuredPage(t *testing.T) {
	srv, _ := newTestServer(t, "", "key")

	res, err := srv.handleShow(context.Background(), callTool(map[string]any{
		"componentData": decodeObject(t, testPage),
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	content, ok := res.StructuredContent.(map[string]any)
	require.True(t, ok, "structured content is %T", res.StructuredContent)
	assert.Same(t, CurrentPage(srv.Store()), content["componentData"])

	encoded, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"structuredContent":{"componentData":{`)
}

func TestHandleGenerate_ReturnsStructuredPage(t *testing.T) {
	srv, _ := newTestServer(t, chartPage, "key")

	res, err := srv.handleGenerate(context.Background(), callTool(map[string]any{"prompt": "a chart"}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	content, ok := res.StructuredContent.(map[string]any)
	require.True(t, ok)
	p, ok := content["componentData"].(*page.Page)
	require.True(t, ok)
	assert.Contains(t, p.Components, "chart")
}

func TestGenerateFrom_UsesExplicitPageAndStoresOnlyOnSuccess(t *testing.T) {
	srv, client := newTestServer(t, "{not json", "key")
	base, err := page.Parse([]byte(testPage))
	require.NoError(t, err)

	res := srv.GenerateFrom(context.Background(), "add a chart", base)

	assert.False(t, res.OK)
	assert.Contains(t, client.lastPrompt(), "# Sales")
	assert.Nil(t, srv.Store().Current())
}

func TestMCPServer_Registered(t *testing.T) {
	srv, _ := newTestServer(t, "", "key")
	first := srv.MCPServer()
	require.NotNil(t, first)
	assert.Same(t, first, srv.MCPServer())
}

func TestInjectPage(t *testing.T) {
	p, err := page.Parse([]byte(chartPage))
	require.NoError(t, err)

	html, err := InjectPage("<html><head><title>x</title></head><body></body></html>", p)
	require.NoError(t, err)

	head := html[:strings.Index(html, "</head>")]
	assert.Contains(t, head, "window.__COMPONENT_DATA__ = {")
	assert.Contains(t, head, "window.__RENDER_PAYLOAD__ = {")
	assert.Contains(t, head, `"charts":{"chart":`)

	unchanged, err := InjectPage("<div>no head</div>", p)
	require.NoError(t, err)
	assert.Equal(t, "<div>no head</div>", unchanged)

	noPage, err := InjectPage("<head></head>", nil)
	require.NoError(t, err)
	assert.Equal(t, "<head></head>", noPage)
}

func TestInjectPage_EscapesScriptClose(t *testing.T) {
	doc := strings.Replace(testPage, "# Sales", "</script><script>alert(1)</script>", 1)
	p, err := page.Parse([]byte(doc))
	require.NoError(t, err)

	html, err := InjectPage("<head></head>", p)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(html, "</script>"))
}

func TestWidgetHTML_Fallback(t *testing.T) {
	srv, _ := newTestServer(t, "", "key")
	srv.cfg.WidgetPath = t.TempDir() + "/missing.html"

	html, err := srv.WidgetHTML()
	require.NoError(t, err)
	assert.Contains(t, html, "No widget build found")
	assert.NotContains(t, html, "__COMPONENT_DATA__")

	_, _, err = srv.Show(json.RawMessage(testPage))
	require.NoError(t, err)
	html, err = srv.WidgetHTML()
	require.NoError(t, err)
	assert.Contains(t, html, "__COMPONENT_DATA__")
}
