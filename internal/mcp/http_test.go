package mcp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/aicanvas/internal/generator"
)

func doRequest(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestAPIGenerate_Success(t *testing.T) {
	srv, _ := newTestServer(t, chartPage, "key")

	rec, out := doRequest(t, srv.Handler(), http.MethodPost, "/api/generate", `{"prompt": "bar chart of sales"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(1), out["componentCount"])
	assert.Equal(t, float64(1), out["layoutItemCount"])
	ui := out["uiJson"].(map[string]any)
	assert.Contains(t, ui["components"], "chart")
	assert.NotNil(t, CurrentPage(srv.Store()))
}

func TestAPIGenerate_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, chartPage, "key")

	rec, _ := doRequest(t, srv.Handler(), http.MethodGet, "/api/generate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAPIGenerate_NoCredential(t *testing.T) {
	srv, _ := newTestServer(t, chartPage, "")

	rec, out := doRequest(t, srv.Handler(), http.MethodPost, "/api/generate", `{"prompt": "x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, string(generator.KindConfiguration), out["kind"])
}

func TestAPIGenerate_BadPrompt(t *testing.T) {
	srv, _ := newTestServer(t, chartPage, "key")

	for _, body := range []string{`{}`, `{"prompt": ""}`, `{"prompt": 3}`, `not json`} {
		rec, out := doRequest(t, srv.Handler(), http.MethodPost, "/api/generate", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, msgMissingPrompt, out["error"], body)
		assert.Equal(t, false, out["success"], body)
	}
}

func TestAPIGenerate_ModelFailure(t *testing.T) {
	srv, _ := newTestServer(t, `{"layout": {}}`, "key")

	rec, out := doRequest(t, srv.Handler(), http.MethodPost, "/api/generate", `{"prompt": "x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, string(generator.KindSchemaValidation), out["kind"])
	assert.Equal(t, `{"layout": {}}`, out["raw"])
	assert.NotEmpty(t, out["validationErrors"])
	assert.Nil(t, CurrentPage(srv.Store()))
}

func TestAPIGenerate_WithCurrentPage(t *testing.T) {
	srv, client := newTestServer(t, chartPage, "key")

	body := `{"prompt": "add a chart", "current": ` + testPage + `}`
	rec, _ := doRequest(t, srv.Handler(), http.MethodPost, "/api/generate", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, client.lastPrompt(), "# Sales")
}

func TestAPIGenerate_CurrentPageStoredOnlyOnSuccess(t *testing.T) {
	srv, _ := newTestServer(t, chartPage, "key")

	body := `{"prompt": "add a chart", "current": ` + testPage + `}`
	rec, _ := doRequest(t, srv.Handler(), http.MethodPost, "/api/generate", body)
	require.Equal(t, http.StatusOK, rec.Code)

	cur := CurrentPage(srv.Store())
	require.NotNil(t, cur)
	assert.Contains(t, cur.Components, "chart")
	assert.NotContains(t, cur.Components, "header")
}

func TestAPIGenerate_FailureWithCurrentLeavesStore(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		kind  generator.Kind
	}{
		{"malformed reply", "{not json", generator.KindMalformedJSON},
		{"invalid reply", `{"layout": {}}`, generator.KindSchemaValidation},
		{"empty reply", "   ", generator.KindEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"prompt": "edit it", "current": ` + testPage + `}`

			empty, _ := newTestServer(t, tt.reply, "key")
			rec, out := doRequest(t, empty.Handler(), http.MethodPost, "/api/generate", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, string(tt.kind), out["kind"])
			assert.Nil(t, empty.Store().Current())

			seeded, _ := newTestServer(t, tt.reply, "key")
			_, _, err := seeded.Show(json.RawMessage(chartPage))
			require.NoError(t, err)
			before := seeded.Store().Current()

			rec, _ = doRequest(t, seeded.Handler(), http.MethodPost, "/api/generate", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Same(t, before, seeded.Store().Current())
		})
	}
}

func TestAPIGenerate_InvalidCurrentPage(t *testing.T) {
	srv, client := newTestServer(t, chartPage, "key")

	rec, out := doRequest(t, srv.Handler(), http.MethodPost, "/api/generate", `{"prompt": "x", "current": {"layout": 1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, out["validationErrors"])
	assert.Empty(t, client.lastPrompt())
	assert.Nil(t, srv.Store().Current())
}

func TestWidgetEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "", "key")
	_, _, err := srv.Show(json.RawMessage(testPage))
	require.NoError(t, err)

	rec, _ := doRequest(t, srv.Handler(), http.MethodGet, "/widget", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "__COMPONENT_DATA__")
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, "", "key")

	rec, out := doRequest(t, srv.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, "", "key")

	rec, _ := doRequest(t, srv.Handler(), http.MethodOptions, "/api/generate", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Mcp-Session-Id")
	assert.Equal(t, "Mcp-Session-Id", rec.Header().Get("Access-Control-Expose-Headers"))
}
