package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/alexanderramin/aicanvas/internal/generator"
	"github.com/alexanderramin/aicanvas/internal/schema"
)

const (
	maxRequestBody  = 1 << 20
	shutdownTimeout = 5 * time.Second

	msgMissingPrompt = "Missing or invalid 'prompt' parameter"
	msgNoCredential  = "Missing model API key. Set CANVAS_LLM_API_KEY or configure llm.api_key."
)

// generateRequest is the body of POST /api/generate.
type generateRequest struct {
	Prompt       *string         `json:"prompt"`
	KeepExisting *bool           `json:"keepExisting,omitempty"`
	Current      json.RawMessage `json:"current,omitempty"`
}

type generateResponse struct {
	Success          bool                     `json:"success"`
	UIJSON           any                      `json:"uiJson,omitempty"`
	ComponentCount   int                      `json:"componentCount,omitempty"`
	LayoutItemCount  int                      `json:"layoutItemCount,omitempty"`
	Error            string                   `json:"error,omitempty"`
	Kind             generator.Kind           `json:"kind,omitempty"`
	Raw              string                   `json:"raw,omitempty"`
	ValidationErrors []schema.StructuredError `json:"validationErrors,omitempty"`
	Warnings         []schema.StructuredError `json:"warnings,omitempty"`
}

// Handler returns the HTTP surface: the streamable MCP endpoint, the
// generate API, the widget page and a health check.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.Handle("/mcp", server.NewStreamableHTTPServer(s.MCPServer())).Methods("POST", "GET", "DELETE")
	router.HandleFunc("/api/generate", s.handleAPIGenerate)
	router.HandleFunc("/widget", s.handleWidget).Methods("GET")
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	return corsMiddleware(router)
}

// ServeHTTP listens on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

func (s *Server) handleAPIGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, generateResponse{Error: "Method not allowed"})
		return
	}
	if s.cfg.Credential == "" {
		writeJSON(w, http.StatusInternalServerError, generateResponse{Error: msgNoCredential, Kind: generator.KindConfiguration})
		return
	}

	var body generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil ||
		body.Prompt == nil || *body.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, generateResponse{Error: msgMissingPrompt, Kind: generator.KindInput})
		return
	}

	var res generator.Result
	if len(body.Current) > 0 && string(body.Current) != "null" {
		// An explicit current page is an edit base only; it reaches the store
		// through a successful generation like any other page.
		current, vres, err := s.decodePage(body.Current)
		if current == nil {
			writeJSON(w, http.StatusBadRequest, generateResponse{
				Error:            currentPageError(err),
				Kind:             generator.KindSchemaValidation,
				ValidationErrors: vres.Errors,
			})
			return
		}
		res = s.GenerateFrom(r.Context(), *body.Prompt, current)
	} else {
		keep := true
		if body.KeepExisting != nil {
			keep = *body.KeepExisting
		}
		res = s.Generate(r.Context(), *body.Prompt, keep)
	}
	if !res.OK {
		writeJSON(w, http.StatusBadRequest, generateResponse{
			Error:            res.Error,
			Kind:             res.Kind,
			Raw:              res.Raw,
			ValidationErrors: res.ValidationErrors,
		})
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Success:         true,
		UIJSON:          res.Page,
		ComponentCount:  len(res.Page.Components),
		LayoutItemCount: len(res.Page.Layout.Items),
		Warnings:        res.Warnings,
	})
}

func currentPageError(err error) string {
	if err != nil {
		return "Invalid 'current' page: " + err.Error()
	}
	return "Invalid 'current' page"
}

func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	html, err := s.WidgetHTML()
	if err != nil {
		s.log.Error("widget render failed", zap.Error(err))
		http.Error(w, "widget unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Mcp-Session-Id")
		w.Header().Set("Access-Control-Expose-Headers", "Mcp-Session-Id")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
