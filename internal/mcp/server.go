// Package mcp exposes page rendering and generation to an agent host over
// the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/alexanderramin/aicanvas/internal/generator"
	"github.com/alexanderramin/aicanvas/internal/page"
	"github.com/alexanderramin/aicanvas/internal/schema"
)

const (
	ToolShow     = "show_declarative_ui"
	ToolGenerate = "generate_declarative_ui"

	DefaultName = "declarative-ui"
)

// Host metadata keys binding tool output to the widget resource.
const (
	MetaOutputTemplate = "openai/outputTemplate"
	MetaInvoking       = "openai/toolInvocation/invoking"
	MetaInvoked        = "openai/toolInvocation/invoked"
	MetaPrefersBorder  = "openai/widgetPrefersBorder"
)

func widgetMeta(invoking, invoked string) *mcplib.Meta {
	return mcplib.NewMetaFromMap(map[string]any{
		MetaOutputTemplate: WidgetURI,
		MetaInvoking:       invoking,
		MetaInvoked:        invoked,
	})
}

// structuredPage is the structuredContent the widget reads.
func structuredPage(p *page.Page) map[string]any {
	return map[string]any{"componentData": p}
}

// Config configures a Server.
type Config struct {
	Name       string
	Version    string
	WidgetPath string
	// Credential is the model API key used for generate calls.
	Credential string
}

// Server binds the generator and the page store to MCP tools.
type Server struct {
	gen       *generator.Generator
	validator *schema.Validator
	store     PageStore
	cfg       Config
	log       *zap.Logger

	once sync.Once
	mcp  *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// NewServer creates a Server. A nil store uses a fresh MemoryStore.
func NewServer(gen *generator.Generator, validator *schema.Validator, store PageStore, cfg Config, opts ...Option) *Server {
	if validator == nil {
		validator = schema.NewValidator()
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	s := &Server{gen: gen, validator: validator, store: store, cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("mcp")
	return s
}

// Store returns the page store.
func (s *Server) Store() PageStore { return s.store }

// MCPServer returns the protocol server with tools and resources registered.
func (s *Server) MCPServer() *server.MCPServer {
	s.once.Do(func() {
		srv := server.NewMCPServer(s.cfg.Name, s.cfg.Version,
			server.WithToolCapabilities(true),
			server.WithResourceCapabilities(false, false),
		)
		s.registerTools(srv)
		s.registerResources(srv)
		s.mcp = srv
	})
	return s.mcp
}

// ServeStdio serves the protocol on stdin/stdout until EOF.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.MCPServer())
}

func (s *Server) registerTools(srv *server.MCPServer) {
	showTool := mcplib.NewToolWithRawSchema(ToolShow,
		"Renders a dashboard page from a complete page.json definition (layout, components, data). "+
			"The page is validated against the page schema and stored as the current dashboard.",
		showInputSchema())
	showTool.Meta = widgetMeta("Rendering Declarative UI", "Declarative UI ready")
	srv.AddTool(showTool, s.handleShow)

	generateTool := mcplib.NewToolWithRawSchema(ToolGenerate,
		"Generates or edits the dashboard from a natural-language request and renders it. "+
			"With keepExisting the current dashboard is edited; otherwise a new one is created.",
		generateInputSchema())
	generateTool.Meta = widgetMeta("Generating Declarative UI", "Declarative UI ready")
	srv.AddTool(generateTool, s.handleGenerate)
}

func (s *Server) registerResources(srv *server.MCPServer) {
	widget := mcplib.NewResource(WidgetURI, "declarative-ui-widget",
		mcplib.WithResourceDescription("Dashboard renderer with the current page injected"),
		mcplib.WithMIMEType(WidgetMIME),
	)
	srv.AddResource(widget, func(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		html, err := s.WidgetHTML()
		if err != nil {
			return nil, err
		}
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      WidgetURI,
				MIMEType: WidgetMIME,
				Text:     html,
				Meta:     map[string]any{MetaPrefersBorder: false},
			},
		}, nil
	})
}

func (s *Server) handleShow(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	raw, ok := request.GetArguments()["componentData"]
	if !ok || raw == nil {
		return mcplib.NewToolResultError("componentData is required"), nil
	}
	// Some hosts send nested objects as encoded strings.
	if str, isString := raw.(string); isString {
		raw = json.RawMessage(str)
	}

	snap, res, err := s.Show(raw)
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	if !res.Valid {
		return mcplib.NewToolResultError(formatErrors("Invalid page", res.Errors)), nil
	}

	text := fmt.Sprintf("Declarative UI component rendered successfully (%d components, %d layout items)",
		len(snap.Page.Components), len(snap.Page.Layout.Items))
	if len(res.Warnings) > 0 {
		text += "\n\n" + formatErrors("Warnings", res.Warnings)
	}
	return mcplib.NewToolResultStructured(structuredPage(snap.Page), text), nil
}

// Show validates candidate and, when valid, stores it as the current page.
// The returned error reports only documents that pass validation but cannot
// be decoded.
func (s *Server) Show(candidate any) (*Snapshot, schema.Result, error) {
	p, res, err := s.decodePage(candidate)
	if p == nil {
		return nil, res, err
	}
	snap := s.store.Replace(p)
	s.log.Info("page shown", zap.String("snapshot_id", snap.ID), zap.Int("components", len(p.Components)))
	return snap, res, nil
}

// decodePage validates candidate and decodes it without storing it. A nil
// page with a nil error means the candidate is invalid.
func (s *Server) decodePage(candidate any) (*page.Page, schema.Result, error) {
	res := s.validator.Validate(candidate)
	if !res.Valid {
		return nil, res, nil
	}
	data, err := json.Marshal(candidate)
	if raw, ok := candidate.(json.RawMessage); ok {
		data, err = raw, nil
	}
	if err != nil {
		return nil, res, fmt.Errorf("encoding page: %w", err)
	}
	p, err := page.Parse(data)
	if err != nil {
		return nil, res, err
	}
	return p, res, nil
}

// generateArgs documents the generate tool input.
type generateArgs struct {
	Prompt       string `json:"prompt" jsonschema:"required,description=Natural-language description of the dashboard or the edit to apply"`
	KeepExisting *bool  `json:"keepExisting,omitempty" jsonschema:"description=Edit the current dashboard instead of starting from an empty page (default true)"`
}

func (s *Server) handleGenerate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	prompt, err := request.RequireString("prompt")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	keep := request.GetBool("keepExisting", true)

	res := s.Generate(ctx, prompt, keep)
	if !res.OK {
		msg := res.Error
		if res.Raw != "" {
			msg += "\n\nRaw model output:\n" + res.Raw
		}
		return mcplib.NewToolResultError(msg), nil
	}

	doc, err := res.Page.JSON()
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	text := fmt.Sprintf("Generated dashboard with %d components and %d layout items.\n\n%s",
		len(res.Page.Components), len(res.Page.Layout.Items), doc)
	return mcplib.NewToolResultStructured(structuredPage(res.Page), text), nil
}

// Generate runs the generator against the current page when keepExisting is
// set. The store is replaced only on success and only when ctx was not
// cancelled in the meantime.
func (s *Server) Generate(ctx context.Context, prompt string, keepExisting bool) generator.Result {
	var current *page.Page
	if keepExisting {
		current = CurrentPage(s.store)
	}
	return s.GenerateFrom(ctx, prompt, current)
}

// GenerateFrom runs the generator against an explicit current page, which
// may be nil. The store is not touched unless generation succeeds.
func (s *Server) GenerateFrom(ctx context.Context, prompt string, current *page.Page) generator.Result {
	res := s.gen.Generate(ctx, generator.Request{
		Prompt:     prompt,
		Current:    current,
		Credential: s.cfg.Credential,
	})
	if !res.OK {
		return res
	}
	if ctx.Err() != nil {
		return generator.Result{Kind: generator.KindCancelled, Error: generator.MsgCancelled}
	}
	snap := s.store.Replace(res.Page)
	s.log.Info("page generated", zap.String("snapshot_id", snap.ID), zap.Bool("had_current", current != nil))
	return res
}

func formatErrors(title string, errs []schema.StructuredError) string {
	lines := make([]string, 0, len(errs)+1)
	lines = append(lines, title+":")
	for _, e := range errs {
		lines = append(lines, "- "+e.String())
	}
	return strings.Join(lines, "\n")
}

var (
	schemasOnce  sync.Once
	showSchema   json.RawMessage
	genSchema    json.RawMessage
	schemasError error
)

func buildSchemas() {
	schemasOnce.Do(func() {
		showSchema, schemasError = wrapPageSchema(schema.JSON())
		if schemasError != nil {
			return
		}
		r := jsonschema.Reflector{
			AllowAdditionalProperties: false,
			DoNotReference:            true,
		}
		s := r.Reflect(&generateArgs{})
		s.Version = ""
		s.ID = ""
		genSchema, schemasError = json.Marshal(s)
	})
	if schemasError != nil {
		panic(fmt.Sprintf("mcp: building tool schemas: %v", schemasError))
	}
}

// ToolInputSchema returns the input schema of the named tool.
func ToolInputSchema(name string) (json.RawMessage, bool) {
	switch name {
	case ToolShow:
		return showInputSchema(), true
	case ToolGenerate:
		return generateInputSchema(), true
	}
	return nil, false
}

func showInputSchema() json.RawMessage {
	buildSchemas()
	return showSchema
}

func generateInputSchema() json.RawMessage {
	buildSchemas()
	return genSchema
}

// wrapPageSchema nests the page schema under componentData. $defs stay at
// the root so the schema's local references still resolve.
func wrapPageSchema(pageSchema []byte) (json.RawMessage, error) {
	var doc map[string]any
	if err := json.Unmarshal(pageSchema, &doc); err != nil {
		return nil, err
	}
	defs := doc["$defs"]
	delete(doc, "$defs")
	delete(doc, "$schema")
	delete(doc, "$id")
	doc["description"] = "Complete page.json document: layout, components and data"

	return json.Marshal(map[string]any{
		"type":                 "object",
		"$defs":                defs,
		"properties":           map[string]any{"componentData": doc},
		"required":             []string{"componentData"},
		"additionalProperties": false,
	})
}
