// Package generator turns a natural-language request and the current page
// into a validated page through one schema-constrained model call.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alexanderramin/aicanvas/internal/llm"
	"github.com/alexanderramin/aicanvas/internal/page"
	"github.com/alexanderramin/aicanvas/internal/prompt"
	"github.com/alexanderramin/aicanvas/internal/schema"
)

// State is a step of one generation.
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateParsing    State = "parsing"
	StateValidating State = "validating"
	StateSuccess    State = "success"
	StateFailure    State = "failure"
)

// Request is one edit request.
type Request struct {
	Prompt     string
	Current    *page.Page // nil means an empty page
	Credential string
}

// Event reports one finished generation. It carries sizes and counts, never
// page bodies.
type Event struct {
	ID             string
	Outcome        string
	Model          string
	LatencyMs      int64
	PromptChars    int
	ComponentCount int
	ErrorCount     int
	WarningCount   int
	Error          string
	CreatedAt      time.Time
}

// Observer receives an Event after every generation.
type Observer interface {
	OnGenerate(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnGenerate(e Event) { f(e) }

type noopObserver struct{}

func (noopObserver) OnGenerate(Event) {}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(g *Generator) {
		if log != nil {
			g.log = log
		}
	}
}

// WithObserver sets the generation observer.
func WithObserver(o Observer) Option {
	return func(g *Generator) {
		if o != nil {
			g.observer = o
		}
	}
}

// Generator runs generations. It holds no per-call state and is safe for
// concurrent use.
type Generator struct {
	factory   llm.Factory
	validator *schema.Validator
	log       *zap.Logger
	observer  Observer
}

// New creates a Generator. A nil validator uses the shared page schema.
func New(factory llm.Factory, validator *schema.Validator, opts ...Option) *Generator {
	if validator == nil {
		validator = schema.NewValidator()
	}
	g := &Generator{
		factory:   factory,
		validator: validator,
		log:       zap.NewNop(),
		observer:  noopObserver{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate runs one request to completion. Every failure is reported in the
// returned Result; Generate never panics on model output.
func (g *Generator) Generate(ctx context.Context, req Request) Result {
	start := time.Now()
	ev := Event{ID: uuid.NewString(), PromptChars: len(req.Prompt), CreatedAt: start.UTC()}
	log := g.log.With(zap.String("generation_id", ev.ID))

	res := g.run(ctx, req, log, &ev)

	ev.Outcome = res.Outcome()
	ev.LatencyMs = time.Since(start).Milliseconds()
	ev.ErrorCount = len(res.ValidationErrors)
	ev.WarningCount = len(res.Warnings)
	ev.Error = res.Error
	if res.Page != nil {
		ev.ComponentCount = len(res.Page.Components)
	}
	g.observer.OnGenerate(ev)

	if res.OK {
		log.Info("generation succeeded",
			zap.Int64("latency_ms", ev.LatencyMs),
			zap.Int("components", ev.ComponentCount),
			zap.Int("warnings", len(res.Warnings)))
	} else {
		log.Warn("generation failed",
			zap.String("kind", string(res.Kind)),
			zap.Int64("latency_ms", ev.LatencyMs),
			zap.Int("validation_errors", ev.ErrorCount),
			zap.Bool("retryable", res.Retryable()))
	}
	return res
}

func (g *Generator) run(ctx context.Context, req Request, log *zap.Logger, ev *Event) Result {
	step := func(s State) { log.Debug("generation state", zap.String("state", string(s))) }
	step(StateIdle)

	credential := strings.TrimSpace(req.Credential)
	if credential == "" {
		return failure(KindConfiguration, MsgMissingCredential)
	}
	request := strings.TrimSpace(req.Prompt)
	if request == "" {
		return failure(KindInput, MsgEmptyPrompt)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return failure(KindCancelled, MsgCancelled)
	}

	client, err := g.factory(credential)
	if err != nil {
		if errors.Is(err, llm.ErrMissingCredential) {
			return failure(KindConfiguration, MsgMissingCredential)
		}
		return failure(KindConfiguration, fmt.Sprintf("Model client unavailable: %v", err))
	}

	userMsg, err := prompt.UserMessage(req.Current, request)
	if err != nil {
		return failure(KindInput, fmt.Sprintf("Current page could not be encoded: %v", err))
	}

	step(StateRequesting)
	resp, err := client.Generate(ctx, llm.GenerateRequest{
		SystemPrompt: prompt.SystemPrompt(),
		UserPrompt:   userMsg,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return failure(KindCancelled, MsgCancelled)
		}
		return failure(KindTransport, MsgTransport+err.Error())
	}
	ev.Model = resp.Model

	raw := resp.Text
	if strings.TrimSpace(raw) == "" {
		return failure(KindEmptyResponse, MsgEmptyResponse)
	}

	step(StateParsing)
	parsed, err := llm.DecodeStrict(raw)
	if err != nil {
		detail := strings.TrimPrefix(err.Error(), llm.ErrInvalidOutput.Error()+": ")
		res := failure(KindMalformedJSON, MsgInvalidJSON+detail)
		res.Raw = raw
		return res
	}

	step(StateValidating)
	v := g.validator.Validate(parsed)
	if !v.Valid {
		return schemaFailure(raw, v.Errors, v.Warnings)
	}

	p, err := page.Parse([]byte(strings.TrimSpace(raw)))
	if err != nil {
		return schemaFailure(raw, []schema.StructuredError{{Keyword: "decode", Message: err.Error()}}, v.Warnings)
	}

	step(StateSuccess)
	return Result{OK: true, Page: p, Warnings: v.Warnings}
}

func schemaFailure(raw string, errs, warnings []schema.StructuredError) Result {
	body, err := json.MarshalIndent(errs, "", "  ")
	if err != nil {
		body = []byte(fmt.Sprintf("%v", errs))
	}
	return Result{
		Kind:             KindSchemaValidation,
		Error:            MsgSchemaValidation + string(body),
		Raw:              raw,
		ValidationErrors: errs,
		Warnings:         warnings,
	}
}
