package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// geminiClient implements LLMClient with the Google GenAI SDK.
type geminiClient struct {
	cfg      LLMConfig
	client   *genai.Client
	observer Observer
}

// NewGeminiClient creates an LLMClient backed by the Gemini API. Endpoint,
// when set, overrides the SDK base URL.
func NewGeminiClient(ctx context.Context, cfg LLMConfig, apiKey string, observer Observer) (LLMClient, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	if observer == nil {
		observer = NoopObserver{}
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &geminiClient{cfg: cfg, client: client, observer: observer}, nil
}

func (c *geminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	start := time.Now()
	callCtx, cancel := withCallTimeout(ctx, c.cfg.TimeoutMs)
	defer cancel()

	gc := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
	}
	if n := maxTokens(c.cfg, req); n > 0 {
		gc.MaxOutputTokens = int32(n)
	}
	if c.cfg.JSONMode {
		gc.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{genai.NewContentFromText(req.UserPrompt, genai.RoleUser)}
	resp, err := c.client.Models.GenerateContent(callCtx, c.cfg.ModelName(), contents, gc)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		err = classify(callCtx, err)
		c.observer.OnCallComplete(LLMCallEvent{
			Provider:  ProviderGemini,
			Model:     c.cfg.ModelName(),
			LatencyMs: latency,
			ErrorCode: errorCode(err),
		})
		return nil, err
	}

	c.observer.OnCallComplete(LLMCallEvent{
		Provider:  ProviderGemini,
		Model:     c.cfg.ModelName(),
		LatencyMs: latency,
		Success:   true,
	})
	return &GenerateResponse{
		Text:      resp.Text(),
		Model:     c.cfg.ModelName(),
		LatencyMs: latency,
	}, nil
}
