package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// openaiClient implements LLMClient over the Chat Completions API.
type openaiClient struct {
	cfg      LLMConfig
	apiKey   string
	http     *http.Client
	observer Observer
}

// NewOpenAIClient creates an LLMClient for an OpenAI-compatible endpoint.
func NewOpenAIClient(cfg LLMConfig, apiKey string, observer Observer) LLMClient {
	if observer == nil {
		observer = NoopObserver{}
	}
	return &openaiClient{
		cfg:    cfg,
		apiKey: apiKey,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
		observer: observer,
	}
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponseFormat struct {
	Type string `json:"type"`
}

// openaiRequest is the JSON body sent to POST /chat/completions.
type openaiRequest struct {
	Model          string                `json:"model"`
	Messages       []openaiMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *openaiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	start := time.Now()
	callCtx, cancel := withCallTimeout(ctx, c.cfg.TimeoutMs)
	defer cancel()

	body := openaiRequest{
		Model: c.cfg.ModelName(),
		Messages: []openaiMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Temperature: 0,
		MaxTokens:   maxTokens(c.cfg, req),
	}
	if c.cfg.JSONMode {
		body.ResponseFormat = &openaiResponseFormat{Type: "json_object"}
	}

	resp, err := c.doRequest(callCtx, body)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		err = classify(callCtx, err)
		c.observer.OnCallComplete(LLMCallEvent{
			Provider:  ProviderOpenAI,
			Model:     c.cfg.ModelName(),
			LatencyMs: latency,
			ErrorCode: errorCode(err),
		})
		return nil, err
	}

	out := &GenerateResponse{Model: resp.Model, LatencyMs: latency}
	if out.Model == "" {
		out.Model = c.cfg.ModelName()
	}
	if len(resp.Choices) > 0 && resp.Choices[0].Message.Content != nil {
		out.Text = *resp.Choices[0].Message.Content
	}
	c.observer.OnCallComplete(LLMCallEvent{
		Provider:  ProviderOpenAI,
		Model:     out.Model,
		LatencyMs: latency,
		Success:   true,
	})
	return out, nil
}

func (c *openaiClient) doRequest(ctx context.Context, body openaiRequest) (*openaiResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimRight(c.cfg.EndpointURL(), "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w %d: %s", ErrStatus, httpResp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var resp openaiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("api error: %s", resp.Error.Message)
	}
	return &resp, nil
}
