package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// GenerateRequest holds the parameters for one generation call. Temperature
// is not configurable: every client pins it to 0.
type GenerateRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    *int // nil uses the configured default
}

// GenerateResponse holds the result of a generation call.
type GenerateResponse struct {
	Text      string
	Model     string
	LatencyMs int64
}

// LLMClient provides access to a language model for text generation.
type LLMClient interface {
	// Generate sends one system and one user message and returns the raw
	// text of the reply. An empty Text is not an error at this layer.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Factory builds a client bound to one credential.
type Factory func(credential string) (LLMClient, error)

// NewFactory returns a Factory for the configured provider.
func NewFactory(cfg LLMConfig, observer Observer) Factory {
	if observer == nil {
		observer = NoopObserver{}
	}
	return func(credential string) (LLMClient, error) {
		if credential == "" {
			return nil, ErrMissingCredential
		}
		switch cfg.Provider {
		case ProviderOpenAI:
			return NewOpenAIClient(cfg, credential, observer), nil
		case ProviderGemini:
			return NewGeminiClient(context.Background(), cfg, credential, observer)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
		}
	}
}

// withCallTimeout applies the configured timeout unless the caller already
// set an earlier deadline.
func withCallTimeout(ctx context.Context, timeoutMs int) (context.Context, context.CancelFunc) {
	if timeoutMs <= 0 {
		return context.WithCancel(ctx)
	}
	timeout := time.Duration(timeoutMs) * time.Millisecond
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) <= timeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// classify maps a transport failure onto the package sentinels. Caller
// cancellation is preserved as context.Canceled.
func classify(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled):
		return fmt.Errorf("llm request cancelled: %w", context.Canceled)
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case isConnectionError(err):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var netErr *net.OpError
	return errors.As(err, &netErr)
}

func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "CANCELLED"
	case errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, ErrUnavailable):
		return "UNAVAILABLE"
	case errors.Is(err, ErrStatus):
		return "STATUS"
	default:
		return "UNKNOWN"
	}
}

func maxTokens(cfg LLMConfig, req GenerateRequest) int {
	if req.MaxTokens != nil {
		return *req.MaxTokens
	}
	return cfg.MaxTokens
}
