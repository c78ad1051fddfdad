package llm

import (
	"os"
	"strconv"
)

// Provider names a model backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

const (
	DefaultOpenAIEndpoint = "https://api.openai.com/v1"
	DefaultOpenAIModel    = "gpt-4o"
	DefaultGeminiModel    = "gemini-2.5-flash"
)

// LLMConfig holds all configuration for the model transport.
type LLMConfig struct {
	Provider  Provider `toml:"provider"`
	Endpoint  string   `toml:"endpoint"` // empty uses the provider default
	Model     string   `toml:"model"`    // empty uses the provider default
	APIKey    string   `toml:"api_key"`
	TimeoutMs int      `toml:"timeout_ms"`
	MaxTokens int      `toml:"max_tokens"` // 0 leaves the provider default
	JSONMode  bool     `toml:"json_mode"`
	LogCalls  bool     `toml:"log_calls"`
}

// DefaultConfig returns an LLMConfig with sensible defaults.
func DefaultConfig() LLMConfig {
	return LLMConfig{
		Provider:  ProviderOpenAI,
		TimeoutMs: 120000,
		MaxTokens: 0,
		JSONMode:  false,
		LogCalls:  false,
	}
}

// LoadConfig reads configuration from environment variables, falling back
// to defaults for any unset values.
func LoadConfig() LLMConfig {
	cfg := DefaultConfig()
	ApplyEnv(&cfg)
	return cfg
}

// ApplyEnv overrides cfg from CANVAS_LLM_* variables. Invalid numbers are
// ignored. When no key is configured, the provider's conventional variable
// is used.
func ApplyEnv(cfg *LLMConfig) {
	if v := os.Getenv("CANVAS_LLM_PROVIDER"); v != "" {
		cfg.Provider = Provider(v)
	}
	if v := os.Getenv("CANVAS_LLM_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("CANVAS_LLM_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("CANVAS_LLM_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("CANVAS_LLM_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TimeoutMs = n
		}
	}
	if v := os.Getenv("CANVAS_LLM_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxTokens = n
		}
	}
	if v := os.Getenv("CANVAS_LLM_JSON_MODE"); v != "" {
		cfg.JSONMode, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("CANVAS_LLM_LOG_CALLS"); v != "" {
		cfg.LogCalls, _ = strconv.ParseBool(v)
	}

	if cfg.APIKey == "" {
		switch cfg.Provider {
		case ProviderOpenAI:
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		case ProviderGemini:
			cfg.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
}

// ModelName returns the configured model or the provider default.
func (c LLMConfig) ModelName() string {
	if c.Model != "" {
		return c.Model
	}
	if c.Provider == ProviderGemini {
		return DefaultGeminiModel
	}
	return DefaultOpenAIModel
}

// EndpointURL returns the configured endpoint or the OpenAI default.
func (c LLMConfig) EndpointURL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return DefaultOpenAIEndpoint
}
