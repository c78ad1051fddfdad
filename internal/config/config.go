// Package config loads canvas settings: defaults, then a TOML file, then the
// environment.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/alexanderramin/aicanvas/internal/llm"
)

//go:embed default.toml
var defaultTOML []byte

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "CANVAS_CONFIG"

// Config is the complete configuration.
type Config struct {
	LLM     llm.LLMConfig `toml:"llm"`
	Server  ServerConfig  `toml:"server"`
	Journal JournalConfig `toml:"journal"`
	Log     LogConfig     `toml:"log"`
}

type ServerConfig struct {
	Name       string `toml:"name"`
	Addr       string `toml:"addr"`
	WidgetPath string `toml:"widget_path"`
}

type JournalConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
	Retain  int    `toml:"retain"`
}

type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Default returns the built-in configuration.
func Default() Config {
	cfg := Config{LLM: llm.DefaultConfig()}
	if _, err := toml.Decode(string(defaultTOML), &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// DefaultTOML returns the commented default file.
func DefaultTOML() []byte {
	return append([]byte(nil), defaultTOML...)
}

// DefaultPath returns ~/.canvas/config.toml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".canvas", "config.toml")
	}
	return filepath.Join(home, ".canvas", "config.toml")
}

// ResolvePath picks the explicit path, then CANVAS_CONFIG, then the default.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv(EnvConfigPath); v != "" {
		return v
	}
	return DefaultPath()
}

// Load reads the file at path over the defaults and applies the environment.
// A missing file is not an error unless the path was given explicitly.
func Load(path string) (Config, error) {
	cfg := Default()
	resolved := ResolvePath(path)

	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", resolved, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("config %s: unknown keys: %s", resolved, strings.Join(keys, ", "))
		}
	case errors.Is(err, fs.ErrNotExist) && path == "":
	default:
		return Config{}, fmt.Errorf("reading config %s: %w", resolved, err)
	}

	ApplyEnv(&cfg)
	cfg.Journal.Path = expandHome(cfg.Journal.Path)
	cfg.Server.WidgetPath = expandHome(cfg.Server.WidgetPath)
	return cfg, cfg.Validate()
}

// ApplyEnv overrides cfg from CANVAS_* variables. Invalid values are ignored.
func ApplyEnv(cfg *Config) {
	llm.ApplyEnv(&cfg.LLM)

	if v := os.Getenv("CANVAS_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CANVAS_WIDGET_PATH"); v != "" {
		cfg.Server.WidgetPath = v
	}
	if v := os.Getenv("CANVAS_JOURNAL_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Journal.Enabled = b
		}
	}
	if v := os.Getenv("CANVAS_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("CANVAS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CANVAS_LOG_DEVELOPMENT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Log.Development = b
		}
	}
}

// Validate reports settings no component can run with.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case llm.ProviderOpenAI, llm.ProviderGemini:
	default:
		return fmt.Errorf("%w: %q", llm.ErrUnknownProvider, c.LLM.Provider)
	}
	if c.LLM.TimeoutMs <= 0 {
		return fmt.Errorf("llm.timeout_ms must be positive, got %d", c.LLM.TimeoutMs)
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return errors.New("journal.path is required when the journal is enabled")
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
