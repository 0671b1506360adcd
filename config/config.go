package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment override, e.g. LCS_LLM_API_KEY.
const EnvPrefix = "LCS_"

// GeminiBaseURL is Google's OpenAI-compatible endpoint.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

var ErrInvalid = errors.New("invalid config")

// Config is the runtime configuration. Values come from the JSON file, then
// .env, then LCS_* environment variables, later sources winning.
type Config struct {
	ServerAddr        string    `json:"server_addr" env:"SERVER_ADDR"`
	LLM               LLMConfig `json:"llm" envPrefix:"LLM_"`
	Log               LogConfig `json:"log" envPrefix:"LOG_"`
	SessionTTL        Duration  `json:"session_ttl" env:"SESSION_TTL"`
	GenerationTimeout Duration  `json:"generation_timeout" env:"GENERATION_TIMEOUT"`
	MaxUploadMB       int64     `json:"max_upload_mb" env:"MAX_UPLOAD_MB"`
}

// LLMConfig selects the model provider. APIKey has no default and must be
// supplied by the file or the environment.
type LLMConfig struct {
	Provider  string `json:"provider" env:"PROVIDER"`
	Model     string `json:"model" env:"MODEL"`
	APIKey    string `json:"api_key,omitempty" env:"API_KEY"`
	BaseURL   string `json:"base_url,omitempty" env:"BASE_URL"`
	MaxTokens int64  `json:"max_tokens,omitempty" env:"MAX_TOKENS"`
}

type LogConfig struct {
	Level  string `json:"level" env:"LEVEL"`
	Format string `json:"format" env:"FORMAT"`
	File   string `json:"file,omitempty" env:"FILE"`
}

// Duration reads "90s"-style strings from JSON and the environment.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		ServerAddr: ":8080",
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			MaxTokens: 2048,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		SessionTTL:        Duration(2 * time.Hour),
		GenerationTimeout: Duration(90 * time.Second),
		MaxUploadMB:       10,
	}
}

// Load builds the configuration. An empty path skips the JSON file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	_ = godotenv.Load()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.Provider == "gemini" && cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = GeminiBaseURL
	}
	return cfg, nil
}

// Validate checks the settings needed to serve requests.
func (c Config) Validate() error {
	var problems []string
	switch c.LLM.Provider {
	case "mock":
	case "openai", "gemini", "deepseek":
		if c.LLM.APIKey == "" {
			problems = append(problems, "llm.api_key is required (set it in the config file or "+EnvPrefix+"LLM_API_KEY)")
		}
		if c.LLM.Model == "" {
			problems = append(problems, "llm.model is required")
		}
		if c.LLM.Provider != "openai" && c.LLM.BaseURL == "" {
			problems = append(problems, "llm.base_url is required for "+c.LLM.Provider)
		}
	default:
		problems = append(problems, fmt.Sprintf("llm.provider %q not supported (openai, gemini, deepseek, mock)", c.LLM.Provider))
	}
	if c.LLM.MaxTokens < 0 {
		problems = append(problems, "llm.max_tokens must not be negative")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q not supported (console, json)", c.Log.Format))
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, "session_ttl must be positive")
	}
	if c.GenerationTimeout <= 0 {
		problems = append(problems, "generation_timeout must be positive")
	}
	if c.MaxUploadMB <= 0 {
		problems = append(problems, "max_upload_mb must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// MaxUploadBytes converts MaxUploadMB to bytes.
func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB * 1024 * 1024
}
