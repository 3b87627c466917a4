package ai

import (
	"errors"
	"fmt"
	"time"

	"github.com/hrygo/tutormind/internal/profile"
	"github.com/hrygo/tutormind/plugin/ai/timeout"
)

const (
	defaultTimeout        = timeout.GenerationTimeout
	defaultMaxConcurrency = 8
	defaultMaxTokens      = 600
	defaultTemperature    = 0.7
	defaultOllamaBaseURL  = "http://localhost:11434/v1"
	defaultDeepSeekURL    = "https://api.deepseek.com/v1"
)

// LLMConfig represents LLM configuration.
type LLMConfig struct {
	Provider    string // openai, deepseek, ollama, anthropic
	Model       string // gpt-4o-mini
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 600
	Temperature float32 // default: 0.7

	// Timeout bounds a single call, including the wait for a concurrency slot.
	Timeout        time.Duration
	MaxConcurrency int
	// StructuredOutput asks OpenAI-compatible providers to enforce the reply schema.
	StructuredOutput bool
}

// NewLLMConfigFromProfile creates LLM config from profile.
func NewLLMConfigFromProfile(p *profile.Profile) *LLMConfig {
	cfg := &LLMConfig{
		Provider:         p.AIProvider,
		Model:            p.AIModel,
		APIKey:           p.AIAPIKey,
		BaseURL:          p.AIBaseURL,
		MaxTokens:        p.ChatMaxTokens,
		Temperature:      p.ChatTemperature,
		Timeout:          p.AITimeout,
		MaxConcurrency:   p.AIMaxConcurrency,
		StructuredOutput: p.AIStructuredOutput,
	}

	switch cfg.Provider {
	case "deepseek":
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultDeepSeekURL
		}
	case "ollama":
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultOllamaBaseURL
		}
	}

	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
	return cfg
}

// Validate validates the configuration.
func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case "openai", "deepseek", "ollama", "anthropic":
	case "":
		return errors.New("LLM provider is required")
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.Provider)
	}

	if c.Model == "" {
		return errors.New("LLM model is required")
	}
	if c.Provider != "ollama" && c.APIKey == "" {
		return errors.New("LLM API key is required")
	}
	return nil
}
