package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/tutormind/internal/profile"
)

func TestNewLLMConfigFromProfile(t *testing.T) {
	cfg := NewLLMConfigFromProfile(&profile.Profile{
		AIProvider:       "deepseek",
		AIModel:          "deepseek-chat",
		AIAPIKey:         "key",
		AIMaxConcurrency: 3,
		ChatTemperature:  0.8,
		ChatMaxTokens:    600,
	})
	assert.Equal(t, "https://api.deepseek.com/v1", cfg.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxConcurrency)
	assert.Equal(t, 600, cfg.MaxTokens)
	assert.InDelta(t, 0.8, cfg.Temperature, 0.0001)
	require.NoError(t, cfg.Validate())

	ollama := NewLLMConfigFromProfile(&profile.Profile{AIProvider: "ollama", AIModel: "llama3"})
	assert.Equal(t, "http://localhost:11434/v1", ollama.BaseURL)
	assert.Equal(t, defaultMaxConcurrency, ollama.MaxConcurrency)
	require.NoError(t, ollama.Validate())
}

func TestLLMConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  LLMConfig
		ok   bool
	}{
		{name: "openai", cfg: LLMConfig{Provider: "openai", Model: "m", APIKey: "k"}, ok: true},
		{name: "anthropic", cfg: LLMConfig{Provider: "anthropic", Model: "m", APIKey: "k"}, ok: true},
		{name: "missing provider", cfg: LLMConfig{Model: "m", APIKey: "k"}},
		{name: "missing model", cfg: LLMConfig{Provider: "openai", APIKey: "k"}},
		{name: "missing key", cfg: LLMConfig{Provider: "anthropic", Model: "m"}},
		{name: "unknown provider", cfg: LLMConfig{Provider: "bard", Model: "m", APIKey: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
