package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAIServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	choices := []map[string]any{}
	if content != "" {
		choices = append(choices, map[string]any{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": choices,
	})
}

func testConfig(baseURL string) *LLMConfig {
	return &LLMConfig{
		Provider:       "openai",
		Model:          "test-model",
		APIKey:         "test-key",
		BaseURL:        baseURL,
		MaxTokens:      100,
		Temperature:    0.5,
		Timeout:        2 * time.Second,
		MaxConcurrency: 2,
	}
}

func TestNewLLMService(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *LLMConfig
		expectError bool
	}{
		{name: "OpenAI", cfg: &LLMConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "k"}},
		{name: "DeepSeek", cfg: &LLMConfig{Provider: "deepseek", Model: "deepseek-chat", APIKey: "k", BaseURL: "https://api.deepseek.com/v1"}},
		{name: "Ollama without key", cfg: &LLMConfig{Provider: "ollama", Model: "llama3", BaseURL: "http://localhost:11434/v1"}},
		{name: "Anthropic", cfg: &LLMConfig{Provider: "anthropic", Model: "claude-3-5-haiku-latest", APIKey: "k"}},
		{name: "Missing key", cfg: &LLMConfig{Provider: "openai", Model: "gpt-4o-mini"}, expectError: true},
		{name: "Unsupported provider", cfg: &LLMConfig{Provider: "unsupported", Model: "m"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewLLMService(tt.cfg)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Provider, service.Provider())
			assert.Equal(t, tt.cfg.Model, service.Model())
		})
	}
}

func TestChatSendsRequest(t *testing.T) {
	var received map[string]any
	server := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &received))
		writeCompletion(w, `{"response": "hi", "summary": ""}`)
	})

	cfg := testConfig(server.URL)
	cfg.StructuredOutput = true
	service, err := NewLLMService(cfg)
	require.NoError(t, err)

	reply, err := service.Chat(context.Background(),
		FormatMessages("be nice", "hello", []Message{AssistantMessage("earlier")}),
		WithTemperature(0.8),
		WithMaxTokens(600),
		WithResponseSchema("chat_reply", json.RawMessage(`{"type":"object"}`)),
	)
	require.NoError(t, err)
	assert.Equal(t, `{"response": "hi", "summary": ""}`, reply)

	assert.Equal(t, "test-model", received["model"])
	assert.InDelta(t, 0.8, received["temperature"], 0.001)
	assert.EqualValues(t, 600, received["max_tokens"])

	messages := received["messages"].([]any)
	require.Len(t, messages, 3)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", messages[1].(map[string]any)["role"])
	assert.Equal(t, "user", messages[2].(map[string]any)["role"])

	format := received["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
}

func TestChatWithoutStructuredOutputOmitsSchema(t *testing.T) {
	var received map[string]any
	server := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &received))
		writeCompletion(w, "ok")
	})

	service, err := NewLLMService(testConfig(server.URL))
	require.NoError(t, err)
	_, err = service.Chat(context.Background(), []Message{UserMessage("x")}, WithResponseSchema("s", json.RawMessage(`{}`)))
	require.NoError(t, err)
	assert.NotContains(t, received, "response_format")
}

func TestChatFailuresAreGenerationErrors(t *testing.T) {
	t.Run("provider error", func(t *testing.T) {
		server := newOpenAIServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
		})
		service, err := NewLLMService(testConfig(server.URL))
		require.NoError(t, err)

		_, err = service.Chat(context.Background(), []Message{UserMessage("x")})
		genErr, ok := AsGenerationError(err)
		require.True(t, ok)
		assert.Equal(t, "openai", genErr.Provider)
		assert.Equal(t, "test-model", genErr.Model)
		assert.False(t, genErr.Timeout)
	})

	t.Run("empty choices", func(t *testing.T) {
		server := newOpenAIServer(t, func(w http.ResponseWriter, _ *http.Request) {
			writeCompletion(w, "")
		})
		service, err := NewLLMService(testConfig(server.URL))
		require.NoError(t, err)

		_, err = service.Chat(context.Background(), []Message{UserMessage("x")})
		require.ErrorIs(t, err, ErrEmptyResponse)
		_, ok := AsGenerationError(err)
		require.True(t, ok)
	})

	t.Run("timeout", func(t *testing.T) {
		server := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			writeCompletion(w, "late")
		})
		cfg := testConfig(server.URL)
		cfg.Timeout = 50 * time.Millisecond
		service, err := NewLLMService(cfg)
		require.NoError(t, err)

		_, err = service.Chat(context.Background(), []Message{UserMessage("x")})
		genErr, ok := AsGenerationError(err)
		require.True(t, ok)
		assert.True(t, genErr.Timeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

type blockingBackend struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	release  chan struct{}
}

func (b *blockingBackend) complete(ctx context.Context, _ []Message, _ chatOptions) (string, error) {
	current := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		peak := b.peak.Load()
		if current <= peak || b.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	select {
	case <-b.release:
		return "done", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestChatBoundsConcurrency(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	cfg := testConfig("")
	cfg.MaxConcurrency = 2
	service := newLLMService(cfg, backend)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = service.Chat(context.Background(), []Message{UserMessage("x")})
		}()
	}

	require.Eventually(t, func() bool { return backend.inFlight.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(backend.release)
	wg.Wait()
	assert.Equal(t, int32(2), backend.peak.Load())
}

type failingBackend struct{ err error }

func (b failingBackend) complete(context.Context, []Message, chatOptions) (string, error) {
	return "", b.err
}

func TestChatKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	service := newLLMService(testConfig(""), failingBackend{err: cause})

	_, err := service.Chat(context.Background(), []Message{UserMessage("x")})
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "openai/test-model")
}

func TestAnthropicBackend(t *testing.T) {
	var received map[string]any
	server := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_test",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "{\"response\": \"hey\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 4}
		}`))
	})

	service, err := NewLLMService(&LLMConfig{
		Provider: "anthropic",
		Model:    "claude-test",
		APIKey:   "k",
		BaseURL:  server.URL,
		Timeout:  2 * time.Second,
	})
	require.NoError(t, err)

	reply, err := service.Chat(context.Background(), FormatMessages("system text", "hello", nil), WithMaxTokens(300))
	require.NoError(t, err)
	assert.Equal(t, `{"response": "hey"}`, reply)

	assert.EqualValues(t, 300, received["max_tokens"])
	system := received["system"].([]any)
	require.Len(t, system, 1)
	assert.Equal(t, "system text", system[0].(map[string]any)["text"])
	require.Len(t, received["messages"].([]any), 1)
}
