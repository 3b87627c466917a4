package ai

import (
	"context"
	"encoding/json"
	"strings"

	"golang.org/x/sync/semaphore"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// ResponseSchema names a JSON schema the reply must follow.
type ResponseSchema struct {
	Name   string
	Schema json.Marshaler
}

type chatOptions struct {
	temperature float32
	maxTokens   int
	schema      *ResponseSchema
}

// ChatOption tunes a single Chat call.
type ChatOption func(*chatOptions)

func WithTemperature(temperature float32) ChatOption {
	return func(o *chatOptions) {
		o.temperature = temperature
	}
}

func WithMaxTokens(maxTokens int) ChatOption {
	return func(o *chatOptions) {
		o.maxTokens = maxTokens
	}
}

// WithResponseSchema requests structured output. Providers without schema support
// ignore it and rely on the prompt.
func WithResponseSchema(name string, schema json.Marshaler) ChatOption {
	return func(o *chatOptions) {
		o.schema = &ResponseSchema{Name: name, Schema: schema}
	}
}

// LLMService is the LLM service interface.
type LLMService interface {
	// Chat performs one synchronous chat completion and returns the raw reply text.
	// Every failure is a *GenerationError.
	Chat(ctx context.Context, messages []Message, opts ...ChatOption) (string, error)
	Provider() string
	Model() string
}

// completer is a provider backend.
type completer interface {
	complete(ctx context.Context, messages []Message, opts chatOptions) (string, error)
}

type llmService struct {
	cfg     *LLMConfig
	backend completer
	slots   *semaphore.Weighted
}

// NewLLMService creates a new LLMService.
func NewLLMService(cfg *LLMConfig) (LLMService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var backend completer
	switch cfg.Provider {
	case "anthropic":
		backend = newAnthropicBackend(cfg)
	default:
		backend = newOpenAIBackend(cfg)
	}
	return newLLMService(cfg, backend), nil
}

func newLLMService(cfg *LLMConfig, backend completer) *llmService {
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &llmService{
		cfg:     cfg,
		backend: backend,
		slots:   semaphore.NewWeighted(int64(maxConcurrency)),
	}
}

func (s *llmService) Provider() string {
	return s.cfg.Provider
}

func (s *llmService) Model() string {
	return s.cfg.Model
}

func (s *llmService) Chat(ctx context.Context, messages []Message, opts ...ChatOption) (string, error) {
	options := chatOptions{
		temperature: s.cfg.Temperature,
		maxTokens:   s.cfg.MaxTokens,
	}
	for _, opt := range opts {
		opt(&options)
	}

	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.slots.Acquire(ctx, 1); err != nil {
		return "", s.wrapError(err)
	}
	defer s.slots.Release(1)

	reply, err := s.backend.complete(ctx, messages, options)
	if err != nil {
		if ctx.Err() != nil {
			return "", s.wrapError(ctx.Err())
		}
		return "", s.wrapError(err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", s.wrapError(ErrEmptyResponse)
	}
	return reply, nil
}

// Helper for creating system prompts
func SystemPrompt(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// Helper for creating user messages
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Helper for creating assistant messages
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// FormatMessages formats messages for prompt templates.
func FormatMessages(systemPrompt string, userContent string, history []Message) []Message {
	messages := []Message{}
	if systemPrompt != "" {
		messages = append(messages, SystemPrompt(systemPrompt))
	}
	messages = append(messages, history...)
	messages = append(messages, UserMessage(userContent))
	return messages
}
