package ai

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// openAIBackend serves OpenAI and the OpenAI-compatible providers (DeepSeek, Ollama).
type openAIBackend struct {
	client           *openai.Client
	model            string
	structuredOutput bool
}

func newOpenAIBackend(cfg *LLMConfig) *openAIBackend {
	apiKey := cfg.APIKey
	if apiKey == "" {
		// Ollama ignores the key but the client always sends one.
		apiKey = "ollama"
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &openAIBackend{
		client:           openai.NewClientWithConfig(clientConfig),
		model:            cfg.Model,
		structuredOutput: cfg.StructuredOutput,
	}
}

func (b *openAIBackend) complete(ctx context.Context, messages []Message, opts chatOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       b.model,
		Messages:    convertOpenAIMessages(messages),
		MaxTokens:   opts.maxTokens,
		Temperature: opts.temperature,
	}
	if b.structuredOutput && opts.schema != nil {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   opts.schema.Name,
				Schema: opts.schema.Schema,
				Strict: true,
			},
		}
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func convertOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch strings.ToLower(m.Role) {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		converted = append(converted, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return converted
}
