// Package llm provides the chat completion providers behind the AI analyst:
// an OpenAI-compatible client, an offline demo fallback, and a guard that
// rate limits and circuit-breaks any provider.
package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/chaostheorist/chaos/internal/domain"
)

// OpenAIConfig configures an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // empty uses the public OpenAI endpoint
	Model   string
}

// OpenAIProvider completes analyst turns through the chat completions API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAI creates a provider. Model defaults to gpt-4o-mini.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) *OpenAIProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	logger.Info("initializing OpenAI provider", "model", cfg.Model, "base_url", oc.BaseURL)
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		logger: logger,
	}
}

// Name identifies the provider in metrics.
func (p *OpenAIProvider) Name() string { return "openai" }

// Complete sends the instruction, the prior conversation and the new turn.
func (p *OpenAIProvider) Complete(ctx context.Context, history []domain.ChatMessage, text, instruction string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: buildMessages(history, text, instruction),
	}
	p.logger.Debug("requesting completion", "model", p.model, "turns", len(req.Messages))

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %v", domain.ErrAIService, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: provider returned no choices", domain.ErrAIService)
	}
	p.logger.Debug("completion received", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

func buildMessages(history []domain.ChatMessage, text, instruction string) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if instruction != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: instruction})
	}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Sender == domain.SenderAI {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})
}
