package aisvc

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/chat"
)

var errNoChoices = errors.New("completion returned no choices")

type OpenAICompleter struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

var _ chat.Completer = (*OpenAICompleter)(nil)

func NewOpenAICompleter(conf *core.Config) *OpenAICompleter {
	cfg := openai.DefaultConfig(conf.Chat.APIKey)
	if conf.Chat.BaseURL != "" {
		cfg.BaseURL = conf.Chat.BaseURL
	}
	return &OpenAICompleter{
		client:      openai.NewClientWithConfig(cfg),
		model:       conf.Chat.Model,
		maxTokens:   conf.Chat.MaxTokens,
		temperature: conf.Chat.Temperature,
	}
}

func (c *OpenAICompleter) Complete(ctx context.Context, systemPrompt, question string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", core.NewUpstreamError("ai", "Failed to get response from AI", err)
	}
	if len(resp.Choices) == 0 {
		return "", core.NewUpstreamError("ai", "Failed to get response from AI", errNoChoices)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
