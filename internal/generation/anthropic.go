package generation

import (
	"context"
	"errors"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

// AnthropicBackend summarizes through the Messages API with deterministic decoding.
type AnthropicBackend struct {
	messages AnthropicMessager
	model    string
}

// NewAnthropicFactory returns a Factory for Claude models. Loading fails when
// no API key is configured.
func NewAnthropicFactory(apiKey string) Factory {
	apiKey = strings.TrimSpace(apiKey)
	return func(_ context.Context, model string) (Backend, error) {
		if apiKey == "" {
			return nil, errors.New("anthropic api key not configured")
		}
		if strings.TrimSpace(model) == "" {
			return nil, errors.New("anthropic model is required")
		}
		return &AnthropicBackend{messages: newAnthropicClient(apiKey), model: model}, nil
	}
}

func (a *AnthropicBackend) Name() string { return FamilyAnthropic + ":" + a.model }

func (a *AnthropicBackend) Generate(ctx context.Context, req Request) (string, error) {
	return withRetry(ctx, func(ctx context.Context) (string, error) {
		resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
			Model:       anthropic.Model(a.model),
			MaxTokens:   int64(maxOutputTokens(req.MaxLength)),
			System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
			Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(req)))},
			Temperature: anthropic.Float(0),
		})
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		for _, b := range resp.Content {
			if b.Type == "text" {
				sb.WriteString(b.Text)
			}
		}
		return sb.String(), nil
	})
}
