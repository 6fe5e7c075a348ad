package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type geminiModels interface {
	Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type geminiClientCreator func(ctx context.Context, apiKey string) (geminiModels, error)

func defaultGeminiCreator(ctx context.Context, apiKey string) (geminiModels, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

var newGeminiClient geminiClientCreator = defaultGeminiCreator

type GeminiBackend struct {
	models geminiModels
	model  string
}

// NewGeminiFactory returns a Factory for Gemini models. Loading probes the
// model so an unknown or unauthorized model fails over to the next rung.
func NewGeminiFactory(apiKey string) Factory {
	apiKey = strings.TrimSpace(apiKey)
	return func(ctx context.Context, model string) (Backend, error) {
		if apiKey == "" {
			return nil, errors.New("gemini api key not configured")
		}
		models, err := newGeminiClient(ctx, apiKey)
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		if _, err := models.Get(ctx, model, nil); err != nil {
			return nil, fmt.Errorf("gemini model probe: %w", err)
		}
		return &GeminiBackend{models: models, model: model}, nil
	}
}

func (g *GeminiBackend) Name() string { return FamilyGemini + ":" + g.model }

func (g *GeminiBackend) Generate(ctx context.Context, req Request) (string, error) {
	return withRetry(ctx, func(ctx context.Context) (string, error) {
		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(buildPrompt(req)), &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr[float32](0),
			MaxOutputTokens:   int32(maxOutputTokens(req.MaxLength)),
		})
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	})
}
