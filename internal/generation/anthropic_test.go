package generation

import (
	"context"
	"errors"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeMessager struct {
	params anthropic.MessageNewParams
	resp   *anthropic.Message
	err    error
}

func (f *fakeMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.params = params
	return f.resp, f.err
}

func TestAnthropicFactoryRequiresKey(t *testing.T) {
	_, err := NewAnthropicFactory("  ")(context.Background(), "claude-haiku-4-5")
	assert.ErrorContains(t, err, "api key")
}

func TestAnthropicGenerateCollectsTextBlocks(t *testing.T) {
	fake := &fakeMessager{resp: &anthropic.Message{Content: []anthropic.ContentBlockUnion{
		{Type: "text", Text: "Pneumonia in both "},
		{Type: "thinking", Text: "ignored"},
		{Type: "text", Text: "lower lobes."},
	}}}
	prev := newAnthropicClient
	newAnthropicClient = func(string) AnthropicMessager { return fake }
	t.Cleanup(func() { newAnthropicClient = prev })

	b, err := NewAnthropicFactory("sk-test")(context.Background(), "claude-haiku-4-5")
	require.NoError(t, err)
	assert.Equal(t, "anthropic:claude-haiku-4-5", b.Name())

	out, err := b.Generate(context.Background(), Request{Text: "report", MaxLength: 150, MinLength: 50})
	require.NoError(t, err)
	assert.Equal(t, "Pneumonia in both lower lobes.", out)
	assert.Equal(t, anthropic.Model("claude-haiku-4-5"), fake.params.Model)
	assert.Equal(t, int64(300), fake.params.MaxTokens)
}

func TestAnthropicGenerateSurfacesClientErrors(t *testing.T) {
	noSleep(t)
	fake := &fakeMessager{err: errors.New("status code: 401 invalid x-api-key")}
	b := &AnthropicBackend{messages: fake, model: "claude-haiku-4-5"}

	_, err := b.Generate(context.Background(), Request{Text: "report"})
	assert.ErrorContains(t, err, "401")
}

type fakeGeminiModels struct {
	known  map[string]bool
	resp   *genai.GenerateContentResponse
	config *genai.GenerateContentConfig
}

func (f *fakeGeminiModels) Get(_ context.Context, model string, _ *genai.GetModelConfig) (*genai.Model, error) {
	if !f.known[model] {
		return nil, errors.New("models/" + model + " is not found")
	}
	return &genai.Model{Name: "models/" + model}, nil
}

func (f *fakeGeminiModels) GenerateContent(_ context.Context, _ string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.config = config
	return f.resp, nil
}

func TestGeminiLoaderFallsBackToFlash(t *testing.T) {
	fake := &fakeGeminiModels{
		known: map[string]bool{"gemini-2.5-flash": true},
		resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText("Infection in both lungs.", genai.RoleModel),
		}}},
	}
	prev := newGeminiClient
	newGeminiClient = func(context.Context, string) (geminiModels, error) { return fake, nil }
	t.Cleanup(func() { newGeminiClient = prev })

	l := NewLoader(FamilyGemini, nil, NewGeminiFactory("key"), nil)
	b, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gemini:gemini-2.5-flash", b.Name())

	out, err := b.Generate(context.Background(), Request{Text: "report", MaxLength: 150, MinLength: 50})
	require.NoError(t, err)
	assert.Equal(t, "Infection in both lungs.", out)
	require.NotNil(t, fake.config.Temperature)
	assert.Equal(t, float32(0), *fake.config.Temperature)
}
