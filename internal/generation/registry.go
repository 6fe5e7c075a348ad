package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Settings selects a backend family and the credentials it needs.
type Settings struct {
	Family          string
	Models          []string
	HuggingFace     HuggingFaceConfig
	AnthropicAPIKey string
	GeminiAPIKey    string
	Guard           GuardSettings
}

// NewLoaderFromSettings builds the model-ladder loader for the configured
// family. It returns nil for FamilyNone, meaning generation is disabled.
// Every loaded backend is wrapped in a Guard.
func NewLoaderFromSettings(s Settings, logger logrus.FieldLogger) (*Loader, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	family := strings.ToLower(strings.TrimSpace(s.Family))
	var factory Factory
	switch family {
	case FamilyNone, "":
		return nil, nil
	case FamilyHuggingFace:
		factory = NewHuggingFaceFactory(s.HuggingFace)
	case FamilyAnthropic:
		factory = NewAnthropicFactory(s.AnthropicAPIKey)
	case FamilyGemini:
		factory = NewGeminiFactory(s.GeminiAPIKey)
	default:
		return nil, fmt.Errorf("unknown generation backend %q", s.Family)
	}
	guarded := func(ctx context.Context, model string) (Backend, error) {
		b, err := factory(ctx, model)
		if err != nil {
			return nil, err
		}
		return NewGuard(b, s.Guard, logger), nil
	}
	return NewLoader(family, s.Models, guarded, logger), nil
}
