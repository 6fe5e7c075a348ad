package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrModelUnavailable reports that no generation backend could serve a call,
// either because none could be loaded or because the loaded one is refusing
// work (open breaker, deadline, rate limit).
var ErrModelUnavailable = errors.New("generation model unavailable")

const (
	FamilyHuggingFace = "huggingface"
	FamilyAnthropic   = "anthropic"
	FamilyGemini      = "gemini"
	FamilyNone        = "none"
)

const systemPrompt = "You summarize medical reports for clinicians. Write a concise abstractive summary " +
	"of the findings and impression in plain prose. Do not add facts that are not in the report. " +
	"Respond with the summary text only."

// Request is one summarization call.
type Request struct {
	Text      string
	MaxLength int
	MinLength int
}

// Backend produces an abstractive summary for a request.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Factory loads the named model. A non-nil error means the model cannot be used.
type Factory func(ctx context.Context, model string) (Backend, error)

// DefaultModels returns the model ladder of a backend family, largest first.
func DefaultModels(family string) []string {
	switch family {
	case FamilyHuggingFace:
		return []string{"facebook/bart-large-cnn", "t5-small"}
	case FamilyAnthropic:
		return []string{"claude-sonnet-4-5", "claude-haiku-4-5"}
	case FamilyGemini:
		return []string{"gemini-2.5-pro", "gemini-2.5-flash"}
	default:
		return nil
	}
}

// Loader tries each model of a ladder in order and returns the first that loads.
type Loader struct {
	family  string
	models  []string
	factory Factory
	logger  logrus.FieldLogger
}

func NewLoader(family string, models []string, factory Factory, logger logrus.FieldLogger) *Loader {
	if len(models) == 0 {
		models = DefaultModels(family)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Loader{
		family:  family,
		models:  append([]string(nil), models...),
		factory: factory,
		logger:  logger.WithField("backend", family),
	}
}

func (l *Loader) Family() string { return l.family }
func (l *Loader) Models() []string { return append([]string(nil), l.models...) }

func (l *Loader) Load(ctx context.Context) (Backend, error) {
	if l.factory == nil || len(l.models) == 0 {
		return nil, fmt.Errorf("%w: no models configured for %q", ErrModelUnavailable, l.family)
	}
	var errs []error
	for i, model := range l.models {
		b, err := l.factory(ctx, model)
		if err == nil {
			l.logger.WithFields(logrus.Fields{"model": model, "rung": i}).Info("generation model loaded")
			return b, nil
		}
		l.logger.WithError(err).WithField("model", model).Warn("generation model failed to load")
		errs = append(errs, fmt.Errorf("%s: %w", model, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, errors.Join(errs...))
}

func buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following medical report in roughly %d to %d words.\n\n", req.MinLength, req.MaxLength)
	b.WriteString("REPORT:\n")
	b.WriteString(req.Text)
	return b.String()
}

// maxOutputTokens leaves headroom over the requested word budget.
func maxOutputTokens(maxLength int) int {
	if maxLength <= 0 {
		return 256
	}
	return maxLength * 2
}
