package medsummary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joelkehle/medlite/internal/generation"
)

const truncationMarker = "..."

// GenerativeSummarizer asks a loaded generation backend for an abstractive summary.
type GenerativeSummarizer struct {
	backend       generation.Backend
	MaxLength     int
	MinLength     int
	MaxInputChars int
	MinInputChars int
	Timeout       time.Duration
}

func NewGenerativeSummarizer(backend generation.Backend) *GenerativeSummarizer {
	return &GenerativeSummarizer{
		backend:       backend,
		MaxLength:     DefaultMaxLength,
		MinLength:     DefaultMinLength,
		MaxInputChars: DefaultMaxInputChars,
		MinInputChars: DefaultGenerativeMinChars,
	}
}

func (g *GenerativeSummarizer) Tier() Tier { return TierGenerative }
func (g *GenerativeSummarizer) MinChars() int { return g.MinInputChars }

func (g *GenerativeSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	return g.SummarizeWithLimits(ctx, text, g.MaxLength, g.MinLength)
}

// SummarizeWithLimits runs one generation call. Input longer than
// MaxInputChars is cut and marked with "...". Backend refusals and timeouts
// are ErrModelUnavailable; anything else is a *GenerationError.
func (g *GenerativeSummarizer) SummarizeWithLimits(ctx context.Context, text string, maxLen, minLen int) (string, error) {
	if g.backend == nil {
		return "", fmt.Errorf("%w: no backend loaded", ErrModelUnavailable)
	}
	if input, cut := truncateRunes(text, g.MaxInputChars); cut {
		text = input + truncationMarker
	}
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	out, err := g.backend.Generate(ctx, generation.Request{Text: text, MaxLength: maxLen, MinLength: minLen})
	if err != nil {
		if errors.Is(err, ErrModelUnavailable) {
			return "", err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s timed out: %w", ErrModelUnavailable, g.backend.Name(), err)
		}
		return "", &GenerationError{Backend: g.backend.Name(), Err: err}
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &GenerationError{Backend: g.backend.Name(), Err: errors.New("empty output")}
	}
	return out, nil
}
