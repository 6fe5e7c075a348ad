package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

type GuardSettings struct {
	RatePerSecond    float64
	Burst            int
	FailureThreshold uint32
	Cooldown         time.Duration
}

// Guard wraps a Backend with a rate limiter and a circuit breaker. Calls it
// refuses are reported as ErrModelUnavailable so callers can degrade.
type Guard struct {
	backend Backend
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func NewGuard(backend Backend, settings GuardSettings, logger logrus.FieldLogger) *Guard {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 3
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 60 * time.Second
	}
	limit := rate.Inf
	if settings.RatePerSecond > 0 {
		limit = rate.Limit(settings.RatePerSecond)
	}
	burst := settings.Burst
	if burst <= 0 {
		burst = 1
	}
	threshold := settings.FailureThreshold
	return &Guard{
		backend: backend,
		limiter: rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        backend.Name(),
			MaxRequests: 1,
			Timeout:     settings.Cooldown,
			// A caller that goes away says nothing about the backend.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"circuit_breaker": name,
					"from_state":      from.String(),
					"to_state":        to.String(),
				}).Warn("generation circuit breaker state changed")
			},
		}),
	}
}

func (g *Guard) Name() string { return g.backend.Name() }

func (g *Guard) Generate(ctx context.Context, req Request) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limiter: %w", ErrModelUnavailable, err)
	}
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.backend.Generate(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %s: %w", ErrModelUnavailable, g.backend.Name(), err)
		}
		return "", err
	}
	return out.(string), nil
}

// State exposes the breaker state for health reporting.
func (g *Guard) State() string { return g.breaker.State().String() }
