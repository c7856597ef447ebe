package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/chaostheorist/chaos/internal/domain"
	"github.com/chaostheorist/chaos/internal/infra/metrics"
)

// Provider is a chat provider with a metrics name.
type Provider interface {
	domain.ChatProvider
	Name() string
}

// GuardConfig tunes the limiter and breaker.
type GuardConfig struct {
	RequestsPerMinute int           // 0 disables rate limiting
	Burst             int           // defaults to 1
	FailureThreshold  uint32        // consecutive failures before opening; defaults to 5
	OpenTimeout       time.Duration // time spent open before a trial call; defaults to 30s
}

// Guard rate limits and circuit-breaks a provider. Every failure it returns
// matches domain.ErrAIService.
type Guard struct {
	inner   Provider
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewGuard wraps p.
func NewGuard(p Provider, cfg GuardConfig, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	g := &Guard{inner: p, logger: logger}
	if cfg.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), cfg.Burst)
	}
	threshold := cfg.FailureThreshold
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("chat provider breaker state changed", "provider", name, "from", from.String(), "to", to.String())
		},
	})
	return g
}

// Name returns the wrapped provider's name.
func (g *Guard) Name() string { return g.inner.Name() }

// Healthy reports whether the breaker lets calls through.
func (g *Guard) Healthy() bool { return g.breaker.State() != gobreaker.StateOpen }

// Complete waits for the limiter, then calls the provider through the
// breaker.
func (g *Guard) Complete(ctx context.Context, history []domain.ChatMessage, text, instruction string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: rate limit: %v", domain.ErrAIService, err)
		}
	}

	start := time.Now()
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Complete(ctx, history, text, instruction)
	})
	metrics.ChatLatency.WithLabelValues(g.inner.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, domain.ErrAIService) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %v", domain.ErrAIService, g.inner.Name(), err)
	}
	reply, _ := out.(string)
	return reply, nil
}
