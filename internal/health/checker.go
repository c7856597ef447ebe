// Package health runs periodic checks against the console's dependencies
// and exposes the latest results.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chaostheorist/chaos/internal/domain"
	"github.com/chaostheorist/chaos/internal/infra/metrics"
)

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Pinger is satisfied by *sqlite.DB.
type Pinger interface {
	Ping() error
}

// Breaker is satisfied by *llm.Guard.
type Breaker interface {
	Healthy() bool
}

// Checker runs periodic health checks with auto-recovery.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// NewChecker creates a checker for the local store, the resource gateway
// and the chat provider. Nil dependencies are skipped.
func NewChecker(db Pinger, gw domain.ResourceGateway, chat Breaker, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Checker{
		interval: 60 * time.Second,
		timeout:  10 * time.Second,
		logger:   logger,
	}
	if db != nil {
		c.Add(Check{
			Name: "sqlite",
			CheckFn: func(ctx context.Context) error {
				return db.Ping()
			},
		})
	}
	if gw != nil {
		c.Add(Check{
			Name: "gateway",
			CheckFn: func(ctx context.Context) error {
				_, err := gw.ListSystems(ctx)
				return err
			},
		})
	}
	if chat != nil {
		c.Add(Check{
			Name: "chat_provider",
			CheckFn: func(ctx context.Context) error {
				if !chat.Healthy() {
					return fmt.Errorf("%w: circuit open", domain.ErrAIService)
				}
				return nil
			},
		})
	}
	return c
}

// Add appends a check. Call before Run.
func (c *Checker) Add(check Check) {
	c.mu.Lock()
	c.checks = append(c.checks, check)
	c.mu.Unlock()
}

// SetInterval changes the time between rounds. Call before Run.
func (c *Checker) SetInterval(d time.Duration) {
	if d > 0 {
		c.interval = d
	}
}

// Run starts the health check loop and blocks until ctx is done.
func (c *Checker) Run(ctx context.Context) error {
	c.RunOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce runs every check once and stores the results.
func (c *Checker) RunOnce(ctx context.Context) {
	c.mu.RLock()
	checks := make([]Check, len(c.checks))
	copy(checks, c.checks)
	c.mu.RUnlock()

	statuses := make([]Status, len(checks))
	for i, check := range checks {
		statuses[i] = c.run(ctx, check)
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

func (c *Checker) run(ctx context.Context, check Check) Status {
	s := Status{Name: check.Name, CheckedAt: time.Now()}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err := check.CheckFn(cctx)
	if err == nil {
		s.Healthy = true
		metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(1)
		return s
	}

	s.Error = err.Error()
	metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(0)
	c.logger.Warn("health check failed", "check", check.Name, "error", err)
	if check.RecoverFn != nil {
		metrics.HealthRecoveries.WithLabelValues(check.Name).Inc()
		if rerr := check.RecoverFn(cctx); rerr != nil {
			c.logger.Warn("health recovery failed", "check", check.Name, "error", rerr)
		}
	}
	return s
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}
