// Package ratelimit spaces calls to an upstream that bills or throttles a
// single shared quota.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/localbiz-crawler/internal/metrics"
)

// Config holds rate limiter configuration.
type Config struct {
	// Name labels the delay metric.
	Name string
	// MinInterval is the smallest gap allowed between two calls. Zero or
	// negative disables limiting.
	MinInterval time.Duration
}

// Limiter enforces a process-wide minimum interval between calls. One
// Limiter must be shared by every caller that draws on the same quota.
type Limiter struct {
	name    string
	limiter *rate.Limiter
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	name := cfg.Name
	if name == "" {
		name = "default"
	}
	return &Limiter{name: name, limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next call may proceed, respecting the context.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(l.name, waited)
	}
	return nil
}
