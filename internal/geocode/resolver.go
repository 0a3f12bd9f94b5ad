// Package geocode turns free-text business addresses into structured
// address components through a cached, rate-limited Google Geocoding client.
package geocode

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/localbiz-crawler/internal/crawler"
	"github.com/JakeFAU/localbiz-crawler/internal/metrics"
	"github.com/JakeFAU/localbiz-crawler/internal/policy/quota"
	"github.com/JakeFAU/localbiz-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/localbiz-crawler/internal/progress"
)

// DefaultMinInterval spaces underlying geocode calls process-wide.
const DefaultMinInterval = 200 * time.Millisecond

// Lookup performs one underlying geocoding request.
type Lookup interface {
	Lookup(ctx context.Context, address string) ([]crawler.AddressComponent, error)
}

// Options wires the collaborators of a Resolver. Nil fields get defaults.
type Options struct {
	Limiter  *ratelimit.Limiter
	Quota    *quota.Gate
	Policy   crawler.BackoffPolicy
	Pauser   crawler.Pauser
	Reporter *progress.Reporter
	Logger   *zap.Logger
}

// Resolver implements crawler.Geocoder. It owns the address cache and the
// shared call pacing, so one Resolver must serve every worker in a process.
type Resolver struct {
	cache    *Cache
	lookup   Lookup
	limiter  *ratelimit.Limiter
	quota    *quota.Gate
	policy   crawler.BackoffPolicy
	pauser   crawler.Pauser
	reporter *progress.Reporter
	logger   *zap.Logger
	inflight singleflight.Group
}

var _ crawler.Geocoder = (*Resolver)(nil)

// NewResolver builds a Resolver over cache and lookup.
func NewResolver(cache *Cache, lookup Lookup, opts Options) *Resolver {
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New(ratelimit.Config{Name: "geocode", MinInterval: DefaultMinInterval})
	}
	if opts.Policy.MaxAttempts == 0 && opts.Policy.Base == 0 {
		opts.Policy = crawler.DefaultBackoffPolicy()
	}
	if opts.Pauser == nil {
		opts.Pauser = crawler.TimerPauser{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Resolver{
		cache:    cache,
		lookup:   lookup,
		limiter:  opts.Limiter,
		quota:    opts.Quota,
		policy:   opts.Policy,
		pauser:   opts.Pauser,
		reporter: opts.Reporter,
		logger:   opts.Logger.Named("geocode"),
	}
}

// Resolve returns the components for address, or an empty slice when the
// address cannot be resolved. It never fails. Concurrent misses for the same
// address share one underlying lookup.
func (r *Resolver) Resolve(ctx context.Context, address string) []crawler.AddressComponent {
	if address == "" {
		return nil
	}
	if comps, ok := r.cache.Get(address); ok {
		metrics.ObserveGeocode("hit")
		return comps
	}
	v, _, _ := r.inflight.Do(address, func() (any, error) {
		if comps, ok := r.cache.Get(address); ok {
			metrics.ObserveGeocode("hit")
			return comps, nil
		}
		comps, err := r.fetch(ctx, address)
		if err != nil {
			r.logger.Warn("address left unresolved", zap.String("address", address), zap.Error(err))
			return []crawler.AddressComponent(nil), nil
		}
		return comps, nil
	})
	comps, _ := v.([]crawler.AddressComponent)
	return comps
}

func (r *Resolver) fetch(ctx context.Context, address string) ([]crawler.AddressComponent, error) {
	var (
		lastErr error
		attempt int
	)
	for attempt = 1; ; attempt++ {
		if err := r.quota.Acquire(); err != nil {
			metrics.ObserveGeocode("quota")
			return nil, fmt.Errorf("%w: %w", crawler.ErrGeocodeMiss, err)
		}
		if err := r.limiter.Wait(ctx); err != nil {
			metrics.ObserveGeocode("miss")
			return nil, fmt.Errorf("%w: %w", crawler.ErrGeocodeMiss, err)
		}

		start := time.Now()
		comps, err := r.lookup.Lookup(ctx, address)
		r.reporter.Report(progress.Event{Stage: progress.StageGeocodeCall, Dur: time.Since(start)})
		if err == nil {
			r.store(address, comps)
			metrics.ObserveGeocode("resolved")
			return comps, nil
		}

		lastErr = err
		r.logger.Debug("geocode attempt failed",
			zap.String("address", address),
			zap.Int("attempt", attempt),
			zap.Error(err),
			zap.String("trace", eris.ToString(err, true)),
		)
		if !r.policy.ShouldRetry(err, attempt) {
			break
		}
		r.pauser.Pause(ctx, r.policy.Next(attempt))
	}
	metrics.ObserveGeocode("miss")
	return nil, fmt.Errorf("%w after %d attempts: %w", crawler.ErrGeocodeMiss, attempt, lastErr)
}

func (r *Resolver) store(address string, comps []crawler.AddressComponent) {
	added, err := r.cache.Put(address, comps)
	if err != nil {
		r.logger.Error("geocode cache not persisted", zap.String("address", address), zap.Error(err))
		return
	}
	if added {
		r.logger.Debug("geocode cached", zap.String("address", address), zap.Int("components", len(comps)))
	}
}
