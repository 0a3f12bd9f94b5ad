package crawler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/localbiz-crawler/internal/metrics"
	"github.com/JakeFAU/localbiz-crawler/internal/progress"
)

// RetrierOptions wires the collaborators of a Retrier. Nil fields get
// defaults.
type RetrierOptions struct {
	Policy     BackoffPolicy
	Identities *IdentityPool
	Detector   *BlockDetector
	Pauser     Pauser
	Reporter   *progress.Reporter
	Logger     *zap.Logger
	// DirectFallback makes one unproxied attempt after the budget is spent.
	DirectFallback bool
}

// Retrier turns single-attempt fetches into a document that is either parsed
// successfully or is the empty sentinel.
type Retrier struct {
	fetcher        Fetcher
	policy         BackoffPolicy
	identities     *IdentityPool
	detector       *BlockDetector
	pauser         Pauser
	reporter       *progress.Reporter
	logger         *zap.Logger
	directFallback bool
}

// NewRetrier builds a Retrier over fetcher.
func NewRetrier(fetcher Fetcher, opts RetrierOptions) *Retrier {
	if opts.Policy.MaxAttempts == 0 && opts.Policy.Base == 0 {
		opts.Policy = DefaultBackoffPolicy()
	}
	if opts.Identities == nil {
		opts.Identities = NewIdentityPool(nil)
	}
	if opts.Detector == nil {
		opts.Detector = NewBlockDetector(0, nil)
	}
	if opts.Pauser == nil {
		opts.Pauser = TimerPauser{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Retrier{
		fetcher:        fetcher,
		policy:         opts.Policy,
		identities:     opts.Identities,
		detector:       opts.Detector,
		pauser:         opts.Pauser,
		reporter:       opts.Reporter,
		logger:         opts.Logger.Named("retrier"),
		directFallback: opts.DirectFallback,
	}
}

// Document fetches url with retries. It never returns nil and never fails;
// callers check Empty on the result.
func (r *Retrier) Document(ctx context.Context, url string) *Document {
	var lastErr error
	for attempt := 1; ; attempt++ {
		doc, err := r.attempt(ctx, url, false)
		if err == nil {
			return doc
		}
		lastErr = err
		r.logger.Warn("fetch attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.policy.Attempts()),
			zap.Error(err),
		)
		if !r.policy.ShouldRetry(err, attempt) {
			break
		}
		r.pauser.Pause(ctx, r.policy.Next(attempt))
	}

	if r.directFallback && ctx.Err() == nil {
		doc, err := r.attempt(ctx, url, true)
		if err == nil {
			r.logger.Info("direct fallback succeeded", zap.String("url", url))
			return doc
		}
		lastErr = err
	}

	metrics.ObserveFetchExhausted(url)
	r.logger.Error("giving up on document", zap.String("url", url), zap.Error(lastErr))
	return EmptyDocument(url)
}

func (r *Retrier) attempt(ctx context.Context, url string, direct bool) (*Document, error) {
	resp, err := r.fetcher.Fetch(ctx, FetchRequest{
		URL:     url,
		Headers: r.identities.Headers(),
		Direct:  direct,
	})
	if err != nil {
		metrics.ObserveFetchAttempt(url, "network")
		if !errors.Is(err, ErrNetwork) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", ErrNetwork, err)
		}
		return nil, err
	}
	r.reportFetch(url, resp)

	if err := r.detector.Classify(resp); err != nil {
		outcome := "status"
		if errors.Is(err, ErrUpstreamBlocked) {
			outcome = "blocked"
		}
		metrics.ObserveFetchAttempt(url, outcome)
		return nil, err
	}
	doc, err := ParseDocument(url, resp.Body)
	if err != nil {
		metrics.ObserveFetchAttempt(url, "status")
		return nil, err
	}
	metrics.ObserveFetchAttempt(url, "ok")
	return doc, nil
}

func (r *Retrier) reportFetch(url string, resp FetchResponse) {
	size := resp.ContentLength
	if size <= 0 {
		size = int64(len(resp.Body))
	}
	r.reporter.Report(progress.Event{
		Stage:       progress.StageFetchDone,
		URL:         url,
		Bytes:       size,
		Proxied:     resp.Proxied,
		StatusClass: progress.ClassifyStatus(resp.StatusCode),
		Dur:         resp.Duration,
	})
}
