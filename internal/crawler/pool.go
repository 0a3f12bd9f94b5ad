package crawler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/localbiz-crawler/internal/metrics"
	"github.com/JakeFAU/localbiz-crawler/internal/queue/memory"
)

// PoolConfig sizes the detail worker pool.
type PoolConfig struct {
	Workers     int
	DetailDelay DelayRange
	Selectors   Selectors
}

// DefaultPoolConfig returns 5 workers with a 0.4s-1s delay per listing.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:     5,
		DetailDelay: DelayRange{Min: 400 * time.Millisecond, Max: time.Second},
		Selectors:   DefaultSelectors(),
	}
}

// Pool fetches, extracts and geocodes listing details with a fixed number of
// workers draining an explicit task queue into a result channel.
type Pool struct {
	source   DocumentSource
	geocoder Geocoder
	cfg      PoolConfig
	pauser   Pauser
	logger   *zap.Logger
}

// NewPool builds a Pool. geocoder may be nil to skip address enrichment.
func NewPool(source DocumentSource, geocoder Geocoder, cfg PoolConfig, pauser Pauser, logger *zap.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if pauser == nil {
		pauser = TimerPauser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Selectors = cfg.Selectors.WithDefaults()
	return &Pool{
		source:   source,
		geocoder: geocoder,
		cfg:      cfg,
		pauser:   pauser,
		logger:   logger.Named("detail"),
	}
}

// Process returns one record per listing whose detail page could be fetched
// and carried a name or an address. Output order is unspecified.
func (p *Pool) Process(ctx context.Context, unit WorkUnit, refs []ListingRef) []BusinessRecord {
	if len(refs) == 0 {
		return nil
	}
	tasks := memory.NewQueue[ListingRef](len(refs))
	for _, ref := range refs {
		if err := tasks.Enqueue(ctx, ref); err != nil {
			p.logger.Warn("listing not queued", zap.String("listing_id", ref.ID), zap.Error(err))
		}
	}
	tasks.Close()

	results := make(chan BusinessRecord, len(refs))
	workers := min(p.cfg.Workers, len(refs))
	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			p.work(ctx, unit, tasks, results)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	out := make([]BusinessRecord, 0, len(refs))
	for rec := range results {
		out = append(out, rec)
	}
	return out
}

func (p *Pool) work(ctx context.Context, unit WorkUnit, tasks *memory.Queue[ListingRef], results chan<- BusinessRecord) {
	for {
		ref, err := tasks.Dequeue(ctx)
		if err != nil {
			return
		}
		metrics.IncActiveWorkers()
		rec, ok := p.processOne(ctx, unit, ref)
		metrics.DecActiveWorkers()
		if ok {
			results <- rec
		}
	}
}

func (p *Pool) processOne(ctx context.Context, unit WorkUnit, ref ListingRef) (rec BusinessRecord, ok bool) {
	logger := p.logger.With(zap.String("unit", unit.Key()), zap.String("listing_id", ref.ID))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("listing processing panicked", zap.String("panic", fmt.Sprint(r)))
			rec, ok = BusinessRecord{}, false
		}
	}()

	p.pauser.Pause(ctx, p.cfg.DetailDelay.Pick())
	doc := p.source.Document(ctx, ref.DetailURL)
	if doc.Empty() {
		logger.Warn("detail page unavailable, listing skipped")
		return BusinessRecord{}, false
	}

	rec = ExtractRecord(doc, p.cfg.Selectors)
	rec.ListingID = ref.ID
	if rec.Name == "" && rec.RawAddress == "" {
		logger.Warn("detail page had no name or address, keeping partial record")
	}
	if rec.RawAddress != "" && p.geocoder != nil {
		ApplyAddress(&rec, p.geocoder.Resolve(ctx, rec.RawAddress))
	}
	logger.Debug("listing scraped", zap.String("name", rec.Name))
	return rec, true
}
