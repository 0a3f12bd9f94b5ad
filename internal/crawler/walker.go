package crawler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/localbiz-crawler/internal/metrics"
)

// DetailProcessor turns a page's worth of listing refs into records.
type DetailProcessor interface {
	Process(ctx context.Context, unit WorkUnit, refs []ListingRef) []BusinessRecord
}

// WalkerConfig controls pagination pacing.
type WalkerConfig struct {
	// PageDelay is slept after every results page.
	PageDelay DelayRange
	// NextPageDelay is slept before requesting the following page.
	NextPageDelay time.Duration
	// LongPauseEvery triggers LongPause after every N-th page; 0 disables it.
	LongPauseEvery int
	LongPause      DelayRange
	// MaxPages caps pages per unit; 0 means follow pagination to the end.
	MaxPages  int
	Selectors Selectors
	URLs      URLBuilder
}

// DefaultWalkerConfig mirrors the pacing that keeps the search source from
// throttling long crawls.
func DefaultWalkerConfig() WalkerConfig {
	return WalkerConfig{
		PageDelay:      DelayRange{Min: 2500 * time.Millisecond, Max: 5 * time.Second},
		NextPageDelay:  2 * time.Second,
		LongPauseEvery: 10,
		LongPause:      DelayRange{Min: 15 * time.Second, Max: 35 * time.Second},
		Selectors:      DefaultSelectors(),
		URLs:           URLBuilder{BaseURL: DefaultBaseURL},
	}
}

// Walker pages through search results for one unit at a time and hands each
// page's new listings to a DetailProcessor.
type Walker struct {
	source DocumentSource
	detail DetailProcessor
	cfg    WalkerConfig
	pauser Pauser
	logger *zap.Logger
}

// NewWalker builds a Walker. A nil pauser sleeps on real timers.
func NewWalker(source DocumentSource, detail DetailProcessor, cfg WalkerConfig, pauser Pauser, logger *zap.Logger) *Walker {
	if pauser == nil {
		pauser = TimerPauser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Selectors = cfg.Selectors.WithDefaults()
	return &Walker{
		source: source,
		detail: detail,
		cfg:    cfg,
		pauser: pauser,
		logger: logger.Named("walker"),
	}
}

// Walk runs the pagination loop for unit and returns every record produced.
// The seen-set lives only for this call. A page that yields no new listings
// ends the walk; so does a missing next-page link or the page cap.
func (w *Walker) Walk(ctx context.Context, unit WorkUnit) []BusinessRecord {
	logger := w.logger.With(zap.String("unit", unit.Key()))
	seen := newConcurrentVisitTracker()
	term := unit.SearchTerm()

	doc := w.source.Document(ctx, w.cfg.URLs.Search(unit))
	var records []BusinessRecord
	for page := 1; ; page++ {
		refs := w.newListings(doc, seen, term)
		logger.Info("results page parsed", zap.Int("page", page), zap.Int("new_listings", len(refs)))
		if len(refs) == 0 {
			if doc.Empty() {
				logger.Warn("results page empty after retries", zap.Int("page", page))
			}
			break
		}

		records = append(records, w.detail.Process(ctx, unit, refs)...)
		metrics.ObservePage()

		w.pauser.Pause(ctx, w.cfg.PageDelay.Pick())
		if w.cfg.LongPauseEvery > 0 && page%w.cfg.LongPauseEvery == 0 {
			pause := w.cfg.LongPause.Pick()
			logger.Info("cooling down", zap.Int("page", page), zap.Duration("pause", pause))
			w.pauser.Pause(ctx, pause)
		}

		if w.cfg.MaxPages > 0 && page >= w.cfg.MaxPages {
			logger.Info("page cap reached", zap.Int("max_pages", w.cfg.MaxPages))
			break
		}
		next := w.cfg.URLs.Next(ExtractNextPage(doc, w.cfg.Selectors))
		if next == "" {
			break
		}
		w.pauser.Pause(ctx, w.cfg.NextPageDelay)
		doc = w.source.Document(ctx, next)
	}
	logger.Info("unit walk finished", zap.Int("records", len(records)))
	return records
}

// newListings marks every unseen id before any detail work is dispatched so
// a listing repeated on a later page is never fetched twice.
func (w *Walker) newListings(doc *Document, seen visitTracker, term string) []ListingRef {
	var refs []ListingRef
	for _, id := range ExtractListingIDs(doc, w.cfg.Selectors) {
		if !seen.MarkIfNew(id) {
			continue
		}
		refs = append(refs, ListingRef{ID: id, DetailURL: w.cfg.URLs.Detail(term, id)})
	}
	return refs
}
