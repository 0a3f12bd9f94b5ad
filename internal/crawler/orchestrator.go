package crawler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/localbiz-crawler/internal/progress"
)

// UnitRunner crawls one work unit end to end. Walker satisfies it.
type UnitRunner interface {
	Walk(ctx context.Context, unit WorkUnit) []BusinessRecord
}

// Options controls one orchestrated run.
type Options struct {
	Shuffle bool
	Resume  bool
	// AutosaveEvery persists after every N completed units; 0 saves only at
	// the end.
	AutosaveEvery int
	Persist       PersistFunc
}

// Status is a point-in-time view of an orchestrated run.
type Status struct {
	Running    bool   `json:"running"`
	TotalUnits int    `json:"total_units"`
	Done       int    `json:"done"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Records    int    `json:"records"`
	Current    string `json:"current,omitempty"`
}

// Orchestrator runs work units one after another, skipping those recorded
// in the ledger and checkpointing the ones that finish.
type Orchestrator struct {
	runner   UnitRunner
	ledger   Ledger
	reporter *progress.Reporter
	logger   *zap.Logger
	shuffle  func([]WorkUnit)

	mu     sync.Mutex
	status Status
}

// NewOrchestrator builds an Orchestrator. ledger and reporter may be nil.
func NewOrchestrator(runner UnitRunner, ledger Ledger, reporter *progress.Reporter, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		runner:   runner,
		ledger:   ledger,
		reporter: reporter,
		logger:   logger.Named("orchestrator"),
		shuffle: func(units []WorkUnit) {
			rand.Shuffle(len(units), func(i, j int) { units[i], units[j] = units[j], units[i] })
		},
	}
}

// Status returns a copy of the current run status.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Run crawls units and returns every record collected. Units always run to
// completion; cancelling ctx stops the run before the next unit starts, in
// which case the records gathered so far are returned with the context
// error. A failing unit is logged and skipped and never aborts the run.
func (o *Orchestrator) Run(ctx context.Context, units []WorkUnit, opts Options) ([]BusinessRecord, error) {
	order := append([]WorkUnit(nil), units...)
	if opts.Shuffle {
		o.shuffle(order)
	}
	o.update(func(s *Status) { *s = Status{Running: true, TotalUnits: len(order)} })
	defer o.update(func(s *Status) { s.Running, s.Current = false, "" })
	o.reporter.Report(progress.Event{Stage: progress.StageRunStart, Note: fmt.Sprintf("%d units", len(order))})

	var (
		records   []BusinessRecord
		pending   []string
		completed int
		unsaved   bool
		runErr    error
	)
	for _, unit := range order {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("run interrupted, remaining units left for resume", zap.Error(err))
			runErr = fmt.Errorf("crawl interrupted: %w", err)
			break
		}
		key := unit.Key()
		if opts.Resume && o.ledger != nil && o.ledger.Contains(key) {
			o.logger.Info("unit already completed, skipping", zap.String("unit", key))
			o.update(func(s *Status) { s.Skipped++ })
			continue
		}

		o.update(func(s *Status) { s.Current = key })
		got, err := o.runUnit(context.WithoutCancel(ctx), unit)
		if err != nil {
			o.logger.Error("unit failed", zap.String("unit", key), zap.Error(err))
			o.update(func(s *Status) { s.Failed++ })
			o.reporter.Report(progress.Event{Stage: progress.StageUnitError, Unit: key, Note: err.Error()})
			continue
		}

		for i := range got {
			got[i].County = unit.LocationLabel
			got[i].StateCode = unit.StateCode
		}
		records = append(records, got...)
		unsaved = unsaved || len(got) > 0
		completed++
		o.update(func(s *Status) {
			s.Done++
			s.Records = len(records)
		})
		o.reporter.Report(progress.Event{Stage: progress.StageUnitDone, Unit: key, Records: int64(len(got))})
		o.logger.Info("unit completed", zap.String("unit", key), zap.Int("records", len(got)), zap.Int("total_records", len(records)))

		// A unit is checkpointed only once its records are persisted.
		pending = append(pending, key)
		if opts.AutosaveEvery > 0 && completed%opts.AutosaveEvery == 0 {
			if !unsaved || o.persist(ctx, opts.Persist, records) {
				unsaved = false
				o.markDone(pending)
				pending = nil
			}
		}
	}

	if !unsaved || o.persist(ctx, opts.Persist, records) {
		o.markDone(pending)
	} else if len(pending) > 0 {
		o.logger.Warn("records not persisted, units left for resume", zap.Strings("units", pending))
	}
	o.reporter.Report(progress.Event{Stage: progress.StageRunDone, Records: int64(len(records))})
	return records, runErr
}

func (o *Orchestrator) runUnit(ctx context.Context, unit WorkUnit) (records []BusinessRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &UnitError{Unit: unit.Key(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	o.reporter.Report(progress.Event{Stage: progress.StageUnitStart, Unit: unit.Key()})
	o.logger.Info("unit started", zap.String("unit", unit.Key()), zap.String("term", unit.SearchTerm()))
	return o.runner.Walk(ctx, unit), nil
}

func (o *Orchestrator) persist(ctx context.Context, fn PersistFunc, records []BusinessRecord) bool {
	if fn == nil {
		return true
	}
	if err := fn(context.WithoutCancel(ctx), records); err != nil {
		o.logger.Error("autosave failed", zap.Int("records", len(records)), zap.Error(err))
		return false
	}
	o.logger.Debug("records saved", zap.Int("records", len(records)))
	return true
}

func (o *Orchestrator) markDone(keys []string) {
	if o.ledger == nil {
		return
	}
	for _, key := range keys {
		if err := o.ledger.MarkDone(key); err != nil {
			o.logger.Error("checkpoint not written", zap.String("unit", key), zap.Error(err))
		}
	}
}

func (o *Orchestrator) update(fn func(*Status)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.status)
}
