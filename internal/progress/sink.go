package progress

import (
	"context"
	"time"
)

// Sink consumes batches of usage events. Implementations must be safe for
// repeated calls and honor ctx deadlines.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies it so crawl components
// stay agnostic about buffering and accounting.
type Emitter interface {
	Emit(evt Event)
}

// Reporter stamps events with a run id and timestamp before emitting them.
// A nil Reporter or one without an Emitter drops everything.
type Reporter struct {
	RunID   [16]byte
	Emitter Emitter
	Now     func() time.Time
}

// Report fills RunID and TS and forwards evt.
func (r *Reporter) Report(evt Event) {
	if r == nil || r.Emitter == nil {
		return
	}
	evt.RunID = r.RunID
	if r.Now != nil {
		evt.TS = r.Now().UTC()
	} else {
		evt.TS = time.Now().UTC()
	}
	r.Emitter.Emit(evt)
}
