package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/localbiz-crawler/internal/progress"
)

// LogSink writes every usage event as a debug-level structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.logger.Debug("usage event",
			zap.Stringer("run_id", evt.RunUUID()),
			zap.String("stage", string(evt.Stage)),
			zap.String("unit", evt.Unit),
			zap.String("url", evt.URL),
			zap.Int64("bytes", evt.Bytes),
			zap.Bool("proxied", evt.Proxied),
			zap.Int64("records", evt.Records),
			zap.String("status_class", string(evt.StatusClass)),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
