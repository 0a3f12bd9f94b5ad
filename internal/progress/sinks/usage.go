package sinks

import (
	"context"
	"sync"

	"github.com/JakeFAU/localbiz-crawler/internal/progress"
)

// Usage is a point-in-time view of the running totals.
type Usage struct {
	Requests     int64 `json:"requests"`
	ProxiedBytes int64 `json:"proxied_bytes"`
	DirectBytes  int64 `json:"direct_bytes"`
	GeocodeCalls int64 `json:"geocode_calls"`
	UnitsDone    int64 `json:"units_done"`
	UnitsFailed  int64 `json:"units_failed"`
	Records      int64 `json:"records"`
}

// ProxiedMB returns proxied traffic in megabytes.
func (u Usage) ProxiedMB() float64 {
	return float64(u.ProxiedBytes) / (1024 * 1024)
}

// UsageSink keeps running totals of billable usage for the current process.
type UsageSink struct {
	mu    sync.Mutex
	usage Usage
}

// NewUsageSink returns an empty ledger.
func NewUsageSink() *UsageSink {
	return &UsageSink{}
}

// Consume folds batch into the totals.
func (s *UsageSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageFetchDone:
			s.usage.Requests++
			if evt.Proxied {
				s.usage.ProxiedBytes += evt.Bytes
			} else {
				s.usage.DirectBytes += evt.Bytes
			}
		case progress.StageGeocodeCall:
			s.usage.GeocodeCalls++
		case progress.StageUnitDone:
			s.usage.UnitsDone++
			s.usage.Records += evt.Records
		case progress.StageUnitError:
			s.usage.UnitsFailed++
		}
	}
	return nil
}

// Snapshot returns a copy of the totals.
func (s *UsageSink) Snapshot() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// Close implements the Sink interface; it performs no action.
func (s *UsageSink) Close(context.Context) error {
	return nil
}
