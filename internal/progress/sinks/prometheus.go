package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/localbiz-crawler/internal/progress"
)

// PrometheusSink turns usage events into Prometheus series.
type PrometheusSink struct {
	unitsStarted   prometheus.Counter
	unitsCompleted *prometheus.CounterVec
	unitRuntime    *prometheus.HistogramVec
	records        prometheus.Counter

	fetchRequests *prometheus.CounterVec
	fetchBytes    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	geocodeCalls  prometheus.Counter
}

// NewPrometheusSink registers the collectors against reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		unitsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listings_units_started_total",
			Help: "Work units started.",
		}),
		unitsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listings_units_completed_total",
			Help: "Work units finished, partitioned by result.",
		}, []string{"result"}),
		unitRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "listings_unit_runtime_seconds",
			Help:    "Wall time per work unit.",
			Buckets: []float64{30, 60, 120, 300, 600, 1200, 2400, 3600},
		}, []string{"result"}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listings_records_total",
			Help: "Business records produced.",
		}),
		fetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listings_fetch_requests_total",
			Help: "Fetch attempts partitioned by status class and route.",
		}, []string{"status_class", "route"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listings_fetch_bytes_total",
			Help: "Response bytes partitioned by route (proxy or direct).",
		}, []string{"route"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "listings_fetch_duration_seconds",
			Help:    "Fetch attempt latency partitioned by status class.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"status_class"}),
		geocodeCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listings_geocode_calls_total",
			Help: "Calls made to the geocoding API (cache misses only).",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.unitsStarted,
		s.unitsCompleted,
		s.unitRuntime,
		s.records,
		s.fetchRequests,
		s.fetchBytes,
		s.fetchDuration,
		s.geocodeCalls,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register usage collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageUnitStart:
			s.unitsStarted.Inc()
		case progress.StageUnitDone:
			s.unitsCompleted.WithLabelValues("success").Inc()
			s.observeRuntime(evt, "success")
			s.records.Add(float64(evt.Records))
		case progress.StageUnitError:
			s.unitsCompleted.WithLabelValues("error").Inc()
			s.observeRuntime(evt, "error")
		case progress.StageFetchDone:
			s.handleFetch(evt)
		case progress.StageGeocodeCall:
			s.geocodeCalls.Inc()
		}
	}
	return nil
}

func (s *PrometheusSink) observeRuntime(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.unitRuntime.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handleFetch(evt progress.Event) {
	route := "direct"
	if evt.Proxied {
		route = "proxy"
	}
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	s.fetchRequests.WithLabelValues(statusClass, route).Inc()
	if evt.Bytes > 0 {
		s.fetchBytes.WithLabelValues(route).Add(float64(evt.Bytes))
	}
	if evt.Dur > 0 {
		s.fetchDuration.WithLabelValues(statusClass).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
