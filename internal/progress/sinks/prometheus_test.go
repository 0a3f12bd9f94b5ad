package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/localbiz-crawler/internal/progress"
)

func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.NewRunID()
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageUnitStart, Unit: "Knox,OH"},
		{
			RunID:       runID,
			TS:          now,
			Stage:       progress.StageFetchDone,
			Bytes:       2048,
			Proxied:     true,
			StatusClass: progress.Status2xx,
			Dur:         300 * time.Millisecond,
		},
		{RunID: runID, TS: now, Stage: progress.StageFetchDone, Bytes: 100, StatusClass: progress.Status5xx},
		{RunID: runID, TS: now, Stage: progress.StageGeocodeCall},
		{RunID: runID, TS: now, Stage: progress.StageUnitDone, Unit: "Knox,OH", Records: 7, Dur: time.Minute},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.InDelta(t, 1.0, testutil.ToFloat64(sink.unitsStarted), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.unitsCompleted.WithLabelValues("success")), 1e-9)
	require.InDelta(t, 7.0, testutil.ToFloat64(sink.records), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.geocodeCalls), 1e-9)
	require.InDelta(t, 2048.0, testutil.ToFloat64(sink.fetchBytes.WithLabelValues("proxy")), 1e-9)
	require.InDelta(t, 100.0, testutil.ToFloat64(sink.fetchBytes.WithLabelValues("direct")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.fetchRequests.WithLabelValues("5xx", "direct")), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.fetchDuration, "listings_fetch_duration_seconds"))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
