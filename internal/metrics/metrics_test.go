package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard https", "https://www.Google.com/search?q=x", "www.google.com"},
		{"no scheme", "maps.googleapis.com/maps/api", "maps.googleapis.com"},
		{"host with port", "127.0.0.1:8080", "127.0.0.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestObserveHelpers(t *testing.T) {
	Init()
	Init()

	ObserveFetchAttempt("https://helpers.example/search", "blocked")
	ObserveFetchExhausted("https://helpers.example/search")
	ObserveGeocode("quota")
	ObserveRateLimitDelay("helpers", 150*time.Millisecond)
	IncActiveWorkers()
	IncActiveWorkers()
	DecActiveWorkers()

	require.InDelta(t, 1.0, testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("helpers.example", "blocked")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(fetchExhaustedTotal.WithLabelValues("helpers.example")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(geocodeLookupsTotal.WithLabelValues("quota")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(activeDetailWorkers), 1e-9)
	DecActiveWorkers()
}

func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"http://example.com", "https://google.com", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
