// Package metrics exposes process-wide Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal      *prometheus.CounterVec
	fetchExhaustedTotal     *prometheus.CounterVec
	geocodeLookupsTotal     *prometheus.CounterVec
	rateLimitDelaySeconds   *prometheus.HistogramVec
	activeDetailWorkers     prometheus.Gauge
	pagesWalkedTotal        prometheus.Counter
	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDurationSecs *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors on the default registry. It is safe to call
// repeatedly.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listings_fetch_attempts_total",
				Help: "Fetch attempts by host and outcome (ok, blocked, status, network).",
			},
			[]string{"site", "outcome"},
		)

		fetchExhaustedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listings_fetch_exhausted_total",
				Help: "Documents that fell back to the empty sentinel after all attempts.",
			},
			[]string{"site"},
		)

		geocodeLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listings_geocode_lookups_total",
				Help: "Geocode lookups by result (hit, resolved, miss, quota).",
			},
			[]string{"result"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "listings_rate_limit_delay_seconds",
				Help:    "Time spent waiting on rate limiters.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 2, 5},
			},
			[]string{"limiter"},
		)

		activeDetailWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "listings_active_detail_workers",
				Help: "Detail workers currently processing a listing.",
			},
		)

		pagesWalkedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "listings_result_pages_total",
				Help: "Search result pages processed.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Status API requests by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Status API latency by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite extracts a lowercase hostname from rawURL, or "unknown".
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetchAttempt counts one attempt against rawURL's host.
func ObserveFetchAttempt(rawURL, outcome string) {
	Init()
	fetchAttemptsTotal.WithLabelValues(SanitizeSite(rawURL), outcome).Inc()
}

// ObserveFetchExhausted counts a document that ran out of attempts.
func ObserveFetchExhausted(rawURL string) {
	Init()
	fetchExhaustedTotal.WithLabelValues(SanitizeSite(rawURL)).Inc()
}

// ObserveGeocode counts one resolver lookup by result.
func ObserveGeocode(result string) {
	Init()
	geocodeLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimitDelay records time spent blocked on the named limiter.
func ObserveRateLimitDelay(limiter string, d time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(limiter).Observe(d.Seconds())
}

// IncActiveWorkers increments the active detail worker gauge.
func IncActiveWorkers() {
	Init()
	activeDetailWorkers.Inc()
}

// DecActiveWorkers decrements the active detail worker gauge.
func DecActiveWorkers() {
	Init()
	activeDetailWorkers.Dec()
}

// ObservePage counts one processed results page.
func ObservePage() {
	Init()
	pagesWalkedTotal.Inc()
}

// ObserveHTTPRequest records one status API request.
func ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSecs.WithLabelValues(method, route).Observe(d.Seconds())
}
