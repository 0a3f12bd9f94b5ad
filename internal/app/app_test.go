package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/localbiz-crawler/internal/app"
	"github.com/JakeFAU/localbiz-crawler/internal/config"
	"github.com/JakeFAU/localbiz-crawler/internal/crawler"
)

type noPause struct{}

func (noPause) Pause(context.Context, time.Duration) {}

// searchSite serves two results pages per unit (the second only repeats a
// listing) plus detail pages for every listing id.
type searchSite struct {
	mu       sync.Mutex
	searches int
	details  int
}

func (s *searchSite) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.searches++
		s.mu.Unlock()
		if r.URL.Query().Get("start") == "" {
			fmt.Fprint(w, `<html><body>
<div><div jsname="jXK9ad"><a data-cid="111">A</a></div><div jsname="jXK9ad"><a data-cid="222">B</a></div></div>
<a id="pnnext" href="/search?q=next&amp;start=20">Next</a></body></html>`)
			return
		}
		fmt.Fprint(w, `<html><body><div><div jsname="jXK9ad"><a data-cid="222">B</a></div></div></body></html>`)
	})
	mux.HandleFunc("/async/lcl_akp", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.details++
		s.mu.Unlock()
		async := r.URL.Query().Get("async")
		id := strings.TrimPrefix(strings.SplitN(async, ",", 2)[0], "ludocids:")
		fmt.Fprintf(w, `<html><body>
<h2 data-attrid="title"><span>Biz %s</span></h2>
<div><span class="w8qArf">Address: </span><span class="LrzXr">12 Elm St, Springfield, IL 62701</span></div>
<span class="Aq14fc">4.2</span></body></html>`, id)
	})
	return mux
}

func (s *searchSite) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches, s.details
}

func geocodeServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"results": []map[string]any{{
				"address_components": []map[string]any{
					{"long_name": "12", "short_name": "12", "types": []string{"street_number"}},
					{"long_name": "Elm St", "short_name": "Elm St", "types": []string{"route"}},
					{"long_name": "Springfield", "short_name": "Springfield", "types": []string{"locality"}},
					{"long_name": "Illinois", "short_name": "IL", "types": []string{"administrative_area_level_1"}},
					{"long_name": "62701", "short_name": "62701", "types": []string{"postal_code"}},
				},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testConfig(t *testing.T, baseURL, geocodeURL string) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Crawl: config.CrawlConfig{Workers: 2, Resume: true, AutosaveEvery: 1},
		HTTP: config.HTTPConfig{
			BaseURL:     baseURL,
			Timeout:     5 * time.Second,
			MaxAttempts: 2,
			BackoffBase: 2,
		},
		Geocode: config.GeocodeConfig{
			Enabled:     true,
			APIKey:      "test-key",
			Endpoint:    geocodeURL,
			MaxAttempts: 1,
			CachePath:   filepath.Join(dir, "geocode_cache.json"),
		},
		Checkpoint: config.CheckpointConfig{Dir: filepath.Join(dir, "checkpoints")},
		Output:     config.OutputConfig{Dir: filepath.Join(dir, "output")},
	}
}

var testUnits = []crawler.WorkUnit{
	{Query: "pizza", LocationLabel: "Adams", StateCode: "IL", Latitude: 39.98, Longitude: -91.19},
	{Query: "pizza", LocationLabel: "Brown", StateCode: "IL", Latitude: 39.96, Longitude: -90.75},
}

func newApp(t *testing.T, cfg config.Config) *app.App {
	t.Helper()
	a, err := app.New(context.Background(), cfg, nil,
		app.WithRegisterer(prometheus.NewRegistry()),
		app.WithPauser(noPause{}),
	)
	require.NoError(t, err)
	return a
}

func TestCrawlEndToEndAndResume(t *testing.T) {
	t.Parallel()

	site := &searchSite{}
	search := httptest.NewServer(site.handler())
	t.Cleanup(search.Close)
	geo, geoCalls := geocodeServer(t)
	cfg := testConfig(t, search.URL, geo.URL)

	a := newApp(t, cfg)
	res, err := a.Crawl(context.Background(), testUnits, "pizza places")
	require.NoError(t, err)
	a.Close(context.Background())

	require.Len(t, res.Records, 4)
	for _, rec := range res.Records {
		assert.Equal(t, "IL", rec.StateCode)
		assert.Contains(t, []string{"Adams", "Brown"}, rec.County)
		assert.Equal(t, "12 Elm St", rec.StreetAddress)
		assert.Equal(t, "Springfield", rec.City)
		assert.Equal(t, "62701", rec.Zip)
		assert.InDelta(t, 4.2, rec.Rating, 1e-9)
	}
	assert.Equal(t, 1, *geoCalls, "one address is geocoded once")

	searches, details := site.counts()
	assert.Equal(t, 4, searches, "two results pages per unit")
	assert.Equal(t, 4, details, "repeated listing is not fetched again")

	require.Equal(t, filepath.Join(cfg.Output.Dir, "pizza places - IL.json"), res.SnapshotPath)
	raw, err := os.ReadFile(res.SnapshotPath)
	require.NoError(t, err)
	var saved []crawler.BusinessRecord
	require.NoError(t, json.Unmarshal(raw, &saved))
	assert.Len(t, saved, 4)

	usage := a.Usage()
	assert.EqualValues(t, 8, usage.Requests)
	assert.EqualValues(t, 2, usage.UnitsDone)
	assert.EqualValues(t, 1, usage.GeocodeCalls)

	again := newApp(t, cfg)
	res, err = again.Crawl(context.Background(), testUnits, "pizza places")
	require.NoError(t, err)
	again.Close(context.Background())
	require.Len(t, res.Records, 4, "earlier records are carried forward")
	searchesAfter, _ := site.counts()
	assert.Equal(t, searches, searchesAfter, "completed units are not fetched again")
}

func TestCrawlWithoutGeocoding(t *testing.T) {
	t.Parallel()

	site := &searchSite{}
	search := httptest.NewServer(site.handler())
	t.Cleanup(search.Close)
	cfg := testConfig(t, search.URL, "")
	cfg.Geocode.Enabled = false
	cfg.Crawl.MaxPages = 1

	a := newApp(t, cfg)
	defer a.Close(context.Background())
	res, err := a.Crawl(context.Background(), testUnits[:1], "")
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Empty(t, res.Records[0].StreetAddress)
	assert.Equal(t, filepath.Join(cfg.Output.Dir, "pizza - IL.json"), res.SnapshotPath)
}

func TestCrawlRejectsMixedUnits(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1", "")
	cfg.Geocode.Enabled = false
	a := newApp(t, cfg)
	defer a.Close(context.Background())

	_, err := a.Crawl(context.Background(), nil, "")
	require.Error(t, err)
	mixed := []crawler.WorkUnit{testUnits[0], {Query: "tacos", LocationLabel: "Cass", StateCode: "IL"}}
	_, err = a.Crawl(context.Background(), mixed, "")
	require.ErrorContains(t, err, "does not match")
}

func TestNewFailsFast(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1", "")
	cfg.Proxy = config.ProxyConfig{Enabled: true, User: "u", Pass: "p"}
	_, err := app.New(context.Background(), cfg, nil, app.WithRegisterer(prometheus.NewRegistry()))
	require.ErrorContains(t, err, "init fetcher")

	cfg = testConfig(t, "http://127.0.0.1:1", "")
	require.NoError(t, os.WriteFile(cfg.Geocode.CachePath, []byte("{broken"), 0o600))
	_, err = app.New(context.Background(), cfg, nil, app.WithRegisterer(prometheus.NewRegistry()))
	require.ErrorContains(t, err, "geocode cache")
}
