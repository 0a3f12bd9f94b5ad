package crawler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingPauser struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (p *recordingPauser) Pause(_ context.Context, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delays = append(p.delays, d)
}

func (p *recordingPauser) recorded() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.delays...)
}

// scriptedFetcher replays responses in order; the last one repeats.
type scriptedFetcher struct {
	mu        sync.Mutex
	responses []FetchResponse
	errs      []error
	requests  []FetchRequest
}

func (f *scriptedFetcher) Fetch(_ context.Context, req FetchRequest) (FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.requests)
	f.requests = append(f.requests, req)
	var err error
	if len(f.errs) > 0 {
		err = f.errs[min(i, len(f.errs)-1)]
	}
	if err != nil {
		return FetchResponse{}, err
	}
	resp := f.responses[min(i, len(f.responses)-1)]
	resp.URL = req.URL
	return resp, nil
}

func (f *scriptedFetcher) calls() []FetchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FetchRequest(nil), f.requests...)
}

// pageSource serves canned HTML by URL and counts lookups.
type pageSource struct {
	t     *testing.T
	mu    sync.Mutex
	pages map[string]string
	hits  map[string]int
}

func newPageSource(t *testing.T, pages map[string]string) *pageSource {
	t.Helper()
	return &pageSource{t: t, pages: pages, hits: map[string]int{}}
}

func (s *pageSource) Document(_ context.Context, url string) *Document {
	s.mu.Lock()
	s.hits[url]++
	body, ok := s.pages[url]
	s.mu.Unlock()
	if !ok {
		return EmptyDocument(url)
	}
	doc, err := ParseDocument(url, []byte(body))
	require.NoError(s.t, err)
	return doc
}

func (s *pageSource) hitCount(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[url]
}

func mustParse(t *testing.T, body string) *Document {
	t.Helper()
	doc, err := ParseDocument("https://example.test/page", []byte(body))
	require.NoError(t, err)
	return doc
}
