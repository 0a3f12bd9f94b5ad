package crawler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/localbiz-crawler/internal/progress"
)

type captureEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (c *captureEmitter) Emit(evt progress.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *captureEmitter) stages() []progress.Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]progress.Stage, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Stage)
	}
	return out
}

func TestRetrierAlways503MakesExactlyMaxAttempts(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{responses: []FetchResponse{{StatusCode: http.StatusServiceUnavailable}}}
	pauser := &recordingPauser{}
	r := NewRetrier(fetcher, RetrierOptions{Policy: DefaultBackoffPolicy(), Pauser: pauser})

	doc := r.Document(context.Background(), "https://search.example/search?q=x")
	require.True(t, doc.Empty())
	require.Len(t, fetcher.calls(), 3)

	delays := pauser.recorded()
	require.Len(t, delays, 2, "no sleep after the final attempt")
	require.GreaterOrEqual(t, delays[0], 2*time.Second+300*time.Millisecond)
	require.GreaterOrEqual(t, delays[1], 4*time.Second+300*time.Millisecond)
	require.Greater(t, delays[1], delays[0])
}

func TestRetrierRecoversAfterBlockPage(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{responses: []FetchResponse{
		{StatusCode: http.StatusOK, Body: []byte("<html>Our systems have detected unusual traffic</html>")},
		{StatusCode: http.StatusTooManyRequests},
		{StatusCode: http.StatusOK, Body: []byte(resultsPage)},
	}}
	pauser := &recordingPauser{}
	r := NewRetrier(fetcher, RetrierOptions{Pauser: pauser})

	doc := r.Document(context.Background(), "https://search.example/search?q=x")
	require.False(t, doc.Empty())
	require.Equal(t, []string{"111", "222"}, ExtractListingIDs(doc, Selectors{}))
	require.Len(t, pauser.recorded(), 2)
}

func TestRetrierRotatesIdentityPerAttempt(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{responses: []FetchResponse{{StatusCode: http.StatusInternalServerError}}}
	r := NewRetrier(fetcher, RetrierOptions{
		Policy:     BackoffPolicy{MaxAttempts: 40, Base: 1},
		Identities: NewIdentityPool([]string{"ua-1", "ua-2"}),
		Pauser:     &recordingPauser{},
	})
	r.Document(context.Background(), "https://search.example/")

	agents := map[string]int{}
	for _, req := range fetcher.calls() {
		agents[req.Headers.Get("User-Agent")]++
		require.False(t, req.Direct)
	}
	require.Len(t, agents, 2, "both identities should be drawn across 40 attempts")
}

func TestRetrierNetworkErrorsAreWrapped(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{errs: []error{errors.New("dial tcp: connection refused")}}
	r := NewRetrier(fetcher, RetrierOptions{Policy: BackoffPolicy{MaxAttempts: 1}, Pauser: &recordingPauser{}})

	_, err := r.attempt(context.Background(), "https://search.example/", false)
	require.ErrorIs(t, err, ErrNetwork)
	require.True(t, r.Document(context.Background(), "https://search.example/").Empty())
}

func TestRetrierDirectFallback(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{responses: []FetchResponse{
		{StatusCode: http.StatusForbidden},
		{StatusCode: http.StatusForbidden},
		{StatusCode: http.StatusOK, Body: []byte(detailPage)},
	}}
	r := NewRetrier(fetcher, RetrierOptions{
		Policy:         BackoffPolicy{MaxAttempts: 2, Base: 1},
		Pauser:         &recordingPauser{},
		DirectFallback: true,
	})

	doc := r.Document(context.Background(), "https://search.example/detail")
	require.False(t, doc.Empty())
	calls := fetcher.calls()
	require.Len(t, calls, 3)
	require.True(t, calls[2].Direct)
}

func TestRetrierReportsFetchUsage(t *testing.T) {
	t.Parallel()

	emitter := &captureEmitter{}
	fetcher := &scriptedFetcher{responses: []FetchResponse{
		{StatusCode: http.StatusOK, Body: []byte("<html></html>"), Proxied: true, ContentLength: 2048},
	}}
	r := NewRetrier(fetcher, RetrierOptions{
		Pauser:   &recordingPauser{},
		Reporter: &progress.Reporter{RunID: progress.NewRunID(), Emitter: emitter},
	})
	r.Document(context.Background(), "https://search.example/")

	require.Equal(t, []progress.Stage{progress.StageFetchDone}, emitter.stages())
	evt := emitter.events[0]
	require.EqualValues(t, 2048, evt.Bytes)
	require.True(t, evt.Proxied)
	require.Equal(t, progress.Status2xx, evt.StatusClass)
	require.NoError(t, evt.Validate())
}

func TestRetrierStopsOnCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fetcher := &scriptedFetcher{errs: []error{context.Canceled}}
	r := NewRetrier(fetcher, RetrierOptions{Pauser: &recordingPauser{}, DirectFallback: true})

	require.True(t, r.Document(ctx, "https://search.example/").Empty())
	require.Len(t, fetcher.calls(), 1)
}
