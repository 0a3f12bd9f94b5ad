package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterSpacesSequentialCalls(t *testing.T) {
	l := New(Config{Name: "test", MinInterval: 50 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	require.Less(t, time.Since(start), 20*time.Millisecond, "first call is immediate")

	require.NoError(t, l.Wait(ctx))
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestLimiterIsSharedAcrossGoroutines(t *testing.T) {
	const interval = 30 * time.Millisecond
	l := New(Config{MinInterval: interval})

	var (
		mu    sync.Mutex
		times []time.Time
		wg    sync.WaitGroup
	)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Wait(context.Background()))
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	first, last := times[0], times[0]
	for _, ts := range times {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	// five calls need at least four intervals between them
	require.GreaterOrEqual(t, last.Sub(first), 4*interval-10*time.Millisecond)
}

func TestLimiterDisabledAndCancelled(t *testing.T) {
	open := New(Config{})
	for range 100 {
		require.NoError(t, open.Wait(context.Background()))
	}

	l := New(Config{MinInterval: time.Hour})
	require.NoError(t, l.Wait(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, l.Wait(ctx), context.Canceled)
}
