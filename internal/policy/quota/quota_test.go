package quota

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGateStopsAtMax(t *testing.T) {
	t.Parallel()

	g := New(2)
	require.NoError(t, g.Acquire())
	require.NoError(t, g.Acquire())
	require.ErrorIs(t, g.Acquire(), ErrExhausted)
	require.EqualValues(t, 2, g.Used())
	require.EqualValues(t, 0, g.Remaining())
}

func TestGateUnlimited(t *testing.T) {
	t.Parallel()

	g := New(0)
	for range 10 {
		require.NoError(t, g.Acquire())
	}
	require.EqualValues(t, 10, g.Used())
	require.EqualValues(t, -1, g.Remaining())

	var nilGate *Gate
	require.NoError(t, nilGate.Acquire())
	require.Zero(t, nilGate.Used())
}

func TestGateConcurrentAcquire(t *testing.T) {
	t.Parallel()

	g := New(25)
	var granted atomic.Int64
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Acquire() == nil {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 25, granted.Load())
}
