package syncbridge

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingProbe(busyReadings int32) (Probe, *int32) {
	var calls int32
	return ProbeFunc(func(context.Context) (State, error) {
		n := atomic.AddInt32(&calls, 1)
		if n <= busyReadings {
			return State{Busy: true, Reason: "geocode", PendingJobs: 1}, nil
		}
		return State{}, nil
	}), &calls
}

func TestWaitUntilIdleReturnsWhenIdle(t *testing.T) {
	probe, calls := countingProbe(3)
	b := New(probe, time.Millisecond)

	require.NoError(t, b.WaitUntilIdle(context.Background(), time.Second))
	assert.Equal(t, int32(4), atomic.LoadInt32(calls))

	busy, err := b.IsBusy(context.Background())
	require.NoError(t, err)
	assert.False(t, busy)
}

func TestWaitUntilIdleTimesOutWithLastReason(t *testing.T) {
	probe := ProbeFunc(func(context.Context) (State, error) {
		return State{Busy: true, Reason: "autosuggest /autocomplete/taxon", PendingJobs: 2}, nil
	})
	b := New(probe, time.Millisecond)

	err := b.WaitUntilIdle(context.Background(), 30*time.Millisecond)
	var ste *SyncTimeoutError
	require.ErrorAs(t, err, &ste)
	assert.Equal(t, 2, ste.Last.PendingJobs)
	assert.Equal(t, "autosuggest /autocomplete/taxon", ste.Last.Reason)
	assert.Equal(t, CodeSyncTimeout, ste.Code())
	assert.Contains(t, err.Error(), "2 pending jobs")
}

func TestWaitUntilIdleStopsOnProbeError(t *testing.T) {
	probeErr := errors.New("page closed")
	b := New(ProbeFunc(func(context.Context) (State, error) { return State{}, probeErr }), 0)
	assert.Equal(t, probeErr, b.WaitUntilIdle(context.Background(), time.Second))
}

func TestWaitUntilIdleStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	probe := ProbeFunc(func(context.Context) (State, error) {
		cancel()
		return State{Busy: true}, nil
	})
	err := New(probe, time.Millisecond).WaitUntilIdle(ctx, time.Second)
	assert.Equal(t, context.Canceled, err)
}
