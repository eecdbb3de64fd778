// Package syncbridge lets a test wait for the form under test to finish its background work.
//
// The form owns its busy indicator; this package only reads it, through a Probe, and polls
// until it reports idle.
package syncbridge

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultTimeout is used by WaitUntilIdle when no timeout is given.
	DefaultTimeout = time.Second * 5

	// DefaultPollInterval is the delay between two probes.
	DefaultPollInterval = time.Millisecond * 20

	// CodeSyncTimeout identifies SyncTimeoutError on the wire.
	CodeSyncTimeout = "SYNC_TIMEOUT"
)

// State is a point-in-time reading of the busy indicator.
type State struct {
	Busy        bool
	Reason      string
	PendingJobs int
}

// Probe reads the busy indicator.
type Probe interface {
	Busy(ctx context.Context) (State, error)
}

// ProbeFunc adapts a function to a Probe.
type ProbeFunc func(ctx context.Context) (State, error)

func (f ProbeFunc) Busy(ctx context.Context) (State, error) { return f(ctx) }

// SyncTimeoutError means the form was still busy when the timeout elapsed.
type SyncTimeoutError struct {
	Timeout time.Duration
	Last    State
}

func (e *SyncTimeoutError) Error() string {
	return fmt.Sprintf("form was still busy after %s (%d pending jobs: %s)", e.Timeout, e.Last.PendingJobs, e.Last.Reason)
}

func (e *SyncTimeoutError) Code() string { return CodeSyncTimeout }

// Bridge polls a Probe.
type Bridge struct {
	probe    Probe
	interval time.Duration
}

// New creates a Bridge. A zero interval means DefaultPollInterval.
func New(probe Probe, interval time.Duration) *Bridge {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Bridge{probe: probe, interval: interval}
}

// IsBusy returns the current reading.
func (b *Bridge) IsBusy(ctx context.Context) (bool, error) {
	s, err := b.probe.Busy(ctx)
	return s.Busy, err
}

// WaitUntilIdle polls until the probe reports idle. It returns nil only if the last reading
// was idle. If timeout elapses first it returns *SyncTimeoutError with the last reading; a
// zero timeout means DefaultTimeout. A probe error or context cancellation ends the wait
// immediately.
func (b *Bridge) WaitUntilIdle(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		state, err := b.probe.Busy(ctx)
		if err != nil {
			return err
		}
		if !state.Busy {
			return nil
		}
		select {
		case <-deadline.C:
			return &SyncTimeoutError{Timeout: timeout, Last: state}
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
