package mocking

import "context"

// EventKind describes what happened to a call or mock.
type EventKind string

const (
	// EventBound means a call was bound to a mock.
	EventBound EventKind = "bound"
	// EventWaiting means a queued call is waiting for Create.
	EventWaiting EventKind = "waiting"
	// EventUnmatched means no mock matched and the call fell through or failed closed.
	EventUnmatched EventKind = "unmatched"
	// EventFailed means routing failed, e.g. with QueueExhaustionError.
	EventFailed EventKind = "failed"
	// EventSettled means a mock was resolved, rejected or removed.
	EventSettled EventKind = "settled"
)

// Event is reported to the registry observer and to route listeners.
type Event struct {
	Kind   EventKind
	Key    Key
	MockID int
	State  State
	Err    error
}

type routeListenerKey struct{}

// WithRouteListener returns a context that makes the Interceptor report the routing decision
// for a call made with it. The listener is called once, from the calling goroutine, before
// the call suspends.
func WithRouteListener(ctx context.Context, listener func(Event)) context.Context {
	return context.WithValue(ctx, routeListenerKey{}, listener)
}

func routeListener(ctx context.Context) func(Event) {
	if l, ok := ctx.Value(routeListenerKey{}).(func(Event)); ok {
		return l
	}
	return nil
}
