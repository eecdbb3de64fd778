package mocking

import (
	"context"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// State is the lifecycle state of a PendingMock.
type State int

const (
	StatePending State = iota
	StateResolved
	StateRejected
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateRejected:
		return "rejected"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

type outcome struct {
	response Response
	err      error
}

// PendingMock is a controllable stand-in for one intercepted call.
//
// It can be settled before or after a call binds to it. The outcome is buffered, so whichever
// happens second completes the call. Resolve and Reject may be called at most once in total.
type PendingMock struct {
	id      int
	key     Key
	owner   *Registry
	queue   *Queue
	state   State
	bound   bool
	outcome chan outcome
}

func newPendingMock(owner *Registry, id int, key Key, queue *Queue) *PendingMock {
	return &PendingMock{
		id:      id,
		key:     key,
		owner:   owner,
		queue:   queue,
		outcome: make(chan outcome, 1),
	}
}

// ID returns the registry-unique ID of the mock.
func (m *PendingMock) ID() int { return m.id }

// Key returns the key the mock was registered under.
func (m *PendingMock) Key() Key { return m.key }

// State returns the current state.
func (m *PendingMock) State() State {
	m.owner.lock.Lock()
	defer m.owner.lock.Unlock()
	return m.state
}

// Bound returns true if a call has been bound to the mock.
func (m *PendingMock) Bound() bool {
	m.owner.lock.Lock()
	defer m.owner.lock.Unlock()
	return m.bound
}

// Resolve fulfills the mock. If raw is true the payload is delivered verbatim as the response
// envelope; otherwise it is wrapped in the default success envelope.
func (m *PendingMock) Resolve(payload ldvalue.Value, raw bool) error {
	envelope := payload
	if !raw {
		envelope = WrapSuccess(payload)
	}
	return m.settle(StateResolved, outcome{response: ResponseFromEnvelope(envelope)})
}

// Reject fails the mock. The bound call receives a *CallRejectedError carrying the payload.
func (m *PendingMock) Reject(payload ldvalue.Value, raw bool) error {
	return m.settle(StateRejected, outcome{err: &CallRejectedError{Key: m.key, Payload: payload, Raw: raw}})
}

// Remove removes the mock from its registry. See Registry.RemoveMock.
func (m *PendingMock) Remove() {
	_ = m.owner.RemoveMock(m.id)
}

func (m *PendingMock) settle(state State, o outcome) error {
	m.owner.lock.Lock()
	if m.state != StatePending {
		current := m.state
		m.owner.lock.Unlock()
		return &MockSettledError{Key: m.key, MockID: m.id, State: current}
	}
	m.state = state
	m.outcome <- o
	m.owner.lock.Unlock()

	m.owner.emit(Event{Kind: EventSettled, Key: m.key, MockID: m.id, State: state})
	return nil
}

// markRemovedLocked releases a bound or future call with MockRemovedError. It does nothing
// to a mock that was already settled. The registry lock must be held.
func (m *PendingMock) markRemovedLocked() bool {
	if m.state != StatePending {
		return false
	}
	m.state = StateRemoved
	m.outcome <- outcome{err: &MockRemovedError{Key: m.key, MockID: m.id}}
	return true
}

func (m *PendingMock) await(ctx context.Context) (Response, error) {
	select {
	case o := <-m.outcome:
		return o.response, o.err
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}
