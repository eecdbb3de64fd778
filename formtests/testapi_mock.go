package formtests

import (
	"fmt"
	"sync"

	"github.com/laji-form/mock-contract-tests/framework/ldtest"
	"github.com/laji-form/mock-contract-tests/mocking"
	"github.com/laji-form/mock-contract-tests/servicedef"

	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Mock controls one pending mock in the page.
type Mock struct {
	page    *Page
	id      int
	key     mocking.Key
	queue   *MockQueue
	removed bool
	lock    sync.Mutex
}

// ID returns the page's ID for the mock.
func (m *Mock) ID() int { return m.id }

// Key returns the key the mock was registered for.
func (m *Mock) Key() mocking.Key { return m.key }

// Resolve makes the bound call succeed. Unless raw is true the payload is wrapped in the
// default success envelope.
func (m *Mock) Resolve(t *ldtest.T, payload ldvalue.Value, raw bool) {
	require.NoError(t, m.TryResolve(payload, raw))
}

// Reject makes the bound call fail. Unless raw is true the payload is wrapped in the default
// failure envelope.
func (m *Mock) Reject(t *ldtest.T, payload ldvalue.Value, raw bool) {
	require.NoError(t, m.TryReject(payload, raw))
}

// TryResolve is Resolve returning the error, such as *mocking.MockSettledError.
func (m *Mock) TryResolve(payload ldvalue.Value, raw bool) error {
	return m.settle(servicedef.CommandResolveMock, payload, raw)
}

// TryReject is Reject returning the error.
func (m *Mock) TryReject(payload ldvalue.Value, raw bool) error {
	return m.settle(servicedef.CommandRejectMock, payload, raw)
}

func (m *Mock) settle(command string, payload ldvalue.Value, raw bool) error {
	return m.page.send(servicedef.CommandParams{
		Command: command,
		Settle:  &servicedef.SettleParams{MockID: m.id, Payload: payload, Raw: raw},
	}, nil)
}

// Remove discards the mock. A call still waiting on it fails with MockRemovedError. For a
// single mock this also frees its key. Removing twice is harmless.
func (m *Mock) Remove(t *ldtest.T) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.removed || (m.queue != nil && m.queue.isRemoved()) {
		return
	}
	require.NoError(t, m.page.send(servicedef.CommandParams{
		Command: servicedef.CommandRemoveMock,
		Mock:    &servicedef.MockParams{MockID: m.id},
	}, nil))
	m.removed = true
}

func (m *Mock) isRemoved() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.removed || (m.queue != nil && m.queue.isRemoved())
}

func (m *Mock) markRemoved() {
	m.lock.Lock()
	m.removed = true
	m.lock.Unlock()
}

func (m *Mock) describe() string {
	return fmt.Sprintf("mock %d for %s", m.id, m.key)
}

// MockQueue controls a queue of mocks for one key. Calls bind to mocks in the order the mocks
// were created.
type MockQueue struct {
	page    *Page
	id      int
	key     mocking.Key
	removed bool
	lock    sync.Mutex
}

// Key returns the key the queue was registered for.
func (q *MockQueue) Key() mocking.Key { return q.key }

// Create adds a mock at the end of the queue. If a call is already waiting, it binds to it.
func (q *MockQueue) Create(t *ldtest.T) *Mock {
	var rep servicedef.MockRep
	require.NoError(t, q.page.send(servicedef.CommandParams{
		Command: servicedef.CommandCreateQueueMock,
		Mock:    &servicedef.MockParams{QueueID: q.id},
	}, &rep))
	return &Mock{page: q.page, id: rep.MockID, key: q.key, queue: q}
}

// Remove discards the queue and every mock in it.
func (q *MockQueue) Remove(t *ldtest.T) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.removed {
		return
	}
	require.NoError(t, q.page.send(servicedef.CommandParams{
		Command: servicedef.CommandRemoveQueue,
		Mock:    &servicedef.MockParams{QueueID: q.id},
	}, nil))
	q.removed = true
}

func (q *MockQueue) isRemoved() bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.removed
}

func (q *MockQueue) markRemoved() {
	q.lock.Lock()
	q.removed = true
	q.lock.Unlock()
}

func (q *MockQueue) describe() string {
	return fmt.Sprintf("mock queue %d for %s", q.id, q.key)
}
