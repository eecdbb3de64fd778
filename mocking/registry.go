package mocking

import (
	"sync"

	"github.com/laji-form/mock-contract-tests/framework"
)

// DefaultQueueCapacity is the default maximum number of calls that may wait on one queue.
const DefaultQueueCapacity = 64

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Rendezvous lets a queued call wait for Create when it arrives before its mock exists.
	Rendezvous bool

	// QueueCapacity bounds the number of waiting calls per queue. Zero means DefaultQueueCapacity.
	QueueCapacity int

	// Observer, if set, receives every routing and settlement event. It is called without
	// the registry lock held.
	Observer func(Event)

	Logger framework.Logger
}

// Registry maps keys to a single mock or a queue of mocks.
//
// A Registry belongs to one test session; nothing in it outlives the session. All methods
// are safe for concurrent use.
type Registry struct {
	routes        map[string][]*route
	mocks         map[int]*PendingMock
	queues        map[int]*Queue
	lastID        int
	rendezvous    bool
	queueCapacity int
	observer      func(Event)
	logger        framework.Logger
	lock          sync.Mutex
}

type route struct {
	key    Key
	single *PendingMock
	queue  *Queue
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if opts.Logger == nil {
		opts.Logger = framework.NullLogger()
	}
	return &Registry{
		routes:        make(map[string][]*route),
		mocks:         make(map[int]*PendingMock),
		queues:        make(map[int]*Queue),
		rendezvous:    opts.Rendezvous,
		queueCapacity: opts.QueueCapacity,
		observer:      opts.Observer,
		logger:        opts.Logger,
	}
}

// Register creates a single mock for a key. It fails with DuplicateMockError if the key is
// already occupied.
func (r *Registry) Register(key Key) (*PendingMock, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.findLocked(key) != nil {
		return nil, &DuplicateMockError{Key: key}
	}
	r.lastID++
	m := newPendingMock(r, r.lastID, key, nil)
	r.mocks[m.id] = m
	r.routes[key.Path] = append(r.routes[key.Path], &route{key: key, single: m})
	r.logger.Printf("Registered mock %d for %s", m.id, key)
	return m, nil
}

// RegisterQueue creates an empty mock queue for a key. It fails with DuplicateMockError if the
// key is already occupied.
func (r *Registry) RegisterQueue(key Key) (*Queue, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.findLocked(key) != nil {
		return nil, &DuplicateMockError{Key: key}
	}
	r.lastID++
	q := &Queue{id: r.lastID, key: key, owner: r}
	r.queues[q.id] = q
	r.routes[key.Path] = append(r.routes[key.Path], &route{key: key, queue: q})
	r.logger.Printf("Registered mock queue %d for %s", q.id, key)
	return q, nil
}

// Mock returns a mock by ID.
func (r *Registry) Mock(id int) (*PendingMock, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if m, ok := r.mocks[id]; ok {
		return m, nil
	}
	return nil, &UnknownMockError{ID: id}
}

// Queue returns a queue by ID.
func (r *Registry) Queue(id int) (*Queue, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if q, ok := r.queues[id]; ok {
		return q, nil
	}
	return nil, &UnknownMockError{ID: id}
}

// Remove detaches whatever is registered for the key. Any mock under it that is still
// pending becomes Removed, and a call bound to it or waiting on the queue is released with
// MockRemovedError. Removing a key that has nothing registered is a no-op.
func (r *Registry) Remove(key Key) {
	r.lock.Lock()
	rt := r.findLocked(key)
	r.lock.Unlock()
	switch {
	case rt == nil:
		return
	case rt.queue != nil:
		r.removeQueue(rt.queue)
	default:
		_ = r.RemoveMock(rt.single.id)
	}
}

// RemoveMock removes one mock. For a single mock the key is detached as well; for a mock
// created by a queue only that slot is removed and the queue keeps routing. Removing a
// mock twice is a no-op.
func (r *Registry) RemoveMock(id int) error {
	r.lock.Lock()
	m, ok := r.mocks[id]
	if !ok {
		r.lock.Unlock()
		return &UnknownMockError{ID: id}
	}
	if m.queue == nil {
		r.detachLocked(m.key, func(rt *route) bool { return rt.single == m })
	}
	released := m.markRemovedLocked()
	r.lock.Unlock()

	if released {
		r.logger.Printf("Removed pending mock %d for %s", m.id, m.key)
		r.emit(Event{Kind: EventSettled, Key: m.key, MockID: m.id, State: StateRemoved})
	}
	return nil
}

func (r *Registry) removeQueue(q *Queue) {
	r.lock.Lock()
	if q.removed {
		r.lock.Unlock()
		return
	}
	q.removed = true
	r.detachLocked(q.key, func(rt *route) bool { return rt.queue == q })
	var released []*PendingMock
	for _, m := range q.slots {
		if m.markRemovedLocked() {
			released = append(released, m)
		}
	}
	waiters := q.waiters
	q.waiters = nil
	for _, w := range waiters {
		close(w)
	}
	r.lock.Unlock()

	r.logger.Printf("Removed mock queue %d for %s (%d pending mocks, %d waiting calls released)",
		q.id, q.key, len(released), len(waiters))
	for _, m := range released {
		r.emit(Event{Kind: EventSettled, Key: m.key, MockID: m.id, State: StateRemoved})
	}
}

// Leaked returns the keys that are still registered.
func (r *Registry) Leaked() []Key {
	r.lock.Lock()
	defer r.lock.Unlock()
	var keys []Key
	for _, rts := range r.routes {
		for _, rt := range rts {
			keys = append(keys, rt.key)
		}
	}
	return keys
}

// Clear removes everything and returns the keys that were still registered.
func (r *Registry) Clear() []Key {
	leaked := r.Leaked()
	for _, key := range leaked {
		r.Remove(key)
	}
	return leaked
}

func (r *Registry) findLocked(key Key) *route {
	for _, rt := range r.routes[key.Path] {
		if rt.key.Equal(key) {
			return rt
		}
	}
	return nil
}

func (r *Registry) detachLocked(key Key, match func(*route) bool) {
	rts := r.routes[key.Path]
	for i, rt := range rts {
		if match(rt) {
			rts = append(rts[:i], rts[i+1:]...)
			break
		}
	}
	if len(rts) == 0 {
		delete(r.routes, key.Path)
	} else {
		r.routes[key.Path] = rts
	}
}

// binding is the result of routing one call.
type binding struct {
	mock   *PendingMock
	waitCh chan *PendingMock
	queue  *Queue
}

// bind routes a call to a mock. A nil binding with a nil error means nothing matched.
func (r *Registry) bind(key Key) (*binding, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	rt := r.findLocked(key)
	if rt == nil {
		return nil, nil
	}
	if rt.queue != nil {
		m, ch, err := rt.queue.takeLocked(r.rendezvous, r.queueCapacity)
		if err != nil {
			return nil, err
		}
		return &binding{mock: m, waitCh: ch, queue: rt.queue}, nil
	}
	if rt.single.bound {
		// a single mock serves exactly one call
		return nil, nil
	}
	rt.single.bound = true
	return &binding{mock: rt.single}, nil
}

func (r *Registry) emit(e Event) {
	if r.observer != nil {
		r.observer(e)
	}
}
