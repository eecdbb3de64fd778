package mocking

// Queue is an ordered sequence of PendingMocks registered under one key.
//
// Calls bind to mocks in the order the mocks were created, whatever order the calls arrive
// in. In rendezvous mode a call that arrives before its mock exists waits until Create is
// called; otherwise it fails with QueueExhaustionError.
type Queue struct {
	id      int
	key     Key
	owner   *Registry
	slots   []*PendingMock
	cursor  int
	waiters []chan *PendingMock
	removed bool
}

// ID returns the registry-unique ID of the queue.
func (q *Queue) ID() int { return q.id }

// Key returns the key the queue was registered under.
func (q *Queue) Key() Key { return q.key }

// Create allocates the next PendingMock. If a call is already waiting, the new mock is bound
// to the call that has waited longest.
func (q *Queue) Create() (*PendingMock, error) {
	r := q.owner
	r.lock.Lock()
	if q.removed {
		r.lock.Unlock()
		return nil, &UnknownMockError{ID: q.id}
	}
	r.lastID++
	m := newPendingMock(r, r.lastID, q.key, q)
	r.mocks[m.id] = m
	q.slots = append(q.slots, m)

	var waiter chan *PendingMock
	if len(q.waiters) > 0 {
		waiter = q.waiters[0]
		q.waiters = q.waiters[1:]
		q.cursor++
		m.bound = true
		waiter <- m
	}
	r.lock.Unlock()

	r.logger.Printf("Created mock %d in queue %d for %s", m.id, q.id, q.key)
	return m, nil
}

// Remove removes the whole queue. See Registry.Remove.
func (q *Queue) Remove() {
	q.owner.removeQueue(q)
}

// Len returns the number of mocks created so far.
func (q *Queue) Len() int {
	q.owner.lock.Lock()
	defer q.owner.lock.Unlock()
	return len(q.slots)
}

// Consumed returns the number of mocks that calls have been bound to.
func (q *Queue) Consumed() int {
	q.owner.lock.Lock()
	defer q.owner.lock.Unlock()
	return q.cursor
}

// Waiting returns the number of calls waiting for a mock to be created.
func (q *Queue) Waiting() int {
	q.owner.lock.Lock()
	defer q.owner.lock.Unlock()
	return len(q.waiters)
}

// takeLocked binds an arriving call. It returns either a mock or a channel on which the mock
// will be delivered; the channel is closed if the queue is removed first.
func (q *Queue) takeLocked(rendezvous bool, capacity int) (*PendingMock, chan *PendingMock, error) {
	if q.cursor < len(q.slots) {
		m := q.slots[q.cursor]
		q.cursor++
		m.bound = true
		return m, nil, nil
	}
	if !rendezvous {
		return nil, nil, &QueueExhaustionError{Key: q.key, Created: len(q.slots)}
	}
	if len(q.waiters) >= capacity {
		return nil, nil, &QueueExhaustionError{Key: q.key, Created: len(q.slots), Waiting: len(q.waiters)}
	}
	ch := make(chan *PendingMock, 1)
	q.waiters = append(q.waiters, ch)
	return nil, ch, nil
}

// abandonLocked withdraws a waiting call, e.g. when its context is cancelled. It returns
// false if the waiter was already served.
func (q *Queue) abandonLocked(ch chan *PendingMock) bool {
	for i, w := range q.waiters {
		if w == ch {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			return true
		}
	}
	return false
}
