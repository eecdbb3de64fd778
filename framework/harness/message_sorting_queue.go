package harness

import (
	"sort"
	"sync"
)

// MessageSortingQueue delivers numbered callback messages in counter order.
//
// The page service numbers its callbacks 1, 2, 3... but sends each one in its own HTTP
// request, so they can arrive out of order. Accept holds back any message whose predecessor
// has not arrived yet; C yields messages strictly in sequence.
type MessageSortingQueue struct {
	C           chan []byte
	lastCounter int
	deferred    []deferredMessage
	closed      bool
	lock        sync.Mutex
}

type deferredMessage struct {
	counter int
	message []byte
}

func NewMessageSortingQueue(channelSize int) *MessageSortingQueue {
	return &MessageSortingQueue{C: make(chan []byte, channelSize)}
}

// Accept adds a message. It returns false if the counter was already seen or the queue is closed.
func (q *MessageSortingQueue) Accept(counter int, message []byte) bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.closed || counter <= q.lastCounter {
		return false
	}
	if counter > q.lastCounter+1 {
		for _, d := range q.deferred {
			if d.counter == counter {
				return false
			}
		}
		q.deferred = append(q.deferred, deferredMessage{counter: counter, message: message})
		sort.Slice(q.deferred, func(i, j int) bool { return q.deferred[i].counter < q.deferred[j].counter })
		return true
	}
	q.lastCounter = counter
	q.C <- message
	for len(q.deferred) > 0 && q.deferred[0].counter == q.lastCounter+1 {
		next := q.deferred[0]
		q.deferred = q.deferred[1:]
		q.lastCounter++
		q.C <- next.message
	}
	return true
}

// Deferred returns the messages that are waiting for a predecessor.
func (q *MessageSortingQueue) Deferred() [][]byte {
	q.lock.Lock()
	ret := make([][]byte, 0, len(q.deferred))
	for _, d := range q.deferred {
		ret = append(ret, d.message)
	}
	q.lock.Unlock()
	return ret
}

// Close closes C. Messages accepted afterward are dropped.
func (q *MessageSortingQueue) Close() {
	q.lock.Lock()
	defer q.lock.Unlock()
	if !q.closed {
		q.closed = true
		close(q.C)
	}
}
