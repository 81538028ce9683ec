package resolver

import "sync"

// queue is an unbounded event queue. push never blocks, so a store may call
// back synchronously from inside Subscribe while the loop is mid-event.
type queue struct {
	mu     sync.Mutex
	items  []any
	signal chan struct{}
}

func newQueue() *queue {
	return &queue{signal: make(chan struct{}, 1)}
}

func (q *queue) push(ev any) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *queue) wait() <-chan struct{} {
	return q.signal
}

func (q *queue) drain() []any {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}
