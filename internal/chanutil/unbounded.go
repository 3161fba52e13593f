// Package chanutil provides the unbounded-channel primitive several of
// camsync's manager loops rely on (spec §4.E, §4.G, §5: "senders never
// block"). No library in the dependency set offers this — it's a small
// enough piece of concurrency plumbing that pulling in a queue library
// for it isn't worth the dependency.
package chanutil

import "sync"

// Unbounded is a FIFO queue of T with a non-blocking Send and a channel
// Receive() consumers can range/select over. Internally it buffers
// pending values in a slice guarded by a mutex and forwards them to a
// single-slot channel via one forwarding goroutine per queue.
type Unbounded[T any] struct {
	mu      sync.Mutex
	pending []T
	out     chan T
	signal  chan struct{}
}

// NewUnbounded constructs an empty queue and starts its forwarding
// goroutine. Callers should not reuse a queue after use ends; there is no
// Close, since every consumer here ranges over Receive() until its owning
// goroutine exits.
func NewUnbounded[T any]() *Unbounded[T] {
	q := &Unbounded[T]{
		out:    make(chan T),
		signal: make(chan struct{}, 1),
	}
	go q.forward()
	return q
}

// Send enqueues v. Never blocks the caller.
func (q *Unbounded[T]) Send(v T) {
	q.mu.Lock()
	q.pending = append(q.pending, v)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Receive returns the channel consumers read from.
func (q *Unbounded[T]) Receive() <-chan T {
	return q.out
}

func (q *Unbounded[T]) forward() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			<-q.signal
			continue
		}
		v := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.out <- v
	}
}
