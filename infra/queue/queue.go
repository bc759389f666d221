package queue

import (
	"sync"

	"github.com/cockroachdb/errors"
	ring "github.com/eapache/queue"
)

// ErrClosed is returned by Push once Shutdown has been called.
var ErrClosed = errors.New("queue: closed")

// Queue is an unbounded multi-producer / multi-consumer FIFO.
//
// Ownership of a pushed item moves to the queue and then to exactly one
// consumer. Shutdown is one-way: blocked consumers are woken, drain what is
// left, and then observe closure.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  *ring.Queue
	closed bool
}

func New[T any]() *Queue[T] {
	q := &Queue[T]{items: ring.New()}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends item and wakes one waiting consumer.
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items.Add(item)
	q.mu.Unlock()

	q.cond.Signal()
	return nil
}

// WaitAndPop blocks until an item is available or the queue is shut down.
// ok is false only when the queue is closed and empty; that is the
// termination signal for consumer loops.
func (q *Queue[T]) WaitAndPop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Length() == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.items.Length() == 0 {
		return item, false
	}
	return q.items.Remove().(T), true
}

// TryPop returns the head without blocking.
func (q *Queue[T]) TryPop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Length() == 0 {
		return item, false
	}
	return q.items.Remove().(T), true
}

// Shutdown closes the queue and wakes every waiter. Safe to call repeatedly.
func (q *Queue[T]) Shutdown() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.cond.Broadcast()
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
