package queue

import "sync"

// Latest holds at most one pending value. Update overwrites whatever the
// consumer has not taken yet, so a slow reader only ever sees the newest
// state and never a backlog.
type Latest[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	value   T
	pending bool
	stopped bool
}

func NewLatest[T any]() *Latest[T] {
	l := &Latest[T]{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Update replaces the pending value and wakes all waiters.
func (l *Latest[T]) Update(v T) {
	l.mu.Lock()
	l.value = v
	l.pending = true
	l.mu.Unlock()

	l.cond.Broadcast()
}

// WaitForUpdate blocks until a value is pending or the channel is shut
// down. After Shutdown it returns false even if a value is still pending.
func (l *Latest[T]) WaitForUpdate() (v T, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for !l.pending && !l.stopped {
		l.cond.Wait()
	}
	if l.stopped {
		return v, false
	}

	v = l.value
	var zero T
	l.value = zero
	l.pending = false
	return v, true
}

// Pending reports whether an unconsumed value is waiting.
func (l *Latest[T]) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

func (l *Latest[T]) Shutdown() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()

	l.cond.Broadcast()
}
