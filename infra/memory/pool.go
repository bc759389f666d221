package memory

import (
	"sync"
	"sync/atomic"
)

// Pool is a typed wrapper over sync.Pool. Objects handed to Put must no
// longer be referenced anywhere else. Idle objects may be dropped at GC.
type Pool[T any] struct {
	p     sync.Pool
	clear func(*T)

	gets atomic.Uint64
	news atomic.Uint64
}

// NewPool builds a pool. clear, if not nil, runs on every object put back
// so stale references do not outlive their owner.
func NewPool[T any](clear func(*T)) *Pool[T] {
	pl := &Pool[T]{clear: clear}
	pl.p.New = func() any {
		pl.news.Add(1)
		return new(T)
	}
	return pl
}

func (p *Pool[T]) Get() *T {
	p.gets.Add(1)
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	if p.clear != nil {
		p.clear(v)
	}
	p.p.Put(v)
}

// Stats reports how many objects were requested and how many of those had
// to be allocated.
func (p *Pool[T]) Stats() (gets, allocs uint64) {
	return p.gets.Load(), p.news.Load()
}
