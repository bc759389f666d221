package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing ids starting at 1.
//
// The engine owns one sequencer per id space (orders, trades, events) and
// the inbound gateway owns one for WAL records. Nothing is global, so a test
// can build a fresh sequencer or seed one to a known value.
type Sequencer struct {
	last atomic.Uint64
}

// New creates a sequencer whose first Next returns start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

// Next returns the next id. Safe for concurrent use.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued id, 0 if none.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Seed moves the sequencer so the next id is v+1. Used by tests and after
// scanning an existing WAL.
func (s *Sequencer) Seed(v uint64) {
	s.last.Store(v)
}
