package numbering

import (
	"context"
	"sync"
)

// MemorySequence is a mutex-guarded in-process Sequence. Tests and the
// in-memory repositories use it in place of the Postgres counter.
type MemorySequence struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMemorySequence constructs an empty MemorySequence.
func NewMemorySequence() *MemorySequence {
	return &MemorySequence{counters: make(map[string]int64)}
}

// Next implements Sequence.
func (s *MemorySequence) Next(_ context.Context, kind Kind, year int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := Format(kind, year, 0)
	s.counters[key]++
	return Format(kind, year, s.counters[key]), nil
}
