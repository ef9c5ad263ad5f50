package ratelimit

import (
	"sync"
	"time"
)

// CounterStore holds fixed-window counters. Implementations must support
// concurrent increments without lost updates, and sweeps must never drop a
// counter for a current window.
type CounterStore interface {
	// Incr adds one to the counter and returns the new value.
	Incr(key Key) (int64, error)
	// Sweep removes counters whose window index precedes the window
	// containing now. It returns the number of counters removed.
	Sweep(now time.Time) (int, error)
}

// MemoryStore is the process-local counter table used in single-instance
// deployments. Counters live for the process lifetime and reset on restart.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[Key]int64
}

// NewMemoryStore returns an empty counter table.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[Key]int64)}
}

func (s *MemoryStore) Incr(key Key) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key]++
	return s.counters[key], nil
}

func (s *MemoryStore) Sweep(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key := range s.counters {
		if key.Index < key.Window.IndexAt(now) {
			delete(s.counters, key)
			removed++
		}
	}
	return removed, nil
}

// Count reads a counter without incrementing it.
func (s *MemoryStore) Count(key Key) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[key]
}

// Len reports the number of live counters.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}
