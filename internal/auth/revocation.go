package auth

import "sync"

// RevocationRegistry stores revoked token identifiers (or raw tokens when no
// identifier is present). The set grows monotonically; entries are never
// pruned in the baseline deployment, so a restart silently forgets
// revocations unless a durable implementation is substituted.
type RevocationRegistry interface {
	Add(id string)
	Contains(id string) bool
}

// MemoryRevocations is the process-local registry used in single-instance
// deployments.
type MemoryRevocations struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewMemoryRevocations returns an empty registry.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{ids: make(map[string]struct{})}
}

func (r *MemoryRevocations) Add(id string) {
	if id == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[id] = struct{}{}
}

func (r *MemoryRevocations) Contains(id string) bool {
	if id == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok
}

// Len reports the number of revoked entries.
func (r *MemoryRevocations) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}
