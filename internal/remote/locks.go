package remote

import "sync"

// HostLocks serializes work per host. At most one holder per key runs at a
// time; different keys never block each other.
type HostLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewHostLocks returns an empty lock table.
func NewHostLocks() *HostLocks {
	return &HostLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until key is free and returns the matching unlock.
func (h *HostLocks) Lock(key string) func() {
	h.mu.Lock()
	m, ok := h.locks[key]
	if !ok {
		m = &sync.Mutex{}
		h.locks[key] = m
	}
	h.mu.Unlock()

	m.Lock()
	return m.Unlock
}
