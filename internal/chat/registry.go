package chat

import (
	"slices"
	"sync"
)

// Registry holds the display names and network addresses of active sessions.
// Each set has its own lock, held only for a single check, insert or remove.
type Registry struct {
	names     guardedSet
	addresses guardedSet
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		names:     guardedSet{items: make(map[string]struct{})},
		addresses: guardedSet{items: make(map[string]struct{})},
	}
}

// TryRegisterAddress claims addr. It returns false, leaving the registry
// untouched, when addr is already claimed.
func (r *Registry) TryRegisterAddress(addr string) bool {
	return r.addresses.tryAdd(addr)
}

// TryRegisterName claims name. It returns false when name is already claimed.
func (r *Registry) TryRegisterName(name string) bool {
	return r.names.tryAdd(name)
}

// UnregisterAddress releases addr. Releasing an unclaimed address is a no-op.
func (r *Registry) UnregisterAddress(addr string) {
	r.addresses.remove(addr)
}

// UnregisterName releases name. Releasing an unclaimed name is a no-op.
func (r *Registry) UnregisterName(name string) {
	r.names.remove(name)
}

// HasAddress reports whether addr is claimed.
func (r *Registry) HasAddress(addr string) bool {
	return r.addresses.has(addr)
}

// HasName reports whether name is claimed.
func (r *Registry) HasName(name string) bool {
	return r.names.has(name)
}

// AddressCount returns the number of claimed addresses.
func (r *Registry) AddressCount() int {
	return r.addresses.len()
}

// NameCount returns the number of claimed names.
func (r *Registry) NameCount() int {
	return r.names.len()
}

// Names returns a sorted snapshot of the claimed names.
func (r *Registry) Names() []string {
	names := r.names.snapshot()
	slices.Sort(names)
	return names
}

type guardedSet struct {
	mu    sync.Mutex
	items map[string]struct{}
}

func (s *guardedSet) tryAdd(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; ok {
		return false
	}
	s.items[key] = struct{}{}
	return true
}

func (s *guardedSet) remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

func (s *guardedSet) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[key]
	return ok
}

func (s *guardedSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *guardedSet) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	return keys
}
