package registry

import (
	"sync"
)

// Store holds the objects of one kind, keyed by handles drawn from a shared
// Registry. The zero value is not usable; create stores with NewStore.
type Store[T any] struct {
	registry *Registry
	mu       sync.RWMutex
	objects  map[Handle]T
}

// NewStore creates an empty store for one object kind. Stores created against
// the same Registry share its handle space: a handle issued by one store is
// never issued by another.
func NewStore[T any](r *Registry) *Store[T] {
	return &Store[T]{
		registry: r,
		objects:  make(map[Handle]T),
	}
}

// Insert takes ownership of v and returns its handle.
func (s *Store[T]) Insert(v T) Handle {
	h := s.registry.next()
	s.mu.Lock()
	s.objects[h] = v
	s.mu.Unlock()
	return h
}

// Get retrieves the object for h. Returns false if h was never issued to
// this store, was already freed, or belongs to a different kind.
//
// The returned value must not be retained across a concurrent Remove of the
// same handle; see the package doc.
func (s *Store[T]) Get(h Handle) (T, bool) {
	if h == Nil {
		var zero T
		return zero, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.objects[h]
	return v, ok
}

// Remove drops the object for h and returns it. Removing an absent,
// already-freed, or nil handle is a safe no-op reported as false.
func (s *Store[T]) Remove(h Handle) (T, bool) {
	if h == Nil {
		var zero T
		return zero, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.objects[h]
	if !ok {
		var zero T
		return zero, false
	}
	delete(s.objects, h)
	return v, true
}

// Len returns the number of live objects. Introspection only.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Each calls fn for every live object until fn returns false. The store's
// read lock is held for the whole iteration; fn must not call back into the
// store.
func (s *Store[T]) Each(fn func(Handle, T) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for h, v := range s.objects {
		if !fn(h, v) {
			return
		}
	}
}

// Drain removes and returns all live objects. Used by shutdown paths that
// need to release kernel-side resources.
func (s *Store[T]) Drain() map[Handle]T {
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.objects
	s.objects = make(map[Handle]T)
	return drained
}
