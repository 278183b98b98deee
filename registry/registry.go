package registry

import (
	"sync/atomic"
)

// Handle is an opaque reference to an object owned by a Store.
// Handle 0 is reserved and always invalid.
type Handle uint64

// Nil is the universal null handle. It is never issued and every Store
// operation treats it as "not present".
const Nil Handle = 0

// Registry issues globally unique handles for any number of object kinds.
// Handles start at 1, increase monotonically, and are never reused, so a
// freed handle can only ever resolve to "not found", never to a different
// live object.
type Registry struct {
	nextID atomic.Uint64
}

// New creates a registry whose first issued handle is 1.
func New() *Registry {
	return &Registry{}
}

// next returns a fresh handle. Safe for concurrent use from any kind.
func (r *Registry) next() Handle {
	return Handle(r.nextID.Add(1))
}

// Issued returns the number of handles issued so far, across all kinds.
func (r *Registry) Issued() uint64 {
	return r.nextID.Load()
}
