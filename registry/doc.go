// Package registry implements the opaque-handle store that owns every
// kernel-resident object on behalf of boundary callers.
//
// A Registry is a process-scoped ID authority: all object kinds draw handles
// from its single monotonic counter, so a handle is globally unique across
// kinds and is never reused after a free. Each kind keeps its objects in its
// own Store, created with NewStore against a shared Registry.
//
// Stores are safe for concurrent use. Reads proceed concurrently; a store or
// free takes the kind's write lock for the duration of one map mutation only.
// The registry gives no protection against a caller retaining a value past a
// concurrent Remove of the same handle; boundary operations must treat every
// resolve-use-release sequence as atomic and never cache values across calls.
package registry
