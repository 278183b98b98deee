// Package boundary exposes the flat operation surface of the geometry
// layer: import, tessellate, query, free.
//
// Every operation is total. Inputs are plain values and opaque handles;
// outputs are plain values, the 0 handle sentinel, or a status code. Any
// failure (invalid argument, stale handle, kernel fault, or a panic raised
// anywhere below) is caught at the operation's outer frame and converted to
// the sentinel plus a diagnostic readable via LastErrorMessage on the same
// goroutine. Nothing ever unwinds past a boundary operation.
//
// Operations never hold a registry lock across a kernel call, and an object
// is stored only after the kernel call producing it fully succeeds, so a
// failing call never leaves the registry partially mutated.
//
// Last-error state is keyed by goroutine: the service retains one diagnostic
// string per goroutine that has made a boundary call, for that goroutine's
// whole lifetime and beyond. Close drops them all; a long-lived service
// driven by many short-lived goroutines holds at most one small string per
// goroutine ever seen until then.
package boundary
