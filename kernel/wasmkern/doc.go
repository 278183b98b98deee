// Package wasmkern runs a WebAssembly build of the native geometry kernel
// and adapts its plain-C export surface to kernel.Kernel.
//
// The kernel module is compiled against WASI and must export the functions
// listed in requiredExports: shape import and free, patch extraction, and
// the thread-local-style last-error accessor. Shape objects live in the
// guest's own registry; this package holds only their uint64 IDs. Patch
// data is extracted through a guest-side scratch set that each triangulate
// or STL load overwrites, so those call sequences are serialized here.
//
// The STEP and IGES import families are additionally serialized with their
// own mutex: the underlying readers lazily populate global schema registries
// on first use and concurrent initializations corrupt them. The mutex is
// held around the guest call only, never around host-side bookkeeping.
package wasmkern
