// Package kernel defines the contract between the boundary layer and the
// external geometry kernel.
//
// The kernel is a collaborator, not part of the core: it parses model files,
// heals shapes, and triangulates surfaces. The boundary layer only moves its
// results around: it stores shapes by handle and assembles the kernel's
// per-surface patches into mesh buffers. Implementations live elsewhere
// (wasmkern runs a wasm build of the native kernel; kerneltest provides an
// in-memory fake).
package kernel
