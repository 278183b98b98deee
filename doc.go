// Package geomlink is the boundary layer between a host application and a
// native geometry-processing kernel. It exposes geometric operations (shape
// import, tessellation, measurement) through an opaque-handle, plain-value
// contract: no kernel fault, pointer, or ownership concern ever crosses into
// the caller.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	geomlink/            Root package with this overview
//	├── boundary/        Flat operation surface: import, tessellate, query, free
//	├── registry/        Opaque-handle store with a shared global ID counter
//	├── mesh/            Patch merging and smooth-shaded flat mesh buffers
//	├── kernel/          Geometry-kernel collaborator interface and test fake
//	│   └── wasmkern/    wazero-backed kernel running a wasm kernel build
//	└── errors/          Structured error types and boundary status codes
//
// # Quick Start
//
// Create a boundary service over a kernel and tessellate an imported model:
//
//	k, err := wasmkern.New(ctx, kernelWasm, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer k.Close(ctx)
//
//	svc := boundary.New(k)
//	defer svc.Close(ctx)
//
//	shape := svc.ImportShape(ctx, "part.step")
//	if shape == 0 {
//	    log.Fatal(svc.LastErrorMessage())
//	}
//	m := svc.Tessellate(ctx, shape, 0.1, 0.1)
//	fmt.Println(svc.MeshVertexCount(m), "vertices")
//
// # Handles
//
// Every stored object is referenced by an opaque uint64 handle. Handle 0 is
// the universal null value and the failure sentinel of every handle-returning
// operation. Handles are globally unique across object kinds and are never
// reused, so a stale handle can only ever resolve to "not found".
//
// # Error Model
//
// Boundary operations are total: for any input they return a value. Failures
// surface as the 0 sentinel (or a status code) plus a diagnostic readable via
// LastErrorMessage, which is scoped to the calling goroutine. No panic
// escapes a boundary operation, including panics raised inside the kernel
// collaborator.
//
// # Thread Safety
//
// Service and the registry stores are safe for concurrent use. A kernel
// implementation may impose serialization on specific operation families;
// wasmkern handles its own (the STEP and IGES readers' global one-time init).
package geomlink
