// Package errors provides the structured error types and status codes used
// at the geomlink boundary.
//
// Errors are categorized by Op (which boundary operation failed) and Kind
// (failure category). Every internal failure variant maps onto one of a
// small closed set of Status codes via StatusOf; handle-returning operations
// additionally collapse to the 0 sentinel at the outermost frame.
//
// Use the convenience constructors for common patterns:
//
//	err := errors.FileNotFound("import-step", path)
//	err := errors.NullHandle("tessellate")
//	err := errors.KernelFault("tessellate", cause)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
