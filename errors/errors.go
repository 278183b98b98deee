package errors

import (
	"fmt"
	"strings"
)

// Op names the boundary operation that failed, e.g. "import-step".
type Op string

// Kind categorizes the error.
type Kind string

const (
	KindFileNotFound Kind = "file_not_found" // path does not exist on disk
	KindParseFailed  Kind = "parse_failed"   // loader rejected the file
	KindNullHandle   Kind = "null_handle"    // nil, stale, or wrong-kind handle
	KindInvalidInput Kind = "invalid_input"  // malformed argument
	KindUnsupported  Kind = "unsupported"    // file format not recognized
	KindKernelFault  Kind = "kernel_fault"   // fault raised inside the kernel
	KindNoResult     Kind = "no_result"      // operation produced nothing usable
)

// Error is the structured error type used throughout the boundary layer.
type Error struct {
	Cause  error
	Op     Op
	Kind   Kind
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Op))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Two *Errors match on Kind
// alone so callers can test categories without caring which operation failed.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind && (t.Op == "" || e.Op == t.Op)
	}
	return false
}

// Convenience constructors for common error patterns

// FileNotFound reports a path that does not exist on disk.
func FileNotFound(op Op, path string) *Error {
	return &Error{
		Op:     op,
		Kind:   KindFileNotFound,
		Detail: fmt.Sprintf("file not found: %s", path),
	}
}

// ParseFailed reports a file the loader rejected.
func ParseFailed(op Op, path string, cause error) *Error {
	return &Error{
		Op:     op,
		Kind:   KindParseFailed,
		Detail: fmt.Sprintf("failed to read %q", path),
		Cause:  cause,
	}
}

// NullHandle reports a nil handle passed where a live one is required.
func NullHandle(op Op) *Error {
	return &Error{
		Op:     op,
		Kind:   KindNullHandle,
		Detail: "null handle",
	}
}

// NotFound reports a handle that resolves to no live object: never issued,
// already freed, or belonging to a different kind. Same Kind as NullHandle,
// so callers see one "handle is no good" category either way.
func NotFound(op Op, what string, id uint64) *Error {
	return &Error{
		Op:     op,
		Kind:   KindNullHandle,
		Detail: fmt.Sprintf("invalid %s handle %d", what, id),
	}
}

// InvalidInput reports a malformed argument.
func InvalidInput(op Op, detail string) *Error {
	return &Error{
		Op:     op,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Unsupported reports a file extension no importer handles.
func Unsupported(op Op, extension string) *Error {
	return &Error{
		Op:     op,
		Kind:   KindUnsupported,
		Detail: fmt.Sprintf("unsupported format: %q", extension),
	}
}

// KernelFault wraps a failure raised inside the kernel collaborator,
// including recovered panics. Never retried; the cause is diagnostic only.
func KernelFault(op Op, cause error) *Error {
	return &Error{
		Op:    op,
		Kind:  KindKernelFault,
		Cause: cause,
	}
}

// NoResult reports an operation that completed without producing a usable
// result, e.g. a tessellation that emitted no triangles.
func NoResult(op Op, detail string) *Error {
	return &Error{
		Op:     op,
		Kind:   KindNoResult,
		Detail: detail,
	}
}
