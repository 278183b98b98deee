package errors

import (
	stderrors "errors"
)

// Status is the closed enumeration returned by status-returning boundary
// operations. StatusOK is zero so the zero value means success.
type Status int32

const (
	StatusOK Status = iota
	StatusFileNotFound
	StatusParseFailed
	StatusNullHandle
	StatusInvalidArgument
	StatusKernelFault
	StatusNoResult
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFileNotFound:
		return "file-not-found"
	case StatusParseFailed:
		return "parse-failed"
	case StatusNullHandle:
		return "null-handle"
	case StatusInvalidArgument:
		return "invalid-argument"
	case StatusKernelFault:
		return "kernel-fault"
	case StatusNoResult:
		return "no-result"
	default:
		return "unknown"
	}
}

// StatusOf maps any error to its boundary status code. nil maps to StatusOK;
// an error that is not a *Error is an unclassified failure and maps to
// StatusKernelFault.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var e *Error
	if !stderrors.As(err, &e) {
		return StatusKernelFault
	}
	switch e.Kind {
	case KindFileNotFound:
		return StatusFileNotFound
	case KindParseFailed, KindUnsupported:
		return StatusParseFailed
	case KindNullHandle:
		return StatusNullHandle
	case KindInvalidInput:
		return StatusInvalidArgument
	case KindNoResult:
		return StatusNoResult
	default:
		return StatusKernelFault
	}
}
