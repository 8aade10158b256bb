// SPDX-FileCopyrightText : © 2022-2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package engine

import "fmt"

// errors.go gives each fail-kind a typed, errors.As-friendly result instead
// of an ad hoc error string, so callers can switch on the kind.

// ErrorKind enumerates the failure taxonomy.
type ErrorKind string

const (
	KindInvalidValue          ErrorKind = "InvalidValue"
	KindCapacityExceeded      ErrorKind = "CapacityExceeded"
	KindSurfaceNotReady       ErrorKind = "SurfaceNotReady"
	KindContextCreationFailed ErrorKind = "ContextCreationFailed"
	KindContextLost           ErrorKind = "ContextLost"
	KindCreateFailed          ErrorKind = "CreateFailed"
	KindSwitchFailed          ErrorKind = "SwitchFailed"
	KindPermissionDenied      ErrorKind = "PermissionDenied"
)

// Error is the engine package's error type. Kind is meant to be switched on
// by callers that need to distinguish retryable failures (SurfaceNotReady,
// ContextCreationFailed) from fatal ones (CapacityExceeded after reclaim,
// missing surfaces).
type Error struct {
	Kind   ErrorKind
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Unwrap lets errors.Is/errors.As see through to the underlying cause,
// e.g. a gpu package sentinel.
func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an *Error of the given kind.
func NewError(kind ErrorKind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: cause}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
	} else {
		return false
	}
	return e.Kind == kind
}
