// Package nexuserr defines the structured error model shared by every engine
// component. It lives in its own leaf package so that store adapters and
// engines can construct errors without importing the engine root.
package nexuserr

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common engine error conditions.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrNodeNotFound indicates the requested node does not exist in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrUnknownNodeType indicates a node label that is not declared in the schema.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrUnknownRelationshipType indicates a relationship type that is not declared in the schema.
	ErrUnknownRelationshipType = errors.New("unknown relationship type")

	// ErrInvalidConfig indicates the provided configuration is invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrStoreUnavailable indicates the graph or vector backend could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrPruningInProgress indicates a pruning run was skipped because one is already active.
	ErrPruningInProgress = errors.New("pruning run already in progress")
)

// Error kinds categorize errors by their type. Each kind maps to a stable
// code that callers can branch on at the boundary.
const (
	// KindValidation represents schema or input validation failures.
	// Never retried; surfaced before any store mutation occurs.
	KindValidation = "validation"

	// KindNotFound represents errors where a node or relationship was not found.
	KindNotFound = "not_found"

	// KindUnavailable represents network or connection failures to a backend.
	// Safe to retry with backoff at the caller's discretion.
	KindUnavailable = "unavailable"

	// KindTimeout represents a caller deadline exceeded mid-operation.
	// Partial results are discarded, not returned.
	KindTimeout = "timeout"

	// KindConfiguration represents errors related to configuration.
	KindConfiguration = "configuration"

	// KindInternal represents internal engine errors.
	KindInternal = "internal"
)

// Error is a structured error type that wraps underlying errors with
// additional context about the operation that failed and the category of error.
//
// Error implements the error interface and supports error unwrapping,
// making it compatible with errors.Is() and errors.As().
type Error struct {
	// Op is the operation that failed (e.g., "Store.CreateNode", "Resolver.Resolve").
	Op string

	// Kind categorizes the error (e.g., KindNotFound, KindValidation).
	Kind string

	// Err is the underlying error that caused this error.
	Err error

	// Context provides additional context about the error (optional).
	// This can include node IDs, labels, or other debugging information.
	Context map[string]any
}

// Error implements the error interface, returning a formatted error message
// that includes the operation, kind, and underlying error.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("nexus: %s: %s", e.Op, e.Kind)
	}

	if len(e.Context) > 0 {
		return fmt.Sprintf("nexus: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}

	return fmt.Sprintf("nexus: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error, allowing errors.Is() and errors.As()
// to work correctly with wrapped errors.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error matching for Error, allowing comparison based on
// the underlying error or the Error itself.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}

	return errors.Is(e.Err, target)
}

// WithContext returns a new Error with the provided context added.
// This is useful for adding debugging information to errors.
func (e *Error) WithContext(ctx map[string]any) *Error {
	newErr := *e
	if newErr.Context == nil {
		newErr.Context = make(map[string]any)
	}
	for k, v := range ctx {
		newErr.Context[k] = v
	}
	return &newErr
}

// Validation creates a new Error with KindValidation.
func Validation(op string, err error) *Error {
	return &Error{Op: op, Kind: KindValidation, Err: err}
}

// NotFound creates a new Error with KindNotFound.
func NotFound(op string, err error) *Error {
	return &Error{Op: op, Kind: KindNotFound, Err: err}
}

// Unavailable creates a new Error with KindUnavailable.
func Unavailable(op string, err error) *Error {
	return &Error{Op: op, Kind: KindUnavailable, Err: err}
}

// Timeout creates a new Error with KindTimeout.
func Timeout(op string, err error) *Error {
	return &Error{Op: op, Kind: KindTimeout, Err: err}
}

// Configuration creates a new Error with KindConfiguration.
func Configuration(op string, err error) *Error {
	return &Error{Op: op, Kind: KindConfiguration, Err: err}
}

// Internal creates a new Error with KindInternal.
func Internal(op string, err error) *Error {
	return &Error{Op: op, Kind: KindInternal, Err: err}
}

// Kind extracts the kind from an error chain. Returns KindInternal for
// errors that do not carry a kind, and an empty string for nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FromContext converts a context cancellation or deadline error into the
// matching engine error. Returns nil if ctxErr is nil.
func FromContext(op string, ctxErr error) *Error {
	if ctxErr == nil {
		return nil
	}
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return Timeout(op, ctxErr)
	}
	return Internal(op, ctxErr)
}
