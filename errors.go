package nexus

import (
	"github.com/nexusgraph/nexus/nexuserr"
)

// Error is the structured error type returned by every engine component.
// It carries the failing operation, a stable kind, the underlying cause,
// and optional debugging context, and supports errors.Is and errors.As.
//
// The type is defined in the nexuserr leaf package so store adapters can
// construct it without importing the engine root; this alias keeps the
// public surface in one place.
type Error = nexuserr.Error

// Sentinel errors for common engine error conditions.
// These errors can be used with errors.Is() for error checking.
var (
	ErrNodeNotFound            = nexuserr.ErrNodeNotFound
	ErrUnknownNodeType         = nexuserr.ErrUnknownNodeType
	ErrUnknownRelationshipType = nexuserr.ErrUnknownRelationshipType
	ErrInvalidConfig           = nexuserr.ErrInvalidConfig
	ErrStoreUnavailable        = nexuserr.ErrStoreUnavailable
	ErrPruningInProgress       = nexuserr.ErrPruningInProgress
)

// Error kinds categorize errors by their type. Each kind maps to a stable
// code that callers can branch on at the boundary.
const (
	// KindValidation represents schema or input validation failures.
	// Never retried; surfaced before any store mutation occurs.
	KindValidation = nexuserr.KindValidation

	// KindNotFound represents errors where a node or relationship was not found.
	KindNotFound = nexuserr.KindNotFound

	// KindUnavailable represents network or connection failures to a backend.
	// Safe to retry with backoff at the caller's discretion.
	KindUnavailable = nexuserr.KindUnavailable

	// KindTimeout represents a caller deadline exceeded mid-operation.
	// Partial results are discarded, not returned.
	KindTimeout = nexuserr.KindTimeout

	// KindConfiguration represents errors related to configuration.
	KindConfiguration = nexuserr.KindConfiguration

	// KindInternal represents internal engine errors.
	KindInternal = nexuserr.KindInternal
)

// ErrorKind extracts the kind from an error chain. Returns KindInternal
// for errors that do not carry a kind, and an empty string for nil.
func ErrorKind(err error) string {
	return nexuserr.Kind(err)
}
