// Package errors defines the error taxonomy for the verification protocol.
// Every failure the service surfaces belongs to exactly one kind, and the
// kind decides the HTTP status range and how much detail a caller may see.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error per the protocol taxonomy. Policy rejections and
// infrastructure faults are distinguished at the type level so the transport
// never has to parse messages.
type Kind int

const (
	// KindClientInput covers malformed bodies, missing fields and invalid
	// timestamp types. Never leaks internals.
	KindClientInput Kind = iota + 1
	// KindAuth covers stale timestamps and signature mismatches. A wrong
	// signature and a wrong key are deliberately indistinguishable.
	KindAuth
	// KindNotFound covers unknown license keys.
	KindNotFound
	// KindPolicy covers disabled licenses, expired licenses and exhausted
	// device quotas.
	KindPolicy
	// KindInfrastructure covers store misconfiguration, unreachable stores
	// and unexpected internal faults. Callers get a generic message; detail
	// goes to the server log only.
	KindInfrastructure
)

// String returns the metric-friendly name of the kind.
func (k Kind) String() string {
	switch k {
	case KindClientInput:
		return "client_input"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindPolicy:
		return "policy"
	case KindInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// Error is a classified error with an HTTP status and a caller-facing message.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(kind Kind, status int, message string) *Error {
	return &Error{Kind: kind, Status: status, Message: message}
}

// Wrap creates a classified error around an underlying cause.
func Wrap(kind Kind, status int, message string, err error) *Error {
	return &Error{Kind: kind, Status: status, Message: message, Err: err}
}

// KindOf extracts the kind from an error chain. Unclassified errors are
// treated as infrastructure faults so unknown failures fail closed.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}

// PublicMessage returns the caller-safe message for an error chain. Wrapped
// causes stay server-side.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

// StatusOf extracts the HTTP status from an error chain, defaulting to 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}

// Sentinel errors shared between the record store and the transport layer.
var (
	// ErrLicenseNotFound reports an unknown license key.
	ErrLicenseNotFound = New(KindNotFound, http.StatusNotFound, "license not found")

	// ErrStoreNotConfigured reports missing store credentials. Distinct from
	// ErrStoreUnavailable so /health and logs can tell misconfiguration from
	// a transient outage.
	ErrStoreNotConfigured = New(KindInfrastructure, http.StatusInternalServerError, "storage not configured")

	// ErrStoreUnavailable reports an unreachable or timed-out store.
	ErrStoreUnavailable = New(KindInfrastructure, http.StatusInternalServerError, "storage unavailable")

	// ErrBindingConflict reports a lost optimistic-concurrency race on the
	// bound-machine list. The caller re-evaluates against fresh state.
	ErrBindingConflict = New(KindInfrastructure, http.StatusInternalServerError, "binding update conflict")

	// ErrInvalidMachineID reports a machine id that cannot be stored, such
	// as one embedding the list delimiter.
	ErrInvalidMachineID = New(KindClientInput, http.StatusBadRequest, "invalid machine id")
)
