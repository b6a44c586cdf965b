// Package common defines shared constants and sentinel errors used across
// the cache, sync engine and remote adapters. Callers should use errors.Is
// (or KindOf) to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaAbsent means the remote collection/table does not exist yet.
	// Non-fatal: the engine degrades to local-only mode for that collection.
	ErrSchemaAbsent = errors.New("remote schema absent")

	// ErrNotFound means the targeted record does not exist at the target layer.
	ErrNotFound = errors.New("not found")

	// ErrRemoteUnavailable covers network, timeout and 5xx-class failures.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrQuotaExceeded means the persisted store rejected a write for capacity.
	ErrQuotaExceeded = errors.New("persisted store quota exceeded")

	// ErrConflict means the remote rejected the payload (bad shape, constraint).
	ErrConflict = errors.New("conflict or validation error")

	// ErrUnauthorized means the remote rejected the credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidToken is returned when an access token cannot be verified.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned for a well-formed but expired access token.
	ErrTokenExpired = errors.New("token expired")
)

// Kind is the classified category of an engine error.
type Kind int

const (
	KindUnknown Kind = iota
	KindSchemaAbsent
	KindNotFound
	KindRemoteUnavailable
	KindQuotaExceeded
	KindConflict
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindSchemaAbsent:
		return "schema_absent"
	case KindNotFound:
		return "not_found"
	case KindRemoteUnavailable:
		return "remote_unavailable"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Sentinel returns the sentinel error matching k, or nil for KindUnknown.
func (k Kind) Sentinel() error {
	switch k {
	case KindSchemaAbsent:
		return ErrSchemaAbsent
	case KindNotFound:
		return ErrNotFound
	case KindRemoteUnavailable:
		return ErrRemoteUnavailable
	case KindQuotaExceeded:
		return ErrQuotaExceeded
	case KindConflict:
		return ErrConflict
	case KindUnauthorized:
		return ErrUnauthorized
	default:
		return nil
	}
}

// RemoteError wraps a failure of a remote call together with its kind.
// errors.Is matches both the kind's sentinel and the underlying cause.
type RemoteError struct {
	Op         string
	Collection string
	Kind       Kind
	Err        error
}

// NewRemoteError builds a RemoteError for op on collection.
func NewRemoteError(op, collection string, kind Kind, err error) *RemoteError {
	return &RemoteError{Op: op, Collection: collection, Kind: kind, Err: err}
}

func (e *RemoteError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Collection, e.Kind)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Collection, e.Kind, e.Err)
}

func (e *RemoteError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.Sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf reports the classified kind of err. Unclassified errors yield
// KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var re *RemoteError
	if errors.As(err, &re) && re.Kind != KindUnknown {
		return re.Kind
	}
	switch {
	case errors.Is(err, ErrSchemaAbsent):
		return KindSchemaAbsent
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrQuotaExceeded):
		return KindQuotaExceeded
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrRemoteUnavailable):
		return KindRemoteUnavailable
	}
	return KindUnknown
}

// IsSchemaAbsent reports whether err means the remote collection is missing.
func IsSchemaAbsent(err error) bool { return KindOf(err) == KindSchemaAbsent }

// IsNotFound reports whether err means the record is missing.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
