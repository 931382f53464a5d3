// Package syncerr defines the error kinds reported by a sync run.
//
// Every failure that leaves the core is either one of the sentinel kinds below or
// wraps one of them, so callers can branch with errors.Is regardless of how much
// context has been added on the way up.
package syncerr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds.
var (
	// ErrNetwork indicates an HTTP call that failed to reach the server or returned non-2xx.
	ErrNetwork = errors.New("network error")

	// ErrFilesystem indicates a local read or scan failure.
	ErrFilesystem = errors.New("filesystem error")

	// ErrEncoding indicates a path that is not valid text or a malformed checksum.
	ErrEncoding = errors.New("encoding error")

	// ErrLockHeld indicates a lock marker is present and force was not requested.
	ErrLockHeld = errors.New("remote is locked")

	// ErrConfiguration indicates a missing credential or an invalid job configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Error adds operation context to a failure of a given kind.
type Error struct {
	// Kind is one of the sentinel errors of this package.
	Kind error

	// Op is the operation that failed (e.g. "list", "put", "scan").
	Op string

	// Path is the local path or remote name involved, if any.
	Path string

	// Err is the underlying cause. It may be nil when Kind says it all.
	Err error
}

func (e *Error) Error() string {
	cause := e.Err
	if cause == nil {
		cause = e.Kind
	}
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, cause)
	}
	return fmt.Sprintf("%s: %v", e.Op, cause)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New creates an Error of the given kind.
func New(kind error, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Network wraps err as an ErrNetwork failure.
func Network(op, path string, err error) *Error {
	return New(ErrNetwork, op, path, err)
}

// Filesystem wraps err as an ErrFilesystem failure.
func Filesystem(op, path string, err error) *Error {
	return New(ErrFilesystem, op, path, err)
}

// Encoding wraps err as an ErrEncoding failure.
func Encoding(op, path string, err error) *Error {
	return New(ErrEncoding, op, path, err)
}

// Configuration wraps err as an ErrConfiguration failure.
func Configuration(op string, err error) *Error {
	return New(ErrConfiguration, op, "", err)
}

// StatusError reports an HTTP response outside the 2xx range.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// Unwrap makes every StatusError an ErrNetwork.
func (e *StatusError) Unwrap() error {
	return ErrNetwork
}

// IsLockHeld reports whether err indicates an existing lock marker.
func IsLockHeld(err error) bool {
	return errors.Is(err, ErrLockHeld)
}
