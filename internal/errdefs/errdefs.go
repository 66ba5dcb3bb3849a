// Package errdefs defines the error kinds shared by every distroshift component.
//
// Callers classify failures with errors.Is against the exported kind
// sentinels. An *Error carries both a kind and an underlying cause, and
// unwraps to each of them.
package errdefs

import (
	"errors"
	"strings"
)

var (
	ErrUnsupportedDistro = errors.New("unsupported distribution")
	ErrPackageManager    = errors.New("package manager failure")
	ErrSnapshot          = errors.New("snapshot failure")
	ErrMigration         = errors.New("migration failure")
	ErrConfiguration     = errors.New("configuration failure")
	ErrFileSystem        = errors.New("filesystem failure")
	ErrNetwork           = errors.New("network failure")
	ErrValidation        = errors.New("validation failure")
	ErrPersistence       = errors.New("persistence failure")
	ErrSerialization     = errors.New("serialization failure")

	// ErrCancelled is returned when the operator declines a confirmation.
	ErrCancelled = errors.New("cancelled by operator")
	ErrNotFound  = errors.New("not found")
)

// Error is a classified failure.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

// New returns an *Error of the given kind with no underlying cause.
func New(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap classifies err under kind. It returns nil when err is nil.
func Wrap(kind error, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Kind != nil {
		sb.WriteString(e.Kind.Error())
	}
	if e.Msg != "" {
		if sb.Len() > 0 {
			sb.WriteString(": ")
		}
		sb.WriteString(e.Msg)
	}
	if e.Err != nil {
		if sb.Len() > 0 {
			sb.WriteString(": ")
		}
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}
