// Package errdefs declares the error Kinds used across the interval
// engine, on top of github.com/grailbio/base/errors, the way the teacher
// declares its own usage patterns over that package (see
// encoding/fasta/index.go, encoding/pam/fieldio/reader.go).
package errdefs

import "github.com/grailbio/base/errors"

// Kind values used with errors.E(kind, ...) throughout this module.
// These mirror errors.NotExist/errors.Invalid from the base package but
// are scoped to this domain so callers can distinguish "bad call" from
// "no such interval" without inspecting message text.
const (
	// Invalid marks a caller-visible usage error: bad arguments, a
	// disallowed interval type, a stickiness value rejected by feature
	// flag, or a double-attach. State is left unchanged.
	Invalid = errors.Invalid
	// NotFound marks a change/remove against an unknown id. Not an
	// error condition by itself; wrapped only when the caller needs an
	// error value instead of an (T, bool) return.
	NotFound = errors.NotExist
)

// IsNotFound reports whether err was produced with errdefs.NotFound.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	e, ok := err.(*errors.Error)
	return ok && e.Kind == NotFound
}

// IsInvalid reports whether err was produced with errdefs.Invalid.
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}
	e, ok := err.(*errors.Error)
	return ok && e.Kind == Invalid
}
