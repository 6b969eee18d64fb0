// Package clawerr classifies the failure taxonomy used across the ClawNet
// core: every error returned to a caller carries one of a small set of
// kinds so callers can branch on failure category without string matching.
package clawerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how a caller should react to it.
type Kind int

const (
	// KindInvalidInput marks malformed caller-supplied data: a bad CIDR,
	// a corrupt identity file, an unknown config key.
	KindInvalidInput Kind = iota
	// KindResourceUnavailable marks a failure to acquire a local resource:
	// a UDP port that won't bind, a data directory that can't be created.
	KindResourceUnavailable
	// KindProtocolError marks a wire-level violation: oversized frame,
	// unsupported version, bad magic, unexpected variant, seq mismatch.
	KindProtocolError
	// KindTimeout marks an expired deadline.
	KindTimeout
	// KindNotFound marks a missing record.
	KindNotFound
	// KindBounds marks a request outside an accepted range or cap.
	KindBounds
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindResourceUnavailable:
		return "resource_unavailable"
	case KindProtocolError:
		return "protocol_error"
	case KindTimeout:
		return "timeout"
	case KindNotFound:
		return "not_found"
	case KindBounds:
		return "bounds"
	default:
		return "unknown"
	}
}

// Error wraps a cause with a Kind, giving callers a single-line cause
// chain (via Error()) and the ability to branch on classification (via
// errors.Is / errors.As, since the underlying sentinel error is preserved).
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Wrap classifies cause under kind. Returns nil if cause is nil.
func Wrap(kind Kind, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Cause: cause}
}

// Wrapf classifies a formatted error under kind.
func Wrapf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of err if it (or something it wraps) is a
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

// Sentinel errors named in spec.md §7, comparable with errors.Is.
var (
	ErrIdentityCorrupt   = errors.New("identity file is corrupt")
	ErrFrameTooLarge     = errors.New("frame exceeds maximum size")
	ErrUnsupportedWire   = errors.New("unsupported wire message version")
	ErrMissingMagic      = errors.New("missing scan probe magic bytes")
	ErrUnexpectedVariant = errors.New("unexpected wire message variant")
	ErrSeqMismatch       = errors.New("pong sequence mismatch")
	ErrScanRangeTooLarge = errors.New("scan range exceeds maximum host count")
	ErrNoHostAddresses   = errors.New("cidr range has no host addresses")
	ErrPeerNotFound      = errors.New("peer not found in cache")
)
