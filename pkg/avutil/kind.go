// Package avutil provides the supporting value types shared by every stage
// package: the error kind taxonomy, codec parameters, media-type-sealed
// stream info, and thin arithmetic/serialization helpers over astiav's
// Rational and Dictionary. Packets and Frames themselves are never
// wrapped here; astiav.Packet and astiav.Frame are used as-is.
package avutil

import "fmt"

// Kind is the exhaustive error taxonomy every stage package classifies
// native failures into.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidArgument
	KindMalformedInput
	KindIO
	KindPermissionDenied
	KindClosed
	KindResourceExhausted
	KindHardwareUnavailable
	KindTryAgain
	KindEndOfStream
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindMalformedInput:
		return "malformed_input"
	case KindIO:
		return "io"
	case KindPermissionDenied:
		return "permission_denied"
	case KindClosed:
		return "closed"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindHardwareUnavailable:
		return "hardware_unavailable"
	case KindTryAgain:
		return "try_again"
	case KindEndOfStream:
		return "end_of_stream"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Soft reports whether the kind drives internal state machines rather than
// surfacing to a pipeline caller (spec §7 propagation rule).
func (k Kind) Soft() bool {
	return k == KindTryAgain || k == KindEndOfStream
}

// Error is the single flat wrapping type every package in this module
// returns for hard failures. Wrapping is never nested: a lower layer's
// Error is reclassified, not wrapped again.
type Error struct {
	Kind      Kind
	Code      int // optional native numeric code, 0 if not applicable
	Message   string
	Component string // package that raised it, e.g. "decoder"
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (kind=%s code=%d)", e.Component, e.Message, e.Kind, e.Code)
	}
	return fmt.Sprintf("%s: %s (kind=%s)", e.Component, e.Message, e.Kind)
}

// Is supports errors.Is comparisons against a bare Kind sentinel produced
// by New with an empty message, so callers can write
// errors.Is(err, avutil.Err(avutil.KindTryAgain)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs a classified Error.
func New(component string, kind Kind, message string) *Error {
	return &Error{Component: component, Kind: kind, Message: message}
}

// Newf constructs a classified Error with a formatted message.
func Newf(component string, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Component: component, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithCode attaches a native numeric error code.
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// Err returns a bare sentinel of the given kind, usable with errors.Is.
func Err(kind Kind) *Error {
	return &Error{Kind: kind}
}

// KindOf extracts the Kind of err, or KindUnknown if err is not (or does
// not wrap) an *Error.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if ae, ok := err.(*Error); ok {
		return ae.Kind
	}
	type kinder interface{ Unwrap() error }
	if u, ok := err.(kinder); ok {
		return KindOf(u.Unwrap())
	}
	return KindUnknown
}
