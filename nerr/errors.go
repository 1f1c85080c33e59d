// Package nerr holds the error taxonomy shared by channel and pipeline
// (spec.md §7), kept in its own package so neither imports the other just
// to share error kinds: channel owns pipeline, so pipeline cannot import
// channel.
package nerr

import "errors"

// Kind classifies an error the way spec.md §7 enumerates them, so callers
// can branch on Kind(err) without parsing error strings.
type Kind int

const (
	KindUnknown Kind = iota
	KindIllegalState
	KindClosedChannel
	KindConnectTimeout
	KindConnectRefused
	KindUnresolvedAddress
	KindIO
	KindCancellation
	KindIllegalRefCount
	KindBufferReleased
	KindEncoderException
	KindDecoderException
)

func (k Kind) String() string {
	switch k {
	case KindIllegalState:
		return "IllegalState"
	case KindClosedChannel:
		return "ClosedChannel"
	case KindConnectTimeout:
		return "ConnectTimeout"
	case KindConnectRefused:
		return "ConnectRefused"
	case KindUnresolvedAddress:
		return "UnresolvedAddress"
	case KindIO:
		return "IO"
	case KindCancellation:
		return "Cancellation"
	case KindIllegalRefCount:
		return "IllegalRefCount"
	case KindBufferReleased:
		return "BufferReleased"
	case KindEncoderException:
		return "EncoderException"
	case KindDecoderException:
		return "DecoderException"
	default:
		return "Unknown"
	}
}

// Error pairs a Kind with a message and an optional cause. Its Kind is
// inspected with the Is function below or with errors.As.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given Kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given Kind, preserving cause for
// errors.Is/errors.As.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err carries the given Kind, looking through wrapped
// errors via errors.As.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
