package fam

import (
	"errors"
	"fmt"

	"github.com/rocketbitz/fam-go/fabric"
)

// ErrorKind classifies engine failures. The kinds are the error surface;
// callers branch on Kind, never on message text.
type ErrorKind int

const (
	// KindInvalidConfig covers unrecognised policies, a nil allocator in
	// client mode, and an empty memory-server list.
	KindInvalidConfig ErrorKind = iota
	// KindAllocator covers any failure reported by the allocator.
	KindAllocator
	// KindDatapath covers transport errors not otherwise classified.
	KindDatapath
	// KindTimeout covers transport-signalled deadline expiry.
	KindTimeout
	// KindUnimplemented covers operations that are declared but not
	// supported.
	KindUnimplemented
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidConfig:
		return "invalid_config"
	case KindAllocator:
		return "allocator"
	case KindDatapath:
		return "datapath"
	case KindTimeout:
		return "timeout"
	case KindUnimplemented:
		return "unimplemented"
	default:
		return "unknown"
	}
}

// Error is the typed error every engine operation surfaces. Call names the
// offending verb or allocator call; the message carries the transport's
// strerror text where one exists, never raw provider internals.
type Error struct {
	Kind    ErrorKind
	Call    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := "fam " + e.Kind.String()
	if e.Call != "" {
		msg += ": " + e.Call
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the ErrorKind of err, or KindDatapath when err is not an
// engine error.
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindDatapath
}

func invalidConfigf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidConfig, Message: fmt.Sprintf(format, args...)}
}

func allocatorError(call string, err error) *Error {
	return &Error{Kind: KindAllocator, Call: call, Message: err.Error(), Err: err}
}

// datapathError maps a fabric failure onto the taxonomy: timeouts keep
// their own kind, everything else is a datapath error carrying the
// strerror text.
func datapathError(call string, err error) *Error {
	kind := KindDatapath
	if errors.Is(err, fabric.ErrTimeout) {
		kind = KindTimeout
	}
	msg := err.Error()
	var errno fabric.Errno
	if errors.As(err, &errno) {
		msg = fabric.Strerror(errno)
	}
	return &Error{Kind: kind, Call: call, Message: msg, Err: err}
}

func unimplemented(call string) *Error {
	return &Error{Kind: KindUnimplemented, Call: call, Message: "operation not supported"}
}
