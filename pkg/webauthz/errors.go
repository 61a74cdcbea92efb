package webauthz

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch without matching messages.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNotFound covers unknown client_state values and client_id
	// mismatches, which are reported the same way on purpose.
	KindNotFound
	KindAccessDenied
	KindInvalidRequest
	KindExchangeFailed
	KindDiscoveryFailed
	KindRegistrationFailed
	KindStorage
)

// String makes Kind satisfy the fmt.Stringer interface.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAccessDenied:
		return "access denied"
	case KindInvalidRequest:
		return "invalid request"
	case KindExchangeFailed:
		return "exchange failed"
	case KindDiscoveryFailed:
		return "discovery failed"
	case KindRegistrationFailed:
		return "registration failed"
	case KindStorage:
		return "storage error"
	default:
		return "unknown error"
	}
}

// Error is the error type returned by every Client operation.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "exchange".
	Op string
	// Err is the underlying cause. Transport causes are logged, not kept.
	Err error
}

// Sentinels for errors.Is. Each matches any *Error of the same kind.
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrAccessDenied       = &Error{Kind: KindAccessDenied}
	ErrInvalidRequest     = &Error{Kind: KindInvalidRequest}
	ErrExchangeFailed     = &Error{Kind: KindExchangeFailed}
	ErrDiscoveryFailed    = &Error{Kind: KindDiscoveryFailed}
	ErrRegistrationFailed = &Error{Kind: KindRegistrationFailed}
	ErrStorage            = &Error{Kind: KindStorage}
)

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func storageError(op string, err error) *Error {
	return &Error{Kind: KindStorage, Op: op, Err: err}
}
