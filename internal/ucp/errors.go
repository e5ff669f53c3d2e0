package ucp

import (
	"errors"
	"fmt"
)

// Kind classifies failures surfaced by the shopping agent.
type Kind string

const (
	KindNotConnected Kind = "not_connected"
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindTransport    Kind = "transport"
	KindProtocol     Kind = "protocol"
)

// Error is the structured error returned at every public operation boundary.
type Error struct {
	Kind   Kind
	Op     string
	Status int // HTTP status when the merchant answered, 0 otherwise
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s %s (status %d): %s", e.Op, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, &Error{Kind: KindNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// KindOf reports the kind of err, or "" when err is not a *Error.
func KindOf(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return ""
}

// ErrNotConnected is wrapped by every NotConnected error.
var ErrNotConnected = errors.New("no merchant connected; use discover_merchant(url) first or set MERCHANT_URL")

func NotConnected(op string) *Error {
	return &Error{Kind: KindNotConnected, Op: op, Err: ErrNotConnected}
}

func NotFound(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Transport(op string, status int, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Status: status, Err: err}
}

func Protocol(op, format string, args ...any) *Error {
	return &Error{Kind: KindProtocol, Op: op, Msg: fmt.Sprintf(format, args...)}
}
