package escore

import "fmt"

// ErrorKind names a category of failure, not a concrete Go type, so
// callers can switch on an Error's Kind field without type-asserting a
// family of error structs.
type ErrorKind int

const (
	// ErrConnectionClosed: the connection is gone and retries are exhausted.
	ErrConnectionClosed ErrorKind = iota
	// ErrOperationTimeout: deadline passed after the retry budget was exhausted.
	ErrOperationTimeout
	// ErrServerBusy: server signalled NotReady/TooBusy; retryable.
	ErrServerBusy
	// ErrNotAuthenticated: credential-related, non-retryable.
	ErrNotAuthenticated
	// ErrAccessDenied: credential-related, non-retryable.
	ErrAccessDenied
	// ErrWrongExpectedVersion: optimistic-concurrency failure from the server.
	ErrWrongExpectedVersion
	// ErrStreamDeleted: read-side outcome, non-retryable.
	ErrStreamDeleted
	// ErrStreamNotFound: read-side outcome, non-retryable.
	ErrStreamNotFound
	// ErrEventNotFound: read-side outcome, non-retryable.
	ErrEventNotFound
	// ErrAlreadyExists: persistent-subscription admin outcome, non-retryable.
	ErrAlreadyExists
	// ErrProtocolError: malformed payload, unexpected command for an operation,
	// or a bad request. It fails only that operation; the connection is dropped
	// for a malformed or oversize frame, not for these.
	ErrProtocolError
)

func (k ErrorKind) String() string {
	switch k {
	case ErrConnectionClosed:
		return "ConnectionClosed"
	case ErrOperationTimeout:
		return "OperationTimeout"
	case ErrServerBusy:
		return "ServerBusy"
	case ErrNotAuthenticated:
		return "NotAuthenticated"
	case ErrAccessDenied:
		return "AccessDenied"
	case ErrWrongExpectedVersion:
		return "WrongExpectedVersion"
	case ErrStreamDeleted:
		return "StreamDeleted"
	case ErrStreamNotFound:
		return "StreamNotFound"
	case ErrEventNotFound:
		return "EventNotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrProtocolError:
		return "ProtocolError"
	default:
		return "Unknown"
	}
}

// Error is the concrete error value surfaced to a waiting result sink.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("escore: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("escore: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// WrapError builds an Error of the given kind wrapping a lower-level cause.
func WrapError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// classified is satisfied by the driver package's internal error type. The
// driver can't import ErrorKind without cycling back through escore, so it
// tags its errors with a bare string instead and this package does the
// mapping at the boundary (Future.Wait).
type classified interface {
	Kind() string
	error
}

// mapDriverError turns an error crossing up from the driver's mailbox loop
// into an *Error so callers can always switch on its Kind. Errors already
// shaped by this package pass through unchanged.
func mapDriverError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*Error); ok {
		return err
	}
	ce, ok := err.(classified)
	if !ok {
		return WrapError(ErrProtocolError, "driver error", err)
	}
	switch ce.Kind() {
	case "closed":
		return WrapError(ErrConnectionClosed, ce.Error(), nil)
	case "timeout":
		return WrapError(ErrOperationTimeout, ce.Error(), nil)
	case "protocol":
		return WrapError(ErrProtocolError, ce.Error(), nil)
	case "busy":
		return WrapError(ErrServerBusy, ce.Error(), nil)
	default:
		return WrapError(ErrProtocolError, ce.Error(), nil)
	}
}
