package escore

import (
	"github.com/escore-go/escore/internal/driver"
	"github.com/escore-go/escore/internal/wire"
)

// opBase carries the one field every concrete operation shares: an
// optional per-call credential override falling back to the connection's
// default user.
type opBase struct {
	creds *wire.Credentials
}

func (o opBase) Credentials() *wire.Credentials { return o.creds }

// Non-idempotent server-side effects (append, delete, transaction
// commit) are not safe to resubmit blind: a timed-out write may or may
// not have landed. They are retried anyway; at-most-once is not
// guaranteed here, and callers wanting that property must de-duplicate
// by event id on read-back.
func retryableAlways() bool { return true }

// --- write events ----------------------------------------------------------

type writeEventsOp struct {
	opBase
	req wire.WriteEventsMessage
}

func (o writeEventsOp) Command() wire.Cmd { return wire.CmdWriteEvents }
func (o writeEventsOp) Payload() []byte   { return o.req.Marshal() }
func (o writeEventsOp) Retryable() bool   { return retryableAlways() }

// WriteResult is returned by Client.WriteEvents.
type WriteResult struct {
	NextExpectedVersion int64
	Position            Position
}

func (o writeEventsOp) HandleResponse(pkg wire.Package) driver.Outcome {
	if outcome, ok := controlOutcome(pkg); ok {
		return outcome
	}
	if pkg.Command != wire.CmdWriteEventsCompleted {
		return notHandledOutcome()
	}
	m, err := wire.UnmarshalWriteEventsCompleted(pkg.Payload)
	if err != nil {
		return protocolErrorOutcome(err)
	}
	if err := writeResultError(m.Result, m.Message); err != nil {
		return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Err: err}}
	}
	return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Value: WriteResult{
		NextExpectedVersion: m.CurrentVersion,
		Position:            Position{Commit: m.CommitPosition, Prepare: m.PreparePosition},
	}}}
}

func writeResultError(r wire.OpResult, message string) error {
	switch r {
	case wire.ResultSuccess:
		return nil
	case wire.ResultWrongExpectedVersion:
		return WrapError(ErrWrongExpectedVersion, message, nil)
	case wire.ResultStreamDeleted:
		return WrapError(ErrStreamDeleted, message, nil)
	case wire.ResultAccessDenied:
		return WrapError(ErrAccessDenied, message, nil)
	case wire.ResultInvalidTransaction:
		return NewError(ErrProtocolError, "invalid transaction: "+message)
	default:
		return WrapError(ErrServerBusy, message, nil)
	}
}

// --- read event --------------------------------------------------------------

type readEventOp struct {
	opBase
	req wire.ReadEventMessage
}

func (o readEventOp) Command() wire.Cmd { return wire.CmdReadEvent }
func (o readEventOp) Payload() []byte   { return o.req.Marshal() }
func (o readEventOp) Retryable() bool   { return true }

func (o readEventOp) HandleResponse(pkg wire.Package) driver.Outcome {
	if outcome, ok := controlOutcome(pkg); ok {
		return outcome
	}
	if pkg.Command != wire.CmdReadEventCompleted {
		return notHandledOutcome()
	}
	m, err := wire.UnmarshalReadEventCompleted(pkg.Payload)
	if err != nil {
		return protocolErrorOutcome(err)
	}
	if m.Result != wire.ReadEventSuccess {
		return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Err: readEventError(m.Result, m.Error)}}
	}
	resolved, err := wire.UnmarshalResolvedEvent(m.Event)
	if err != nil {
		return protocolErrorOutcome(err)
	}
	ev, err := resolvedEventFromWire(resolved)
	if err != nil {
		return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Err: err}}
	}
	return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Value: ev}}
}

func readEventError(r wire.ReadEventResultCode, msg string) error {
	switch r {
	case wire.ReadEventNotFound:
		return WrapError(ErrEventNotFound, msg, nil)
	case wire.ReadEventNoStream:
		return WrapError(ErrStreamNotFound, msg, nil)
	case wire.ReadEventStreamDeleted:
		return WrapError(ErrStreamDeleted, msg, nil)
	case wire.ReadEventAccessDenied:
		return WrapError(ErrAccessDenied, msg, nil)
	default:
		return NewError(ErrProtocolError, msg)
	}
}

// --- read stream events -------------------------------------------------------

type readStreamOp struct {
	opBase
	req wire.ReadStreamEventsMessage
}

func (o readStreamOp) Command() wire.Cmd { return wire.CmdReadStreamEventsForward }
func (o readStreamOp) Payload() []byte   { return o.req.Marshal() }
func (o readStreamOp) Retryable() bool   { return true }

// ReadStreamResult is returned by Client.ReadStreamEventsForward and
// Client.ReadStreamEventsBackward.
type ReadStreamResult struct {
	Events          []ResolvedEvent
	NextEventNumber int64
	LastEventNumber int64
	IsEndOfStream   bool
}

func (o readStreamOp) HandleResponse(pkg wire.Package) driver.Outcome {
	if outcome, ok := controlOutcome(pkg); ok {
		return outcome
	}
	if pkg.Command != wire.CmdReadStreamEventsForwardCompleted {
		return notHandledOutcome()
	}
	return o.handleCompleted(pkg)
}

// handleCompleted parses a ReadStreamEventsCompletedMessage. Shared with
// backwardReadOp (client.go), which only differs in which command tags it
// sends and accepts as complete: the payload schema is identical in both
// directions.
func (o readStreamOp) handleCompleted(pkg wire.Package) driver.Outcome {
	m, err := wire.UnmarshalReadStreamEventsCompleted(pkg.Payload)
	if err != nil {
		return protocolErrorOutcome(err)
	}
	if err := readStreamError(m.Result, m.Error); err != nil {
		return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Err: err}}
	}
	events := make([]ResolvedEvent, 0, len(m.Events))
	for _, raw := range m.Events {
		resolved, err := wire.UnmarshalResolvedEvent(raw)
		if err != nil {
			return protocolErrorOutcome(err)
		}
		ev, err := resolvedEventFromWire(resolved)
		if err != nil {
			return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Err: err}}
		}
		events = append(events, ev)
	}
	return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Value: ReadStreamResult{
		Events:          events,
		NextEventNumber: m.NextEventNumber,
		LastEventNumber: m.LastEventNumber,
		IsEndOfStream:   m.IsEndOfStream,
	}}}
}

func readStreamError(r wire.ReadStreamResultCode, msg string) error {
	switch r {
	case wire.ReadStreamSuccess, wire.ReadStreamNotModified:
		return nil
	case wire.ReadStreamNoStream:
		return WrapError(ErrStreamNotFound, msg, nil)
	case wire.ReadStreamStreamDeleted:
		return WrapError(ErrStreamDeleted, msg, nil)
	case wire.ReadStreamAccessDenied:
		return WrapError(ErrAccessDenied, msg, nil)
	default:
		return NewError(ErrProtocolError, msg)
	}
}

// --- delete stream -------------------------------------------------------------

type deleteStreamOp struct {
	opBase
	req wire.DeleteStreamMessage
}

func (o deleteStreamOp) Command() wire.Cmd { return wire.CmdDeleteStream }
func (o deleteStreamOp) Payload() []byte   { return o.req.Marshal() }
func (o deleteStreamOp) Retryable() bool   { return true }

func (o deleteStreamOp) HandleResponse(pkg wire.Package) driver.Outcome {
	if outcome, ok := controlOutcome(pkg); ok {
		return outcome
	}
	if pkg.Command != wire.CmdDeleteStreamCompleted {
		return notHandledOutcome()
	}
	m, err := wire.UnmarshalDeleteStreamCompleted(pkg.Payload)
	if err != nil {
		return protocolErrorOutcome(err)
	}
	if err := writeResultError(m.Result, m.Message); err != nil {
		return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Err: err}}
	}
	return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Value: Position{
		Commit: m.CommitPosition, Prepare: m.PreparePosition,
	}}}
}

// --- transactions --------------------------------------------------------------

type transactionStartOp struct {
	opBase
	req wire.TransactionStartMessage
}

func (o transactionStartOp) Command() wire.Cmd { return wire.CmdTransactionStart }
func (o transactionStartOp) Payload() []byte   { return o.req.Marshal() }
func (o transactionStartOp) Retryable() bool   { return true }

func (o transactionStartOp) HandleResponse(pkg wire.Package) driver.Outcome {
	if outcome, ok := controlOutcome(pkg); ok {
		return outcome
	}
	if pkg.Command != wire.CmdTransactionStartCompleted {
		return notHandledOutcome()
	}
	m, err := wire.UnmarshalTransactionStartCompleted(pkg.Payload)
	if err != nil {
		return protocolErrorOutcome(err)
	}
	if err := writeResultError(m.Result, m.Message); err != nil {
		return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Err: err}}
	}
	return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Value: TransactionID(m.TransactionID)}}
}

type transactionWriteOp struct {
	opBase
	req wire.TransactionWriteMessage
}

func (o transactionWriteOp) Command() wire.Cmd { return wire.CmdTransactionWrite }
func (o transactionWriteOp) Payload() []byte   { return o.req.Marshal() }
func (o transactionWriteOp) Retryable() bool   { return true }

func (o transactionWriteOp) HandleResponse(pkg wire.Package) driver.Outcome {
	if outcome, ok := controlOutcome(pkg); ok {
		return outcome
	}
	if pkg.Command != wire.CmdTransactionWriteCompleted {
		return notHandledOutcome()
	}
	m, err := wire.UnmarshalTransactionWriteCompleted(pkg.Payload)
	if err != nil {
		return protocolErrorOutcome(err)
	}
	if err := writeResultError(m.Result, m.Message); err != nil {
		return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Err: err}}
	}
	return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Value: TransactionID(m.TransactionID)}}
}

type transactionCommitOp struct {
	opBase
	req wire.TransactionCommitMessage
}

func (o transactionCommitOp) Command() wire.Cmd { return wire.CmdTransactionCommit }
func (o transactionCommitOp) Payload() []byte   { return o.req.Marshal() }
func (o transactionCommitOp) Retryable() bool   { return true }

func (o transactionCommitOp) HandleResponse(pkg wire.Package) driver.Outcome {
	if outcome, ok := controlOutcome(pkg); ok {
		return outcome
	}
	if pkg.Command != wire.CmdTransactionCommitCompleted {
		return notHandledOutcome()
	}
	m, err := wire.UnmarshalTransactionCommitCompleted(pkg.Payload)
	if err != nil {
		return protocolErrorOutcome(err)
	}
	if err := writeResultError(m.Result, m.Message); err != nil {
		return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Err: err}}
	}
	return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Value: WriteResult{
		NextExpectedVersion: m.CurrentVersion,
		Position:            Position{Commit: m.CommitPosition, Prepare: m.PreparePosition},
	}}}
}

// --- persistent subscription admin ---------------------------------------------

type persistActionOp struct {
	opBase
	cmd wire.Cmd
	req wire.PersistentSubscriptionConfig
}

func (o persistActionOp) Command() wire.Cmd { return o.cmd }
func (o persistActionOp) Payload() []byte   { return o.req.Marshal() }
func (o persistActionOp) Retryable() bool   { return true }

func (o persistActionOp) HandleResponse(pkg wire.Package) driver.Outcome {
	if outcome, ok := controlOutcome(pkg); ok {
		return outcome
	}
	if !isPersistActionCompleted(pkg.Command) {
		return notHandledOutcome()
	}
	m, err := wire.UnmarshalPersistActionCompleted(pkg.Payload)
	if err != nil {
		return protocolErrorOutcome(err)
	}
	if err := persistActionError(m.Result, m.Reason); err != nil {
		return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Err: err}}
	}
	return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Value: struct{}{}}}
}

func isPersistActionCompleted(c wire.Cmd) bool {
	switch c {
	case wire.CmdCreatePersistentSubscriptionCompleted,
		wire.CmdUpdatePersistentSubscriptionCompleted,
		wire.CmdDeletePersistentSubscriptionCompleted:
		return true
	default:
		return false
	}
}

func persistActionError(r wire.PersistActionResultCode, reason string) error {
	switch r {
	case wire.PersistActionSuccess:
		return nil
	case wire.PersistActionAlreadyExists:
		return NewError(ErrAlreadyExists, "persistent subscription already exists: "+reason)
	case wire.PersistActionDoesNotExist:
		return WrapError(ErrStreamNotFound, reason, nil)
	case wire.PersistActionAccessDenied:
		return WrapError(ErrAccessDenied, reason, nil)
	default:
		return NewError(ErrProtocolError, reason)
	}
}

type deletePersistentOp struct {
	opBase
	req wire.DeletePersistentSubscriptionMessage
}

func (o deletePersistentOp) Command() wire.Cmd { return wire.CmdDeletePersistentSubscription }
func (o deletePersistentOp) Payload() []byte   { return o.req.Marshal() }
func (o deletePersistentOp) Retryable() bool   { return true }

func (o deletePersistentOp) HandleResponse(pkg wire.Package) driver.Outcome {
	if outcome, ok := controlOutcome(pkg); ok {
		return outcome
	}
	if pkg.Command != wire.CmdDeletePersistentSubscriptionCompleted {
		return notHandledOutcome()
	}
	m, err := wire.UnmarshalPersistActionCompleted(pkg.Payload)
	if err != nil {
		return protocolErrorOutcome(err)
	}
	if err := persistActionError(m.Result, m.Reason); err != nil {
		return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Err: err}}
	}
	return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Value: struct{}{}}}
}

// --- shared outcome helpers ----------------------------------------------------

// controlOutcome recognizes the control responses any operation may
// receive instead of its own command-specific Completed reply.
// Authentication and bad-request failures are non-retryable and fail the
// sink directly; NotReady/TooBusy are soft and handled by the registry's
// own busy-retry path. ok is false when pkg is not one of these, meaning
// the caller should continue with its own command check.
func controlOutcome(pkg wire.Package) (outcome driver.Outcome, ok bool) {
	switch pkg.Command {
	case wire.CmdNotAuthenticated:
		return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Err: NewError(ErrNotAuthenticated, "not authenticated")}}, true
	case wire.CmdBadRequest:
		m, err := wire.UnmarshalBadRequest(pkg.Payload)
		if err != nil {
			return protocolErrorOutcome(err), true
		}
		return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Err: NewError(ErrProtocolError, "bad request: "+m.Message)}}, true
	case wire.CmdNotHandled:
		m, err := wire.UnmarshalNotHandled(pkg.Payload)
		if err != nil {
			return protocolErrorOutcome(err), true
		}
		// NotReady/TooBusy: the registry requeues the operation after a
		// fixed OperationCheckPeriod delay, charging a dedicated
		// busy-retry counter instead of the ordinary timeout-retry
		// budget (registry.go's phaseBusyWait).
		if m.Reason == wire.NotHandledNotReady || m.Reason == wire.NotHandledTooBusy {
			return driver.Outcome{Kind: driver.Busy}, true
		}
		return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Err: WrapError(ErrServerBusy, m.Reason.String(), nil)}}, true
	default:
		return driver.Outcome{}, false
	}
}

func notHandledOutcome() driver.Outcome {
	return driver.Outcome{Kind: driver.NotHandled}
}

func protocolErrorOutcome(err error) driver.Outcome {
	return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Err: WrapError(ErrProtocolError, "malformed response payload", err)}}
}
