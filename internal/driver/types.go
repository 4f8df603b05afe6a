// Package driver implements a single-threaded cooperative event loop: one
// Msg mailbox, one goroutine owning the connection state (supervisor,
// heartbeat, operation registry). Subscriptions are ordinary registry
// entries; each one's SubEventQueue forwards events to its consumer on a
// goroutine of its own. Callers only ever send Msg values in; they never
// reach into driver state directly.
package driver

import (
	"github.com/google/uuid"

	"github.com/escore-go/escore/internal/wire"
)

// OutcomeKind classifies how an Operation disposes of an inbound package.
type OutcomeKind int

const (
	// NeedsMore keeps the entry alive awaiting further packages (a
	// long-lived subscription, for instance).
	NeedsMore OutcomeKind = iota
	// Completed resolves the operation's result sink and removes it.
	Completed
	// NotHandled means the inbound package is not one this operation
	// understands; treated as a protocol error.
	NotHandled
	// Busy means the server reported itself as not ready or overloaded:
	// the registry requeues the operation after a fixed delay, holding
	// its ordinary timeout-retry budget unchanged and charging a
	// separate busy-retry counter instead.
	Busy
)

// OpResult is the value (or error) an Operation's result sink is resolved
// with, exactly once.
type OpResult struct {
	Value any
	Err   error
}

// Outcome is what HandleResponse returns: how the operation disposes of
// the inbound package, its terminal result (if Completed), and any
// packages that must be written back immediately as a side effect (acks,
// naks, unsubscribe) regardless of Kind.
type Outcome struct {
	Kind   OutcomeKind
	Result OpResult
	Send   []wire.Package
}

// Operation is the capability set shared by every concrete request type:
// build a request, interpret a response, and say whether it may be
// retried.
type Operation interface {
	// Command is the tag of the outbound request package.
	Command() wire.Cmd
	// Payload is the outbound request payload.
	Payload() []byte
	// HandleResponse interprets one inbound package correlated to this
	// operation.
	HandleResponse(pkg wire.Package) Outcome
	// Retryable reports whether a timed-out or reconnect-orphaned instance
	// of this operation may be resubmitted under a fresh correlation id.
	Retryable() bool
	// Credentials returns operation-specific credentials, or nil to use
	// the connection's default user.
	Credentials() *wire.Credentials
}

// ResultSink receives the terminal OpResult for a non-subscription
// operation exactly once. It is a buffered channel of capacity 1 so the
// driver never blocks resolving it.
type ResultSink chan OpResult

// NewResultSink allocates a ResultSink.
func NewResultSink() ResultSink { return make(ResultSink, 1) }

func (s ResultSink) resolve(r OpResult) {
	select {
	case s <- r:
	default:
		// Already resolved; a second resolve is a programming bug
		// elsewhere, not a condition to recover from here.
	}
}

// Msg is the mailbox message union the driver loop dequeues one at a
// time. Transport ingress, disconnects, and timer ticks reach the loop
// on their own channels rather than through the mailbox.
type Msg interface{ isMsg() }

type MsgSend struct{ Pkg wire.Package }
type MsgNewOp struct {
	Op   Operation
	Sink ResultSink
	// ID, when non-nil UUID, is the correlation id to assign instead of
	// generating a fresh one. Used by subscriptions so the caller knows
	// the confirmation id before the server ever responds (needed to
	// issue Unsubscribe before a Confirmed has arrived).
	ID uuid.UUID
}
type MsgShutdown struct{}

func (MsgSend) isMsg()     {}
func (MsgNewOp) isMsg()    {}
func (MsgShutdown) isMsg() {}

// SubEvent is a subscription life-cycle notification delivered to a
// consumer: confirmation, a new event, or the stream being dropped.
type SubEvent struct {
	Kind               SubEventKind
	ConfirmationID     uuid.UUID
	LastCommitPosition int64
	LastEventNumber    *int64
	PersistentID       string
	Event              wire.ResolvedEventMessage
	RetryCount         int64
	DropReason         string
}

type SubEventKind int

const (
	SubConfirmed SubEventKind = iota
	SubEventAppeared
	SubDropped
)

// SubEventSink is the bounded channel a subscription's consumer drains.
// The driver never sends on it directly: SubEventQueue's forwarder does,
// blocking there when the consumer is slow so backpressure stalls only
// that subscription's delivery.
type SubEventSink chan SubEvent
