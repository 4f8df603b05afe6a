package driver

import (
	"time"

	"github.com/google/uuid"

	"github.com/escore-go/escore/internal/wire"
)

// phase is an in-flight operation's position in its life-cycle: queued (no
// connection yet), sent (awaiting a response), or waiting out a
// server-busy backoff before being resent.
type phase int

const (
	phaseQueued phase = iota
	phaseSent
	phaseBusyWait
)

type entry struct {
	op              Operation
	sink            ResultSink
	phase           phase
	deadline        time.Time
	retriesLeft     int
	busyRetriesLeft int
}

// registry is a correlation-id keyed table of in-flight operations with
// deadlines and bounded retries. It never touches the network itself:
// its methods return the packages to write and leave the writing to the
// caller, so it stays unit-testable independent of any real transport.
type registry struct {
	entries     map[uuid.UUID]*entry
	timeout     time.Duration
	checkPeriod time.Duration
	retry       RetryPolicy
	creds       *wire.Credentials
	closed      bool

	onRetry   func(correlationID string, cause string)
	onTimeout func(correlationID string)
}

// RetryPolicy mirrors escore.Retry's Bound/Unlimited shape without
// importing the root package (it would cycle back through driver).
type RetryPolicy struct {
	unlimited bool
	n         int
}

func newRegistry(timeout, checkPeriod time.Duration, retry RetryPolicy, creds *wire.Credentials) *registry {
	return &registry{
		entries:     map[uuid.UUID]*entry{},
		timeout:     timeout,
		checkPeriod: checkPeriod,
		retry:       retry,
		creds:       creds,
		onRetry:     func(string, string) {},
		onTimeout:   func(string) {},
	}
}

// Bound returns the numeric retry ceiling, -1 meaning unlimited.
func (p RetryPolicy) Bound() int {
	if p.unlimited {
		return -1
	}
	return p.n
}

// NewRetryPolicy bounds retries to n attempts.
func NewRetryPolicy(n int) RetryPolicy { return RetryPolicy{n: n} }

// UnlimitedRetryPolicy never gives up.
func UnlimitedRetryPolicy() RetryPolicy { return RetryPolicy{unlimited: true} }

// submit registers a new operation, queued (not yet sent). The caller
// picks the initial correlation id. Once the registry has closed
// (reconnect budget exhausted, or shutdown requested) submissions are
// refused: the sink fails immediately instead of parking an entry
// nothing will ever flush, tick, or resolve.
func (r *registry) submit(id uuid.UUID, op Operation, sink ResultSink) {
	if r.closed {
		sink.resolve(OpResult{Err: connectionClosedError(nil)})
		return
	}
	r.entries[id] = &entry{
		op:              op,
		sink:            sink,
		phase:           phaseQueued,
		retriesLeft:     r.retry.Bound(),
		busyRetriesLeft: r.retry.Bound(),
	}
}

// credentialsFor resolves the wire credentials for an operation: its own
// override, else the connection default.
func (r *registry) credentialsFor(op Operation) *wire.Credentials {
	if c := op.Credentials(); c != nil {
		return c
	}
	return r.creds
}

// flushQueued builds request packages for every queued entry, marking
// each Sent with a fresh deadline. Called once per entry at submission
// time and again for every requeued entry after a reconnect.
func (r *registry) flushQueued(now time.Time) []wire.Package {
	var out []wire.Package
	for id, e := range r.entries {
		if e.phase != phaseQueued {
			continue
		}
		pkg := wire.NewPackage(e.op.Command(), e.op.Payload()).WithCorrelationID(id)
		if creds := r.credentialsFor(e.op); creds != nil {
			pkg.Credentials = creds
		}
		e.phase = phaseSent
		e.deadline = now.Add(r.timeout)
		out = append(out, pkg)
	}
	return out
}

// onPackage routes one inbound package to its correlated entry. It
// returns any packages the operation's outcome demands be written back
// (acks, naks, unsubscribe).
func (r *registry) onPackage(pkg wire.Package, now time.Time) []wire.Package {
	e, ok := r.entries[pkg.CorrelationID]
	if !ok {
		// Stale or unknown correlation id: discard, nothing to send back.
		return nil
	}

	outcome := e.op.HandleResponse(pkg)
	switch outcome.Kind {
	case Completed:
		delete(r.entries, pkg.CorrelationID)
		e.sink.resolve(outcome.Result)
	case NotHandled:
		delete(r.entries, pkg.CorrelationID)
		e.sink.resolve(OpResult{Err: protocolError(pkg)})
	case NeedsMore:
		// Long-lived (subscription) operation: refresh its deadline so it
		// survives as long as traffic keeps arriving.
		e.deadline = now.Add(r.timeout)
	case Busy:
		// Server reported itself not ready/overloaded. This is charged
		// against its own busy-retry counter, not the ordinary
		// timeout-retry budget, and waits out a fixed backoff before
		// being resent (see tick's phaseBusyWait handling).
		if e.busyRetriesLeft == 0 {
			delete(r.entries, pkg.CorrelationID)
			e.sink.resolve(OpResult{Err: serverBusyError()})
			break
		}
		if e.busyRetriesLeft > 0 {
			e.busyRetriesLeft--
		}
		e.phase = phaseBusyWait
		e.deadline = now.Add(r.checkPeriod)
	}
	return outcome.Send
}

// tick expires overdue entries. A phaseSent entry past its deadline either
// gets retried under a fresh correlation id (returned as a package ready
// to send) or, once its retry budget or operation says no, fails its sink
// with an operation-timeout error. A phaseBusyWait entry past its deadline
// is simply resent under a fresh correlation id once its fixed backoff
// has elapsed; its timeout-retry budget is untouched since that charge
// already happened against the busy-retry counter in onPackage.
func (r *registry) tick(now time.Time, regen func() uuid.UUID) []wire.Package {
	var toRetry, toResend []uuid.UUID
	for id, e := range r.entries {
		if now.Before(e.deadline) {
			continue
		}
		switch e.phase {
		case phaseSent:
			toRetry = append(toRetry, id)
		case phaseBusyWait:
			toResend = append(toResend, id)
		}
	}

	var out []wire.Package
	for _, id := range toRetry {
		e := r.entries[id]
		delete(r.entries, id)
		if !e.op.Retryable() || e.retriesLeft == 0 {
			r.onTimeout(id.String())
			e.sink.resolve(OpResult{Err: operationTimeoutError()})
			continue
		}
		if e.retriesLeft > 0 {
			e.retriesLeft--
		}
		r.onRetry(id.String(), "timeout")

		newID := regen()
		pkg := wire.NewPackage(e.op.Command(), e.op.Payload()).WithCorrelationID(newID)
		if creds := r.credentialsFor(e.op); creds != nil {
			pkg.Credentials = creds
		}
		e.phase = phaseSent
		e.deadline = now.Add(r.timeout)
		r.entries[newID] = e
		out = append(out, pkg)
	}

	for _, id := range toResend {
		e := r.entries[id]
		delete(r.entries, id)
		r.onRetry(id.String(), "busy")

		newID := regen()
		pkg := wire.NewPackage(e.op.Command(), e.op.Payload()).WithCorrelationID(newID)
		if creds := r.credentialsFor(e.op); creds != nil {
			pkg.Credentials = creds
		}
		e.phase = phaseSent
		e.deadline = now.Add(r.timeout)
		r.entries[newID] = e
		out = append(out, pkg)
	}
	return out
}

// onReconnected re-queues every still-live entry under a fresh correlation
// id; an entry whose retry budget is already exhausted (retriesLeft == 0),
// or whose operation is not Retryable, fails with ConnectionClosed instead
// of being requeued. Queued entries (never yet sent) always survive: they
// haven't spent a retry attempt.
func (r *registry) onReconnected(regen func() uuid.UUID) {
	old := r.entries
	r.entries = map[uuid.UUID]*entry{}
	for _, e := range old {
		if e.phase != phaseQueued && (e.retriesLeft == 0 || !e.op.Retryable()) {
			e.sink.resolve(OpResult{Err: connectionClosedError(nil)})
			continue
		}
		e.phase = phaseQueued
		r.entries[regen()] = e
	}
}

// onClosing fails every outstanding entry with a connection-closed error
// and refuses all further submissions; called when the supervisor gives
// up reconnecting or a shutdown is requested.
func (r *registry) onClosing(cause error) {
	r.closed = true
	for id, e := range r.entries {
		delete(r.entries, id)
		e.sink.resolve(OpResult{Err: connectionClosedError(cause)})
	}
}

func protocolError(pkg wire.Package) error {
	return &driverError{kind: "protocol", msg: "operation not handled (" + pkg.Command.String() + ")"}
}

func operationTimeoutError() error {
	return &driverError{kind: "timeout", msg: "operation timed out"}
}

func serverBusyError() error {
	return &driverError{kind: "busy", msg: "server busy: retry ceiling reached"}
}

func connectionClosedError(cause error) error {
	return &driverError{kind: "closed", msg: "connection closed", cause: cause}
}

// driverError is a minimal internal error carrying a classification tag
// the root package maps onto escore.ErrorKind, keeping that taxonomy out
// of the driver so it never has to import the public package.
type driverError struct {
	kind  string
	msg   string
	cause error
}

func (e *driverError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *driverError) Unwrap() error { return e.cause }

// Kind exposes the classification tag for the root package's error mapping.
func (e *driverError) Kind() string { return e.kind }
