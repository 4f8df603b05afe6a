package escore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/escore-go/escore/internal/driver"
	"github.com/escore-go/escore/internal/wire"
)

// SubscriptionAction is returned by a consumer's OnEventAppeared hook:
// Continue keeps the subscription alive, Drop ends it.
type SubscriptionAction int

const (
	Continue SubscriptionAction = iota
	Drop
)

// NakAction is the server-directed disposition of a rejected event.
type NakAction int

const (
	NakUnknown NakAction = iota
	NakPark
	NakRetry
	NakSkip
	NakStop
)

func (a NakAction) toWire() wire.NakAction { return wire.NakAction(a) }

// SubscriptionEnv is the callback surface a persistent-subscription
// consumer uses from inside OnEventAppeared to record how it disposed of
// the event. Acks and naks recorded during one OnEventAppeared call are
// batched and flushed as soon as it returns; they are no-ops on volatile
// and catch-up subscriptions.
type SubscriptionEnv interface {
	Ack(eventID uuid.UUID)
	Nak(eventID uuid.UUID, action NakAction, message string)
	RetryCount() int
}

// Consumer is implemented by callers of SubscribeToStream,
// SubscribeToStreamFrom, and ConnectToPersistentSubscription.
// OnEventAppeared's return value decides whether the subscription
// continues.
type Consumer interface {
	OnConfirmed(sub *Subscription)
	OnEventAppeared(ev ResolvedEvent, env SubscriptionEnv) SubscriptionAction
	OnDropped(reason string)
}

// Subscription is a live handle to a volatile, catch-up, or persistent
// subscription. Its consumer hooks run on a dedicated goroutine the
// driver never blocks on.
type Subscription struct {
	correlationID uuid.UUID
	streamID      string
	groupName     string // persistent only
	isPersistent  bool

	d     *driver.Driver
	wait  *driver.Confirmation
	queue *driver.SubEventQueue

	persistentIDMu sync.RWMutex
	persistentID   string

	closeOnce sync.Once
	closed    chan struct{}
}

// WaitConfirmed blocks until the server confirms the subscription, or
// returns immediately if it already has.
func (s *Subscription) WaitConfirmed(ctx context.Context) error {
	return s.wait.Wait(ctx)
}

// StreamID is the stream (or "" for $all) this subscription was opened on.
func (s *Subscription) StreamID() string { return s.streamID }

// Unsubscribe ends the subscription from the client side: an
// UnsubscribeFromStream package is sent carrying the confirmation id, and
// no further events are delivered.
func (s *Subscription) Unsubscribe() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.queue.Close()
		s.d.Send(wire.NewPackage(wire.CmdUnsubscribeFromStream, nil).WithCorrelationID(s.correlationID))
	})
}

func (s *Subscription) persistentSubscriptionID() string {
	s.persistentIDMu.RLock()
	defer s.persistentIDMu.RUnlock()
	return s.persistentID
}

func (s *Subscription) setPersistentSubscriptionID(id string) {
	s.persistentIDMu.Lock()
	s.persistentID = id
	s.persistentIDMu.Unlock()
}

// run drains sink and drives consumer until the subscription is confirmed
// dropped, the server ends it, or Unsubscribe is called. It owns nothing
// the driver touches: consumer hooks may block arbitrarily long without
// affecting any other operation — backpressure stalls only this
// subscription's queue. The queue is closed on exit so its forwarder
// never blocks on a sink nothing drains anymore.
func (s *Subscription) run(sink driver.SubEventSink, consumer Consumer) {
	defer s.queue.Close()
	for {
		select {
		case <-s.closed:
			return
		case ev, ok := <-sink:
			if !ok {
				return
			}
			if !s.handle(ev, consumer) {
				return
			}
		}
	}
}

// handle processes one SubEvent, returning false once the subscription has
// ended (dropped by either side).
func (s *Subscription) handle(ev driver.SubEvent, consumer Consumer) bool {
	switch ev.Kind {
	case driver.SubConfirmed:
		if ev.PersistentID != "" {
			s.setPersistentSubscriptionID(ev.PersistentID)
		}
		s.wait.Resolve(nil)
		consumer.OnConfirmed(s)
		return true

	case driver.SubEventAppeared:
		resolved, err := resolvedEventFromWire(ev.Event)
		if err != nil {
			consumer.OnDropped("malformed event: " + err.Error())
			return false
		}
		env := newSubscriptionEnv(int(ev.RetryCount))
		action := consumer.OnEventAppeared(resolved, env)
		if s.isPersistent {
			s.flushAckNak(env)
		}
		if action == Drop {
			s.Unsubscribe()
			consumer.OnDropped("consumer requested Drop")
			return false
		}
		return true

	case driver.SubDropped:
		s.wait.Resolve(NewError(ErrConnectionClosed, "dropped before confirmation"))
		consumer.OnDropped(ev.DropReason)
		return false

	default:
		return true
	}
}

// flushAckNak sends one PersistentSubscriptionAckEventsMessage carrying
// every acked event id and one PersistentSubscriptionNakEventsMessage per
// distinct (action, message) group.
func (s *Subscription) flushAckNak(env *subscriptionEnv) {
	subID := s.persistentSubscriptionID()

	if len(env.acks) > 0 {
		msg := wire.PersistentSubscriptionAckEventsMessage{SubscriptionID: subID, ProcessedEventIDs: env.acks}
		s.d.Send(wire.NewPackage(wire.CmdPersistentSubscriptionAckEvents, msg.Marshal()))
	}
	for k, ids := range env.naks {
		msg := wire.PersistentSubscriptionNakEventsMessage{
			SubscriptionID:    subID,
			ProcessedEventIDs: ids,
			Message:           k.message,
			Action:            k.action.toWire(),
		}
		s.d.Send(wire.NewPackage(wire.CmdPersistentSubscriptionNakEvents, msg.Marshal()))
	}
}

// subscriptionEnv buffers one OnEventAppeared call's acks and naks,
// grouping naks by (action, message).
type subscriptionEnv struct {
	retryCount int
	acks       [][]byte
	naks       map[nakKey][][]byte
}

type nakKey struct {
	action  NakAction
	message string
}

func newSubscriptionEnv(retryCount int) *subscriptionEnv {
	return &subscriptionEnv{retryCount: retryCount, naks: map[nakKey][][]byte{}}
}

func (e *subscriptionEnv) Ack(eventID uuid.UUID) {
	id, _ := eventID.MarshalBinary()
	e.acks = append(e.acks, id)
}

func (e *subscriptionEnv) Nak(eventID uuid.UUID, action NakAction, message string) {
	id, _ := eventID.MarshalBinary()
	k := nakKey{action: action, message: message}
	e.naks[k] = append(e.naks[k], id)
}

func (e *subscriptionEnv) RetryCount() int { return e.retryCount }

// --- volatile subscription operation -----------------------------------------

// subscribeOp drives a volatile subscription. It is retryable: after a
// reconnect the driver resubmits it with a fresh correlation id and the
// server resends Confirmed before any events.
type subscribeOp struct {
	opBase
	req   wire.SubscribeToStreamMessage
	queue *driver.SubEventQueue
}

func (o subscribeOp) Command() wire.Cmd { return wire.CmdSubscribeToStream }
func (o subscribeOp) Payload() []byte   { return o.req.Marshal() }
func (o subscribeOp) Retryable() bool   { return true }

func (o subscribeOp) HandleResponse(pkg wire.Package) driver.Outcome {
	if outcome, ok := controlOutcome(pkg); ok {
		return outcome
	}
	switch pkg.Command {
	case wire.CmdSubscriptionConfirmation:
		m, err := wire.UnmarshalSubscriptionConfirmation(pkg.Payload)
		if err != nil {
			return protocolErrorOutcome(err)
		}
		o.queue.Push(driver.SubEvent{
			Kind:               driver.SubConfirmed,
			ConfirmationID:     pkg.CorrelationID,
			LastCommitPosition: m.LastCommitPosition,
			LastEventNumber:    m.LastEventNumber,
		})
		return driver.Outcome{Kind: driver.NeedsMore}

	case wire.CmdStreamEventAppeared:
		m, err := wire.UnmarshalStreamEventAppeared(pkg.Payload)
		if err != nil {
			return protocolErrorOutcome(err)
		}
		resolved, err := wire.UnmarshalResolvedEvent(m.Event)
		if err != nil {
			return protocolErrorOutcome(err)
		}
		o.queue.Push(driver.SubEvent{Kind: driver.SubEventAppeared, Event: resolved})
		return driver.Outcome{Kind: driver.NeedsMore}

	case wire.CmdSubscriptionDropped:
		m, err := wire.UnmarshalSubscriptionDropped(pkg.Payload)
		if err != nil {
			return protocolErrorOutcome(err)
		}
		o.queue.Push(driver.SubEvent{Kind: driver.SubDropped, DropReason: m.Message})
		return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Value: struct{}{}}}

	default:
		return notHandledOutcome()
	}
}

// --- persistent subscription operation ---------------------------------------

// persistentSubscribeOp drives a persistent (consumer-group) subscription.
// Ack/Nak packages ride outside this Operation's own
// request/response pair: Subscription.flushAckNak sends them directly on
// the driver's fire-and-forget Send path, not as retried operations.
type persistentSubscribeOp struct {
	opBase
	req   wire.ConnectToPersistentSubscriptionMessage
	queue *driver.SubEventQueue
}

func (o persistentSubscribeOp) Command() wire.Cmd { return wire.CmdConnectToPersistentSubscription }
func (o persistentSubscribeOp) Payload() []byte   { return o.req.Marshal() }
func (o persistentSubscribeOp) Retryable() bool   { return true }

func (o persistentSubscribeOp) HandleResponse(pkg wire.Package) driver.Outcome {
	if outcome, ok := controlOutcome(pkg); ok {
		return outcome
	}
	switch pkg.Command {
	case wire.CmdPersistentSubscriptionConfirmation:
		m, err := wire.UnmarshalPersistentSubscriptionConfirmation(pkg.Payload)
		if err != nil {
			return protocolErrorOutcome(err)
		}
		o.queue.Push(driver.SubEvent{
			Kind:               driver.SubConfirmed,
			ConfirmationID:     pkg.CorrelationID,
			LastCommitPosition: m.LastCommitPosition,
			LastEventNumber:    m.LastEventNumber,
			PersistentID:       m.SubscriptionID,
		})
		return driver.Outcome{Kind: driver.NeedsMore}

	case wire.CmdPersistentSubscriptionStreamEventAppeared:
		m, err := wire.UnmarshalPersistentSubscriptionStreamEventAppeared(pkg.Payload)
		if err != nil {
			return protocolErrorOutcome(err)
		}
		resolved, err := wire.UnmarshalResolvedEvent(m.Event)
		if err != nil {
			return protocolErrorOutcome(err)
		}
		o.queue.Push(driver.SubEvent{Kind: driver.SubEventAppeared, Event: resolved, RetryCount: m.RetryCount})
		return driver.Outcome{Kind: driver.NeedsMore}

	case wire.CmdSubscriptionDropped:
		m, err := wire.UnmarshalSubscriptionDropped(pkg.Payload)
		if err != nil {
			return protocolErrorOutcome(err)
		}
		o.queue.Push(driver.SubEvent{Kind: driver.SubDropped, DropReason: m.Message})
		return driver.Outcome{Kind: driver.Completed, Result: driver.OpResult{Value: struct{}{}}}

	default:
		return notHandledOutcome()
	}
}
