package escore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/escore-go/escore/internal/driver"
	"github.com/escore-go/escore/internal/wire"
)

// catchUpOverlapBound is the page size of the historical reads a catch-up
// subscription makes. It does not cap the overlap across the handoff to
// the live phase: every event appended between the server's Confirmed and
// the end of the historical read is delivered by both phases.
const catchUpOverlapBound = 500

// Client is the public entry point of the core: construct one
// with an endpoint and Settings, then issue operations against it. Every
// write/read/delete/transaction method returns a Future resolvable exactly
// once; every subscribe method returns a live Subscription handle.
type Client struct {
	settings Settings
	d        *driver.Driver
}

// NewClient constructs a Client bound to a single endpoint (host:port).
// Clustering/node discovery is out of scope.
func NewClient(endpoint string, settings Settings) *Client {
	cfg := driver.Config{
		Endpoints:            []string{endpoint},
		MaxFrameSize:         settings.MaxFrameSize,
		HeartbeatDelay:       settings.HeartbeatDelay,
		HeartbeatTimeout:     settings.HeartbeatTimeout,
		OperationTimeout:     settings.OperationTimeout,
		OperationRetry:       toRetryPolicy(settings.OperationRetry),
		ConnectionRetry:      toRetryPolicy(settings.ConnectionRetry),
		DefaultUser:          credsToWire(settings.DefaultUser),
		ConnectionName:       connectionNameOrDefault(settings.ConnectionName),
		OperationCheckPeriod: settings.OperationCheckPeriod,
		OnConnected:          settings.observer().OnConnected,
		OnDisconnected:       settings.observer().OnDisconnected,
		OnReconnecting:       settings.observer().OnReconnecting,
		OnOperationRetry:     settings.observer().OnOperationRetry,
		OnOperationTimeout:   settings.observer().OnOperationTimeout,
		OnHeartbeatTimeout:   settings.observer().OnHeartbeatTimeout,
	}
	return &Client{settings: settings, d: driver.New(cfg)}
}

func connectionNameOrDefault(name string) string {
	if name != "" {
		return name
	}
	return "escore-go-" + uuid.NewString()[:8]
}

func toRetryPolicy(r Retry) driver.RetryPolicy {
	if r.Unlimited() {
		return driver.UnlimitedRetryPolicy()
	}
	return driver.NewRetryPolicy(r.Bound())
}

func credsToWire(c *Credentials) *wire.Credentials {
	if c == nil {
		return nil
	}
	w := c.toWire()
	return w
}

// Connect starts the driver's event loop; the connection it manages dials,
// identifies, and reconnects in the background.
func (c *Client) Connect(ctx context.Context) {
	c.d.Run(ctx)
}

// Close shuts the driver down, failing every in-flight operation's Future
// with ConnectionClosed. Open subscriptions are not notified: their
// consumers get no OnDropped call and a pending WaitConfirmed is not
// released.
func (c *Client) Close() {
	c.d.Shutdown()
}

// Future is a handle to the terminal result of a non-subscription
// operation, resolved exactly once.
type Future[T any] struct {
	sink driver.ResultSink
}

// Wait blocks until the operation resolves or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	select {
	case r := <-f.sink:
		if r.Err != nil {
			return zero, mapDriverError(r.Err)
		}
		v, ok := r.Value.(T)
		if !ok {
			return zero, NewError(ErrProtocolError, fmt.Sprintf("unexpected result type %T", r.Value))
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func submit[T any](c *Client, op driver.Operation) *Future[T] {
	return &Future[T]{sink: c.d.Submit(op)}
}

// --- writes / reads / deletes / transactions --------------------------------

// WriteEvents appends events to a stream under an optimistic-concurrency
// condition.
func (c *Client) WriteEvents(streamID string, expected ExpectedVersion, events ...EventData) *Future[WriteResult] {
	req := wire.WriteEventsMessage{EventStreamID: streamID, ExpectedVersion: expected.ToInt64()}
	for _, e := range events {
		req.Events = append(req.Events, e.Build())
	}
	return submit[WriteResult](c, writeEventsOp{req: req})
}

// ReadEvent reads a single event by stream and event number.
func (c *Client) ReadEvent(streamID string, eventNumber int64, resolveLinkTos bool) *Future[ResolvedEvent] {
	req := wire.ReadEventMessage{EventStreamID: streamID, EventNumber: eventNumber, ResolveLinkTos: resolveLinkTos}
	return submit[ResolvedEvent](c, readEventOp{req: req})
}

// ReadStreamEventsForward reads a forward slice of a stream starting at
// fromEventNumber.
func (c *Client) ReadStreamEventsForward(streamID string, fromEventNumber, maxCount int64, resolveLinkTos bool) *Future[ReadStreamResult] {
	req := wire.ReadStreamEventsMessage{EventStreamID: streamID, FromEventNumber: fromEventNumber, MaxCount: maxCount, ResolveLinkTos: resolveLinkTos}
	return submit[ReadStreamResult](c, readStreamOp{req: req})
}

// ReadStreamEventsBackward reads a backward slice of a stream starting at
// fromEventNumber (use -1 / end-of-stream sentinel to start at the head).
func (c *Client) ReadStreamEventsBackward(streamID string, fromEventNumber, maxCount int64, resolveLinkTos bool) *Future[ReadStreamResult] {
	req := wire.ReadStreamEventsMessage{EventStreamID: streamID, FromEventNumber: fromEventNumber, MaxCount: maxCount, ResolveLinkTos: resolveLinkTos}
	op := readStreamOp{req: req}
	return submit[ReadStreamResult](c, backwardReadOp{op})
}

// backwardReadOp reuses readStreamOp's payload and completed-response
// parsing, overriding the command tag and HandleResponse (which expects
// the backward completed tag): forward and backward reads share every
// field of ReadStreamEventsMessage.
type backwardReadOp struct{ readStreamOp }

func (o backwardReadOp) Command() wire.Cmd { return wire.CmdReadStreamEventsBackward }

func (o backwardReadOp) HandleResponse(pkg wire.Package) driver.Outcome {
	if outcome, ok := controlOutcome(pkg); ok {
		return outcome
	}
	if pkg.Command != wire.CmdReadStreamEventsBackwardCompleted {
		return notHandledOutcome()
	}
	return o.readStreamOp.handleCompleted(pkg)
}

// DeleteStream deletes a stream, optionally permanently (hardDelete).
func (c *Client) DeleteStream(streamID string, expected ExpectedVersion, hardDelete bool) *Future[Position] {
	req := wire.DeleteStreamMessage{EventStreamID: streamID, ExpectedVersion: expected.ToInt64(), HardDelete: hardDelete}
	return submit[Position](c, deleteStreamOp{req: req})
}

// --- stream metadata ---------------------------------------------------------

// StreamMetadataResult pairs decoded stream metadata with the metadata
// stream's version it was read at (usable as the ExpectedVersion of a
// subsequent SetStreamMetadata).
type StreamMetadataResult struct {
	StreamID          string
	MetastreamVersion int64
	Metadata          StreamMetadata
}

// SetStreamMetadata writes meta as a $metadata event on streamID's
// metadata stream ("$$"+streamID). expected is the optimistic-concurrency
// condition on the metadata stream itself, not the data stream.
func (c *Client) SetStreamMetadata(streamID string, expected ExpectedVersion, meta StreamMetadata) *Future[WriteResult] {
	event, err := EventDataJSON(metadataEventType, meta.jsonMap())
	if err != nil {
		f := &Future[WriteResult]{sink: driver.NewResultSink()}
		f.sink <- driver.OpResult{Err: WrapError(ErrProtocolError, "encode stream metadata", err)}
		return f
	}
	return c.WriteEvents(metastreamPrefix+streamID, expected, event)
}

// GetStreamMetadata reads the most recent $metadata event for streamID.
// A stream that never had metadata written surfaces ErrStreamNotFound; a
// deleted stream surfaces ErrStreamDeleted.
func (c *Client) GetStreamMetadata(ctx context.Context, streamID string) (StreamMetadataResult, error) {
	res, err := c.ReadStreamEventsBackward(metastreamPrefix+streamID, -1, 1, false).Wait(ctx)
	if err != nil {
		return StreamMetadataResult{}, err
	}
	if len(res.Events) == 0 {
		return StreamMetadataResult{}, NewError(ErrStreamNotFound, "no metadata for stream "+streamID)
	}
	ev := res.Events[0].OriginalEvent()
	meta, err := streamMetadataFromJSON(ev.Data)
	if err != nil {
		return StreamMetadataResult{}, WrapError(ErrProtocolError, "decode stream metadata", err)
	}
	return StreamMetadataResult{
		StreamID:          streamID,
		MetastreamVersion: ev.EventNumber,
		Metadata:          meta,
	}, nil
}

// TransactionID identifies an in-progress multi-round-trip write
// transaction.
type TransactionID int64

// StartTransaction begins a transaction against streamID.
func (c *Client) StartTransaction(streamID string, expected ExpectedVersion) *Future[TransactionID] {
	req := wire.TransactionStartMessage{EventStreamID: streamID, ExpectedVersion: expected.ToInt64()}
	return submit[TransactionID](c, transactionStartOp{req: req})
}

// TransactionWrite appends events to an open transaction.
func (c *Client) TransactionWrite(txID TransactionID, events ...EventData) *Future[TransactionID] {
	req := wire.TransactionWriteMessage{TransactionID: int64(txID)}
	for _, e := range events {
		req.Events = append(req.Events, e.Build())
	}
	return submit[TransactionID](c, transactionWriteOp{req: req})
}

// TransactionCommit commits an open transaction.
func (c *Client) TransactionCommit(txID TransactionID) *Future[WriteResult] {
	req := wire.TransactionCommitMessage{TransactionID: int64(txID)}
	return submit[WriteResult](c, transactionCommitOp{req: req})
}

// --- persistent subscription admin -------------------------------------------

// CreatePersistentSubscription creates a named consumer group on a stream.
func (c *Client) CreatePersistentSubscription(streamID, groupName string, settings PersistentSubscriptionSettings) *Future[struct{}] {
	return submit[struct{}](c, persistActionOp{cmd: wire.CmdCreatePersistentSubscription, req: settings.toWire(groupName, streamID)})
}

// UpdatePersistentSubscription updates an existing consumer group.
func (c *Client) UpdatePersistentSubscription(streamID, groupName string, settings PersistentSubscriptionSettings) *Future[struct{}] {
	return submit[struct{}](c, persistActionOp{cmd: wire.CmdUpdatePersistentSubscription, req: settings.toWire(groupName, streamID)})
}

// DeletePersistentSubscription removes a consumer group.
func (c *Client) DeletePersistentSubscription(streamID, groupName string) *Future[struct{}] {
	req := wire.DeletePersistentSubscriptionMessage{SubscriptionGroupName: groupName, EventStreamID: streamID}
	return submit[struct{}](c, deletePersistentOp{req: req})
}

// --- subscriptions -----------------------------------------------------------

const subscriptionSinkBufferSize = 256

// SubscribeToStream opens a volatile subscription to a stream ("" for
// $all), delivering every new event from this point on until the
// consumer drops it or the connection dies.
func (c *Client) SubscribeToStream(streamID string, resolveLinkTos bool, consumer Consumer) *Subscription {
	id := uuid.New()
	sink := make(driver.SubEventSink, subscriptionSinkBufferSize)
	queue := driver.NewSubEventQueue(sink)
	sub := &Subscription{
		correlationID: id,
		streamID:      streamID,
		d:             c.d,
		wait:          driver.NewConfirmation(),
		queue:         queue,
		closed:        make(chan struct{}),
	}
	op := subscribeOp{req: wire.SubscribeToStreamMessage{EventStreamID: streamID, ResolveLinkTos: resolveLinkTos}, queue: queue}
	c.d.SubmitWithID(id, op)
	go sub.run(sink, consumer)
	return sub
}

// SubscribeToStreamFrom opens a catch-up subscription: it first subscribes
// live and, once the server confirms, reads historical events from
// fromEventNumber forward in pages of catchUpOverlapBound, then delivers
// the live events buffered meanwhile. Events appended between the
// confirmation and the end of the historical read are delivered twice, and
// their number is not bounded; the consumer must dedupe by event id.
func (c *Client) SubscribeToStreamFrom(ctx context.Context, streamID string, fromEventNumber int64, resolveLinkTos bool, consumer Consumer) *Subscription {
	sink := make(driver.SubEventSink, subscriptionSinkBufferSize)
	sub := &Subscription{
		correlationID: uuid.New(),
		streamID:      streamID,
		d:             c.d,
		wait:          driver.NewConfirmation(),
		queue:         driver.NewSubEventQueue(sink),
		closed:        make(chan struct{}),
	}
	go c.runCatchUp(ctx, sub, sink, streamID, fromEventNumber, resolveLinkTos, consumer)
	return sub
}

// runCatchUp subscribes live first and only then pages through history:
// everything appended after the server's Confirmed buffers on sink while
// the historical read catches up, so the two phases overlap instead of
// leaving a window neither covers. The price is redelivery across the
// handoff, which the consumer dedupes by event id.
func (c *Client) runCatchUp(ctx context.Context, sub *Subscription, sink driver.SubEventSink, streamID string, from int64, resolveLinkTos bool, consumer Consumer) {
	defer sub.queue.Close()
	op := subscribeOp{req: wire.SubscribeToStreamMessage{EventStreamID: streamID, ResolveLinkTos: resolveLinkTos}, queue: sub.queue}
	c.d.SubmitWithID(sub.correlationID, op)

	for confirmed := false; !confirmed; {
		select {
		case <-sub.closed:
			return
		case <-ctx.Done():
			sub.wait.Resolve(ctx.Err())
			consumer.OnDropped("catch-up canceled: " + ctx.Err().Error())
			return
		case ev, ok := <-sink:
			if !ok {
				return
			}
			confirmed = ev.Kind == driver.SubConfirmed
			if !sub.handle(ev, consumer) {
				return
			}
		}
	}

	noopEnv := newSubscriptionEnv(0)
	next := from
	for {
		select {
		case <-sub.closed:
			return
		default:
		}

		res, err := c.ReadStreamEventsForward(streamID, next, catchUpOverlapBound, resolveLinkTos).Wait(ctx)
		if err != nil {
			var ee *Error
			if errors.As(err, &ee) && ee.Kind == ErrStreamNotFound {
				// Nothing to catch up on; the live phase covers the
				// stream from its first event.
				break
			}
			consumer.OnDropped("catch-up read failed: " + err.Error())
			return
		}

		for _, ev := range res.Events {
			if consumer.OnEventAppeared(ev, noopEnv) == Drop {
				sub.Unsubscribe()
				consumer.OnDropped("consumer requested Drop")
				return
			}
		}

		next = res.NextEventNumber
		if res.IsEndOfStream {
			break
		}
	}

	sub.run(sink, consumer)
}

// ConnectToPersistentSubscription connects to a named consumer group on a
// stream, created ahead of time with CreatePersistentSubscription.
// allowedInFlightMessages bounds how many unacknowledged events the
// server will have outstanding to this connection at once.
func (c *Client) ConnectToPersistentSubscription(streamID, groupName string, allowedInFlightMessages int64, consumer Consumer) *Subscription {
	id := uuid.New()
	sink := make(driver.SubEventSink, subscriptionSinkBufferSize)
	queue := driver.NewSubEventQueue(sink)
	sub := &Subscription{
		correlationID: id,
		streamID:      streamID,
		groupName:     groupName,
		isPersistent:  true,
		d:             c.d,
		wait:          driver.NewConfirmation(),
		queue:         queue,
		closed:        make(chan struct{}),
	}
	op := persistentSubscribeOp{
		req: wire.ConnectToPersistentSubscriptionMessage{
			SubscriptionID:          groupName,
			EventStreamID:           streamID,
			AllowedInFlightMessages: allowedInFlightMessages,
		},
		queue: queue,
	}
	c.d.SubmitWithID(id, op)
	go sub.run(sink, consumer)
	return sub
}
