package driver

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/escore-go/escore/internal/wire"
)

// Config is everything the driver loop needs to run, translated from the
// public Settings record by the root package.
type Config struct {
	Endpoints            []string
	MaxFrameSize         int
	HeartbeatDelay       time.Duration
	HeartbeatTimeout     time.Duration
	OperationTimeout     time.Duration
	OperationRetry       RetryPolicy
	ConnectionRetry      RetryPolicy
	DefaultUser          *wire.Credentials
	ConnectionName       string
	OperationCheckPeriod time.Duration

	OnConnected        func(endpoint string)
	OnDisconnected     func(cause error)
	OnReconnecting     func(attempt, maxAttempts int)
	OnOperationRetry   func(correlationID, cause string)
	OnOperationTimeout func(correlationID string)
	OnHeartbeatTimeout func()
}

func (c Config) notifyConnected(endpoint string) {
	if c.OnConnected != nil {
		c.OnConnected(endpoint)
	}
}
func (c Config) notifyDisconnected(cause error) {
	if c.OnDisconnected != nil {
		c.OnDisconnected(cause)
	}
}
func (c Config) notifyReconnecting(attempt, max int) {
	if c.OnReconnecting != nil {
		c.OnReconnecting(attempt, max)
	}
}
func (c Config) notifyRetry(id, cause string) {
	if c.OnOperationRetry != nil {
		c.OnOperationRetry(id, cause)
	}
}
func (c Config) notifyOpTimeout(id string) {
	if c.OnOperationTimeout != nil {
		c.OnOperationTimeout(id)
	}
}
func (c Config) notifyHeartbeatTimeout() {
	if c.OnHeartbeatTimeout != nil {
		c.OnHeartbeatTimeout()
	}
}

// Driver is a single-threaded cooperative event loop: one mailbox, one
// goroutine owning the connection supervisor, heartbeat monitor, and
// operation registry.
type Driver struct {
	cfg     Config
	mailbox chan Msg

	mu     sync.Mutex
	closed bool
}

// New builds a Driver. Call Run to start its loop.
func New(cfg Config) *Driver {
	return &Driver{cfg: cfg, mailbox: make(chan Msg, 256)}
}

// Run starts the event loop in its own goroutine and returns at once. The
// loop exits when ctx is canceled or Shutdown is requested.
func (d *Driver) Run(ctx context.Context) {
	go d.loop(ctx)
}

// Submit enqueues a new operation and returns its result sink. Once the
// loop has exited, the sink resolves immediately with a connection-closed
// error instead of enqueueing into a mailbox nothing drains anymore.
func (d *Driver) Submit(op Operation) ResultSink {
	sink := NewResultSink()
	d.enqueue(MsgNewOp{Op: op, Sink: sink})
	return sink
}

// SubmitWithID enqueues a new operation under a caller-chosen correlation
// id instead of letting the driver generate one. Used for subscriptions,
// whose handle must know its own confirmation id before the server has
// replied.
func (d *Driver) SubmitWithID(id uuid.UUID, op Operation) ResultSink {
	sink := NewResultSink()
	d.enqueue(MsgNewOp{Op: op, Sink: sink, ID: id})
	return sink
}

// Send enqueues a raw package for the loop to write on the current
// connection (used for fire-and-forget writes such as an explicit
// unsubscribe outside an operation's own Outcome.Send). The package is
// dropped if no connection is up when the loop handles it, and once the
// loop has exited.
func (d *Driver) Send(pkg wire.Package) {
	d.enqueue(MsgSend{Pkg: pkg})
}

// Shutdown asks the loop to close its connection and fail every
// outstanding operation, then return. A no-op once the loop has exited.
func (d *Driver) Shutdown() {
	d.enqueue(MsgShutdown{})
}

// enqueue delivers msg to the loop, or refuses it once the loop has
// exited: a MsgNewOp's sink is failed with a connection-closed error,
// everything else is dropped.
func (d *Driver) enqueue(msg Msg) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		refuse(msg)
		return
	}
	d.mailbox <- msg
	d.mu.Unlock()
}

func refuse(msg Msg) {
	if m, ok := msg.(MsgNewOp); ok {
		m.Sink.resolve(OpResult{Err: errShutdown})
	}
}

// finish marks the driver closed so enqueue refuses from here on, and
// fails any submissions that raced into the mailbox while the loop was
// exiting. The first drain also unblocks a sender stuck on a full
// mailbox before the flag is taken.
func (d *Driver) finish() {
	d.drainMailbox()
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.drainMailbox()
}

func (d *Driver) drainMailbox() {
	for {
		select {
		case msg := <-d.mailbox:
			refuse(msg)
		default:
			return
		}
	}
}

var errShutdown = &driverError{kind: "closed", msg: "client shut down"}

func (d *Driver) loop(ctx context.Context) {
	defer d.finish()

	cfg := d.cfg
	sup := newSupervisor(cfg.Endpoints, cfg.ConnectionRetry.Bound())

	checkPeriod := cfg.OperationCheckPeriod
	if checkPeriod <= 0 {
		checkPeriod = time.Second
	}
	reg := newRegistry(cfg.OperationTimeout, checkPeriod, cfg.OperationRetry, cfg.DefaultUser)
	reg.onRetry = cfg.notifyRetry
	reg.onTimeout = cfg.notifyOpTimeout
	hb := newHeartbeatMonitor(cfg.HeartbeatDelay, cfg.HeartbeatTimeout)

	var tr *transport
	var identifyID uuid.UUID

	ticker := time.NewTicker(checkPeriod)
	defer ticker.Stop()

	sendAll := func(pkgs []wire.Package) {
		for _, p := range pkgs {
			if tr != nil {
				_ = tr.send(p)
			}
		}
	}

	connect := func() {
		sup.beginConnecting()
		addr := sup.nextEndpoint()
		t, err := dial(ctx, addr, cfg.MaxFrameSize)
		if err != nil {
			cfg.notifyReconnecting(sup.attempt, sup.maxAttempts)
			if sup.exhausted() {
				sup.becomeClosed()
				reg.onClosing(err)
			}
			return
		}
		tr = t
		sup.beginIdentifying()
		identifyID = uuid.New()
		idMsg := wire.IdentifyClientMessage{Version: 1, ConnectionName: cfg.ConnectionName}
		idPkg := wire.NewPackage(wire.CmdIdentifyClient, idMsg.Marshal()).WithCorrelationID(identifyID)
		_ = tr.send(idPkg)
	}

	handleDisconnect := func(cause error) {
		cfg.notifyDisconnected(cause)
		if tr != nil {
			_ = tr.close()
			tr = nil
		}
		reg.onReconnected(uuid.New)
		if sup.isClosed() {
			return
		}
		connect()
	}

	connect()

	for {
		var incoming <-chan wire.Package
		var closedErr <-chan error
		if tr != nil {
			incoming = tr.incoming
			closedErr = tr.closed
		}

		select {
		case <-ctx.Done():
			if tr != nil {
				_ = tr.close()
			}
			return

		case msg := <-d.mailbox:
			switch m := msg.(type) {
			case MsgShutdown:
				sup.beginClosing()
				if tr != nil {
					_ = tr.close()
				}
				sup.becomeClosed()
				reg.onClosing(errShutdown)
				return

			case MsgSend:
				if tr != nil {
					_ = tr.send(m.Pkg)
				}

			case MsgNewOp:
				id := m.ID
				if id == uuid.Nil {
					id = uuid.New()
				}
				reg.submit(id, m.Op, m.Sink)
				if sup.isConnected() {
					sendAll(reg.flushQueued(time.Now()))
				}
			}

		case now := <-ticker.C:
			if !sup.isConnected() {
				// stateIdentifying: a dial succeeded and we're waiting on
				// ClientIdentified; nothing to do but wait. stateConnecting
				// after the initial connect() call means the previous
				// attempt failed, so each tick is this driver's reconnect
				// backoff and retries immediately.
				if sup.state == stateConnecting && !sup.isClosed() {
					connect()
				}
				continue
			}
			sendAll(reg.tick(now, uuid.New))
			probe, err := hb.tick(now)
			if err != nil {
				cfg.notifyHeartbeatTimeout()
				handleDisconnect(err)
				continue
			}
			if probe != nil {
				_ = tr.send(*probe)
			}

		case pkg, ok := <-incoming:
			if !ok {
				continue
			}
			switch sup.state {
			case stateIdentifying:
				if pkg.CorrelationID == identifyID && pkg.Command == wire.CmdClientIdentified {
					now := time.Now()
					sup.becomeConnected()
					hb.reset(now)
					cfg.notifyConnected(tr.remoteAddr())
					sendAll(reg.flushQueued(now))
				}
			case stateConnected:
				now := time.Now()
				hb.onIngress(pkg, now)
				if pkg.Command == wire.CmdHeartbeatRequest {
					_ = tr.send(respondToPeerHeartbeat(pkg))
					continue
				}
				sendAll(reg.onPackage(pkg, now))
			}

		case err, ok := <-closedErr:
			if !ok {
				continue
			}
			handleDisconnect(err)
		}
	}
}
