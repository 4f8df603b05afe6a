package driver

import (
	"bufio"
	"context"
	"net"
	"sync"

	"github.com/escore-go/escore/internal/wire"
)

// transport owns one TCP connection's byte-level plumbing: framing
// outbound packages, reading inbound frames on a dedicated goroutine, and
// handing each parsed wire.Package back to the driver loop over a channel.
type transport struct {
	conn net.Conn
	r    *bufio.Reader

	writeMu sync.Mutex

	maxFrameSize int

	incoming  chan wire.Package
	closed    chan error
	quit      chan struct{}
	closeOnce sync.Once
}

// dial opens a TCP connection to addr and starts its ingress pump. The
// returned transport's incoming channel is closed after closed receives
// the disconnect cause.
func dial(ctx context.Context, addr string, maxFrameSize int) (*transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	t := &transport{
		conn:         conn,
		r:            bufio.NewReader(conn),
		maxFrameSize: maxFrameSize,
		incoming:     make(chan wire.Package, 64),
		closed:       make(chan error, 1),
		quit:         make(chan struct{}),
	}
	go t.recvLoop()
	return t, nil
}

func (t *transport) recvLoop() {
	defer close(t.incoming)
	for {
		pkg, err := wire.ReadFrame(t.r, t.maxFrameSize)
		if err != nil {
			t.closed <- err
			return
		}
		// quit unblocks the push once the driver has abandoned this
		// transport and stopped draining incoming.
		select {
		case t.incoming <- pkg:
		case <-t.quit:
			return
		}
	}
}

// send serializes and writes one package. Safe to call concurrently with
// itself (single writer mutex) but is only ever called from the driver
// loop goroutine in practice.
func (t *transport) send(pkg wire.Package) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return wire.WriteFrame(t.conn, pkg)
}

func (t *transport) close() error {
	t.closeOnce.Do(func() { close(t.quit) })
	return t.conn.Close()
}

func (t *transport) remoteAddr() string {
	return t.conn.RemoteAddr().String()
}
