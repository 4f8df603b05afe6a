package driver

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/escore-go/escore/internal/wire"
)

// startServer listens on a loopback port and hands the test the one
// connection its transport dials.
func startServer(t *testing.T) (net.Listener, <-chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	conns := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.SetDeadline(time.Now().Add(5 * time.Second))
		conns <- conn
	}()
	return ln, conns
}

func acceptConn(t *testing.T, conns <-chan net.Conn) net.Conn {
	t.Helper()
	select {
	case conn := <-conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("server never accepted the dialed connection")
		return nil
	}
}

func TestTransportDeliversParsedFrames(t *testing.T) {
	ln, conns := startServer(t)

	tr, err := dial(context.Background(), ln.Addr().String(), wire.DefaultMaxFrameSize)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.close()
	conn := acceptConn(t, conns)

	want := wire.NewPackage(wire.CmdHeartbeatRequest, []byte("ping"))
	if err := wire.WriteFrame(conn, want); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-tr.incoming:
		if got.Command != want.Command || got.CorrelationID != want.CorrelationID || string(got.Payload) != "ping" {
			t.Fatalf("ingress frame mismatch: want %+v, got %+v", want, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("frame never delivered on the incoming channel")
	}
}

func TestTransportSendWritesParseableFrames(t *testing.T) {
	ln, conns := startServer(t)

	tr, err := dial(context.Background(), ln.Addr().String(), wire.DefaultMaxFrameSize)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.close()
	conn := acceptConn(t, conns)

	want := wire.NewPackage(wire.CmdWriteEvents, []byte{1, 2, 3})
	if err := tr.send(want); err != nil {
		t.Fatal(err)
	}

	got, err := wire.ReadFrame(bufio.NewReader(conn), wire.DefaultMaxFrameSize)
	if err != nil {
		t.Fatal(err)
	}
	if got.Command != want.Command || got.CorrelationID != want.CorrelationID {
		t.Fatalf("sent frame mismatch: want %+v, got %+v", want, got)
	}
}

func TestTransportOversizeFrameDropsConnection(t *testing.T) {
	ln, conns := startServer(t)

	tr, err := dial(context.Background(), ln.Addr().String(), 64)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.close()
	conn := acceptConn(t, conns)

	big := wire.NewPackage(wire.CmdWriteEvents, make([]byte, 128))
	if err := wire.WriteFrame(conn, big); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-tr.closed:
		if err != wire.ErrOversizeFrame {
			t.Fatalf("expected ErrOversizeFrame, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("oversize frame never surfaced a disconnect cause")
	}

	select {
	case _, ok := <-tr.incoming:
		if ok {
			t.Fatal("expected no packages, only a closed incoming channel")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("incoming channel never closed after the drop")
	}
}

func TestTransportMalformedHeaderDropsConnection(t *testing.T) {
	ln, conns := startServer(t)

	tr, err := dial(context.Background(), ln.Addr().String(), wire.DefaultMaxFrameSize)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.close()
	conn := acceptConn(t, conns)

	// A complete frame whose body is shorter than the 18-byte package header.
	if _, err := conn.Write([]byte{3, 0, 0, 0, 0x01, 0x00, 0xFF}); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-tr.closed:
		if err != wire.ErrMalformedFrame {
			t.Fatalf("expected ErrMalformedFrame, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("malformed header never surfaced a disconnect cause")
	}
}

func TestTransportShortReadDropsConnection(t *testing.T) {
	ln, conns := startServer(t)

	tr, err := dial(context.Background(), ln.Addr().String(), wire.DefaultMaxFrameSize)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.close()
	conn := acceptConn(t, conns)

	// Declare a 32-byte frame, deliver 2 bytes, hang up.
	if _, err := conn.Write([]byte{32, 0, 0, 0, 0x01, 0x00}); err != nil {
		t.Fatal(err)
	}
	conn.Close()

	select {
	case err := <-tr.closed:
		if err == nil {
			t.Fatal("expected a disconnect cause for the truncated frame")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("short read never surfaced a disconnect cause")
	}
}
