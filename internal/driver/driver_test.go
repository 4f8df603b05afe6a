package driver

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/escore-go/escore/internal/wire"
)

func testConfig(addr string) Config {
	return Config{
		Endpoints:            []string{addr},
		MaxFrameSize:         wire.DefaultMaxFrameSize,
		HeartbeatDelay:       time.Minute,
		HeartbeatTimeout:     time.Minute,
		OperationTimeout:     5 * time.Second,
		OperationRetry:       NewRetryPolicy(3),
		ConnectionRetry:      NewRetryPolicy(3),
		ConnectionName:       "driver-test",
		OperationCheckPeriod: 50 * time.Millisecond,
	}
}

// identify answers the IDENTIFY_CLIENT handshake on conn, returning false
// if the first frame is not the expected identify request.
func identify(conn net.Conn, br *bufio.Reader) bool {
	pkg, err := wire.ReadFrame(br, wire.DefaultMaxFrameSize)
	if err != nil || pkg.Command != wire.CmdIdentifyClient {
		return false
	}
	reply := wire.NewPackage(wire.CmdClientIdentified, nil).WithCorrelationID(pkg.CorrelationID)
	return wire.WriteFrame(conn, reply) == nil
}

func TestDriverLoopIdentifiesAndCompletesOperation(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetDeadline(time.Now().Add(5 * time.Second))
		br := bufio.NewReader(conn)

		if !identify(conn, br) {
			return
		}
		opPkg, err := wire.ReadFrame(br, wire.DefaultMaxFrameSize)
		if err != nil {
			return
		}
		reply := wire.NewPackage(wire.CmdWriteEventsCompleted, nil).WithCorrelationID(opPkg.CorrelationID)
		wire.WriteFrame(conn, reply)
	}()

	d := New(testConfig(ln.Addr().String()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Run(ctx)

	sink := d.Submit(fakeOp{
		cmd:     wire.CmdWriteEvents,
		outcome: Outcome{Kind: Completed, Result: OpResult{Value: "done"}},
	})

	select {
	case res := <-sink:
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		if res.Value != "done" {
			t.Fatalf("unexpected result: %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("operation never completed through the loop")
	}
}

// An in-flight operation survives a dropped connection: the loop
// reconnects, re-identifies, and resubmits it under a fresh correlation
// id, and the response on the second connection resolves the original
// sink.
func TestDriverResubmitsOperationAfterReconnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		// First connection: identify, then hang up.
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.SetDeadline(time.Now().Add(5 * time.Second))
		identify(conn, bufio.NewReader(conn))
		conn.Close()

		// Second connection: identify and complete the retried operation.
		conn2, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn2.Close()
		conn2.SetDeadline(time.Now().Add(10 * time.Second))
		br := bufio.NewReader(conn2)
		if !identify(conn2, br) {
			return
		}
		for {
			opPkg, err := wire.ReadFrame(br, wire.DefaultMaxFrameSize)
			if err != nil {
				return
			}
			if opPkg.Command != wire.CmdWriteEvents {
				continue
			}
			reply := wire.NewPackage(wire.CmdWriteEventsCompleted, nil).WithCorrelationID(opPkg.CorrelationID)
			wire.WriteFrame(conn2, reply)
			return
		}
	}()

	d := New(testConfig(ln.Addr().String()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Run(ctx)

	sink := d.Submit(fakeOp{
		cmd:       wire.CmdWriteEvents,
		retryable: true,
		outcome:   Outcome{Kind: Completed, Result: OpResult{Value: "done"}},
	})

	select {
	case res := <-sink:
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("operation never completed across the reconnect")
	}
}

// Once the reconnect budget is exhausted the loop keeps running in the
// closed state and refuses new submissions immediately: the sink fails
// with a connection-closed error instead of parking forever.
func TestDriverRefusesSubmitsOnceRetriesExhausted(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close() // nothing listening: every dial attempt fails

	cfg := testConfig(addr)
	cfg.ConnectionRetry = NewRetryPolicy(0)
	d := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Run(ctx)

	sink := d.Submit(fakeOp{cmd: wire.CmdWriteEvents, retryable: true})

	select {
	case res := <-sink:
		if res.Err == nil {
			t.Fatal("expected a connection-closed error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("submit hung after the reconnect budget was exhausted")
	}
}

// After Shutdown the loop exits and nothing drains the mailbox anymore;
// a later Submit must fail fast rather than enqueue a sink nobody will
// ever resolve.
func TestDriverSubmitAfterShutdownFailsFast(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := testConfig(addr)
	cfg.ConnectionRetry = UnlimitedRetryPolicy()
	d := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Run(ctx)

	d.Shutdown()

	deadline := time.Now().Add(5 * time.Second)
	for {
		d.mu.Lock()
		closed := d.closed
		d.mu.Unlock()
		if closed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("driver never finished shutting down")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sink := d.Submit(fakeOp{cmd: wire.CmdWriteEvents, retryable: true})

	select {
	case res := <-sink:
		if res.Err == nil {
			t.Fatal("expected a connection-closed error")
		}
	case <-time.After(time.Second):
		t.Fatal("submit after shutdown hung instead of failing fast")
	}
}
