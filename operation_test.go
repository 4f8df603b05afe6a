package escore

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/escore-go/escore/internal/driver"
	"github.com/escore-go/escore/internal/wire"
)

func TestWriteEventsOpHandleResponseSuccess(t *testing.T) {
	op := writeEventsOp{req: wire.WriteEventsMessage{EventStreamID: "s"}}

	completed := wire.WriteEventsCompletedMessage{Result: wire.ResultSuccess, CurrentVersion: 4, CommitPosition: 10, PreparePosition: 9}
	pkg := wire.Package{Command: wire.CmdWriteEventsCompleted, Payload: completed.Marshal()}

	outcome := op.HandleResponse(pkg)
	if outcome.Kind != driver.Completed {
		t.Fatalf("expected Completed, got %v", outcome.Kind)
	}
	if outcome.Result.Err != nil {
		t.Fatalf("unexpected error: %v", outcome.Result.Err)
	}
	res, ok := outcome.Result.Value.(WriteResult)
	if !ok {
		t.Fatalf("unexpected result type %T", outcome.Result.Value)
	}
	if res.NextExpectedVersion != 4 || res.Position != (Position{Commit: 10, Prepare: 9}) {
		t.Fatalf("unexpected write result: %+v", res)
	}
}

func TestWriteEventsOpHandleResponseWrongExpectedVersion(t *testing.T) {
	op := writeEventsOp{req: wire.WriteEventsMessage{EventStreamID: "s"}}
	completed := wire.WriteEventsCompletedMessage{Result: wire.ResultWrongExpectedVersion, Message: "expected 3, got 5"}
	pkg := wire.Package{Command: wire.CmdWriteEventsCompleted, Payload: completed.Marshal()}

	outcome := op.HandleResponse(pkg)
	if outcome.Kind != driver.Completed {
		t.Fatalf("expected Completed (with error), got %v", outcome.Kind)
	}
	escoreErr, ok := outcome.Result.Err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", outcome.Result.Err)
	}
	if escoreErr.Kind != ErrWrongExpectedVersion {
		t.Fatalf("expected ErrWrongExpectedVersion, got %v", escoreErr.Kind)
	}
}

// TestControlOutcomeNotAuthenticatedIsTerminal covers one of the
// non-retryable control responses: any operation awaiting a
// command-specific Completed package instead gets a terminal
// NotAuthenticated failure.
func TestControlOutcomeNotAuthenticatedIsTerminal(t *testing.T) {
	op := writeEventsOp{req: wire.WriteEventsMessage{EventStreamID: "s"}}
	pkg := wire.Package{Command: wire.CmdNotAuthenticated}

	outcome := op.HandleResponse(pkg)
	if outcome.Kind != driver.Completed {
		t.Fatalf("expected Completed, got %v", outcome.Kind)
	}
	escoreErr, ok := outcome.Result.Err.(*Error)
	if !ok || escoreErr.Kind != ErrNotAuthenticated {
		t.Fatalf("expected ErrNotAuthenticated, got %#v", outcome.Result.Err)
	}
}

func TestControlOutcomeBadRequestIsTerminal(t *testing.T) {
	op := readEventOp{req: wire.ReadEventMessage{EventStreamID: "s"}}
	bad := wire.BadRequestMessage{Message: "stream id required"}
	pkg := wire.Package{Command: wire.CmdBadRequest, Payload: bad.Marshal()}

	outcome := op.HandleResponse(pkg)
	if outcome.Kind != driver.Completed {
		t.Fatalf("expected Completed, got %v", outcome.Kind)
	}
	escoreErr, ok := outcome.Result.Err.(*Error)
	if !ok || escoreErr.Kind != ErrProtocolError {
		t.Fatalf("expected ErrProtocolError, got %#v", outcome.Result.Err)
	}
}

// TestControlOutcomeNotReadyIsBusyRetry covers the Busy path: NotReady and
// TooBusy must not fail the operation outright, instead handing it to the
// registry's own busy-retry requeue path.
func TestControlOutcomeNotReadyIsBusyRetry(t *testing.T) {
	op := deleteStreamOp{req: wire.DeleteStreamMessage{EventStreamID: "s"}}
	notHandled := wire.NotHandledMessage{Reason: wire.NotHandledNotReady}
	pkg := wire.Package{Command: wire.CmdNotHandled, Payload: notHandled.Marshal()}

	outcome := op.HandleResponse(pkg)
	if outcome.Kind != driver.Busy {
		t.Fatalf("expected Busy for NotReady, got %v", outcome.Kind)
	}
}

func TestControlOutcomeTooBusyIsBusyRetry(t *testing.T) {
	op := deleteStreamOp{req: wire.DeleteStreamMessage{EventStreamID: "s"}}
	notHandled := wire.NotHandledMessage{Reason: wire.NotHandledTooBusy}
	pkg := wire.Package{Command: wire.CmdNotHandled, Payload: notHandled.Marshal()}

	outcome := op.HandleResponse(pkg)
	if outcome.Kind != driver.Busy {
		t.Fatalf("expected Busy for TooBusy, got %v", outcome.Kind)
	}
}

func TestControlOutcomeNotLeaderIsTerminal(t *testing.T) {
	op := deleteStreamOp{req: wire.DeleteStreamMessage{EventStreamID: "s"}}
	notHandled := wire.NotHandledMessage{Reason: wire.NotHandledNotLeader}
	pkg := wire.Package{Command: wire.CmdNotHandled, Payload: notHandled.Marshal()}

	outcome := op.HandleResponse(pkg)
	if outcome.Kind != driver.Completed {
		t.Fatalf("expected Completed (terminal failure), got %v", outcome.Kind)
	}
	escoreErr, ok := outcome.Result.Err.(*Error)
	if !ok || escoreErr.Kind != ErrServerBusy {
		t.Fatalf("expected ErrServerBusy, got %#v", outcome.Result.Err)
	}
}

// TestReadStreamForwardAndBackwardShareCompletionParsing exercises
// backwardReadOp's reuse of readStreamOp.handleCompleted (client.go).
func TestReadStreamForwardAndBackwardShareCompletionParsing(t *testing.T) {
	completed := wire.ReadStreamEventsCompletedMessage{
		Result:          wire.ReadStreamSuccess,
		NextEventNumber: 3,
		LastEventNumber: 2,
		IsEndOfStream:   true,
	}

	fwd := readStreamOp{req: wire.ReadStreamEventsMessage{EventStreamID: "s"}}
	fwdOutcome := fwd.HandleResponse(wire.Package{Command: wire.CmdReadStreamEventsForwardCompleted, Payload: completed.Marshal()})
	if fwdOutcome.Kind != driver.Completed || fwdOutcome.Result.Err != nil {
		t.Fatalf("forward read: unexpected outcome %+v", fwdOutcome)
	}

	back := backwardReadOp{fwd}
	backOutcome := back.HandleResponse(wire.Package{Command: wire.CmdReadStreamEventsBackwardCompleted, Payload: completed.Marshal()})
	if backOutcome.Kind != driver.Completed || backOutcome.Result.Err != nil {
		t.Fatalf("backward read: unexpected outcome %+v", backOutcome)
	}

	fwdRes := fwdOutcome.Result.Value.(ReadStreamResult)
	backRes := backOutcome.Result.Value.(ReadStreamResult)
	if diff := cmp.Diff(fwdRes, backRes); diff != "" {
		t.Fatalf("expected identical parsing (-fwd +back):\n%s", diff)
	}

	// Backward must not accept the forward command tag as its own completion.
	wrongTag := back.HandleResponse(wire.Package{Command: wire.CmdReadStreamEventsForwardCompleted, Payload: completed.Marshal()})
	if wrongTag.Kind != driver.NotHandled {
		t.Fatalf("expected NotHandled for mismatched command tag, got %v", wrongTag.Kind)
	}
}
