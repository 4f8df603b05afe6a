package escore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"github.com/escore-go/escore/internal/wire"
)

func TestEventDataBuildAssignsFreshID(t *testing.T) {
	e, err := EventDataJSON("Created", map[string]int{"a": 1})
	if err != nil {
		t.Fatal(err)
	}
	msg := e.Build()
	if len(msg.EventID) != 16 {
		t.Fatalf("expected a 16-byte event id, got %d bytes", len(msg.EventID))
	}
	if msg.DataContentType != 1 {
		t.Fatalf("expected json content type 1, got %d", msg.DataContentType)
	}
}

func TestEventDataBuildHonorsExplicitID(t *testing.T) {
	id := uuid.New()
	e := EventDataBinary("Raw", []byte{1, 2, 3}).WithID(id)
	msg := e.Build()

	want, _ := id.MarshalBinary()
	if string(msg.EventID) != string(want) {
		t.Fatal("explicit id was not honored")
	}
	if msg.DataContentType != 0 {
		t.Fatalf("expected binary content type 0, got %d", msg.DataContentType)
	}
}

func TestResolvedEventFromWireOriginalEvent(t *testing.T) {
	id := uuid.New()
	idBytes, _ := id.MarshalBinary()

	ev := wire.EventRecordMessage{EventStreamID: "s", EventNumber: 1, EventID: idBytes, EventType: "T", DataContentType: 1, Data: []byte("{}")}
	resolved := wire.ResolvedEventMessage{Event: ev.Marshal(), CommitPosition: 5, PreparePosition: 4}

	got, err := resolvedEventFromWire(resolved)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsResolved() {
		t.Fatal("expected unresolved (no link) event")
	}
	if got.OriginalEvent() == nil || got.OriginalEvent().EventID != id {
		t.Fatal("original event mismatch")
	}
	if !got.OriginalEvent().IsJSON {
		t.Fatal("expected IsJSON true for content type 1")
	}
}

func TestResolvedEventWithLinkIsResolved(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()
	id1b, _ := id1.MarshalBinary()
	id2b, _ := id2.MarshalBinary()

	ev := wire.EventRecordMessage{EventID: id1b, EventType: "T"}
	link := wire.EventRecordMessage{EventID: id2b, EventType: "$>"}
	resolved := wire.ResolvedEventMessage{Event: ev.Marshal(), Link: link.Marshal()}

	got, err := resolvedEventFromWire(resolved)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsResolved() {
		t.Fatal("expected resolved (event+link) event")
	}
	if got.OriginalEvent().EventID != id2 {
		t.Fatal("original event should be the link")
	}
}

func TestStreamMetadataJSONRoundTrip(t *testing.T) {
	want := NewStreamMetadataBuilder().
		MaxCount(1000).
		MaxAge(2*time.Hour).
		TruncateBefore(10).
		CacheControl(15*time.Second).
		Acl(StreamAcl{ReadRoles: []string{"reader"}, WriteRoles: []string{"writer", "admin"}}).
		InsertCustomProperty("owner", "billing-team").
		Build()

	raw, err := json.Marshal(want.jsonMap())
	if err != nil {
		t.Fatal(err)
	}
	got, err := streamMetadataFromJSON(raw)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStreamMetadataFromJSONSplitsCustomProperties(t *testing.T) {
	raw := []byte(`{"$maxCount":5,"$acl":{"$r":["a"]},"color":"blue","weight":3}`)
	got, err := streamMetadataFromJSON(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.MaxCount == nil || *got.MaxCount != 5 {
		t.Fatalf("MaxCount = %v, want 5", got.MaxCount)
	}
	if len(got.Acl.ReadRoles) != 1 || got.Acl.ReadRoles[0] != "a" {
		t.Fatalf("unexpected acl: %+v", got.Acl)
	}
	if got.CustomProperties["color"] != "blue" {
		t.Fatalf("expected custom property to survive, got %+v", got.CustomProperties)
	}
	if _, reserved := got.CustomProperties["$maxCount"]; reserved {
		t.Fatal("reserved key leaked into custom properties")
	}
}

func TestStreamMetadataFromJSONRejectsMalformedReservedKey(t *testing.T) {
	if _, err := streamMetadataFromJSON([]byte(`{"$maxCount":"not-a-number"}`)); err == nil {
		t.Fatal("expected an error for a non-numeric $maxCount")
	}
}
