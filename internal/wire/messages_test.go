package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func TestWriteEventsRoundTrip(t *testing.T) {
	id := uuid.New()
	idBytes, _ := id.MarshalBinary()

	want := WriteEventsMessage{
		EventStreamID:   "stream-1",
		ExpectedVersion: -1,
		RequireLeader:   true,
		Events: []NewEventMessage{
			{EventID: idBytes, EventType: "Created", DataContentType: 1, Data: []byte(`{"a":1}`)},
		},
	}

	got, err := UnmarshalWriteEvents(want.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestResolvedEventRoundTrip(t *testing.T) {
	rec := EventRecordMessage{
		EventStreamID: "s", EventNumber: 3, EventType: "Created", DataContentType: 1,
		Data: []byte("d"), Metadata: []byte("m"),
	}
	want := ResolvedEventMessage{Event: rec.Marshal(), CommitPosition: 10, PreparePosition: 9}

	got, err := UnmarshalResolvedEvent(want.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
	}

	gotRec, err := UnmarshalEventRecord(got.Event)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(rec, gotRec); diff != "" {
		t.Fatalf("event record mismatch (-want +got):\n%s", diff)
	}
}

func TestPersistentSubscriptionAckNakRoundTrip(t *testing.T) {
	e1 := uuid.New()
	e1b, _ := e1.MarshalBinary()
	e2 := uuid.New()
	e2b, _ := e2.MarshalBinary()

	ack := PersistentSubscriptionAckEventsMessage{SubscriptionID: "g", ProcessedEventIDs: [][]byte{e1b, e2b}}
	gotAck, err := UnmarshalPersistentSubscriptionAckEvents(ack.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(ack, gotAck); diff != "" {
		t.Fatalf("ack round-trip mismatch (-want +got):\n%s", diff)
	}

	nak := PersistentSubscriptionNakEventsMessage{
		SubscriptionID: "g", ProcessedEventIDs: [][]byte{e1b}, Message: "bad", Action: NakPark,
	}
	gotNak, err := UnmarshalPersistentSubscriptionNakEvents(nak.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(nak, gotNak); diff != "" {
		t.Fatalf("nak round-trip mismatch (-want +got):\n%s", diff)
	}
}
