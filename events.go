package escore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/escore-go/escore/internal/wire"
)

// RecordedEvent is an immutable event as stored by the server.
type RecordedEvent struct {
	EventStreamID string
	EventID       uuid.UUID
	EventNumber   int64
	EventType     string
	Data          []byte
	Metadata      []byte
	IsJSON        bool
	Created       *time.Time
	CreatedEpoch  *int64
}

func recordedEventFromWire(m wire.EventRecordMessage) (RecordedEvent, error) {
	id, err := uuid.FromBytes(m.EventID)
	if err != nil {
		return RecordedEvent{}, WrapError(ErrProtocolError, "decode event id", err)
	}

	rec := RecordedEvent{
		EventStreamID: m.EventStreamID,
		EventID:       id,
		EventNumber:   m.EventNumber,
		EventType:     m.EventType,
		Data:          m.Data,
		Metadata:      m.Metadata,
		IsJSON:        m.DataContentType == 1,
		CreatedEpoch:  m.CreatedEpoch,
	}
	if m.Created != nil {
		t := time.UnixMilli(*m.Created)
		rec.Created = &t
	}
	return rec, nil
}

// AsJSON decodes Data as JSON into v.
func (r RecordedEvent) AsJSON(v any) error {
	return json.Unmarshal(r.Data, v)
}

// ResolvedEvent is the event-or-link-and-event pair returned by reads and
// subscriptions.
type ResolvedEvent struct {
	Event    *RecordedEvent
	Link     *RecordedEvent
	Position *Position
}

// IsResolved reports whether this ResolvedEvent came from a link-to-event.
func (r ResolvedEvent) IsResolved() bool {
	return r.Event != nil && r.Link != nil
}

// OriginalEvent returns the link when resolved, else the event itself.
func (r ResolvedEvent) OriginalEvent() *RecordedEvent {
	if r.Link != nil {
		return r.Link
	}
	return r.Event
}

func resolvedEventFromWire(m wire.ResolvedEventMessage) (ResolvedEvent, error) {
	var out ResolvedEvent

	if m.Event != nil {
		em, err := wire.UnmarshalEventRecord(m.Event)
		if err != nil {
			return ResolvedEvent{}, err
		}
		rec, err := recordedEventFromWire(em)
		if err != nil {
			return ResolvedEvent{}, err
		}
		out.Event = &rec
	}

	if m.Link != nil {
		lm, err := wire.UnmarshalEventRecord(m.Link)
		if err != nil {
			return ResolvedEvent{}, err
		}
		rec, err := recordedEventFromWire(lm)
		if err != nil {
			return ResolvedEvent{}, err
		}
		out.Link = &rec
	}

	pos := Position{Commit: m.CommitPosition, Prepare: m.PreparePosition}
	out.Position = &pos

	return out, nil
}

// payloadKind distinguishes Json from Binary event/metadata payloads.
type payloadKind int

const (
	payloadJSON payloadKind = iota
	payloadBinary
)

type payload struct {
	kind payloadKind
	data []byte
}

// EventData is the build-side representation of an event to append.
// Construct with EventDataJSON or EventDataBinary.
type EventData struct {
	eventType string
	data      payload
	id        *uuid.UUID
	metadata  *payload
}

// EventDataJSON builds an EventData whose payload will be marshalled as JSON.
func EventDataJSON(eventType string, v any) (EventData, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return EventData{}, err
	}
	return EventData{eventType: eventType, data: payload{kind: payloadJSON, data: b}}, nil
}

// EventDataBinary builds an EventData with an opaque binary payload.
func EventDataBinary(eventType string, raw []byte) EventData {
	return EventData{eventType: eventType, data: payload{kind: payloadBinary, data: raw}}
}

// WithID overrides the client-supplied event id (defaults to a fresh v4 UUID at Build).
func (e EventData) WithID(id uuid.UUID) EventData {
	e.id = &id
	return e
}

// WithMetadataJSON attaches a JSON metadata payload.
func (e EventData) WithMetadataJSON(v any) (EventData, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return EventData{}, err
	}
	p := payload{kind: payloadJSON, data: b}
	e.metadata = &p
	return e, nil
}

// WithMetadataBinary attaches an opaque binary metadata payload.
func (e EventData) WithMetadataBinary(raw []byte) EventData {
	p := payload{kind: payloadBinary, data: raw}
	e.metadata = &p
	return e
}

// Build produces the wire event: an id (fresh v4 UUID if unset) and
// data/metadata content-type tags (1=Json, 0=Binary).
func (e EventData) Build() wire.NewEventMessage {
	id := uuid.New()
	if e.id != nil {
		id = *e.id
	}
	idBytes, _ := id.MarshalBinary()

	msg := wire.NewEventMessage{
		EventID:         idBytes,
		EventType:       e.eventType,
		DataContentType: contentType(e.data.kind),
		Data:            e.data.data,
	}

	if e.metadata != nil {
		msg.MetadataContentType = contentType(e.metadata.kind)
		msg.Metadata = e.metadata.data
	}

	return msg
}

func contentType(k payloadKind) int64 {
	if k == payloadJSON {
		return 1
	}
	return 0
}

// Streams are configured through their metadata stream: "$$"+streamID,
// holding $metadata events whose JSON body carries the reserved keys
// below plus any custom properties.
const (
	metastreamPrefix  = "$$"
	metadataEventType = "$metadata"
)

// StreamAcl lists the roles permitted each stream operation.
type StreamAcl struct {
	ReadRoles      []string
	WriteRoles     []string
	DeleteRoles    []string
	MetaReadRoles  []string
	MetaWriteRoles []string
}

// StreamMetadata configures retention, caching, ACLs, and custom properties
// for a stream.
type StreamMetadata struct {
	MaxCount         *uint64
	MaxAge           *time.Duration
	TruncateBefore   *uint64
	CacheControl     *time.Duration
	Acl              StreamAcl
	CustomProperties map[string]any
}

// StreamMetadataBuilder builds a StreamMetadata fluently.
type StreamMetadataBuilder struct {
	meta StreamMetadata
}

// NewStreamMetadataBuilder starts a new builder.
func NewStreamMetadataBuilder() *StreamMetadataBuilder {
	return &StreamMetadataBuilder{meta: StreamMetadata{CustomProperties: map[string]any{}}}
}

func (b *StreamMetadataBuilder) MaxCount(v uint64) *StreamMetadataBuilder {
	b.meta.MaxCount = &v
	return b
}

func (b *StreamMetadataBuilder) MaxAge(v time.Duration) *StreamMetadataBuilder {
	b.meta.MaxAge = &v
	return b
}

func (b *StreamMetadataBuilder) TruncateBefore(v uint64) *StreamMetadataBuilder {
	b.meta.TruncateBefore = &v
	return b
}

func (b *StreamMetadataBuilder) CacheControl(v time.Duration) *StreamMetadataBuilder {
	b.meta.CacheControl = &v
	return b
}

func (b *StreamMetadataBuilder) Acl(v StreamAcl) *StreamMetadataBuilder {
	b.meta.Acl = v
	return b
}

func (b *StreamMetadataBuilder) InsertCustomProperty(key string, value any) *StreamMetadataBuilder {
	b.meta.CustomProperties[key] = value
	return b
}

func (b *StreamMetadataBuilder) Build() StreamMetadata {
	return b.meta
}

// jsonMap renders m as the metadata event's JSON body: reserved keys
// ($maxCount, $maxAge, $tb, $cacheControl, $acl) alongside the custom
// properties. Durations are whole seconds on the wire.
func (m StreamMetadata) jsonMap() map[string]any {
	out := map[string]any{}
	for k, v := range m.CustomProperties {
		out[k] = v
	}
	if m.MaxCount != nil {
		out["$maxCount"] = *m.MaxCount
	}
	if m.MaxAge != nil {
		out["$maxAge"] = int64(m.MaxAge.Seconds())
	}
	if m.TruncateBefore != nil {
		out["$tb"] = *m.TruncateBefore
	}
	if m.CacheControl != nil {
		out["$cacheControl"] = int64(m.CacheControl.Seconds())
	}
	acl := map[string]any{}
	if len(m.Acl.ReadRoles) > 0 {
		acl["$r"] = m.Acl.ReadRoles
	}
	if len(m.Acl.WriteRoles) > 0 {
		acl["$w"] = m.Acl.WriteRoles
	}
	if len(m.Acl.DeleteRoles) > 0 {
		acl["$d"] = m.Acl.DeleteRoles
	}
	if len(m.Acl.MetaReadRoles) > 0 {
		acl["$mr"] = m.Acl.MetaReadRoles
	}
	if len(m.Acl.MetaWriteRoles) > 0 {
		acl["$mw"] = m.Acl.MetaWriteRoles
	}
	if len(acl) > 0 {
		out["$acl"] = acl
	}
	return out
}

// streamMetadataFromJSON decodes a metadata event's body, splitting
// reserved keys from custom properties.
func streamMetadataFromJSON(raw []byte) (StreamMetadata, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return StreamMetadata{}, err
	}

	out := StreamMetadata{CustomProperties: map[string]any{}}
	for key, val := range fields {
		var err error
		switch key {
		case "$maxCount":
			var n uint64
			if err = json.Unmarshal(val, &n); err == nil {
				out.MaxCount = &n
			}
		case "$maxAge":
			var secs int64
			if err = json.Unmarshal(val, &secs); err == nil {
				d := time.Duration(secs) * time.Second
				out.MaxAge = &d
			}
		case "$tb":
			var n uint64
			if err = json.Unmarshal(val, &n); err == nil {
				out.TruncateBefore = &n
			}
		case "$cacheControl":
			var secs int64
			if err = json.Unmarshal(val, &secs); err == nil {
				d := time.Duration(secs) * time.Second
				out.CacheControl = &d
			}
		case "$acl":
			var acl struct {
				Read      []string `json:"$r"`
				Write     []string `json:"$w"`
				Delete    []string `json:"$d"`
				MetaRead  []string `json:"$mr"`
				MetaWrite []string `json:"$mw"`
			}
			if err = json.Unmarshal(val, &acl); err == nil {
				out.Acl = StreamAcl{
					ReadRoles:      acl.Read,
					WriteRoles:     acl.Write,
					DeleteRoles:    acl.Delete,
					MetaReadRoles:  acl.MetaRead,
					MetaWriteRoles: acl.MetaWrite,
				}
			}
		default:
			var v any
			if err = json.Unmarshal(val, &v); err == nil {
				out.CustomProperties[key] = v
			}
		}
		if err != nil {
			return StreamMetadata{}, fmt.Errorf("metadata key %q: %w", key, err)
		}
	}
	return out, nil
}
