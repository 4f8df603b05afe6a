package wire

// Concrete payload schemas for the commands this core implements end to
// end: write/read/delete/transaction, subscribe/catch-up/persistent, and
// the framing, heartbeat, and ack/nak flows around them.

import "google.golang.org/protobuf/encoding/protowire"

// --- shared event payloads -------------------------------------------------

// NewEventMessage is the build-side wire shape of an appended event.
type NewEventMessage struct {
	EventID             []byte // 16 bytes
	EventType           string
	DataContentType     int64 // 1=Json, 0=Binary
	MetadataContentType int64
	Data                []byte
	Metadata            []byte
}

func (m NewEventMessage) Marshal() []byte {
	w := fieldWriter{}
	w.bytes(1, m.EventID)
	w.str(2, m.EventType)
	w.varint(3, m.DataContentType)
	w.varint(4, m.MetadataContentType)
	w.bytes(5, m.Data)
	w.bytes(6, m.Metadata)
	return w.finish()
}

func UnmarshalNewEvent(buf []byte) (NewEventMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return NewEventMessage{}, err
	}
	return NewEventMessage{
		EventID:             fieldBytes(fields, 1),
		EventType:           fieldString(fields, 2),
		DataContentType:     mustVarint(fields, 3),
		MetadataContentType: mustVarint(fields, 4),
		Data:                fieldBytes(fields, 5),
		Metadata:            fieldBytes(fields, 6),
	}, nil
}

// EventRecordMessage is the server-resolved wire shape of RecordedEvent.
type EventRecordMessage struct {
	EventStreamID   string
	EventNumber     int64
	EventID         []byte
	EventType       string
	DataContentType int64
	Data            []byte
	Metadata        []byte
	Created         *int64
	CreatedEpoch    *int64
}

func (m EventRecordMessage) Marshal() []byte {
	w := fieldWriter{}
	w.str(1, m.EventStreamID)
	w.varint(2, m.EventNumber)
	w.bytes(3, m.EventID)
	w.str(4, m.EventType)
	w.varint(5, m.DataContentType)
	w.bytes(6, m.Data)
	w.bytes(7, m.Metadata)
	if m.Created != nil {
		w.varint(8, *m.Created)
	}
	if m.CreatedEpoch != nil {
		w.varint(9, *m.CreatedEpoch)
	}
	return w.finish()
}

func UnmarshalEventRecord(buf []byte) (EventRecordMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return EventRecordMessage{}, err
	}
	rec := EventRecordMessage{
		EventStreamID:   fieldString(fields, 1),
		EventNumber:     mustVarint(fields, 2),
		EventID:         fieldBytes(fields, 3),
		EventType:       fieldString(fields, 4),
		DataContentType: mustVarint(fields, 5),
		Data:            fieldBytes(fields, 6),
		Metadata:        fieldBytes(fields, 7),
	}
	if v, ok := fieldVarint(fields, 8); ok {
		rec.Created = &v
	}
	if v, ok := fieldVarint(fields, 9); ok {
		rec.CreatedEpoch = &v
	}
	return rec, nil
}

// ResolvedEventMessage is the wire shape of ResolvedEvent.
type ResolvedEventMessage struct {
	Event           []byte // encoded EventRecordMessage, optional
	Link            []byte // encoded EventRecordMessage, optional
	CommitPosition  int64
	PreparePosition int64
}

func (m ResolvedEventMessage) Marshal() []byte {
	w := fieldWriter{}
	if m.Event != nil {
		w.message(1, m.Event)
	}
	if m.Link != nil {
		w.message(2, m.Link)
	}
	w.varint(3, m.CommitPosition)
	w.varint(4, m.PreparePosition)
	return w.finish()
}

func UnmarshalResolvedEvent(buf []byte) (ResolvedEventMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return ResolvedEventMessage{}, err
	}
	return ResolvedEventMessage{
		Event:           fieldBytes(fields, 1),
		Link:            fieldBytes(fields, 2),
		CommitPosition:  mustVarint(fields, 3),
		PreparePosition: mustVarint(fields, 4),
	}, nil
}

func mustVarint(fields []rawField, num protowire.Number) int64 {
	v, _ := fieldVarint(fields, num)
	return v
}

// --- identify / heartbeat ---------------------------------------------------

type IdentifyClientMessage struct {
	Version        int64
	ConnectionName string
}

func (m IdentifyClientMessage) Marshal() []byte {
	w := fieldWriter{}
	w.varint(1, m.Version)
	w.str(2, m.ConnectionName)
	return w.finish()
}

func UnmarshalIdentifyClient(buf []byte) (IdentifyClientMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return IdentifyClientMessage{}, err
	}
	return IdentifyClientMessage{Version: mustVarint(fields, 1), ConnectionName: fieldString(fields, 2)}, nil
}

// --- write events ------------------------------------------------------------

type WriteEventsMessage struct {
	EventStreamID   string
	ExpectedVersion int64
	Events          []NewEventMessage
	RequireLeader   bool
}

func (m WriteEventsMessage) Marshal() []byte {
	w := fieldWriter{}
	w.str(1, m.EventStreamID)
	w.varint(2, m.ExpectedVersion)
	for _, e := range m.Events {
		w.message(3, e.Marshal())
	}
	w.boolean(4, m.RequireLeader)
	return w.finish()
}

func UnmarshalWriteEvents(buf []byte) (WriteEventsMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return WriteEventsMessage{}, err
	}
	msg := WriteEventsMessage{
		EventStreamID:   fieldString(fields, 1),
		ExpectedVersion: mustVarint(fields, 2),
		RequireLeader:   fieldBool(fields, 4),
	}
	for _, raw := range fieldMessages(fields, 3) {
		e, err := UnmarshalNewEvent(raw)
		if err != nil {
			return WriteEventsMessage{}, err
		}
		msg.Events = append(msg.Events, e)
	}
	return msg, nil
}

// WriteResult outcome taxonomy.
type OpResult int64

const (
	ResultSuccess OpResult = iota
	ResultPrepareTimeout
	ResultCommitTimeout
	ResultForwardTimeout
	ResultWrongExpectedVersion
	ResultStreamDeleted
	ResultInvalidTransaction
	ResultAccessDenied
)

type WriteEventsCompletedMessage struct {
	Result          OpResult
	Message         string
	CurrentVersion  int64
	CommitPosition  int64
	PreparePosition int64
}

func (m WriteEventsCompletedMessage) Marshal() []byte {
	w := fieldWriter{}
	w.varint(1, int64(m.Result))
	w.str(2, m.Message)
	w.varint(3, m.CurrentVersion)
	w.varint(4, m.CommitPosition)
	w.varint(5, m.PreparePosition)
	return w.finish()
}

func UnmarshalWriteEventsCompleted(buf []byte) (WriteEventsCompletedMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return WriteEventsCompletedMessage{}, err
	}
	return WriteEventsCompletedMessage{
		Result:          OpResult(mustVarint(fields, 1)),
		Message:         fieldString(fields, 2),
		CurrentVersion:  mustVarint(fields, 3),
		CommitPosition:  mustVarint(fields, 4),
		PreparePosition: mustVarint(fields, 5),
	}, nil
}

// --- read event / read stream -------------------------------------------------

type ReadEventMessage struct {
	EventStreamID  string
	EventNumber    int64
	ResolveLinkTos bool
	RequireLeader  bool
}

func (m ReadEventMessage) Marshal() []byte {
	w := fieldWriter{}
	w.str(1, m.EventStreamID)
	w.varint(2, m.EventNumber)
	w.boolean(3, m.ResolveLinkTos)
	w.boolean(4, m.RequireLeader)
	return w.finish()
}

func UnmarshalReadEvent(buf []byte) (ReadEventMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return ReadEventMessage{}, err
	}
	return ReadEventMessage{
		EventStreamID:  fieldString(fields, 1),
		EventNumber:    mustVarint(fields, 2),
		ResolveLinkTos: fieldBool(fields, 3),
		RequireLeader:  fieldBool(fields, 4),
	}, nil
}

type ReadEventResultCode int64

const (
	ReadEventSuccess ReadEventResultCode = iota
	ReadEventNotFound
	ReadEventNoStream
	ReadEventStreamDeleted
	ReadEventError
	ReadEventAccessDenied
)

type ReadEventCompletedMessage struct {
	Result ReadEventResultCode
	Event  []byte // encoded ResolvedEventMessage, valid iff Result == ReadEventSuccess
	Error  string
}

func (m ReadEventCompletedMessage) Marshal() []byte {
	w := fieldWriter{}
	w.varint(1, int64(m.Result))
	if m.Event != nil {
		w.message(2, m.Event)
	}
	w.str(3, m.Error)
	return w.finish()
}

func UnmarshalReadEventCompleted(buf []byte) (ReadEventCompletedMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return ReadEventCompletedMessage{}, err
	}
	return ReadEventCompletedMessage{
		Result: ReadEventResultCode(mustVarint(fields, 1)),
		Event:  fieldBytes(fields, 2),
		Error:  fieldString(fields, 3),
	}, nil
}

type ReadStreamEventsMessage struct {
	EventStreamID   string
	FromEventNumber int64
	MaxCount        int64
	ResolveLinkTos  bool
	RequireLeader   bool
}

func (m ReadStreamEventsMessage) Marshal() []byte {
	w := fieldWriter{}
	w.str(1, m.EventStreamID)
	w.varint(2, m.FromEventNumber)
	w.varint(3, m.MaxCount)
	w.boolean(4, m.ResolveLinkTos)
	w.boolean(5, m.RequireLeader)
	return w.finish()
}

func UnmarshalReadStreamEvents(buf []byte) (ReadStreamEventsMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return ReadStreamEventsMessage{}, err
	}
	return ReadStreamEventsMessage{
		EventStreamID:   fieldString(fields, 1),
		FromEventNumber: mustVarint(fields, 2),
		MaxCount:        mustVarint(fields, 3),
		ResolveLinkTos:  fieldBool(fields, 4),
		RequireLeader:   fieldBool(fields, 5),
	}, nil
}

type ReadStreamResultCode int64

const (
	ReadStreamSuccess ReadStreamResultCode = iota
	ReadStreamNoStream
	ReadStreamStreamDeleted
	ReadStreamNotModified
	ReadStreamError
	ReadStreamAccessDenied
)

type ReadStreamEventsCompletedMessage struct {
	Events          [][]byte // encoded ResolvedEventMessage
	Result          ReadStreamResultCode
	NextEventNumber int64
	LastEventNumber int64
	IsEndOfStream   bool
	Error           string
}

func (m ReadStreamEventsCompletedMessage) Marshal() []byte {
	w := fieldWriter{}
	for _, e := range m.Events {
		w.message(1, e)
	}
	w.varint(2, int64(m.Result))
	w.varint(3, m.NextEventNumber)
	w.varint(4, m.LastEventNumber)
	w.boolean(5, m.IsEndOfStream)
	w.str(6, m.Error)
	return w.finish()
}

func UnmarshalReadStreamEventsCompleted(buf []byte) (ReadStreamEventsCompletedMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return ReadStreamEventsCompletedMessage{}, err
	}
	return ReadStreamEventsCompletedMessage{
		Events:          fieldMessages(fields, 1),
		Result:          ReadStreamResultCode(mustVarint(fields, 2)),
		NextEventNumber: mustVarint(fields, 3),
		LastEventNumber: mustVarint(fields, 4),
		IsEndOfStream:   fieldBool(fields, 5),
		Error:           fieldString(fields, 6),
	}, nil
}

// --- delete stream -------------------------------------------------------------

type DeleteStreamMessage struct {
	EventStreamID   string
	ExpectedVersion int64
	RequireLeader   bool
	HardDelete      bool
}

func (m DeleteStreamMessage) Marshal() []byte {
	w := fieldWriter{}
	w.str(1, m.EventStreamID)
	w.varint(2, m.ExpectedVersion)
	w.boolean(3, m.RequireLeader)
	w.boolean(4, m.HardDelete)
	return w.finish()
}

func UnmarshalDeleteStream(buf []byte) (DeleteStreamMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return DeleteStreamMessage{}, err
	}
	return DeleteStreamMessage{
		EventStreamID:   fieldString(fields, 1),
		ExpectedVersion: mustVarint(fields, 2),
		RequireLeader:   fieldBool(fields, 3),
		HardDelete:      fieldBool(fields, 4),
	}, nil
}

type DeleteStreamCompletedMessage struct {
	Result          OpResult
	Message         string
	PreparePosition int64
	CommitPosition  int64
}

func (m DeleteStreamCompletedMessage) Marshal() []byte {
	w := fieldWriter{}
	w.varint(1, int64(m.Result))
	w.str(2, m.Message)
	w.varint(3, m.PreparePosition)
	w.varint(4, m.CommitPosition)
	return w.finish()
}

func UnmarshalDeleteStreamCompleted(buf []byte) (DeleteStreamCompletedMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return DeleteStreamCompletedMessage{}, err
	}
	return DeleteStreamCompletedMessage{
		Result:          OpResult(mustVarint(fields, 1)),
		Message:         fieldString(fields, 2),
		PreparePosition: mustVarint(fields, 3),
		CommitPosition:  mustVarint(fields, 4),
	}, nil
}

// --- transactions ----------------------------------------------------------

type TransactionStartMessage struct {
	EventStreamID   string
	ExpectedVersion int64
	RequireLeader   bool
}

func (m TransactionStartMessage) Marshal() []byte {
	w := fieldWriter{}
	w.str(1, m.EventStreamID)
	w.varint(2, m.ExpectedVersion)
	w.boolean(3, m.RequireLeader)
	return w.finish()
}

func UnmarshalTransactionStart(buf []byte) (TransactionStartMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return TransactionStartMessage{}, err
	}
	return TransactionStartMessage{
		EventStreamID:   fieldString(fields, 1),
		ExpectedVersion: mustVarint(fields, 2),
		RequireLeader:   fieldBool(fields, 3),
	}, nil
}

type TransactionStartCompletedMessage struct {
	TransactionID int64
	Result        OpResult
	Message       string
}

func (m TransactionStartCompletedMessage) Marshal() []byte {
	w := fieldWriter{}
	w.varint(1, m.TransactionID)
	w.varint(2, int64(m.Result))
	w.str(3, m.Message)
	return w.finish()
}

func UnmarshalTransactionStartCompleted(buf []byte) (TransactionStartCompletedMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return TransactionStartCompletedMessage{}, err
	}
	return TransactionStartCompletedMessage{
		TransactionID: mustVarint(fields, 1),
		Result:        OpResult(mustVarint(fields, 2)),
		Message:       fieldString(fields, 3),
	}, nil
}

type TransactionWriteMessage struct {
	TransactionID int64
	Events        []NewEventMessage
	RequireLeader bool
}

func (m TransactionWriteMessage) Marshal() []byte {
	w := fieldWriter{}
	w.varint(1, m.TransactionID)
	for _, e := range m.Events {
		w.message(2, e.Marshal())
	}
	w.boolean(3, m.RequireLeader)
	return w.finish()
}

func UnmarshalTransactionWrite(buf []byte) (TransactionWriteMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return TransactionWriteMessage{}, err
	}
	msg := TransactionWriteMessage{TransactionID: mustVarint(fields, 1), RequireLeader: fieldBool(fields, 3)}
	for _, raw := range fieldMessages(fields, 2) {
		e, err := UnmarshalNewEvent(raw)
		if err != nil {
			return TransactionWriteMessage{}, err
		}
		msg.Events = append(msg.Events, e)
	}
	return msg, nil
}

type TransactionWriteCompletedMessage struct {
	TransactionID int64
	Result        OpResult
	Message       string
}

func (m TransactionWriteCompletedMessage) Marshal() []byte {
	w := fieldWriter{}
	w.varint(1, m.TransactionID)
	w.varint(2, int64(m.Result))
	w.str(3, m.Message)
	return w.finish()
}

func UnmarshalTransactionWriteCompleted(buf []byte) (TransactionWriteCompletedMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return TransactionWriteCompletedMessage{}, err
	}
	return TransactionWriteCompletedMessage{
		TransactionID: mustVarint(fields, 1),
		Result:        OpResult(mustVarint(fields, 2)),
		Message:       fieldString(fields, 3),
	}, nil
}

type TransactionCommitMessage struct {
	TransactionID int64
	RequireLeader bool
}

func (m TransactionCommitMessage) Marshal() []byte {
	w := fieldWriter{}
	w.varint(1, m.TransactionID)
	w.boolean(2, m.RequireLeader)
	return w.finish()
}

func UnmarshalTransactionCommit(buf []byte) (TransactionCommitMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return TransactionCommitMessage{}, err
	}
	return TransactionCommitMessage{TransactionID: mustVarint(fields, 1), RequireLeader: fieldBool(fields, 2)}, nil
}

type TransactionCommitCompletedMessage struct {
	TransactionID   int64
	Result          OpResult
	Message         string
	CurrentVersion  int64
	CommitPosition  int64
	PreparePosition int64
}

func (m TransactionCommitCompletedMessage) Marshal() []byte {
	w := fieldWriter{}
	w.varint(1, m.TransactionID)
	w.varint(2, int64(m.Result))
	w.str(3, m.Message)
	w.varint(4, m.CurrentVersion)
	w.varint(5, m.CommitPosition)
	w.varint(6, m.PreparePosition)
	return w.finish()
}

func UnmarshalTransactionCommitCompleted(buf []byte) (TransactionCommitCompletedMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return TransactionCommitCompletedMessage{}, err
	}
	return TransactionCommitCompletedMessage{
		TransactionID:   mustVarint(fields, 1),
		Result:          OpResult(mustVarint(fields, 2)),
		Message:         fieldString(fields, 3),
		CurrentVersion:  mustVarint(fields, 4),
		CommitPosition:  mustVarint(fields, 5),
		PreparePosition: mustVarint(fields, 6),
	}, nil
}

// --- subscriptions (volatile) ------------------------------------------------

type SubscribeToStreamMessage struct {
	EventStreamID  string // empty means $all
	ResolveLinkTos bool
}

func (m SubscribeToStreamMessage) Marshal() []byte {
	w := fieldWriter{}
	w.str(1, m.EventStreamID)
	w.boolean(2, m.ResolveLinkTos)
	return w.finish()
}

func UnmarshalSubscribeToStream(buf []byte) (SubscribeToStreamMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return SubscribeToStreamMessage{}, err
	}
	return SubscribeToStreamMessage{EventStreamID: fieldString(fields, 1), ResolveLinkTos: fieldBool(fields, 2)}, nil
}

type SubscriptionConfirmationMessage struct {
	LastCommitPosition int64
	LastEventNumber    *int64
}

func (m SubscriptionConfirmationMessage) Marshal() []byte {
	w := fieldWriter{}
	w.varint(1, m.LastCommitPosition)
	if m.LastEventNumber != nil {
		w.varint(2, *m.LastEventNumber)
	}
	return w.finish()
}

func UnmarshalSubscriptionConfirmation(buf []byte) (SubscriptionConfirmationMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return SubscriptionConfirmationMessage{}, err
	}
	msg := SubscriptionConfirmationMessage{LastCommitPosition: mustVarint(fields, 1)}
	if v, ok := fieldVarint(fields, 2); ok {
		msg.LastEventNumber = &v
	}
	return msg, nil
}

type StreamEventAppearedMessage struct {
	Event []byte // encoded ResolvedEventMessage
}

func (m StreamEventAppearedMessage) Marshal() []byte {
	w := fieldWriter{}
	w.message(1, m.Event)
	return w.finish()
}

func UnmarshalStreamEventAppeared(buf []byte) (StreamEventAppearedMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return StreamEventAppearedMessage{}, err
	}
	return StreamEventAppearedMessage{Event: fieldBytes(fields, 1)}, nil
}

type DroppedReason int64

const (
	DroppedUnsubscribed DroppedReason = iota
	DroppedAccessDenied
	DroppedNotFound
	DroppedPersistentSubscriptionDeleted
	DroppedSubscriberMaxCountReached
)

type SubscriptionDroppedMessage struct {
	Reason  DroppedReason
	Message string
}

func (m SubscriptionDroppedMessage) Marshal() []byte {
	w := fieldWriter{}
	w.varint(1, int64(m.Reason))
	w.str(2, m.Message)
	return w.finish()
}

func UnmarshalSubscriptionDropped(buf []byte) (SubscriptionDroppedMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return SubscriptionDroppedMessage{}, err
	}
	return SubscriptionDroppedMessage{Reason: DroppedReason(mustVarint(fields, 1)), Message: fieldString(fields, 2)}, nil
}

// --- persistent subscriptions --------------------------------------------------

type ConnectToPersistentSubscriptionMessage struct {
	SubscriptionID          string
	EventStreamID           string
	AllowedInFlightMessages int64
}

func (m ConnectToPersistentSubscriptionMessage) Marshal() []byte {
	w := fieldWriter{}
	w.str(1, m.SubscriptionID)
	w.str(2, m.EventStreamID)
	w.varint(3, m.AllowedInFlightMessages)
	return w.finish()
}

func UnmarshalConnectToPersistentSubscription(buf []byte) (ConnectToPersistentSubscriptionMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return ConnectToPersistentSubscriptionMessage{}, err
	}
	return ConnectToPersistentSubscriptionMessage{
		SubscriptionID:          fieldString(fields, 1),
		EventStreamID:           fieldString(fields, 2),
		AllowedInFlightMessages: mustVarint(fields, 3),
	}, nil
}

type PersistentSubscriptionConfirmationMessage struct {
	LastCommitPosition int64
	SubscriptionID     string
	LastEventNumber    *int64
}

func (m PersistentSubscriptionConfirmationMessage) Marshal() []byte {
	w := fieldWriter{}
	w.varint(1, m.LastCommitPosition)
	w.str(2, m.SubscriptionID)
	if m.LastEventNumber != nil {
		w.varint(3, *m.LastEventNumber)
	}
	return w.finish()
}

func UnmarshalPersistentSubscriptionConfirmation(buf []byte) (PersistentSubscriptionConfirmationMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return PersistentSubscriptionConfirmationMessage{}, err
	}
	msg := PersistentSubscriptionConfirmationMessage{
		LastCommitPosition: mustVarint(fields, 1),
		SubscriptionID:     fieldString(fields, 2),
	}
	if v, ok := fieldVarint(fields, 3); ok {
		msg.LastEventNumber = &v
	}
	return msg, nil
}

type PersistentSubscriptionStreamEventAppearedMessage struct {
	Event      []byte // encoded ResolvedEventMessage
	RetryCount int64
}

func (m PersistentSubscriptionStreamEventAppearedMessage) Marshal() []byte {
	w := fieldWriter{}
	w.message(1, m.Event)
	w.varint(2, m.RetryCount)
	return w.finish()
}

func UnmarshalPersistentSubscriptionStreamEventAppeared(buf []byte) (PersistentSubscriptionStreamEventAppearedMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return PersistentSubscriptionStreamEventAppearedMessage{}, err
	}
	return PersistentSubscriptionStreamEventAppearedMessage{
		Event:      fieldBytes(fields, 1),
		RetryCount: mustVarint(fields, 2),
	}, nil
}

type PersistentSubscriptionAckEventsMessage struct {
	SubscriptionID    string
	ProcessedEventIDs [][]byte // 16 bytes each
}

func (m PersistentSubscriptionAckEventsMessage) Marshal() []byte {
	w := fieldWriter{}
	w.str(1, m.SubscriptionID)
	for _, id := range m.ProcessedEventIDs {
		w.bytes(2, id)
	}
	return w.finish()
}

func UnmarshalPersistentSubscriptionAckEvents(buf []byte) (PersistentSubscriptionAckEventsMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return PersistentSubscriptionAckEventsMessage{}, err
	}
	return PersistentSubscriptionAckEventsMessage{
		SubscriptionID:    fieldString(fields, 1),
		ProcessedEventIDs: fieldMessages(fields, 2),
	}, nil
}

// NakAction is the server-directed disposition of a rejected event.
type NakAction int64

const (
	NakUnknown NakAction = iota
	NakPark
	NakRetry
	NakSkip
	NakStop
)

type PersistentSubscriptionNakEventsMessage struct {
	SubscriptionID    string
	ProcessedEventIDs [][]byte
	Message           string
	Action            NakAction
}

func (m PersistentSubscriptionNakEventsMessage) Marshal() []byte {
	w := fieldWriter{}
	w.str(1, m.SubscriptionID)
	for _, id := range m.ProcessedEventIDs {
		w.bytes(2, id)
	}
	w.str(3, m.Message)
	w.varint(4, int64(m.Action))
	return w.finish()
}

func UnmarshalPersistentSubscriptionNakEvents(buf []byte) (PersistentSubscriptionNakEventsMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return PersistentSubscriptionNakEventsMessage{}, err
	}
	return PersistentSubscriptionNakEventsMessage{
		SubscriptionID:    fieldString(fields, 1),
		ProcessedEventIDs: fieldMessages(fields, 2),
		Message:           fieldString(fields, 3),
		Action:            NakAction(mustVarint(fields, 4)),
	}, nil
}

// --- persistent subscription admin -------------------------------------------

type PersistentSubscriptionConfig struct {
	SubscriptionGroupName string
	EventStreamID         string
	ResolveLinkTos        bool
	StartFrom             int64
	MessageTimeoutMs      int64
	RecordStatistics      bool
	LiveBufferSize        int64
	ReadBatchSize         int64
	BufferSize            int64
	MaxRetryCount         int64
	PreferRoundRobin      bool
	CheckpointAfterMs     int64
	CheckpointMaxCount    int64
	CheckpointMinCount    int64
	SubscriberMaxCount    int64
}

func (m PersistentSubscriptionConfig) Marshal() []byte {
	w := fieldWriter{}
	w.str(1, m.SubscriptionGroupName)
	w.str(2, m.EventStreamID)
	w.boolean(3, m.ResolveLinkTos)
	w.varint(4, m.StartFrom)
	w.varint(5, m.MessageTimeoutMs)
	w.boolean(6, m.RecordStatistics)
	w.varint(7, m.LiveBufferSize)
	w.varint(8, m.ReadBatchSize)
	w.varint(9, m.BufferSize)
	w.varint(10, m.MaxRetryCount)
	w.boolean(11, m.PreferRoundRobin)
	w.varint(12, m.CheckpointAfterMs)
	w.varint(13, m.CheckpointMaxCount)
	w.varint(14, m.CheckpointMinCount)
	w.varint(15, m.SubscriberMaxCount)
	return w.finish()
}

func UnmarshalPersistentSubscriptionConfig(buf []byte) (PersistentSubscriptionConfig, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return PersistentSubscriptionConfig{}, err
	}
	return PersistentSubscriptionConfig{
		SubscriptionGroupName: fieldString(fields, 1),
		EventStreamID:         fieldString(fields, 2),
		ResolveLinkTos:        fieldBool(fields, 3),
		StartFrom:             mustVarint(fields, 4),
		MessageTimeoutMs:      mustVarint(fields, 5),
		RecordStatistics:      fieldBool(fields, 6),
		LiveBufferSize:        mustVarint(fields, 7),
		ReadBatchSize:         mustVarint(fields, 8),
		BufferSize:            mustVarint(fields, 9),
		MaxRetryCount:         mustVarint(fields, 10),
		PreferRoundRobin:      fieldBool(fields, 11),
		CheckpointAfterMs:     mustVarint(fields, 12),
		CheckpointMaxCount:    mustVarint(fields, 13),
		CheckpointMinCount:    mustVarint(fields, 14),
		SubscriberMaxCount:    mustVarint(fields, 15),
	}, nil
}

// PersistActionResultCode is the outcome of a persistent-subscription admin action.
type PersistActionResultCode int64

const (
	PersistActionSuccess PersistActionResultCode = iota
	PersistActionAlreadyExists
	PersistActionDoesNotExist
	PersistActionFail
	PersistActionAccessDenied
)

type PersistActionCompletedMessage struct {
	Result PersistActionResultCode
	Reason string
}

func (m PersistActionCompletedMessage) Marshal() []byte {
	w := fieldWriter{}
	w.varint(1, int64(m.Result))
	w.str(2, m.Reason)
	return w.finish()
}

func UnmarshalPersistActionCompleted(buf []byte) (PersistActionCompletedMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return PersistActionCompletedMessage{}, err
	}
	return PersistActionCompletedMessage{Result: PersistActionResultCode(mustVarint(fields, 1)), Reason: fieldString(fields, 2)}, nil
}

type DeletePersistentSubscriptionMessage struct {
	SubscriptionGroupName string
	EventStreamID         string
}

func (m DeletePersistentSubscriptionMessage) Marshal() []byte {
	w := fieldWriter{}
	w.str(1, m.SubscriptionGroupName)
	w.str(2, m.EventStreamID)
	return w.finish()
}

func UnmarshalDeletePersistentSubscription(buf []byte) (DeletePersistentSubscriptionMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return DeletePersistentSubscriptionMessage{}, err
	}
	return DeletePersistentSubscriptionMessage{
		SubscriptionGroupName: fieldString(fields, 1),
		EventStreamID:         fieldString(fields, 2),
	}, nil
}

// --- error/control payloads --------------------------------------------------

type NotHandledReason int64

const (
	NotHandledNotReady NotHandledReason = iota
	NotHandledTooBusy
	NotHandledNotLeader
	NotHandledIsReadOnly
)

func (r NotHandledReason) String() string {
	switch r {
	case NotHandledNotReady:
		return "NotReady"
	case NotHandledTooBusy:
		return "TooBusy"
	case NotHandledNotLeader:
		return "NotLeader"
	case NotHandledIsReadOnly:
		return "IsReadOnly"
	default:
		return "Unknown"
	}
}

type NotHandledMessage struct {
	Reason NotHandledReason
}

func (m NotHandledMessage) Marshal() []byte {
	w := fieldWriter{}
	w.varint(1, int64(m.Reason))
	return w.finish()
}

func UnmarshalNotHandled(buf []byte) (NotHandledMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return NotHandledMessage{}, err
	}
	return NotHandledMessage{Reason: NotHandledReason(mustVarint(fields, 1))}, nil
}

type BadRequestMessage struct {
	Message string
}

func (m BadRequestMessage) Marshal() []byte {
	w := fieldWriter{}
	w.str(1, m.Message)
	return w.finish()
}

func UnmarshalBadRequest(buf []byte) (BadRequestMessage, error) {
	fields, err := parseFields(buf)
	if err != nil {
		return BadRequestMessage{}, err
	}
	return BadRequestMessage{Message: fieldString(fields, 1)}, nil
}
