package wire

// Cmd is the one-byte command tag carried on every Package.
type Cmd byte

const (
	CmdHeartbeatRequest  Cmd = 0x01
	CmdHeartbeatResponse Cmd = 0x02

	CmdIdentifyClient   Cmd = 0x05
	CmdClientIdentified Cmd = 0x06

	CmdWriteEvents          Cmd = 0x82
	CmdWriteEventsCompleted Cmd = 0x83

	CmdTransactionStart           Cmd = 0x84
	CmdTransactionStartCompleted  Cmd = 0x85
	CmdTransactionWrite           Cmd = 0x86
	CmdTransactionWriteCompleted  Cmd = 0x87
	CmdTransactionCommit          Cmd = 0x88
	CmdTransactionCommitCompleted Cmd = 0x89

	CmdDeleteStream          Cmd = 0x8A
	CmdDeleteStreamCompleted Cmd = 0x8B

	CmdReadEvent          Cmd = 0xB0
	CmdReadEventCompleted Cmd = 0xB1

	CmdReadStreamEventsForward           Cmd = 0xB2
	CmdReadStreamEventsForwardCompleted  Cmd = 0xB3
	CmdReadStreamEventsBackward          Cmd = 0xB4
	CmdReadStreamEventsBackwardCompleted Cmd = 0xB5

	CmdSubscribeToStream        Cmd = 0xC0
	CmdSubscriptionConfirmation Cmd = 0xC1
	CmdStreamEventAppeared      Cmd = 0xC2
	CmdUnsubscribeFromStream    Cmd = 0xC3
	CmdSubscriptionDropped      Cmd = 0xC4

	CmdConnectToPersistentSubscription           Cmd = 0xC5
	CmdPersistentSubscriptionConfirmation        Cmd = 0xC6
	CmdPersistentSubscriptionStreamEventAppeared Cmd = 0xC7
	CmdPersistentSubscriptionAckEvents           Cmd = 0xC8
	CmdPersistentSubscriptionNakEvents           Cmd = 0xC9
	CmdCreatePersistentSubscription              Cmd = 0xCA
	CmdCreatePersistentSubscriptionCompleted     Cmd = 0xCB
	CmdUpdatePersistentSubscription              Cmd = 0xCC
	CmdUpdatePersistentSubscriptionCompleted     Cmd = 0xCD
	CmdDeletePersistentSubscription              Cmd = 0xCE
	CmdDeletePersistentSubscriptionCompleted     Cmd = 0xCF

	CmdNotHandled       Cmd = 0xF0
	CmdNotAuthenticated Cmd = 0xF1
	CmdBadRequest       Cmd = 0xF2
)

// String names the command for logging/observer use.
func (c Cmd) String() string {
	switch c {
	case CmdHeartbeatRequest:
		return "HeartbeatRequest"
	case CmdHeartbeatResponse:
		return "HeartbeatResponse"
	case CmdIdentifyClient:
		return "IdentifyClient"
	case CmdClientIdentified:
		return "ClientIdentified"
	case CmdWriteEvents:
		return "WriteEvents"
	case CmdWriteEventsCompleted:
		return "WriteEventsCompleted"
	case CmdTransactionStart:
		return "TransactionStart"
	case CmdTransactionStartCompleted:
		return "TransactionStartCompleted"
	case CmdTransactionWrite:
		return "TransactionWrite"
	case CmdTransactionWriteCompleted:
		return "TransactionWriteCompleted"
	case CmdTransactionCommit:
		return "TransactionCommit"
	case CmdTransactionCommitCompleted:
		return "TransactionCommitCompleted"
	case CmdDeleteStream:
		return "DeleteStream"
	case CmdDeleteStreamCompleted:
		return "DeleteStreamCompleted"
	case CmdReadEvent:
		return "ReadEvent"
	case CmdReadEventCompleted:
		return "ReadEventCompleted"
	case CmdReadStreamEventsForward:
		return "ReadStreamEventsForward"
	case CmdReadStreamEventsForwardCompleted:
		return "ReadStreamEventsForwardCompleted"
	case CmdReadStreamEventsBackward:
		return "ReadStreamEventsBackward"
	case CmdReadStreamEventsBackwardCompleted:
		return "ReadStreamEventsBackwardCompleted"
	case CmdSubscribeToStream:
		return "SubscribeToStream"
	case CmdSubscriptionConfirmation:
		return "SubscriptionConfirmation"
	case CmdStreamEventAppeared:
		return "StreamEventAppeared"
	case CmdUnsubscribeFromStream:
		return "UnsubscribeFromStream"
	case CmdSubscriptionDropped:
		return "SubscriptionDropped"
	case CmdConnectToPersistentSubscription:
		return "ConnectToPersistentSubscription"
	case CmdPersistentSubscriptionConfirmation:
		return "PersistentSubscriptionConfirmation"
	case CmdPersistentSubscriptionStreamEventAppeared:
		return "PersistentSubscriptionStreamEventAppeared"
	case CmdPersistentSubscriptionAckEvents:
		return "PersistentSubscriptionAckEvents"
	case CmdPersistentSubscriptionNakEvents:
		return "PersistentSubscriptionNakEvents"
	case CmdCreatePersistentSubscription:
		return "CreatePersistentSubscription"
	case CmdCreatePersistentSubscriptionCompleted:
		return "CreatePersistentSubscriptionCompleted"
	case CmdUpdatePersistentSubscription:
		return "UpdatePersistentSubscription"
	case CmdUpdatePersistentSubscriptionCompleted:
		return "UpdatePersistentSubscriptionCompleted"
	case CmdDeletePersistentSubscription:
		return "DeletePersistentSubscription"
	case CmdDeletePersistentSubscriptionCompleted:
		return "DeletePersistentSubscriptionCompleted"
	case CmdNotHandled:
		return "NotHandled"
	case CmdNotAuthenticated:
		return "NotAuthenticated"
	case CmdBadRequest:
		return "BadRequest"
	default:
		return "Unknown"
	}
}
