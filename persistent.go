package escore

import (
	"time"

	"github.com/escore-go/escore/internal/wire"
)

// SystemConsumerStrategy picks how a persistent subscription's consumer
// group distributes events across connected consumers.
type SystemConsumerStrategy int

const (
	DispatchToSingle SystemConsumerStrategy = iota
	RoundRobin
)

// PersistentSubscriptionSettings configures how a persistent subscription
// group behaves on the server side.
type PersistentSubscriptionSettings struct {
	ResolveLinkTos        bool
	StartFrom             int64 // event number, or -1 for the live edge
	ExtraStatistics       bool
	MessageTimeout        time.Duration
	MaxRetryCount         int64
	LiveBufferSize        int64
	ReadBatchSize         int64
	HistoryBufferSize     int64
	CheckpointAfter       time.Duration
	MinCheckpointCount    int64
	MaxCheckpointCount    int64
	MaxSubscriberCount    int64 // 0 means unlimited
	NamedConsumerStrategy SystemConsumerStrategy
}

// DefaultPersistentSubscriptionSettings returns the server's stock
// defaults.
func DefaultPersistentSubscriptionSettings() PersistentSubscriptionSettings {
	return PersistentSubscriptionSettings{
		ResolveLinkTos:        false,
		StartFrom:             -1,
		MessageTimeout:        30 * time.Second,
		MaxRetryCount:         500,
		LiveBufferSize:        500,
		ReadBatchSize:         10,
		HistoryBufferSize:     20,
		CheckpointAfter:       2 * time.Second,
		MinCheckpointCount:    10,
		MaxCheckpointCount:    1000,
		MaxSubscriberCount:    0,
		NamedConsumerStrategy: RoundRobin,
	}
}

func (s PersistentSubscriptionSettings) toWire(group, stream string) wire.PersistentSubscriptionConfig {
	return wire.PersistentSubscriptionConfig{
		SubscriptionGroupName: group,
		EventStreamID:         stream,
		ResolveLinkTos:        s.ResolveLinkTos,
		StartFrom:             s.StartFrom,
		MessageTimeoutMs:      s.MessageTimeout.Milliseconds(),
		RecordStatistics:      s.ExtraStatistics,
		LiveBufferSize:        s.LiveBufferSize,
		ReadBatchSize:         s.ReadBatchSize,
		BufferSize:            s.HistoryBufferSize,
		MaxRetryCount:         s.MaxRetryCount,
		PreferRoundRobin:      s.NamedConsumerStrategy == RoundRobin,
		CheckpointAfterMs:     s.CheckpointAfter.Milliseconds(),
		CheckpointMaxCount:    s.MaxCheckpointCount,
		CheckpointMinCount:    s.MinCheckpointCount,
		SubscriberMaxCount:    s.MaxSubscriberCount,
	}
}
