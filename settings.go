package escore

import "time"

// Settings is the process-wide configuration of a Client; it is immutable
// once Connect has been called.
type Settings struct {
	HeartbeatDelay       time.Duration
	HeartbeatTimeout     time.Duration
	OperationTimeout     time.Duration
	OperationRetry       Retry
	ConnectionRetry      Retry
	DefaultUser          *Credentials
	ConnectionName       string
	OperationCheckPeriod time.Duration
	MaxFrameSize         int
	Observer             Observer
}

// DefaultSettings returns the recommended defaults for all tunables.
func DefaultSettings() Settings {
	return Settings{
		HeartbeatDelay:       750 * time.Millisecond,
		HeartbeatTimeout:     1500 * time.Millisecond,
		OperationTimeout:     7 * time.Second,
		OperationRetry:       RetryOnly(3),
		ConnectionRetry:      RetryOnly(3),
		OperationCheckPeriod: time.Second,
		MaxFrameSize:         16 * 1024 * 1024,
		Observer:             NoopObserver{},
	}
}

func (s Settings) observer() Observer {
	if s.Observer == nil {
		return NoopObserver{}
	}
	return s.Observer
}
