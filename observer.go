package escore

import (
	"fmt"
	"io"
	"time"
)

// Observer receives structured notifications for connect/disconnect/retry/
// timeout events, letting a caller plug in its own logging or metrics
// around the connection life-cycle.
type Observer interface {
	OnConnected(endpoint string)
	OnDisconnected(cause error)
	OnReconnecting(attempt, maxAttempts int)
	OnOperationRetry(correlationID string, cause string)
	OnOperationTimeout(correlationID string)
	OnHeartbeatTimeout()
}

// NoopObserver discards every notification.
type NoopObserver struct{}

func (NoopObserver) OnConnected(string)              {}
func (NoopObserver) OnDisconnected(error)            {}
func (NoopObserver) OnReconnecting(int, int)         {}
func (NoopObserver) OnOperationRetry(string, string) {}
func (NoopObserver) OnOperationTimeout(string)       {}
func (NoopObserver) OnHeartbeatTimeout()             {}

// LogObserver writes one line per notification to w.
type LogObserver struct {
	W io.Writer
}

func (o LogObserver) OnConnected(endpoint string) {
	fmt.Fprintf(o.W, "%s CONNECTED: %s\n", o.timestamp(), endpoint)
}

func (o LogObserver) OnDisconnected(cause error) {
	fmt.Fprintf(o.W, "%s DISCONNECTED: %v\n", o.timestamp(), cause)
}

func (o LogObserver) OnReconnecting(attempt, maxAttempts int) {
	fmt.Fprintf(o.W, "%s RECONNECT: attempt %d/%d\n", o.timestamp(), attempt, maxAttempts)
}

func (o LogObserver) OnOperationRetry(correlationID, cause string) {
	fmt.Fprintf(o.W, "%s OPERATION RETRY: %s (%s)\n", o.timestamp(), correlationID, cause)
}

func (o LogObserver) OnOperationTimeout(correlationID string) {
	fmt.Fprintf(o.W, "%s OPERATION TIMEOUT: %s\n", o.timestamp(), correlationID)
}

func (o LogObserver) OnHeartbeatTimeout() {
	fmt.Fprintf(o.W, "%s HEARTBEAT TIMEOUT\n", o.timestamp())
}

func (o LogObserver) timestamp() string {
	return time.Now().Format("15:04:05.000")
}
