package driver

import (
	"time"

	"github.com/google/uuid"

	"github.com/escore-go/escore/internal/wire"
)

// heartbeatState tracks whether a probe is outstanding: at most one
// HeartbeatRequest is ever in flight at a time.
type heartbeatState int

const (
	heartbeatIdle heartbeatState = iota
	heartbeatAwaitingPong
)

// heartbeatMonitor tracks the last ingress time, fires a probe after HeartbeatDelay
// of silence, and declares the connection dead if no traffic of any kind
// arrives within HeartbeatTimeout of that probe.
type heartbeatMonitor struct {
	delay   time.Duration
	timeout time.Duration

	state         heartbeatState
	lastIngressAt time.Time
	probeSentAt   time.Time
	probeID       uuid.UUID
}

func newHeartbeatMonitor(delay, timeout time.Duration) *heartbeatMonitor {
	return &heartbeatMonitor{delay: delay, timeout: timeout}
}

// reset marks the connection freshly established: every inbound byte,
// including the handshake response, counts as ingress.
func (h *heartbeatMonitor) reset(now time.Time) {
	h.state = heartbeatIdle
	h.lastIngressAt = now
}

// onIngress is called for every inbound package, not only heartbeat
// responses: any server traffic proves liveness and clears an outstanding
// probe, so a connection under active load is never declared dead just
// because the particular HeartbeatResponse never arrived.
func (h *heartbeatMonitor) onIngress(pkg wire.Package, now time.Time) {
	h.lastIngressAt = now
	h.state = heartbeatIdle
}

// tick evaluates the monitor at the current time, returning a probe
// package to send, or a non-nil error if the connection should be
// declared dead. At most one of the two is non-zero.
func (h *heartbeatMonitor) tick(now time.Time) (*wire.Package, error) {
	switch h.state {
	case heartbeatIdle:
		if now.Sub(h.lastIngressAt) < h.delay {
			return nil, nil
		}
		h.probeID = uuid.New()
		h.probeSentAt = now
		h.state = heartbeatAwaitingPong
		pkg := wire.NewPackage(wire.CmdHeartbeatRequest, nil).WithCorrelationID(h.probeID)
		return &pkg, nil
	case heartbeatAwaitingPong:
		if now.Sub(h.probeSentAt) >= h.timeout {
			return nil, errHeartbeatTimeout
		}
		return nil, nil
	}
	return nil, nil
}

// respondToPeerHeartbeat answers an inbound HeartbeatRequest from the
// server with a HeartbeatResponse under the same correlation id.
func respondToPeerHeartbeat(pkg wire.Package) wire.Package {
	return wire.NewPackage(wire.CmdHeartbeatResponse, nil).WithCorrelationID(pkg.CorrelationID)
}

var errHeartbeatTimeout = &driverError{kind: "HeartbeatTimeout", msg: "heartbeat timeout: connection presumed dead"}
