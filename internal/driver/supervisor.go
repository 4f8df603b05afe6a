package driver

// connState is the connection supervisor's state machine:
// Init -> Connecting -> Identifying -> Connected -> Closing -> Closed,
// with a bounded number of Connecting attempts before giving up.
type connState int

const (
	stateInit connState = iota
	stateConnecting
	stateIdentifying
	stateConnected
	stateClosing
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateConnecting:
		return "connecting"
	case stateIdentifying:
		return "identifying"
	case stateConnected:
		return "connected"
	case stateClosing:
		return "closing"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// supervisor tracks connection life-cycle state and the reconnect budget.
// It holds no I/O itself; driver.go drives dial/identify/close through it.
type supervisor struct {
	state       connState
	attempt     int
	maxAttempts int // -1 means unlimited, mirroring escore.Retry.Unlimited()
	endpoints   []string
	endpointIdx int
}

func newSupervisor(endpoints []string, maxAttempts int) *supervisor {
	return &supervisor{state: stateInit, endpoints: endpoints, maxAttempts: maxAttempts}
}

// nextEndpoint returns the endpoint to try next, round-robining across
// the configured list.
func (s *supervisor) nextEndpoint() string {
	e := s.endpoints[s.endpointIdx%len(s.endpoints)]
	s.endpointIdx++
	return e
}

func (s *supervisor) beginConnecting() {
	s.state = stateConnecting
	s.attempt++
}

func (s *supervisor) exhausted() bool {
	if s.maxAttempts < 0 {
		return false
	}
	return s.attempt > s.maxAttempts
}

func (s *supervisor) beginIdentifying() { s.state = stateIdentifying }

func (s *supervisor) becomeConnected() {
	s.state = stateConnected
	s.attempt = 0
}

func (s *supervisor) beginClosing() { s.state = stateClosing }

func (s *supervisor) becomeClosed() { s.state = stateClosed }

func (s *supervisor) isConnected() bool { return s.state == stateConnected }

func (s *supervisor) isClosed() bool { return s.state == stateClosed }
