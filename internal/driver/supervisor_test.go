package driver

import "testing"

func TestSupervisorLifecycleTransitions(t *testing.T) {
	s := newSupervisor([]string{"127.0.0.1:1113"}, 3)
	if s.state != stateInit {
		t.Fatalf("expected stateInit, got %v", s.state)
	}

	s.beginConnecting()
	if s.state != stateConnecting || s.attempt != 1 {
		t.Fatalf("after beginConnecting: state=%v attempt=%d", s.state, s.attempt)
	}

	s.beginIdentifying()
	if s.state != stateIdentifying {
		t.Fatalf("expected stateIdentifying, got %v", s.state)
	}
	if s.isConnected() {
		t.Fatal("identifying must not report connected")
	}

	s.becomeConnected()
	if !s.isConnected() {
		t.Fatal("expected connected")
	}

	s.beginClosing()
	if s.state != stateClosing {
		t.Fatalf("expected stateClosing, got %v", s.state)
	}
	s.becomeClosed()
	if !s.isClosed() {
		t.Fatal("expected closed")
	}
}

func TestSupervisorExhaustedAfterBound(t *testing.T) {
	s := newSupervisor([]string{"a:1"}, 2)

	for i := 0; i < 2; i++ {
		s.beginConnecting()
		if s.exhausted() {
			t.Fatalf("attempt %d must still be within the budget of 2", s.attempt)
		}
	}

	s.beginConnecting()
	if !s.exhausted() {
		t.Fatalf("attempt %d should exceed the budget of 2", s.attempt)
	}
}

func TestSupervisorUnlimitedNeverExhausts(t *testing.T) {
	s := newSupervisor([]string{"a:1"}, -1)
	for i := 0; i < 50; i++ {
		s.beginConnecting()
		if s.exhausted() {
			t.Fatalf("unlimited supervisor exhausted at attempt %d", s.attempt)
		}
	}
}

// A successful connection resets the attempt counter: each outage gets
// the full reconnect budget, not whatever was left over from the last one.
func TestSupervisorConnectResetsAttemptCounter(t *testing.T) {
	s := newSupervisor([]string{"a:1"}, 1)

	s.beginConnecting()
	s.beginIdentifying()
	s.becomeConnected()
	if s.attempt != 0 {
		t.Fatalf("expected attempt counter reset on connect, got %d", s.attempt)
	}

	s.beginConnecting()
	if s.exhausted() {
		t.Fatal("first attempt after a successful connection must be within budget")
	}
	s.beginConnecting()
	if !s.exhausted() {
		t.Fatal("second attempt should exceed the budget of 1")
	}
}

func TestSupervisorNextEndpointRoundRobin(t *testing.T) {
	s := newSupervisor([]string{"a:1", "b:2"}, 3)
	want := []string{"a:1", "b:2", "a:1"}
	for i, w := range want {
		if got := s.nextEndpoint(); got != w {
			t.Fatalf("endpoint %d = %q, want %q", i, got, w)
		}
	}
}
