package pdm

import (
	"sync"
	"testing"
)

type recDriver struct {
	mu    sync.Mutex
	calls []SwitchID
}

func (d *recDriver) RetryClose(id SwitchID) {
	d.mu.Lock()
	d.calls = append(d.calls, id)
	d.mu.Unlock()
}

func (d *recDriver) count(id SwitchID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == id {
			n++
		}
	}
	return n
}

func TestThreeFiresWithoutSuccess(t *testing.T) {
	drv := &recDriver{}
	s := NewSupervisor(drv, "aux1")
	s.Trip("aux1")

	for i := 1; i <= 3; i++ {
		s.OnTimer()
		if got := drv.count("aux1"); got != i {
			t.Fatalf("after fire %d: %d retries", i, got)
		}
		if !s.Faulted("aux1") {
			t.Fatalf("after fire %d: should still be faulted", i)
		}
		// No success since the fire: the switch waits in Retrying and the
		// next fire counts that as a failure.
		if got := s.State("aux1"); got != Retrying {
			t.Fatalf("after fire %d: state=%v", i, got)
		}
	}
	if s.Attempts("aux1") != 3 {
		t.Fatalf("attempts=%d", s.Attempts("aux1"))
	}

	s.Failed("aux1")
	if got := s.State("aux1"); got != Tripped {
		t.Fatalf("state after explicit failure=%v", got)
	}

	s.Succeeded("aux1")
	if s.State("aux1") != Normal || s.Faulted("aux1") {
		t.Fatalf("state after success=%v", s.State("aux1"))
	}
	if s.Attempts("aux1") != 0 {
		t.Fatal("attempts reset on recovery")
	}
	if snap := s.Snapshot()["aux1"]; snap.Total != 3 {
		t.Fatalf("total=%d", snap.Total)
	}
}

func TestNoRetryWhileNormal(t *testing.T) {
	drv := &recDriver{}
	s := NewSupervisor(drv, "aux1", "fan")
	s.OnTimer()
	s.OnTimer()
	if len(drv.calls) != 0 {
		t.Fatalf("retries issued for healthy switches: %v", drv.calls)
	}
}

func TestOnlyFaultedSwitchesRetry(t *testing.T) {
	drv := &recDriver{}
	s := NewSupervisor(drv, "aux1", "fan", "pump")
	s.Trip("fan")
	s.OnTimer()
	if drv.count("fan") != 1 || drv.count("aux1") != 0 || drv.count("pump") != 0 {
		t.Fatalf("calls=%v", drv.calls)
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name  string
		steps func(s *Supervisor)
		want  FaultState
	}{
		{"trip", func(s *Supervisor) { s.Trip("x") }, Tripped},
		{"fire moves to retrying", func(s *Supervisor) { s.Trip("x"); s.OnTimer() }, Retrying},
		{"failed returns to tripped", func(s *Supervisor) { s.Trip("x"); s.OnTimer(); s.Failed("x") }, Tripped},
		{"trip while retrying", func(s *Supervisor) { s.Trip("x"); s.OnTimer(); s.Trip("x") }, Tripped},
		{"success from retrying", func(s *Supervisor) { s.Trip("x"); s.OnTimer(); s.Succeeded("x") }, Normal},
		{"fault cleared on its own", func(s *Supervisor) { s.Trip("x"); s.Succeeded("x") }, Normal},
		{"failed ignored when normal", func(s *Supervisor) { s.Failed("x") }, Normal},
		{"success ignored when normal", func(s *Supervisor) { s.Succeeded("x") }, Normal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSupervisor(&recDriver{}, "x")
			tt.steps(s)
			if got := s.State("x"); got != tt.want {
				t.Fatalf("state=%v want %v", got, tt.want)
			}
		})
	}
}

func TestUnknownSwitchIgnored(t *testing.T) {
	drv := &recDriver{}
	s := NewSupervisor(drv)
	s.Trip("ghost")
	s.OnTimer()
	if len(drv.calls) != 0 || s.Known("ghost") || s.State("ghost") != Normal {
		t.Fatal("unknown switch must not be tracked")
	}
}

func TestChangedIsCoalesced(t *testing.T) {
	s := NewSupervisor(&recDriver{}, "a", "b")
	s.Trip("a")
	s.Trip("b")
	<-s.Changed()
	select {
	case <-s.Changed():
		t.Fatal("notifications should coalesce")
	default:
	}
}

func TestDriverMayReportSynchronously(t *testing.T) {
	var s *Supervisor
	drv := driverFunc(func(id SwitchID) { s.Succeeded(id) })
	s = NewSupervisor(drv, "aux1")
	s.Trip("aux1")
	s.OnTimer()
	if s.State("aux1") != Normal {
		t.Fatalf("state=%v", s.State("aux1"))
	}
}

type driverFunc func(SwitchID)

func (f driverFunc) RetryClose(id SwitchID) { f(id) }

func TestFaultStateString(t *testing.T) {
	if Tripped.String() != "tripped" || FaultState(9).String() != "unknown" {
		t.Fatal("String")
	}
}
