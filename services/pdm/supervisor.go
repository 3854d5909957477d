// Package pdm supervises the power-distribution e-fuses: tripped switches
// are commanded to re-close on every retry-timer fire until a driver reports
// success.
package pdm

import (
	"sort"
	"sync"
)

type FaultState uint8

const (
	Normal FaultState = iota
	Tripped
	Retrying
)

func (s FaultState) String() string {
	switch s {
	case Normal:
		return "normal"
	case Tripped:
		return "tripped"
	case Retrying:
		return "retrying"
	default:
		return "unknown"
	}
}

// SwitchID names one protected switch.
type SwitchID string

// Driver re-closes a switch. RetryClose is called from the timer callback
// and must return quickly without blocking.
type Driver interface {
	RetryClose(id SwitchID)
}

// Status is one entry of a Snapshot.
type Status struct {
	State FaultState
	// Attempts counts retries since the switch last left Normal.
	Attempts uint32
	// Total counts every retry since start.
	Total uint64
}

// Supervisor tracks fault state per switch. Trip/success reports and timer
// fires may arrive from different goroutines.
type Supervisor struct {
	mu      sync.Mutex
	drv     Driver
	entries map[SwitchID]*Status
	ids     []SwitchID
	changed chan struct{}
}

func NewSupervisor(drv Driver, ids ...SwitchID) *Supervisor {
	s := &Supervisor{
		drv:     drv,
		entries: make(map[SwitchID]*Status, len(ids)),
		changed: make(chan struct{}, 1),
	}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add registers id in Normal. Re-adding is a no-op.
func (s *Supervisor) Add(id SwitchID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; ok {
		return
	}
	s.entries[id] = &Status{}
	s.ids = append(s.ids, id)
	sort.Slice(s.ids, func(i, j int) bool { return s.ids[i] < s.ids[j] })
}

// Trip records an external trip. A trip while retrying counts as failure.
func (s *Supervisor) Trip(id SwitchID) { s.move(id, Tripped, Normal, Retrying) }

// Succeeded records that the switch is closed and healthy again.
func (s *Supervisor) Succeeded(id SwitchID) { s.move(id, Normal, Retrying, Tripped) }

// Failed records an explicit failed retry; the next fire retries again.
func (s *Supervisor) Failed(id SwitchID) { s.move(id, Tripped, Retrying) }

func (s *Supervisor) move(id SwitchID, to FaultState, from ...FaultState) {
	s.mu.Lock()
	e := s.entries[id]
	ok := false
	if e != nil {
		for _, f := range from {
			if e.State == f {
				ok = true
				break
			}
		}
	}
	if ok {
		e.State = to
		if to == Normal {
			e.Attempts = 0
		}
	}
	s.mu.Unlock()
	if ok {
		s.notify()
	}
}

// OnTimer issues one RetryClose to every switch that is Tripped, or still
// Retrying because no success arrived since the previous fire. Each becomes
// Retrying. There is no attempt ceiling.
func (s *Supervisor) OnTimer() {
	s.mu.Lock()
	var due []SwitchID
	for _, id := range s.ids {
		e := s.entries[id]
		if e.State == Tripped || e.State == Retrying {
			e.State = Retrying
			e.Attempts++
			e.Total++
			due = append(due, id)
		}
	}
	s.mu.Unlock()

	for _, id := range due {
		s.drv.RetryClose(id)
	}
	if len(due) > 0 {
		s.notify()
	}
}

// State returns Normal for unknown switches.
func (s *Supervisor) State(id SwitchID) FaultState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entries[id]; e != nil {
		return e.State
	}
	return Normal
}

// Faulted is true until the switch has reported success.
func (s *Supervisor) Faulted(id SwitchID) bool { return s.State(id) != Normal }

func (s *Supervisor) Attempts(id SwitchID) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entries[id]; e != nil {
		return e.Attempts
	}
	return 0
}

func (s *Supervisor) Known(id SwitchID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// IDs lists switches in sorted order.
func (s *Supervisor) IDs() []SwitchID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SwitchID(nil), s.ids...)
}

func (s *Supervisor) Snapshot() map[SwitchID]Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[SwitchID]Status, len(s.entries))
	for id, e := range s.entries {
		out[id] = *e
	}
	return out
}

// Changed is signalled (coalesced) after any state or attempt change.
func (s *Supervisor) Changed() <-chan struct{} { return s.changed }

func (s *Supervisor) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}
