package hal

import (
	"sync"

	"vehiclecode-go/errcode"
)

// SimPin is a host GPIO line. Outputs record what was written; inputs are
// driven from outside with Drive, which also fires a matching IRQ handler.
type SimPin struct {
	n int

	mu      sync.Mutex
	level   bool
	output  bool
	edge    Edge
	handler func()
	writes  int
}

var _ IRQPin = (*SimPin)(nil)

func NewSimPin(n int) *SimPin { return &SimPin{n: n} }

func (p *SimPin) ConfigureInput(pull Pull) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = false
	switch pull {
	case PullUp:
		p.level = true
	case PullDown:
		p.level = false
	}
	return nil
}

func (p *SimPin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = true
	p.level = initial
	return nil
}

func (p *SimPin) Set(level bool) {
	p.mu.Lock()
	p.level = level
	p.writes++
	p.mu.Unlock()
}

func (p *SimPin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *SimPin) Number() int { return p.n }

func (p *SimPin) SetIRQ(edge Edge, handler func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.output {
		return errcode.Unsupported
	}
	p.edge, p.handler = edge, handler
	return nil
}

func (p *SimPin) ClearIRQ() error {
	p.mu.Lock()
	p.edge, p.handler = EdgeNone, nil
	p.mu.Unlock()
	return nil
}

// Drive sets the external level of an input. A registered handler runs on
// the caller's goroutine when the transition matches its edge.
func (p *SimPin) Drive(level bool) {
	p.mu.Lock()
	prev := p.level
	p.level = level
	h := p.handler
	fire := h != nil && prev != level && edgeMatches(p.edge, level)
	p.mu.Unlock()
	if fire {
		h()
	}
}

// Writes counts Set calls since creation.
func (p *SimPin) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

func edgeMatches(e Edge, rising bool) bool {
	switch e {
	case EdgeBoth:
		return true
	case EdgeRising:
		return rising
	case EdgeFalling:
		return !rising
	default:
		return false
	}
}

// SimPins is a PinFactory of SimPins numbered 0..count-1.
type SimPins struct {
	pins []*SimPin
}

func NewSimPins(count int) *SimPins {
	f := &SimPins{pins: make([]*SimPin, count)}
	for i := range f.pins {
		f.pins[i] = NewSimPin(i)
	}
	return f
}

func (f *SimPins) ByNumber(n int) (Pin, bool) {
	p := f.Sim(n)
	if p == nil {
		return nil, false
	}
	return p, true
}

// Sim returns the concrete pin, or nil when n is out of range.
func (f *SimPins) Sim(n int) *SimPin {
	if n < 0 || n >= len(f.pins) {
		return nil
	}
	return f.pins[n]
}
