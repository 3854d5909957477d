// Package hal holds the small hardware abstraction the control services are
// written against: GPIO lines with optional edge interrupts, plus the host
// and board implementations of them.
package hal

import "strings"

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// ParsePull accepts "up", "down" and their "pullup"/"pulldown" spellings.
func ParsePull(s string) Pull {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "pullup":
		return PullUp
	case "down", "pulldown":
		return PullDown
	default:
		return PullNone
	}
}

// Pin is one GPIO line.
type Pin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Number() int
}

// Edge selection for IRQ.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// ParseEdge accepts "rising", "falling", "both" (case-insensitive); anything
// else is EdgeNone.
func ParseEdge(s string) Edge {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rising":
		return EdgeRising
	case "falling":
		return EdgeFalling
	case "both":
		return EdgeBoth
	default:
		return EdgeNone
	}
}

// IRQPin extends Pin with interrupts. The handler runs in interrupt context
// and must not block.
type IRQPin interface {
	Pin
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// PinFactory supplies GPIO lines by number.
type PinFactory interface {
	ByNumber(n int) (Pin, bool)
}

// Chain asks each factory in turn; the first that has line n wins.
type Chain []PinFactory

func (c Chain) ByNumber(n int) (Pin, bool) {
	for _, f := range c {
		if p, ok := f.ByNumber(n); ok {
			return p, true
		}
	}
	return nil, false
}
