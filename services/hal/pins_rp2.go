//go:build rp2040 || rp2350

package hal

import (
	"machine"

	"tinygo.org/x/drivers"
)

// BoardI2C configures i2c0 at 400 kHz on the board-default pins. The harness
// expander sits on this bus.
func BoardI2C() drivers.I2C {
	b := machine.I2C0
	_ = b.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.I2C0_SDA_PIN,
		SCL:       machine.I2C0_SCL_PIN,
	})
	return b
}

// BoardPins maps logical numbers directly to machine.Pin(n) (Pico GP numbering).
func BoardPins() PinFactory { return rp2Pins{} }

type rp2Pins struct{}

func (rp2Pins) ByNumber(n int) (Pin, bool) {
	// GP0..GP28 only.
	if n < 0 || n > 28 {
		return nil, false
	}
	return &rp2Pin{p: machine.Pin(n), n: n}, true
}

type rp2Pin struct {
	p machine.Pin
	n int
}

var _ IRQPin = (*rp2Pin)(nil)

func (r *rp2Pin) ConfigureInput(pull Pull) error {
	mode := machine.PinInput
	switch pull {
	case PullUp:
		mode = machine.PinInputPullup
	case PullDown:
		mode = machine.PinInputPulldown
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2Pin) Set(level bool) { r.p.Set(level) }
func (r *rp2Pin) Get() bool      { return r.p.Get() }
func (r *rp2Pin) Number() int    { return r.n }

func (r *rp2Pin) SetIRQ(edge Edge, handler func()) error {
	return r.p.SetInterrupt(pinChange(edge), func(machine.Pin) { handler() })
}

func (r *rp2Pin) ClearIRQ() error {
	var zero machine.PinChange
	return r.p.SetInterrupt(zero, nil)
}

func pinChange(e Edge) machine.PinChange {
	switch e {
	case EdgeRising:
		return machine.PinRising
	case EdgeFalling:
		return machine.PinFalling
	case EdgeBoth:
		return machine.PinToggle
	default:
		var zero machine.PinChange
		return zero
	}
}
