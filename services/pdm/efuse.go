package pdm

import (
	"fmt"
	"time"

	"vehiclecode-go/services/hal"
)

// EFusePins locates one e-fuse's enable and fault lines.
type EFusePins struct {
	Enable          int
	EnableActiveLow bool
	Fault           int
	FaultActiveLow  bool
	FaultPull       hal.Pull
}

type efuseLines struct {
	enable *hal.Output
	fault  *hal.Input
}

// PinEFuse retries e-fuses by pulsing their enable line off then on, then
// reads the fault line to judge the result. It blocks for the pulse width,
// so run it behind a DeferredDriver.
type PinEFuse struct {
	pulse  time.Duration
	lines  map[SwitchID]efuseLines
	result func(id SwitchID, ok bool)
}

// NewPinEFuse claims every line and closes all switches.
func NewPinEFuse(pins hal.PinFactory, cfg map[SwitchID]EFusePins, pulse time.Duration) (*PinEFuse, error) {
	p := &PinEFuse{pulse: pulse, lines: make(map[SwitchID]efuseLines, len(cfg))}
	for id, c := range cfg {
		ep, ok := pins.ByNumber(c.Enable)
		if !ok {
			return nil, fmt.Errorf("efuse %s: enable pin %d not available", id, c.Enable)
		}
		fp, ok := pins.ByNumber(c.Fault)
		if !ok {
			return nil, fmt.Errorf("efuse %s: fault pin %d not available", id, c.Fault)
		}
		out, err := hal.NewOutput(ep, c.EnableActiveLow)
		if err != nil {
			return nil, fmt.Errorf("efuse %s: %w", id, err)
		}
		in, err := hal.NewInput(fp, c.FaultPull, c.FaultActiveLow)
		if err != nil {
			return nil, fmt.Errorf("efuse %s: %w", id, err)
		}
		out.On()
		p.lines[id] = efuseLines{enable: out, fault: in}
	}
	return p, nil
}

// OnResult sets the callback told whether each retry cleared the fault.
func (p *PinEFuse) OnResult(fn func(id SwitchID, ok bool)) { p.result = fn }

func (p *PinEFuse) RetryClose(id SwitchID) {
	l, ok := p.lines[id]
	if !ok {
		return
	}
	l.enable.Off()
	if p.pulse > 0 {
		time.Sleep(p.pulse)
	}
	l.enable.On()
	if p.result != nil {
		p.result(id, !l.fault.Active())
	}
}

// Faulted reads the fault line now.
func (p *PinEFuse) Faulted(id SwitchID) bool {
	l, ok := p.lines[id]
	return ok && l.fault.Active()
}

// FaultPin returns the raw fault line for interrupt registration.
func (p *PinEFuse) FaultPin(id SwitchID) (hal.Pin, bool) {
	l, ok := p.lines[id]
	if !ok {
		return nil, false
	}
	return l.fault.Pin(), true
}
