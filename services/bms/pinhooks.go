package bms

import (
	"fmt"

	"vehiclecode-go/services/hal"
)

// PinConfig locates the charger lines.
type PinConfig struct {
	Enable          int
	EnableActiveLow bool
	Sense           int
	SensePull       hal.Pull
	SenseActiveLow  bool
}

// PinHooks drives the charger from GPIO lines.
type PinHooks struct {
	enable *hal.Output
	sense  *hal.Input
}

var _ Hooks = (*PinHooks)(nil)

// NewPinHooks claims both lines from pins. The enable line starts off.
func NewPinHooks(pins hal.PinFactory, cfg PinConfig) (*PinHooks, error) {
	ep, ok := pins.ByNumber(cfg.Enable)
	if !ok {
		return nil, fmt.Errorf("charger enable pin %d: not available", cfg.Enable)
	}
	sp, ok := pins.ByNumber(cfg.Sense)
	if !ok {
		return nil, fmt.Errorf("charger sense pin %d: not available", cfg.Sense)
	}
	out, err := hal.NewOutput(ep, cfg.EnableActiveLow)
	if err != nil {
		return nil, fmt.Errorf("charger enable pin %d: %w", cfg.Enable, err)
	}
	in, err := hal.NewInput(sp, cfg.SensePull, cfg.SenseActiveLow)
	if err != nil {
		return nil, fmt.Errorf("charger sense pin %d: %w", cfg.Sense, err)
	}
	return &PinHooks{enable: out, sense: in}, nil
}

func (p *PinHooks) Enable()           { p.enable.On() }
func (p *PinHooks) Disable()          { p.enable.Off() }
func (p *PinHooks) IsConnected() bool { return p.sense.Active() }
