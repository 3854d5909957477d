package hal

import (
	"fmt"
	"sync"

	"tinygo.org/x/drivers"
)

// TCA9534 register map.
const (
	regInput    = 0x00
	regOutput   = 0x01
	regPolarity = 0x02
	regConfig   = 0x03
)

// DefaultExpanderAddr is the 7-bit address with A0..A2 strapped low.
const DefaultExpanderAddr = 0x20

// Expander is an 8-line I²C GPIO expander. Its lines are exposed as Pins
// numbered base..base+7, so they can sit behind the same PinFactory as the
// MCU's own GPIOs. Interrupts are not supported on expander lines.
type Expander struct {
	i2c  drivers.I2C
	addr uint16
	base int

	mu      sync.Mutex
	out     uint8
	cfg     uint8
	lastErr error
}

// NewExpander resets the device to all inputs with outputs latched low.
func NewExpander(i2c drivers.I2C, addr uint16, base int) (*Expander, error) {
	e := &Expander{i2c: i2c, addr: addr, base: base, cfg: 0xFF}
	if err := e.write(regPolarity, 0x00); err != nil {
		return nil, fmt.Errorf("expander 0x%02x: %w", addr, err)
	}
	if err := e.write(regOutput, e.out); err != nil {
		return nil, fmt.Errorf("expander 0x%02x: %w", addr, err)
	}
	if err := e.write(regConfig, e.cfg); err != nil {
		return nil, fmt.Errorf("expander 0x%02x: %w", addr, err)
	}
	return e, nil
}

func (e *Expander) ByNumber(n int) (Pin, bool) {
	if n < e.base || n >= e.base+8 {
		return nil, false
	}
	return &expPin{e: e, bit: uint8(n - e.base)}, true
}

// Err returns the last bus error seen by Set or Get, then clears it.
func (e *Expander) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.lastErr
	e.lastErr = nil
	return err
}

func (e *Expander) write(reg, v uint8) error {
	return e.i2c.Tx(e.addr, []byte{reg, v}, nil)
}

func (e *Expander) read(reg uint8) (uint8, error) {
	var b [1]byte
	if err := e.i2c.Tx(e.addr, []byte{reg}, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

type expPin struct {
	e   *Expander
	bit uint8
}

// Pull-ups are fixed on the TCA9534; pull is ignored.
func (p *expPin) ConfigureInput(Pull) error {
	e := p.e
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg |= 1 << p.bit
	return e.write(regConfig, e.cfg)
}

func (p *expPin) ConfigureOutput(initial bool) error {
	e := p.e
	e.mu.Lock()
	defer e.mu.Unlock()
	e.out = setBit(e.out, p.bit, initial)
	if err := e.write(regOutput, e.out); err != nil {
		return err
	}
	e.cfg &^= 1 << p.bit
	return e.write(regConfig, e.cfg)
}

func (p *expPin) Set(level bool) {
	e := p.e
	e.mu.Lock()
	defer e.mu.Unlock()
	e.out = setBit(e.out, p.bit, level)
	if err := e.write(regOutput, e.out); err != nil {
		e.lastErr = err
	}
}

func (p *expPin) Get() bool {
	e := p.e
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.read(regInput)
	if err != nil {
		e.lastErr = err
		return false
	}
	return v&(1<<p.bit) != 0
}

func (p *expPin) Number() int { return p.e.base + int(p.bit) }

func setBit(v, bit uint8, on bool) uint8 {
	if on {
		return v | 1<<bit
	}
	return v &^ (1 << bit)
}
