package bms

import (
	"sync"

	"tinygo.org/x/drivers"
)

// LTC4015 register map subset. Word registers are little-endian.
const (
	LTC4015Addr = 0x68

	ltcRegConfigBits   = 0x14
	ltcRegSystemStatus = 0x39

	ltcSuspendCharger = 1 << 8 // CONFIG_BITS
	ltcVinGtVbat      = 1 << 2 // SYSTEM_STATUS
)

// LTC4015Hooks gates charging with the controller's suspend bit and treats
// "input above battery" as connected. Bus errors are recorded for Err; a
// failed probe reports disconnected.
type LTC4015Hooks struct {
	i2c  drivers.I2C
	addr uint16

	mu      sync.Mutex
	w       [3]byte
	r       [2]byte
	lastErr error
}

var _ Hooks = (*LTC4015Hooks)(nil)

func NewLTC4015Hooks(i2c drivers.I2C, addr uint16) *LTC4015Hooks {
	if addr == 0 {
		addr = LTC4015Addr
	}
	return &LTC4015Hooks{i2c: i2c, addr: addr}
}

func (h *LTC4015Hooks) Enable()  { h.modify(ltcRegConfigBits, 0, ltcSuspendCharger) }
func (h *LTC4015Hooks) Disable() { h.modify(ltcRegConfigBits, ltcSuspendCharger, 0) }

func (h *LTC4015Hooks) IsConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, err := h.readWord(ltcRegSystemStatus)
	if err != nil {
		h.lastErr = err
		return false
	}
	return v&ltcVinGtVbat != 0
}

// Err returns the last bus error, then clears it.
func (h *LTC4015Hooks) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	err := h.lastErr
	h.lastErr = nil
	return err
}

func (h *LTC4015Hooks) modify(reg byte, set, clear uint16) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cur, err := h.readWord(reg)
	if err == nil {
		err = h.writeWord(reg, (cur|set)&^clear)
	}
	if err != nil {
		h.lastErr = err
	}
}

func (h *LTC4015Hooks) readWord(reg byte) (uint16, error) {
	h.w[0] = reg
	if err := h.i2c.Tx(h.addr, h.w[:1], h.r[:2]); err != nil {
		return 0, err
	}
	return uint16(h.r[0]) | uint16(h.r[1])<<8, nil
}

func (h *LTC4015Hooks) writeWord(reg byte, v uint16) error {
	h.w[0], h.w[1], h.w[2] = reg, byte(v), byte(v>>8)
	return h.i2c.Tx(h.addr, h.w[:3], nil)
}
