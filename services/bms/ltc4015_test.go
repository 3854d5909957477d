package bms

import (
	"errors"
	"testing"
)

// fakeLTC holds 16-bit word registers.
type fakeLTC struct {
	regs map[byte]uint16
	fail bool
	txs  int
}

func (f *fakeLTC) Tx(addr uint16, w, r []byte) error {
	f.txs++
	if f.fail || addr != LTC4015Addr {
		return errors.New("nack")
	}
	switch {
	case len(w) == 3:
		f.regs[w[0]] = uint16(w[1]) | uint16(w[2])<<8
	case len(w) == 1 && len(r) == 2:
		v := f.regs[w[0]]
		r[0], r[1] = byte(v), byte(v>>8)
	}
	return nil
}

func TestLTC4015SuspendBit(t *testing.T) {
	bus := &fakeLTC{regs: map[byte]uint16{ltcRegConfigBits: 0x0004}}
	c := NewCharger(NewLTC4015Hooks(bus, 0))

	c.Disable()
	if got := bus.regs[ltcRegConfigBits]; got != 0x0104 {
		t.Fatalf("config after disable = %#04x", got)
	}
	c.Enable()
	if got := bus.regs[ltcRegConfigBits]; got != 0x0004 {
		t.Fatalf("config after enable = %#04x", got)
	}
}

func TestLTC4015ConnectedIsReadEveryCall(t *testing.T) {
	bus := &fakeLTC{regs: map[byte]uint16{}}
	h := NewLTC4015Hooks(bus, LTC4015Addr)
	c := NewCharger(h)

	if c.IsConnected() {
		t.Fatal("connected with VIN below VBAT")
	}
	// INTVCC_GT_4P3V and INTVCC_GT_2P8V only: powered, no input.
	bus.regs[ltcRegSystemStatus] = 0x0003
	if c.IsConnected() {
		t.Fatal("intvcc flags alone reported as connected")
	}
	// VIN_GT_VBAT plus OK_TO_CHARGE.
	bus.regs[ltcRegSystemStatus] = 0x2004
	if !c.IsConnected() {
		t.Fatal("vin_gt_vbat not reported")
	}
	if bus.txs != 3 {
		t.Fatalf("probe txs=%d", bus.txs)
	}

	bus.fail = true
	if c.IsConnected() {
		t.Fatal("failed probe must report disconnected")
	}
	if h.Err() == nil {
		t.Fatal("bus error not recorded")
	}
	if h.Err() != nil {
		t.Fatal("Err should clear after read")
	}
}
