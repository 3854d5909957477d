package bms

import (
	"testing"

	"vehiclecode-go/services/hal"
)

// countingHooks counts hook calls and replays a scripted probe sequence.
type countingHooks struct {
	enables, disables, probes int
	connected                 []bool
}

func (h *countingHooks) Enable()  { h.enables++ }
func (h *countingHooks) Disable() { h.disables++ }
func (h *countingHooks) IsConnected() bool {
	v := h.connected[h.probes%len(h.connected)]
	h.probes++
	return v
}

func TestEnableCallsOnlyEnableHook(t *testing.T) {
	h := &countingHooks{connected: []bool{false}}
	c := NewCharger(h)
	c.Enable()
	if h.enables != 1 || h.disables != 0 {
		t.Fatalf("enables=%d disables=%d", h.enables, h.disables)
	}
	if !c.IsEnabled() {
		t.Fatal("flag not set")
	}
}

func TestDisableCallsOnlyDisableHook(t *testing.T) {
	h := &countingHooks{connected: []bool{false}}
	c := NewCharger(h)
	c.Disable()
	if h.enables != 0 || h.disables != 1 {
		t.Fatalf("enables=%d disables=%d", h.enables, h.disables)
	}
	if c.IsEnabled() {
		t.Fatal("flag should be clear")
	}
}

func TestIsConnectedNeverCached(t *testing.T) {
	h := &countingHooks{connected: []bool{true, false, true}}
	c := NewCharger(h)
	got := []bool{c.IsConnected(), c.IsConnected(), c.IsConnected()}
	if got[0] != true || got[1] != false || got[2] != true {
		t.Fatalf("probe results not surfaced faithfully: %v", got)
	}
	if h.probes != 3 {
		t.Fatalf("probes=%d want 3", h.probes)
	}
}

func TestDestroyDoesNotDisable(t *testing.T) {
	h := &countingHooks{connected: []bool{true}}
	c := NewCharger(h)
	c.Enable()
	c.Destroy()
	if h.disables != 0 {
		t.Fatalf("Destroy issued %d disable calls", h.disables)
	}
}

func TestHookFuncs(t *testing.T) {
	var on, off int
	c := NewCharger(HookFuncs{
		EnableFn:      func() { on++ },
		DisableFn:     func() { off++ },
		IsConnectedFn: func() bool { return true },
	})
	c.Enable()
	c.Disable()
	c.Disable()
	if on != 1 || off != 2 || !c.IsConnected() {
		t.Fatalf("on=%d off=%d", on, off)
	}
}

func TestPinHooks(t *testing.T) {
	pins := hal.NewSimPins(8)
	h, err := NewPinHooks(pins, PinConfig{Enable: 2, EnableActiveLow: true, Sense: 3, SensePull: hal.PullUp, SenseActiveLow: true})
	if err != nil {
		t.Fatal(err)
	}
	en, sense := pins.Sim(2), pins.Sim(3)
	if !en.Get() {
		t.Fatal("active-low enable must start high (off)")
	}

	c := NewCharger(h)
	c.Enable()
	if en.Get() {
		t.Fatal("enable should drive the line low")
	}
	c.Disable()
	if !en.Get() {
		t.Fatal("disable should release the line high")
	}

	if c.IsConnected() {
		t.Fatal("pulled-up active-low sense reads disconnected")
	}
	sense.Drive(false)
	if !c.IsConnected() {
		t.Fatal("sense pulled low reads connected")
	}
}

func TestPinHooksUnknownPin(t *testing.T) {
	if _, err := NewPinHooks(hal.NewSimPins(2), PinConfig{Enable: 5, Sense: 1}); err == nil {
		t.Fatal("expected error for missing enable pin")
	}
}
