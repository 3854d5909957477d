package bms

import (
	"context"
	"sync"
	"testing"
	"time"

	"vehiclecode-go/bus"
	"vehiclecode-go/services/logging"
	"vehiclecode-go/types"
)

// lockedHooks is safe to inspect from the test goroutine.
type lockedHooks struct {
	mu        sync.Mutex
	enables   int
	disables  int
	connected bool
}

func (h *lockedHooks) Enable()  { h.mu.Lock(); h.enables++; h.mu.Unlock() }
func (h *lockedHooks) Disable() { h.mu.Lock(); h.disables++; h.mu.Unlock() }
func (h *lockedHooks) IsConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

func startService(t *testing.T, h Hooks) (*bus.Bus, context.CancelFunc) {
	t.Helper()
	b := bus.NewBus(8)
	svc := NewService(b.NewConnection("bms"), NewCharger(h), Options{StatusPeriod: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	go svc.Run(ctx)
	return b, cancel
}

func request(t *testing.T, b *bus.Bus, topic bus.Topic, payload any) any {
	t.Helper()
	c := b.NewConnection("client")
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	reply, err := c.RequestWait(ctx, b.NewMessage(topic, payload, false))
	if err != nil {
		t.Fatalf("request %v: %v", topic, err)
	}
	return reply.Payload
}

func TestServiceControls(t *testing.T) {
	h := &lockedHooks{connected: true}
	b, cancel := startService(t, h)
	defer cancel()

	// Wait for the initial retained state so subscriptions are live.
	waitState(t, b, func(s types.ChargerState) bool { return !s.Enabled })

	if r, ok := request(t, b, bus.T("bms", "charger", "control", "enable"), nil).(types.OKReply); !ok || !r.OK {
		t.Fatalf("enable reply: %#v", r)
	}
	waitState(t, b, func(s types.ChargerState) bool { return s.Enabled && s.Connected })

	st, ok := request(t, b, bus.T("bms", "charger", "control", "status"), nil).(types.ChargerState)
	if !ok || !st.Enabled {
		t.Fatalf("status reply: %#v", st)
	}

	request(t, b, bus.T("bms", "charger", "control", "set"), types.ChargerSet{On: false})
	if r, ok := request(t, b, bus.T("bms", "charger", "control", "set"), "bogus").(types.ErrorReply); !ok || r.Error != "invalid_payload" {
		t.Fatalf("bad set reply: %#v", r)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.enables != 1 || h.disables != 1 {
		t.Fatalf("enables=%d disables=%d", h.enables, h.disables)
	}
}

func TestServiceStopLeavesChargerEnabled(t *testing.T) {
	h := &lockedHooks{}
	b, cancel := startService(t, h)
	waitState(t, b, func(types.ChargerState) bool { return true })
	request(t, b, bus.T("bms", "charger", "control", "enable"), nil)
	cancel()
	time.Sleep(20 * time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disables != 0 {
		t.Fatal("stopping the service must not disable the charger")
	}
}

func waitState(t *testing.T, b *bus.Bus, pred func(types.ChargerState) bool) {
	t.Helper()
	c := b.NewConnection("watch")
	defer c.Disconnect()
	sub := c.Subscribe(bus.T("bms", "charger", "state"))
	deadline := time.After(500 * time.Millisecond)
	for {
		select {
		case m := <-sub.Channel():
			if s, ok := m.Payload.(types.ChargerState); ok && pred(s) {
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for charger state")
		}
	}
}

type warnLog struct {
	logging.Nop
	mu    sync.Mutex
	warns []string
}

func (l *warnLog) Warn(msg string, args ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func TestServiceLogsHookBusErrors(t *testing.T) {
	b := bus.NewBus(8)
	log := &warnLog{}
	h := NewLTC4015Hooks(&fakeLTC{regs: map[byte]uint16{}, fail: true}, LTC4015Addr)
	svc := NewService(b.NewConnection("bms"), NewCharger(h), Options{StatusPeriod: time.Hour, Log: log})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	waitState(t, b, func(s types.ChargerState) bool { return !s.Connected })

	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.warns) != 1 || log.warns[0] != "charger hardware error" {
		t.Fatalf("warns=%q", log.warns)
	}
}
