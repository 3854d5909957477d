package main

import (
	"context"
	"testing"
	"time"

	"vehiclecode-go/bus"
	"vehiclecode-go/errcode"
	"vehiclecode-go/services/config"
	"vehiclecode-go/services/logging"
	"vehiclecode-go/services/metrics"
	"vehiclecode-go/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadEmbedded("vehicle")
	if err != nil {
		t.Fatal(err)
	}
	cfg.PDM.RetryPeriodMs = 20
	cfg.PDM.PulseMs = 0
	cfg.Heartbeat.IntervalMs = 20
	return cfg
}

func quietLog() *logging.Logger {
	return logging.New(logging.Options{Level: "error"}, "test", "vehicle")
}

func await(t *testing.T, sub *bus.Subscription, what string, ok func(any) bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-sub.Channel():
			if ok(m.Payload) {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s", what)
		}
	}
}

func efuseIs(state string) func(any) bool {
	return func(p any) bool {
		st, ok := p.(types.EFuseState)
		return ok && st.State == state
	}
}

func TestNodeRunsAllServices(t *testing.T) {
	cfg := testConfig(t)
	n, err := build(cfg, quietLog(), metrics.New(cfg.Node))
	if err != nil {
		t.Fatal(err)
	}

	watch := n.bus.NewConnection("watch")
	frames := watch.Subscribe(bus.T("can", "tx", cfg.Node))
	charger := watch.Subscribe(bus.T("bms", "charger", "state"))
	aux1 := watch.Subscribe(bus.T("pdm", "efuse", "aux1", "state"))
	beats := watch.Subscribe(bus.T("system", "heartbeat"))
	link := watch.Subscribe(bus.T("bridge", "log", "state"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.run(ctx) }()

	await(t, frames, "signal frame", func(p any) bool {
		f, ok := p.(types.SignalFrame)
		return ok && f.Node == cfg.Node && len(f.Choices) > 0
	})
	await(t, charger, "charger state", func(p any) bool { _, ok := p.(types.ChargerState); return ok })
	await(t, beats, "heartbeat", func(p any) bool { _, ok := p.(types.Heartbeat); return ok })
	await(t, link, "bridge up", func(p any) bool {
		st, ok := p.(types.ServiceState)
		return ok && st.Level == "up"
	})
	await(t, aux1, "aux1 normal", efuseIs("normal"))

	// aux1 fault line is active-low.
	n.driveLine(11, false)
	await(t, aux1, "aux1 tripped", efuseIs("tripped"))
	await(t, aux1, "aux1 retried", func(p any) bool {
		st, ok := p.(types.EFuseState)
		return ok && st.Attempts > 0
	})
	n.driveLine(11, true)
	await(t, aux1, "aux1 normal again", efuseIs("normal"))
	if n.sup.Faulted("aux1") {
		t.Fatal("supervisor still faulted")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("services did not stop")
	}
}

func TestBuildRejectsUnknownTransport(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bridge.Transports = []string{"log", "smoke-signal"}
	if _, err := build(cfg, quietLog(), metrics.New(cfg.Node)); err == nil {
		t.Fatal("expected error for unknown transport")
	}
}

func TestHostRejectsLTC4015Charger(t *testing.T) {
	cfg := testConfig(t)
	cfg.BMS.Charger.Driver = config.ChargerDriverLTC4015
	_, err := build(cfg, quietLog(), metrics.New(cfg.Node))
	if errcode.Of(err) != errcode.Unsupported {
		t.Fatalf("err=%v", err)
	}
}

func TestBuildWithExpander(t *testing.T) {
	cfg := testConfig(t)
	cfg.HAL.Expander.Enabled = true
	cfg.BMS.Charger.Sense = cfg.HAL.Expander.Base + 1
	n, err := build(cfg, quietLog(), metrics.New(cfg.Node))
	if err != nil {
		t.Fatal(err)
	}
	if n.tca == nil {
		t.Fatal("expander not wired")
	}
	// Expander lines are not interrupt capable, so only the sim e-fuse
	// lines got watches; wiring must still succeed.
	n.driveLine(cfg.BMS.Charger.Sense, false)
}
