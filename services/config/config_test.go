package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vehiclecode-go/bus"
	"vehiclecode-go/services/fsm"
	"vehiclecode-go/types"
)

func TestLoadEmbeddedVehicle(t *testing.T) {
	cfg, err := LoadEmbedded("vehicle")
	if err != nil {
		t.Fatalf("LoadEmbedded: %v", err)
	}
	if cfg.Node != "vehicle" || cfg.Control.TickMs != 10 {
		t.Fatalf("unexpected: node=%q tick=%d", cfg.Node, cfg.Control.TickMs)
	}
	if len(cfg.PDM.EFuses) != 3 || cfg.PDM.EFuses[2].ID != "fan" {
		t.Fatalf("efuses: %+v", cfg.PDM.EFuses)
	}
	if cfg.HAL.Expander.Addr != 0x20 {
		t.Fatalf("expander addr=%#x", cfg.HAL.Expander.Addr)
	}
	lim := cfg.FSM.Bounds()
	if b := lim[fsm.SteeringAngle]; b.Min != -110 || b.Max != 110 {
		t.Fatalf("steering bounds=%+v", b)
	}
}

func TestLoadEmbeddedMissing(t *testing.T) {
	if _, err := LoadEmbedded("nope"); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadFile(t *testing.T) {
	content := `
node: front
control:
  tick_ms: 5000
pdm:
  retry_period_ms: 1
fsm:
  limits:
    left_wheel_speed: { min: 0, max: 300 }
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Control.TickMs != maxTickMs {
		t.Errorf("tick clamped to %d, want %d", cfg.Control.TickMs, maxTickMs)
	}
	if cfg.PDM.RetryPeriodMs != minRetryMs {
		t.Errorf("retry clamped to %d, want %d", cfg.PDM.RetryPeriodMs, minRetryMs)
	}
	if cfg.Heartbeat.IntervalMs != 2000 {
		t.Errorf("default heartbeat lost: %d", cfg.Heartbeat.IntervalMs)
	}
	if b := cfg.FSM.Bounds()[fsm.LeftWheelSpeed]; b.Max != 300 {
		t.Errorf("wheel speed bounds=%+v", b)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VEHICLE_LOG_LEVEL", "debug")
	t.Setenv("VEHICLE_MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("VEHICLE_METRICS_LISTEN", ":9100")

	cfg, err := Parse([]byte("node: x\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level=%q", cfg.Logging.Level)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("mqtt=%+v", cfg.MQTT)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Listen != ":9100" {
		t.Errorf("metrics=%+v", cfg.Metrics)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	content := `
node: x
fsm:
  limits:
    steering_angle: { min: 10, max: -10 }
    yaw_rate: { min: 0, max: 1 }
bms:
  charger: { enable: 4, sense: 5 }
pdm:
  efuses:
    - { id: aux1, enable: 4, fault: 6 }
    - { id: aux1, enable: 7, fault: 8 }
mqtt:
  enabled: true
  qos: 3
`
	_, err := Parse([]byte(content))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"fsm.limits.steering_angle: min 10 > max -10",
		"fsm.limits.yaw_rate: unknown quantity",
		"pin 4 used by both bms.charger.enable and pdm.efuses.aux1.enable",
		`duplicate id "aux1"`,
		"mqtt.qos",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestChargerDriver(t *testing.T) {
	cfg, err := Parse([]byte(`
bms:
  charger: { driver: " LTC4015 ", enable: 10, sense: 11, addr: 0x68 }
`))
	if err != nil {
		t.Fatalf("ltc4015 charger lines must not claim pins: %v", err)
	}
	if cfg.BMS.Charger.Driver != ChargerDriverLTC4015 || cfg.BMS.Charger.Addr != 0x68 {
		t.Fatalf("charger=%+v", cfg.BMS.Charger)
	}

	_, err = Parse([]byte("bms:\n  charger: { driver: relay }\n"))
	if err == nil || !strings.Contains(err.Error(), `unknown driver "relay"`) {
		t.Fatalf("err=%v", err)
	}
}

func TestServicePublishesRetainedSections(t *testing.T) {
	cfg, err := LoadEmbedded("vehicle")
	if err != nil {
		t.Fatal(err)
	}
	b := bus.NewBus(8)
	conn := b.NewConnection("config")
	NewService(conn).Publish(cfg)

	sub := conn.Subscribe(bus.T("config", "#"))
	got := map[string]any{}
	deadline := time.After(300 * time.Millisecond)
	for len(got) < 3 {
		select {
		case m := <-sub.Channel():
			got[m.Topic.String()] = m.Payload
		case <-deadline:
			t.Fatalf("got only %v", got)
		}
	}
	if c, ok := got["config/control"].(types.ControlConfig); !ok || c.TickMs != 10 {
		t.Fatalf("config/control=%#v", got["config/control"])
	}
	if h, ok := got["config/heartbeat"].(types.HeartbeatConfig); !ok || h.IntervalMs != 2000 {
		t.Fatalf("config/heartbeat=%#v", got["config/heartbeat"])
	}
}
