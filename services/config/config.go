// Package config loads the node configuration from YAML and publishes the
// runtime-adjustable sections on the bus.
//
// Loading order: embedded or file YAML, then VEHICLE_* environment
// overrides, then normalisation and validation.
package config

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"vehiclecode-go/services/fsm"
	"vehiclecode-go/x/mathx"
)

//go:embed defaults/*.yaml
var defaults embed.FS

type Config struct {
	Node      string          `yaml:"node"`
	Logging   LoggingConfig   `yaml:"logging"`
	Control   ControlConfig   `yaml:"control"`
	FSM       FSMConfig       `yaml:"fsm"`
	BMS       BMSConfig       `yaml:"bms"`
	PDM       PDMConfig       `yaml:"pdm"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	HAL       HALConfig       `yaml:"hal"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Bridge    BridgeConfig    `yaml:"bridge"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type ControlConfig struct {
	TickMs int `yaml:"tick_ms"`
}

type BoundsConfig struct {
	Min float32 `yaml:"min"`
	Max float32 `yaml:"max"`
}

// FSMConfig keys limits by quantity name (see fsm.Quantity).
type FSMConfig struct {
	Limits map[string]BoundsConfig `yaml:"limits"`
}

// ChargerPins selects the charger hardware. Driver "pins" uses the enable
// and sense lines; "ltc4015" talks to the charge controller at Addr.
type ChargerPins struct {
	Driver          string `yaml:"driver"`
	Enable          int    `yaml:"enable"`
	EnableActiveLow bool   `yaml:"enable_active_low"`
	Sense           int    `yaml:"sense"`
	SensePull       string `yaml:"sense_pull"`
	SenseActiveLow  bool   `yaml:"sense_active_low"`
	Addr            uint16 `yaml:"addr"`
}

// Charger drivers.
const (
	ChargerDriverPins    = "pins"
	ChargerDriverLTC4015 = "ltc4015"
)

type BMSConfig struct {
	StatusMs int         `yaml:"status_ms"`
	Charger  ChargerPins `yaml:"charger"`
}

type EFuseConfig struct {
	ID              string `yaml:"id"`
	Enable          int    `yaml:"enable"`
	EnableActiveLow bool   `yaml:"enable_active_low"`
	Fault           int    `yaml:"fault"`
	FaultActiveLow  bool   `yaml:"fault_active_low"`
	FaultPull       string `yaml:"fault_pull"`
}

type PDMConfig struct {
	RetryPeriodMs int           `yaml:"retry_period_ms"`
	PulseMs       int           `yaml:"pulse_ms"`
	QueueDepth    int           `yaml:"queue_depth"`
	DebounceMs    int           `yaml:"debounce_ms"`
	EFuses        []EFuseConfig `yaml:"efuses"`
}

type HeartbeatConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

type ExpanderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    uint16 `yaml:"addr"`
	Base    int    `yaml:"base"`
}

type HALConfig struct {
	SimPins  int            `yaml:"sim_pins"`
	Expander ExpanderConfig `yaml:"expander"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type MQTTConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Broker           string `yaml:"broker"`
	ClientID         string `yaml:"client_id"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	QoS              int    `yaml:"qos"`
	TopicPrefix      string `yaml:"topic_prefix"`
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms"`
}

type BridgeConfig struct {
	Transports []string `yaml:"transports"`
	Forward    []string `yaml:"forward"`
}

// Period limits applied by normalize.
const (
	minTickMs   = 1
	maxTickMs   = 1000
	minRetryMs  = 10
	maxRetryMs  = 60_000
	minStatusMs = 50
	maxStatusMs = 60_000
	maxPulseMs  = 100
)

// Load reads a YAML file over the built-in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// LoadEmbedded loads defaults/<name>.yaml compiled into the binary.
func LoadEmbedded(name string) (*Config, error) {
	data, err := defaults.ReadFile("defaults/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("no embedded config %q: %w", name, err)
	}
	return Parse(data)
}

// Parse decodes, applies env overrides, normalises and validates.
func Parse(data []byte) (*Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyEnvOverrides(cfg)
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Node:    "vehicle",
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Control: ControlConfig{TickMs: 10},
		BMS: BMSConfig{
			StatusMs: 1000,
			Charger:  ChargerPins{Driver: ChargerDriverPins, Enable: 2, Sense: 3, SensePull: "up", SenseActiveLow: true},
		},
		PDM:       PDMConfig{RetryPeriodMs: 1000, PulseMs: 5, QueueDepth: 8},
		Heartbeat: HeartbeatConfig{IntervalMs: 2000},
		HAL:       HALConfig{SimPins: 32, Expander: ExpanderConfig{Addr: 0x20}},
		Metrics:   MetricsConfig{Listen: "127.0.0.1:9464"},
		MQTT: MQTTConfig{
			Broker:           "tcp://localhost:1883",
			ClientID:         "vehiclecode",
			TopicPrefix:      "vehicle",
			ConnectTimeoutMs: 5000,
		},
		Bridge: BridgeConfig{Transports: []string{"log"}},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VEHICLE_NODE"); v != "" {
		cfg.Node = v
	}
	if v := os.Getenv("VEHICLE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VEHICLE_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
		cfg.MQTT.Enabled = true
	}
	if v := os.Getenv("VEHICLE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("VEHICLE_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
		cfg.Metrics.Enabled = true
	}
}

// normalize clamps positive periods into their supported ranges. Non-positive
// values are left for Validate to reject.
func (c *Config) normalize() {
	if c.Control.TickMs > 0 {
		c.Control.TickMs = mathx.Clamp(c.Control.TickMs, minTickMs, maxTickMs)
	}
	if c.PDM.RetryPeriodMs > 0 {
		c.PDM.RetryPeriodMs = mathx.Clamp(c.PDM.RetryPeriodMs, minRetryMs, maxRetryMs)
	}
	if c.BMS.StatusMs > 0 {
		c.BMS.StatusMs = mathx.Clamp(c.BMS.StatusMs, minStatusMs, maxStatusMs)
	}
	c.PDM.PulseMs = mathx.Clamp(c.PDM.PulseMs, 0, maxPulseMs)
	c.PDM.QueueDepth = mathx.Max(c.PDM.QueueDepth, 1)
	c.MQTT.TopicPrefix = strings.Trim(c.MQTT.TopicPrefix, "/")
	c.BMS.Charger.Driver = strings.ToLower(strings.TrimSpace(c.BMS.Charger.Driver))
	if c.BMS.Charger.Driver == "" {
		c.BMS.Charger.Driver = ChargerDriverPins
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Node == "" {
		errs = append(errs, "node is required")
	}
	if c.Control.TickMs <= 0 {
		errs = append(errs, "control.tick_ms must be positive")
	}
	if c.PDM.RetryPeriodMs <= 0 {
		errs = append(errs, "pdm.retry_period_ms must be positive")
	}
	if c.BMS.StatusMs <= 0 {
		errs = append(errs, "bms.status_ms must be positive")
	}
	if c.Heartbeat.IntervalMs <= 0 {
		errs = append(errs, "heartbeat.interval_ms must be positive")
	}

	for name, b := range c.FSM.Limits {
		if _, ok := fsm.ParseQuantity(name); !ok {
			errs = append(errs, fmt.Sprintf("fsm.limits.%s: unknown quantity", name))
			continue
		}
		if b.Min > b.Max {
			errs = append(errs, fmt.Sprintf("fsm.limits.%s: min %v > max %v", name, b.Min, b.Max))
		}
	}

	used := map[int]string{}
	claim := func(pin int, who string) {
		if prev, ok := used[pin]; ok {
			errs = append(errs, fmt.Sprintf("pin %d used by both %s and %s", pin, prev, who))
			return
		}
		used[pin] = who
	}
	switch c.BMS.Charger.Driver {
	case ChargerDriverPins:
		claim(c.BMS.Charger.Enable, "bms.charger.enable")
		claim(c.BMS.Charger.Sense, "bms.charger.sense")
	case ChargerDriverLTC4015:
	default:
		errs = append(errs, fmt.Sprintf("bms.charger.driver: unknown driver %q", c.BMS.Charger.Driver))
	}

	ids := map[string]bool{}
	for i, e := range c.PDM.EFuses {
		if e.ID == "" {
			errs = append(errs, fmt.Sprintf("pdm.efuses[%d].id is required", i))
			continue
		}
		if ids[e.ID] {
			errs = append(errs, fmt.Sprintf("pdm.efuses: duplicate id %q", e.ID))
			continue
		}
		ids[e.ID] = true
		claim(e.Enable, "pdm.efuses."+e.ID+".enable")
		claim(e.Fault, "pdm.efuses."+e.ID+".fault")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errs = append(errs, "mqtt.broker is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, "metrics.listen is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Bounds converts the fsm section; quantities not listed keep defaults.
func (c FSMConfig) Bounds() fsm.Limits {
	out := fsm.Limits{}
	for name, b := range c.Limits {
		if q, ok := fsm.ParseQuantity(name); ok {
			out[q] = fsm.Bounds{Min: b.Min, Max: b.Max}
		}
	}
	return out
}
