package types

// Runtime-adjustable sections, published retained on config/<section>.

// Retained value: config/control
type ControlConfig struct {
	TickMs int `json:"tick_ms"`
}

// Retained value: config/heartbeat
type HeartbeatConfig struct {
	IntervalMs int `json:"interval_ms"`
}

// Retained value: config/bms
type BMSConfig struct {
	StatusMs int `json:"status_ms"`
}
