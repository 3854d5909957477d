package config

import (
	"vehiclecode-go/bus"
	"vehiclecode-go/types"
)

// Service publishes the runtime-adjustable sections retained on
// config/<section>.
type Service struct {
	conn *bus.Connection
}

func NewService(conn *bus.Connection) *Service { return &Service{conn: conn} }

// Publish (re)announces cfg. Subscribers pick up the change on their next
// loop iteration.
func (s *Service) Publish(cfg *Config) {
	s.put("control", types.ControlConfig{TickMs: cfg.Control.TickMs})
	s.put("bms", types.BMSConfig{StatusMs: cfg.BMS.StatusMs})
	s.put("heartbeat", types.HeartbeatConfig{IntervalMs: cfg.Heartbeat.IntervalMs})
}

func (s *Service) put(section string, v any) {
	s.conn.Publish(s.conn.NewMessage(bus.T("config", section), v, true))
}
