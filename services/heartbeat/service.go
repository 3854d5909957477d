package heartbeat

import (
	"context"
	"time"

	"vehiclecode-go/bus"
	"vehiclecode-go/services/logging"
	"vehiclecode-go/types"
	"vehiclecode-go/x/timex"
)

var (
	topicHeartbeat       = bus.T("system", "heartbeat")
	topicConfigHeartbeat = bus.T("config", "heartbeat")
)

type Service struct {
	conn     *bus.Connection
	interval time.Duration
	log      logging.Log
	start    time.Time
	seq      uint32
}

func NewService(conn *bus.Connection, interval time.Duration, log logging.Log) *Service {
	if interval <= 0 {
		interval = time.Second
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &Service{conn: conn, interval: interval, log: log}
}

// Run publishes a retained heartbeat every interval until ctx ends.
// A types.HeartbeatConfig on config/heartbeat changes the interval.
func (s *Service) Run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfigHeartbeat)
	defer s.conn.Unsubscribe(cfgSub)

	s.start = time.Now()
	tick := time.NewTicker(s.interval)
	defer tick.Stop()
	s.beat()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("heartbeat service stopping", "seq", s.seq)
			return
		case <-tick.C:
			s.beat()
		case msg := <-cfgSub.Channel():
			c, ok := msg.Payload.(types.HeartbeatConfig)
			if !ok || c.IntervalMs <= 0 {
				continue
			}
			if d := timex.Ms(c.IntervalMs); d != s.interval {
				s.interval = d
				tick.Reset(d)
				s.log.Info("heartbeat interval set", "interval", d)
			}
		}
	}
}

func (s *Service) beat() {
	s.seq++
	hb := types.Heartbeat{
		Seq:      s.seq,
		UptimeMs: time.Since(s.start).Milliseconds(),
		TS:       timex.NowMs(),
	}
	s.conn.Publish(s.conn.NewMessage(topicHeartbeat, hb, true))
}
