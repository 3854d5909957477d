package bms

import (
	"context"
	"time"

	"vehiclecode-go/bus"
	"vehiclecode-go/errcode"
	"vehiclecode-go/services/logging"
	"vehiclecode-go/types"
	"vehiclecode-go/x/timex"
)

var (
	topicState         = bus.T("bms", "charger", "state")
	topicControlEnable = bus.T("bms", "charger", "control", "enable")
	topicControlOff    = bus.T("bms", "charger", "control", "disable")
	topicControlStatus = bus.T("bms", "charger", "control", "status")
	topicControlSet    = bus.T("bms", "charger", "control", "set")
	topicConfigBMS     = bus.T("config", "bms")
)

// Observer receives charger telemetry.
type Observer interface {
	Charger(enabled, connected bool)
}

type Options struct {
	StatusPeriod time.Duration
	Log          logging.Log
	Obs          Observer
}

// Service is the only goroutine that touches its Charger.
type Service struct {
	conn   *bus.Connection
	ch     *Charger
	period time.Duration
	log    logging.Log
	obs    Observer

	last    types.ChargerState
	haveOne bool
}

func NewService(conn *bus.Connection, ch *Charger, opts Options) *Service {
	if opts.StatusPeriod <= 0 {
		opts.StatusPeriod = time.Second
	}
	if opts.Log == nil {
		opts.Log = logging.Nop{}
	}
	if opts.Obs == nil {
		opts.Obs = nopObserver{}
	}
	return &Service{conn: conn, ch: ch, period: opts.StatusPeriod, log: opts.Log, obs: opts.Obs}
}

func (s *Service) Run(ctx context.Context) {
	subs := []*bus.Subscription{
		s.conn.Subscribe(topicControlEnable),
		s.conn.Subscribe(topicControlOff),
		s.conn.Subscribe(topicControlStatus),
		s.conn.Subscribe(topicControlSet),
	}
	cfgSub := s.conn.Subscribe(topicConfigBMS)
	defer s.conn.Disconnect()

	// Fan the control subscriptions into one channel so the loop stays flat.
	ctrl := make(chan *bus.Message, 8)
	for _, sub := range subs {
		go func(ch <-chan *bus.Message) {
			for m := range ch {
				select {
				case ctrl <- m:
				case <-ctx.Done():
					return
				}
			}
		}(sub.Channel())
	}

	t := time.NewTimer(0)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			// Leave the hardware as it is; shutdown policy belongs to the caller.
			s.log.Info("charger service stopping", "enabled", s.ch.IsEnabled())
			return
		case <-t.C:
			s.publishState()
			t.Reset(s.period)
		case m := <-ctrl:
			s.handle(m)
		case m := <-cfgSub.Channel():
			if c, ok := m.Payload.(types.BMSConfig); ok && c.StatusMs > 0 {
				s.period = timex.Ms(c.StatusMs)
				timex.ResetTimer(t, s.period)
			}
		}
	}
}

func (s *Service) handle(m *bus.Message) {
	switch {
	case m.Topic.Equal(topicControlEnable):
		s.set(true)
	case m.Topic.Equal(topicControlOff):
		s.set(false)
	case m.Topic.Equal(topicControlSet):
		req, ok := m.Payload.(types.ChargerSet)
		if !ok {
			s.conn.Reply(m, types.ErrorReply{OK: false, Error: string(errcode.InvalidPayload)}, false)
			return
		}
		s.set(req.On)
	case m.Topic.Equal(topicControlStatus):
		s.conn.Reply(m, s.state(), false)
		return
	default:
		s.conn.Reply(m, types.ErrorReply{OK: false, Error: string(errcode.InvalidTopic)}, false)
		return
	}
	s.conn.Reply(m, types.OKReply{OK: true}, false)
}

func (s *Service) set(on bool) {
	if on {
		s.ch.Enable()
	} else {
		s.ch.Disable()
	}
	s.log.Info("charger actuation", "enabled", on)
	s.publishState()
}

func (s *Service) state() types.ChargerState {
	return types.ChargerState{
		Enabled:   s.ch.IsEnabled(),
		Connected: s.ch.IsConnected(),
		TS:        timex.NowMs(),
	}
}

func (s *Service) publishState() {
	st := s.state()
	// Bus-backed hooks keep their last error instead of failing the call.
	if h, ok := s.ch.hooks.(interface{ Err() error }); ok {
		if err := h.Err(); err != nil {
			s.log.Warn("charger hardware error", "error", err)
		}
	}
	s.obs.Charger(st.Enabled, st.Connected)
	if s.haveOne && st.Connected != s.last.Connected {
		s.log.Info("charger connection changed", "connected", st.Connected)
	}
	s.last, s.haveOne = st, true
	s.conn.Publish(s.conn.NewMessage(topicState, st, true))
}

type nopObserver struct{}

func (nopObserver) Charger(bool, bool) {}
