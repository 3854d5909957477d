package fsm

import (
	"context"
	"time"

	"vehiclecode-go/bus"
	"vehiclecode-go/cantx"
	"vehiclecode-go/rangecheck"
	"vehiclecode-go/services/logging"
	"vehiclecode-go/types"
	"vehiclecode-go/x/timex"
)

var topicConfigControl = bus.T("config", "control")

// Observer receives per-tick telemetry.
type Observer interface {
	PublishTick(frame string, d time.Duration)
	RangeStatus(signal string, status int)
}

type Options struct {
	Node string
	Tick time.Duration
	Log  logging.Log
	Obs  Observer
}

// Service runs the control tick: sample, publish, commit, then hand the
// committed frame to the bus for the transport stage.
type Service struct {
	conn    *bus.Connection
	world   *World
	sampler Sampler
	buf     *cantx.Buffer
	pub     *Publisher

	node  string
	topic bus.Topic
	tick  time.Duration
	log   logging.Log
	obs   Observer

	last map[cantx.Signal]rangecheck.Status
}

func NewService(conn *bus.Connection, w *World, sampler Sampler, opts Options) *Service {
	if opts.Tick <= 0 {
		opts.Tick = 10 * time.Millisecond
	}
	if opts.Log == nil {
		opts.Log = logging.Nop{}
	}
	if opts.Obs == nil {
		opts.Obs = nopObserver{}
	}
	buf := cantx.NewBuffer()
	pub := NewPublisher(buf)
	RegisterSignals(pub, w)
	return &Service{
		conn:    conn,
		world:   w,
		sampler: sampler,
		buf:     buf,
		pub:     pub,
		node:    opts.Node,
		topic:   bus.T("can", "tx", opts.Node),
		tick:    opts.Tick,
		log:     opts.Log,
		obs:     opts.Obs,
		last:    map[cantx.Signal]rangecheck.Status{},
	}
}

func (s *Service) Buffer() *cantx.Buffer { return s.buf }

// Step runs one control tick and returns the frame it published.
func (s *Service) Step() types.SignalFrame {
	start := time.Now()

	s.world.Apply(s.sampler.Sample())
	s.pub.Publish()
	s.buf.Commit()

	f := frameFrom(s.node, s.buf.Snapshot())
	s.conn.Publish(s.conn.NewMessage(s.topic, f, true))

	s.pub.EachRange(s.observe)
	s.obs.PublishTick(s.topic.String(), time.Since(start))
	return f
}

func (s *Service) observe(sig cantx.Signal, st rangecheck.Status) {
	s.obs.RangeStatus(string(sig), int(st))
	prev, seen := s.last[sig]
	s.last[sig] = st
	if seen && prev == st {
		return
	}
	switch {
	case st != rangecheck.OK:
		s.log.Warn("signal out of range", "signal", string(sig), "status", st.String())
	case seen:
		s.log.Info("signal back in range", "signal", string(sig))
	default:
		s.log.Debug("signal initial status", "signal", string(sig), "status", st.String())
	}
}

func (s *Service) Run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfigControl)
	defer s.conn.Unsubscribe(cfgSub)

	t := time.NewTimer(s.tick)
	defer t.Stop()

	s.log.Info("control loop started", "node", s.node, "tick", s.tick.String())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("control loop stopping")
			return
		case <-t.C:
			s.Step()
			t.Reset(s.tick)
		case msg := <-cfgSub.Channel():
			c, ok := msg.Payload.(types.ControlConfig)
			if !ok || c.TickMs <= 0 {
				continue
			}
			if d := timex.Ms(c.TickMs); d != s.tick {
				s.tick = d
				timex.ResetTimer(t, d)
				s.log.Info("control tick changed", "tick", d.String())
			}
		}
	}
}

func frameFrom(node string, f cantx.Frame) types.SignalFrame {
	out := types.SignalFrame{
		Node:    node,
		Seq:     f.Seq,
		Values:  make(map[string]float32, len(f.Values)),
		Choices: make(map[string]uint8, len(f.Choices)),
		TS:      timex.NowMs(),
	}
	for k, v := range f.Values {
		out.Values[string(k)] = v
	}
	for k, c := range f.Choices {
		out.Choices[string(k)] = uint8(c)
	}
	return out
}

type nopObserver struct{}

func (nopObserver) PublishTick(string, time.Duration) {}
func (nopObserver) RangeStatus(string, int)           {}
