package pdm

import (
	"context"
	"time"

	"vehiclecode-go/bus"
	"vehiclecode-go/services/hal/gpioirq"
	"vehiclecode-go/services/logging"
	"vehiclecode-go/types"
	"vehiclecode-go/x/timex"
)

// RetryTimer is the timer service name the supervisor registers under.
const RetryTimer = "pdm.efuse.retry"

// Events: pdm/efuse/<id>/event/<trip|ok|fail>
var topicEvents = bus.T("pdm", "efuse", bus.SingleWild, "event", bus.SingleWild)

// Timers is the part of the timer service the supervisor needs.
type Timers interface {
	Register(name string, every time.Duration, cb func()) error
	Stop(name string)
}

// Observer receives e-fuse telemetry.
type Observer interface {
	EFuseState(id string, state int)
	EFuseRetry(id string)
}

type Options struct {
	RetryPeriod time.Duration
	// Edges carries fault-line interrupts. Event.Level true means the fault
	// is asserted; Line is the SwitchID.
	Edges <-chan gpioirq.Event
	Log   logging.Log
	Obs   Observer
}

type Service struct {
	conn   *bus.Connection
	sup    *Supervisor
	timers Timers
	period time.Duration
	edges  <-chan gpioirq.Event
	log    logging.Log
	obs    Observer

	published map[SwitchID]Status
}

func NewService(conn *bus.Connection, sup *Supervisor, timers Timers, opts Options) *Service {
	if opts.RetryPeriod <= 0 {
		opts.RetryPeriod = time.Second
	}
	if opts.Log == nil {
		opts.Log = logging.Nop{}
	}
	if opts.Obs == nil {
		opts.Obs = nopObserver{}
	}
	return &Service{
		conn:      conn,
		sup:       sup,
		timers:    timers,
		period:    opts.RetryPeriod,
		edges:     opts.Edges,
		log:       opts.Log,
		obs:       opts.Obs,
		published: map[SwitchID]Status{},
	}
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.timers.Register(RetryTimer, s.period, s.sup.OnTimer); err != nil {
		return err
	}
	defer s.timers.Stop(RetryTimer)

	sub := s.conn.Subscribe(topicEvents)
	defer s.conn.Unsubscribe(sub)

	s.log.Info("efuse supervisor started", "efuses", len(s.sup.IDs()), "retry_period", s.period.String())
	s.sync()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("efuse supervisor stopping")
			return nil
		case <-s.sup.Changed():
			s.sync()
		case ev, ok := <-s.edges:
			if !ok {
				s.edges = nil
				continue
			}
			s.onEdge(ev)
		case m := <-sub.Channel():
			s.onEvent(m)
		}
	}
}

func (s *Service) onEdge(ev gpioirq.Event) {
	id := SwitchID(ev.Line)
	if !s.sup.Known(id) {
		return
	}
	if ev.Level {
		s.log.Warn("efuse fault asserted", "efuse", string(id))
		s.sup.Trip(id)
	} else {
		s.sup.Succeeded(id)
	}
}

func (s *Service) onEvent(m *bus.Message) {
	id, _ := m.Topic.At(2).(string)
	verb, _ := m.Topic.At(4).(string)
	if !s.sup.Known(SwitchID(id)) {
		s.log.Debug("event for unknown efuse", "topic", m.Topic.String())
		return
	}
	switch verb {
	case types.EFuseEventTrip:
		s.sup.Trip(SwitchID(id))
	case types.EFuseEventOK:
		s.sup.Succeeded(SwitchID(id))
	case types.EFuseEventFail:
		s.sup.Failed(SwitchID(id))
	default:
		s.log.Debug("unknown efuse event", "topic", m.Topic.String())
	}
}

// sync publishes every entry whose state or attempt count moved since the
// last publish.
func (s *Service) sync() {
	snap := s.sup.Snapshot()
	for _, id := range s.sup.IDs() {
		cur := snap[id]
		prev, seen := s.published[id]
		if seen && prev == cur {
			continue
		}
		for n := prev.Total; n < cur.Total; n++ {
			s.obs.EFuseRetry(string(id))
		}
		if !seen || prev.State != cur.State {
			s.logTransition(id, prev.State, cur)
		}
		s.obs.EFuseState(string(id), int(cur.State))
		s.published[id] = cur
		s.conn.Publish(s.conn.NewMessage(bus.T("pdm", "efuse", string(id), "state"), types.EFuseState{
			ID:       string(id),
			State:    cur.State.String(),
			Attempts: cur.Attempts,
			TS:       timex.NowMs(),
		}, true))
	}
}

func (s *Service) logTransition(id SwitchID, from FaultState, cur Status) {
	switch cur.State {
	case Tripped:
		s.log.Warn("efuse tripped", "efuse", string(id), "attempts", cur.Attempts)
	case Retrying:
		s.log.Debug("efuse retrying", "efuse", string(id), "attempts", cur.Attempts)
	case Normal:
		if from != Normal {
			s.log.Info("efuse recovered", "efuse", string(id))
		}
	}
}

type nopObserver struct{}

func (nopObserver) EFuseState(string, int) {}
func (nopObserver) EFuseRetry(string)      {}
