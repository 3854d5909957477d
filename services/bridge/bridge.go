// Package bridge forwards selected bus topics off the node over a pluggable
// Transport and maps a small set of remote commands back onto the bus.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vehiclecode-go/bus"
	"vehiclecode-go/services/logging"
	"vehiclecode-go/types"
	"vehiclecode-go/x/timex"
)

var topicChargerSet = bus.T("bms", "charger", "control", "set")

// StateTopic is where a bridge over tr reports its link state (retained).
func StateTopic(tr Transport) bus.Topic { return bus.T("bridge", tr.String(), "state") }

// Observer receives per-transport delivery counts.
type Observer interface {
	Forwarded(transport string)
	SendError(transport string)
}

type Options struct {
	// Forward lists bus patterns ('+' and '#' allowed) to send off the node.
	Forward    []bus.Topic
	BackoffMin time.Duration
	BackoffMax time.Duration
	Log        logging.Log
	Obs        Observer
}

type Service struct {
	conn *bus.Connection
	tr   Transport
	opts Options
	log  logging.Log
	obs  Observer
}

func NewService(conn *bus.Connection, tr Transport, opts Options) *Service {
	if opts.Log == nil {
		opts.Log = logging.Nop{}
	}
	if opts.Obs == nil {
		opts.Obs = nopObserver{}
	}
	if opts.BackoffMin <= 0 {
		opts.BackoffMin = 250 * time.Millisecond
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 5 * time.Second
	}
	return &Service{conn: conn, tr: tr, opts: opts, log: opts.Log, obs: opts.Obs}
}

// Run supervises the link until ctx ends, reopening with backoff whenever it
// fails. Forwarded subscriptions stay live across reconnects.
func (s *Service) Run(ctx context.Context) {
	defer s.conn.Disconnect()

	out := make(chan *bus.Message, 16)
	for _, pat := range s.opts.Forward {
		sub := s.conn.Subscribe(pat)
		go func(ch <-chan *bus.Message) {
			for m := range ch {
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			}
		}(sub.Channel())
	}

	s.publishState("idle", "starting", nil)
	backoff := backoffSeq(s.opts.BackoffMin, s.opts.BackoffMax)
	for {
		if err := s.tr.Open(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			delay := backoff()
			s.log.Warn("bridge open failed", "transport", s.tr.String(), "error", err, "retry_in", delay)
			s.publishState("degraded", "dial_failed_retrying", err)
			if !sleep(ctx, delay) {
				break
			}
			continue
		}

		s.log.Info("bridge link up", "transport", s.tr.String())
		s.publishState("up", "link_established", nil)
		backoff = backoffSeq(s.opts.BackoffMin, s.opts.BackoffMax)

		err := s.handleLink(ctx, out)
		_ = s.tr.Close()
		if err == nil {
			break
		}
		delay := backoff()
		s.log.Warn("bridge link lost", "transport", s.tr.String(), "error", err, "retry_in", delay)
		s.publishState("degraded", "link_lost_retrying", err)
		if !sleep(ctx, delay) {
			break
		}
	}
	s.publishState("stopped", "shutdown", nil)
}

// handleLink returns nil on ctx end and an error when the link must be reopened.
func (s *Service) handleLink(ctx context.Context, out <-chan *bus.Message) error {
	in := s.tr.Inbound()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-out:
			if err := s.forward(m); err != nil {
				return err
			}
		case msg, ok := <-in:
			if !ok {
				return fmt.Errorf("%s: inbound closed", s.tr)
			}
			s.deliver(msg)
		}
	}
}

func (s *Service) forward(m *bus.Message) error {
	data, err := encode(m.Payload)
	if err != nil {
		// Unencodable payloads are a local bug, not a link failure.
		s.log.Error("bridge encode failed", "topic", m.Topic.String(), "error", err)
		return nil
	}
	if err := s.tr.Send(m.Topic.String(), data, m.Retained); err != nil {
		s.obs.SendError(s.tr.String())
		return err
	}
	s.obs.Forwarded(s.tr.String())
	return nil
}

func (s *Service) deliver(in Inbound) {
	switch in.Topic {
	case "bms/charger/set":
		var req types.ChargerSet
		if err := json.Unmarshal(in.Payload, &req); err != nil {
			s.log.Warn("bridge inbound rejected", "topic", in.Topic, "error", err)
			return
		}
		s.conn.Publish(s.conn.NewMessage(topicChargerSet, req, false))
	default:
		s.log.Debug("bridge inbound ignored", "topic", in.Topic)
	}
}

func encode(p any) ([]byte, error) {
	switch v := p.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}

func (s *Service) publishState(level, status string, err error) {
	st := types.ServiceState{Level: level, Status: status, TS: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(StateTopic(s.tr), st, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

type nopObserver struct{}

func (nopObserver) Forwarded(string) {}
func (nopObserver) SendError(string) {}
