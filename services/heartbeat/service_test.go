package heartbeat

import (
	"context"
	"testing"
	"time"

	"vehiclecode-go/bus"
	"vehiclecode-go/types"
)

func nextBeat(t *testing.T, sub *bus.Subscription, within time.Duration) types.Heartbeat {
	t.Helper()
	select {
	case m := <-sub.Channel():
		return m.Payload.(types.Heartbeat)
	case <-time.After(within):
		t.Fatal("no heartbeat")
	}
	return types.Heartbeat{}
}

func TestHeartbeatSequence(t *testing.T) {
	b := bus.NewBus(8)
	sub := b.NewConnection("watch").Subscribe(topicHeartbeat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewService(b.NewConnection("hb"), 10*time.Millisecond, nil).Run(ctx)

	first := nextBeat(t, sub, 200*time.Millisecond)
	second := nextBeat(t, sub, 200*time.Millisecond)
	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("seq %d, %d", first.Seq, second.Seq)
	}
	if second.UptimeMs < first.UptimeMs {
		t.Fatalf("uptime went backwards: %d -> %d", first.UptimeMs, second.UptimeMs)
	}
}

func TestHeartbeatIntervalFromConfig(t *testing.T) {
	b := bus.NewBus(8)
	c := b.NewConnection("cfg")
	sub := c.Subscribe(topicHeartbeat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewService(b.NewConnection("hb"), time.Hour, nil).Run(ctx)

	// Immediate beat on start.
	nextBeat(t, sub, 200*time.Millisecond)

	c.Publish(c.NewMessage(topicConfigHeartbeat, types.HeartbeatConfig{IntervalMs: 10}, true))
	if hb := nextBeat(t, sub, 300*time.Millisecond); hb.Seq != 2 {
		t.Fatalf("seq %d", hb.Seq)
	}
}
