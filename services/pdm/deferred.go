package pdm

import (
	"context"
	"sync/atomic"
)

// DeferredDriver queues retry commands from the timer callback and runs the
// wrapped driver on its own goroutine. A full queue drops the command; the
// next fire retries anyway.
type DeferredDriver struct {
	next  Driver
	q     chan SwitchID
	drops atomic.Uint32

	// OnDrop, if set, runs in the caller's context on every drop.
	OnDrop func()
}

func NewDeferredDriver(next Driver, depth int) *DeferredDriver {
	if depth <= 0 {
		depth = 8
	}
	return &DeferredDriver{next: next, q: make(chan SwitchID, depth)}
}

func (d *DeferredDriver) RetryClose(id SwitchID) {
	select {
	case d.q <- id:
	default:
		d.drops.Add(1)
		if d.OnDrop != nil {
			d.OnDrop()
		}
	}
}

func (d *DeferredDriver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-d.q:
			d.next.RetryClose(id)
		}
	}
}

func (d *DeferredDriver) Drops() uint32 { return d.drops.Load() }
