package hal

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// overlapBus records the most transactions it ever saw in flight at once.
type overlapBus struct {
	inflight atomic.Int32
	peak     atomic.Int32
}

func (b *overlapBus) Tx(addr uint16, w, r []byte) error {
	n := b.inflight.Add(1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(100 * time.Microsecond)
	b.inflight.Add(-1)
	return nil
}

func TestSharedI2CSerialisesDrivers(t *testing.T) {
	raw := &overlapBus{}
	bus := NewSharedI2C(raw)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(addr uint16) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_ = bus.Tx(addr, []byte{0x01}, make([]byte, 2))
			}
		}(uint16(0x20 + g))
	}
	wg.Wait()

	if p := raw.peak.Load(); p != 1 {
		t.Fatalf("%d transactions overlapped", p)
	}
}
