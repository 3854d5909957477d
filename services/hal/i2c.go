package hal

import (
	"sync"

	"tinygo.org/x/drivers"
)

// SharedI2C serialises transactions from several drivers on one bus. Each
// driver's own lock only covers its own register sequences.
type SharedI2C struct {
	mu  sync.Mutex
	bus drivers.I2C
}

var _ drivers.I2C = (*SharedI2C)(nil)

func NewSharedI2C(bus drivers.I2C) *SharedI2C { return &SharedI2C{bus: bus} }

func (s *SharedI2C) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bus.Tx(addr, w, r)
}
