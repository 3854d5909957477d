package hal

import (
	"errors"
	"sync"

	"tinygo.org/x/drivers"
)

var _ drivers.I2C = (*SimTCA9534)(nil)

// SimTCA9534 models the four expander registers on a host I²C bus. Input
// reads return the driven inputs, not the output latch.
type SimTCA9534 struct {
	mu     sync.Mutex
	regs   [4]uint8
	inputs uint8
	fail   bool
	txs    int
}

func (f *SimTCA9534) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs++
	if f.fail {
		return errors.New("nack")
	}
	if len(w) == 2 {
		f.regs[w[0]&3] = w[1]
		return nil
	}
	if len(w) == 1 && len(r) == 1 {
		if w[0] == regInput {
			r[0] = f.inputs
		} else {
			r[0] = f.regs[w[0]&3]
		}
	}
	return nil
}

// DriveInput sets the external level seen on line bit.
func (f *SimTCA9534) DriveInput(bit uint8, level bool) {
	f.mu.Lock()
	f.inputs = setBit(f.inputs, bit, level)
	f.mu.Unlock()
}

// Fail makes every following transaction NACK until cleared.
func (f *SimTCA9534) Fail(on bool) {
	f.mu.Lock()
	f.fail = on
	f.mu.Unlock()
}
