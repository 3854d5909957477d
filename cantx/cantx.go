// Package cantx holds the outbound periodic signal slots and the mapping from
// internal states to the discrete choice codes carried on the vehicle bus.
package cantx

import (
	"sync"

	"vehiclecode-go/rangecheck"
)

// Signal names one outbound bus signal.
type Signal string

// Choice is the wire code of a discrete (enumerated) signal value.
type Choice uint8

// Tx is the write side of the outbound signal slots.
type Tx interface {
	SetValue(sig Signal, v float32)
	SetChoice(sig Signal, c Choice)
}

// RangeChoices maps a range classification onto one signal family's codes.
type RangeChoices struct {
	OK, Underflow, Overflow Choice
}

// For is total; any status other than Underflow/Overflow maps to OK.
func (rc RangeChoices) For(s rangecheck.Status) Choice {
	switch s {
	case rangecheck.Underflow:
		return rc.Underflow
	case rangecheck.Overflow:
		return rc.Overflow
	default:
		return rc.OK
	}
}

// BoolChoices maps a boolean state onto one signal family's codes.
type BoolChoices struct {
	False, True Choice
}

func (bc BoolChoices) For(b bool) Choice {
	if b {
		return bc.True
	}
	return bc.False
}

// Frame is one consistent set of slot contents.
type Frame struct {
	Seq     uint32
	Values  map[Signal]float32
	Choices map[Signal]Choice
}

func newFrame() Frame {
	return Frame{Values: map[Signal]float32{}, Choices: map[Signal]Choice{}}
}

func (f Frame) clone() Frame {
	out := Frame{
		Seq:     f.Seq,
		Values:  make(map[Signal]float32, len(f.Values)),
		Choices: make(map[Signal]Choice, len(f.Choices)),
	}
	for k, v := range f.Values {
		out.Values[k] = v
	}
	for k, v := range f.Choices {
		out.Choices[k] = v
	}
	return out
}

// Buffer is a double-buffered Tx. Writers fill the pending frame; Commit
// makes it visible to Snapshot in one step so the transmitter never sees a
// half-written tick. Slots keep their last value until overwritten.
type Buffer struct {
	mu        sync.Mutex
	pending   Frame
	committed Frame
}

func NewBuffer() *Buffer {
	return &Buffer{pending: newFrame(), committed: newFrame()}
}

func (b *Buffer) SetValue(sig Signal, v float32) {
	b.mu.Lock()
	b.pending.Values[sig] = v
	b.mu.Unlock()
}

func (b *Buffer) SetChoice(sig Signal, c Choice) {
	b.mu.Lock()
	b.pending.Choices[sig] = c
	b.mu.Unlock()
}

// Commit publishes the pending slots and returns the new sequence number.
func (b *Buffer) Commit() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending.Seq++
	b.committed = b.pending.clone()
	return b.committed.Seq
}

// Snapshot returns a private copy of the last committed frame.
func (b *Buffer) Snapshot() Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed.clone()
}
