// Package rangecheck classifies numeric samples against a closed [min, max]
// window. A sample equal to either bound is in range.
package rangecheck

import (
	"sync/atomic"

	"golang.org/x/exp/constraints"
)

// Number is any sample type a Check can hold.
type Number interface {
	constraints.Integer | constraints.Float
}

// Status is the classification of the most recent sample.
type Status uint8

const (
	OK Status = iota
	Underflow
	Overflow
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case Underflow:
		return "underflow"
	case Overflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Reading is a sample together with the status it was classified as.
type Reading[T Number] struct {
	Value  T
	Status Status
}

// Check holds fixed bounds and the latest reading. Update may run in a
// different goroutine from the readers; the (value, status) pair is swapped
// as one pointer so readers never see a new value with a stale status.
//
// min <= max is the caller's responsibility and is not checked.
type Check[T Number] struct {
	min, max T
	cur      atomic.Pointer[Reading[T]]
}

// New returns a check whose initial reading is the zero sample.
func New[T Number](min, max T) *Check[T] {
	c := &Check[T]{min: min, max: max}
	var zero T
	c.cur.Store(&Reading[T]{Value: zero, Status: Classify(zero, min, max)})
	return c
}

// Classify is the pure classification rule used by Update.
func Classify[T Number](v, min, max T) Status {
	switch {
	case v < min:
		return Underflow
	case v > max:
		return Overflow
	default:
		return OK
	}
}

// Update stores v and returns its classification.
func (c *Check[T]) Update(v T) Status {
	st := Classify(v, c.min, c.max)
	c.cur.Store(&Reading[T]{Value: v, Status: st})
	return st
}

func (c *Check[T]) Value() T             { return c.cur.Load().Value }
func (c *Check[T]) Status() Status       { return c.cur.Load().Status }
func (c *Check[T]) Reading() Reading[T]  { return *c.cur.Load() }
func (c *Check[T]) Bounds() (min, max T) { return c.min, c.max }
