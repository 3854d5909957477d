// Package gpioirq moves GPIO edge interrupts out of interrupt context. The
// ISR side only samples the pin and does a non-blocking send; debounce and
// edge classification run on the worker goroutine.
package gpioirq

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"vehiclecode-go/services/hal"
)

// Event is one debounced logical edge on a named line.
type Event struct {
	Line  string
	Level bool // logical, after inversion
	Edge  hal.Edge
	TS    time.Time
}

type Worker struct {
	// Written by ISR; must not block.
	isrQ chan isrEvent
	outQ chan Event

	mu     sync.RWMutex
	inputs map[string]*watch

	drops    atomic.Uint32 // ISR queue full
	outDrops atomic.Uint32 // consumer too slow
}

type isrEvent struct {
	line  string
	level bool
}

type watch struct {
	pin       hal.IRQPin
	edge      hal.Edge
	debounce  time.Duration
	invert    bool
	lastLevel bool
	lastEvent time.Time
}

func New(isrBuf, outBuf int) *Worker {
	if isrBuf <= 0 {
		isrBuf = 32
	}
	if outBuf <= 0 {
		outBuf = 32
	}
	return &Worker{
		isrQ:   make(chan isrEvent, isrBuf),
		outQ:   make(chan Event, outBuf),
		inputs: map[string]*watch{},
	}
}

// Run processes ISR samples until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.isrQ:
			w.handle(ev)
		}
	}
}

func (w *Worker) Events() <-chan Event { return w.outQ }

// Watch arms an interrupt on pin and reports logical edges under line. The
// returned func disarms it.
func (w *Worker) Watch(line string, pin hal.IRQPin, edge hal.Edge, debounce time.Duration, invert bool) (func(), error) {
	if edge == hal.EdgeNone {
		return func() {}, nil
	}
	wh := &watch{
		pin:       pin,
		edge:      edge,
		debounce:  debounce,
		invert:    invert,
		lastLevel: pin.Get() != invert,
	}

	handler := func() {
		select {
		case w.isrQ <- isrEvent{line: line, level: pin.Get()}:
		default:
			w.drops.Add(1)
		}
	}

	// Register before arming so the first interrupt finds its watch.
	w.mu.Lock()
	w.inputs[line] = wh
	w.mu.Unlock()

	if err := pin.SetIRQ(edge, handler); err != nil {
		w.mu.Lock()
		delete(w.inputs, line)
		w.mu.Unlock()
		return nil, err
	}

	return func() {
		w.mu.Lock()
		if cur, ok := w.inputs[line]; ok && cur == wh {
			_ = pin.ClearIRQ()
			delete(w.inputs, line)
		}
		w.mu.Unlock()
	}, nil
}

func (w *Worker) handle(ev isrEvent) {
	w.mu.RLock()
	wh := w.inputs[ev.line]
	w.mu.RUnlock()
	if wh == nil {
		return
	}
	level := ev.level != wh.invert
	now := time.Now()

	if !wh.lastEvent.IsZero() && now.Sub(wh.lastEvent) < wh.debounce {
		return
	}

	var e hal.Edge
	switch {
	case !wh.lastLevel && level:
		e = hal.EdgeRising
	case wh.lastLevel && !level:
		e = hal.EdgeFalling
	case wh.edge != hal.EdgeBoth:
		// Level unchanged since the last sample but the hardware fired on a
		// single configured edge; trust the configuration.
		e = wh.edge
		if wh.invert {
			e = flip(e)
		}
	}

	if e != hal.EdgeNone {
		select {
		case w.outQ <- Event{Line: ev.line, Level: level, Edge: e, TS: now}:
		default:
			w.outDrops.Add(1)
		}
	}
	wh.lastLevel = level
	wh.lastEvent = now
}

func flip(e hal.Edge) hal.Edge {
	switch e {
	case hal.EdgeRising:
		return hal.EdgeFalling
	case hal.EdgeFalling:
		return hal.EdgeRising
	}
	return e
}

// Drops returns the ISR-side and consumer-side drop counts.
func (w *Worker) Drops() (isr, out uint32) { return w.drops.Load(), w.outDrops.Load() }
