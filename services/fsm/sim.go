package fsm

import (
	"math"
	"sync"
)

// SimSampler produces repeatable host waveforms. Each quantity follows a
// sine between Low and High with its own period in ticks; the brake toggles
// every BrakeEvery ticks. Overrides pin a quantity to a fixed value.
type SimSampler struct {
	mu        sync.Mutex
	tick      uint64
	waves     [numQuantities]Wave
	overrides map[Quantity]float32

	BrakeEvery   uint64
	SensorFaulty bool
}

// Wave describes one sine sweep.
type Wave struct {
	Low, High float32
	Period    uint64 // ticks
}

// NewSimSampler sweeps each quantity slightly past both ends of lim so the
// host run exercises underflow and overflow.
func NewSimSampler(lim Limits) *SimSampler {
	s := &SimSampler{BrakeEvery: 50, overrides: map[Quantity]float32{}}
	def := DefaultLimits()
	for _, q := range Quantities() {
		b, ok := lim[q]
		if !ok {
			b = def[q]
		}
		margin := (b.Max - b.Min) / 10
		s.waves[q] = Wave{Low: b.Min - margin, High: b.Max + margin, Period: 200 + 37*uint64(q)}
	}
	return s
}

// Set pins q to v until Clear.
func (s *SimSampler) Set(q Quantity, v float32) {
	s.mu.Lock()
	s.overrides[q] = v
	s.mu.Unlock()
}

func (s *SimSampler) Clear(q Quantity) {
	s.mu.Lock()
	delete(s.overrides, q)
	s.mu.Unlock()
}

func (s *SimSampler) Sample() Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out Sample
	for i, w := range s.waves {
		if v, ok := s.overrides[Quantity(i)]; ok {
			out.Values[i] = v
			continue
		}
		out.Values[i] = w.at(s.tick)
	}
	if s.BrakeEvery > 0 {
		out.BrakeActuated = (s.tick/s.BrakeEvery)%2 == 1
	}
	out.PressureSensor = s.SensorFaulty
	s.tick++
	return out
}

func (w Wave) at(tick uint64) float32 {
	if w.Period == 0 {
		return w.Low
	}
	phase := float64(tick%w.Period) / float64(w.Period)
	mid := (float64(w.High) + float64(w.Low)) / 2
	amp := (float64(w.High) - float64(w.Low)) / 2
	return float32(mid + amp*math.Sin(2*math.Pi*phase))
}
