package fsm

import (
	"sync/atomic"

	"vehiclecode-go/cantx"
	"vehiclecode-go/rangecheck"
)

// Quantity names one sampled front-subsystem measurement.
type Quantity uint8

const (
	PrimaryFlowRate Quantity = iota
	SecondaryFlowRate
	LeftWheelSpeed
	RightWheelSpeed
	SteeringAngle
	BrakePressure
	numQuantities
)

var quantityNames = [numQuantities]string{
	"primary_flow_rate",
	"secondary_flow_rate",
	"left_wheel_speed",
	"right_wheel_speed",
	"steering_angle",
	"brake_pressure",
}

func (q Quantity) String() string {
	if q < numQuantities {
		return quantityNames[q]
	}
	return "unknown"
}

// ParseQuantity is the inverse of String.
func ParseQuantity(s string) (Quantity, bool) {
	for i, n := range quantityNames {
		if n == s {
			return Quantity(i), true
		}
	}
	return 0, false
}

// Quantities lists every quantity in declaration order.
func Quantities() []Quantity {
	out := make([]Quantity, numQuantities)
	for i := range out {
		out[i] = Quantity(i)
	}
	return out
}

// Bounds is an inclusive [Min, Max] band.
type Bounds struct {
	Min, Max float32
}

// Limits holds the safe band of every quantity. Units: L/min, km/h,
// degrees, psi.
type Limits map[Quantity]Bounds

// DefaultLimits is the front-subsystem calibration.
func DefaultLimits() Limits {
	return Limits{
		PrimaryFlowRate:   {Min: 1, Max: 30},
		SecondaryFlowRate: {Min: 1, Max: 30},
		LeftWheelSpeed:    {Min: 0, Max: 150},
		RightWheelSpeed:   {Min: 0, Max: 150},
		SteeringAngle:     {Min: -110, Max: 110},
		BrakePressure:     {Min: 0, Max: 1000},
	}
}

// Brake groups the pressure check with the two brake probes.
type Brake struct {
	pressure  *rangecheck.Check[float32]
	actuated  atomic.Bool
	openShort atomic.Bool
}

func NewBrake(pressure Bounds) *Brake {
	return &Brake{pressure: rangecheck.New(pressure.Min, pressure.Max)}
}

func (b *Brake) Pressure() *rangecheck.Check[float32] { return b.pressure }
func (b *Brake) IsActuated() bool                     { return b.actuated.Load() }

// IsPressureSensorOpenOrShortCircuit reports the sensor's own fault, as
// opposed to a pressure reading outside its band.
func (b *Brake) IsPressureSensorOpenOrShortCircuit() bool { return b.openShort.Load() }

// World owns every range check and the brake.
type World struct {
	checks [numQuantities]*rangecheck.Check[float32]
	brake  *Brake
}

// NewWorld builds checks from lim; quantities missing from lim fall back to
// DefaultLimits.
func NewWorld(lim Limits) *World {
	def := DefaultLimits()
	w := &World{}
	for _, q := range Quantities() {
		b, ok := lim[q]
		if !ok {
			b = def[q]
		}
		if q == BrakePressure {
			w.brake = NewBrake(b)
			w.checks[q] = w.brake.pressure
			continue
		}
		w.checks[q] = rangecheck.New(b.Min, b.Max)
	}
	return w
}

// Check returns the range check for q.
func (w *World) Check(q Quantity) *rangecheck.Check[float32] {
	if q >= numQuantities {
		return nil
	}
	return w.checks[q]
}

func (w *World) Brake() *Brake { return w.brake }

// Sample is one snapshot from the acquisition side.
type Sample struct {
	Values         [numQuantities]float32
	BrakeActuated  bool
	PressureSensor bool // true when open or short circuit
}

// Sampler is the external acquisition collaborator.
type Sampler interface {
	Sample() Sample
}

// Apply feeds one sample into every check and probe.
func (w *World) Apply(s Sample) {
	for i, c := range w.checks {
		c.Update(s.Values[i])
	}
	w.brake.actuated.Store(s.BrakeActuated)
	w.brake.openShort.Store(s.PressureSensor)
}

// RegisterSignals binds w to the standard front-subsystem signal set.
func RegisterSignals(p *Publisher, w *World) {
	nce := cantx.NonCriticalErrorsChoices

	// Flow rate.
	p.AddRange(w.Check(PrimaryFlowRate), cantx.PrimaryFlowRate, cantx.PrimaryFlowRateOutOfRange, nce)
	p.AddRange(w.Check(SecondaryFlowRate), cantx.SecondaryFlowRate, cantx.SecondaryFlowRateOutOfRange, nce)

	// Wheel speed.
	p.AddRange(w.Check(LeftWheelSpeed), cantx.LeftWheelSpeed, cantx.LeftWheelSpeedOutOfRange, nce)
	p.AddRange(w.Check(RightWheelSpeed), cantx.RightWheelSpeed, cantx.RightWheelSpeedOutOfRange, nce)

	// Steering angle.
	p.AddRange(w.Check(SteeringAngle), cantx.SteeringAngle, cantx.SteeringAngleOutOfRange, nce)

	// Brake.
	b := w.Brake()
	p.AddRange(b.Pressure(), cantx.BrakePressure, cantx.BrakePressureOutOfRange, nce)
	p.AddBool(b.IsActuated, cantx.BrakeIsActuated, cantx.BrakeChoices)
	p.AddBool(b.IsPressureSensorOpenOrShortCircuit, cantx.PressureSensorIsOpenOrShortCircuit, cantx.BrakeChoices)
}
