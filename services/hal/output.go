package hal

// Output drives a Pin with logical on/off, honouring active-low wiring.
type Output struct {
	pin       Pin
	activeLow bool
}

// NewOutput configures pin as an output in the logical off state.
func NewOutput(pin Pin, activeLow bool) (*Output, error) {
	o := &Output{pin: pin, activeLow: activeLow}
	if err := pin.ConfigureOutput(o.physical(false)); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Output) physical(on bool) bool { return on != o.activeLow }

func (o *Output) Set(on bool) { o.pin.Set(o.physical(on)) }
func (o *Output) On()         { o.Set(true) }
func (o *Output) Off()        { o.Set(false) }
func (o *Output) IsOn() bool  { return o.pin.Get() == o.physical(true) }
func (o *Output) Pin() Pin    { return o.pin }

// Input reads a Pin as a logical level, honouring active-low wiring.
type Input struct {
	pin       Pin
	activeLow bool
}

func NewInput(pin Pin, pull Pull, activeLow bool) (*Input, error) {
	if err := pin.ConfigureInput(pull); err != nil {
		return nil, err
	}
	return &Input{pin: pin, activeLow: activeLow}, nil
}

func (i *Input) Active() bool { return i.pin.Get() != i.activeLow }
func (i *Input) Pin() Pin     { return i.pin }
