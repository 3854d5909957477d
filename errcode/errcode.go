package errcode

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK             Code = "ok"
	Busy           Code = "busy"
	Unsupported    Code = "unsupported"
	InvalidParams  Code = "invalid_params"
	InvalidPayload Code = "invalid_payload"
	InvalidTopic   Code = "invalid_topic"
	InvalidPeriod  Code = "invalid_period"
	InvalidBounds  Code = "invalid_bounds"
	Duplicate      Code = "duplicate"
	NotReady       Code = "not_ready"

	UnknownSignal Code = "unknown_signal"
	UnknownSwitch Code = "unknown_switch"
	UnknownPin    Code = "unknown_pin"
	PinInUse      Code = "pin_in_use"
	UnknownBus    Code = "unknown_bus"
	Timeout       Code = "timeout"

	Error Code = "error" // generic fallback
)

// E wraps a Code with the failing operation and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap builds an *E; err may be nil.
func Wrap(c Code, op string, err error) *E {
	e := &E{C: c, Op: op, Err: err}
	if err != nil {
		e.Msg = err.Error()
	}
	return e
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
