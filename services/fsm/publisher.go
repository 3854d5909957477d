package fsm

import (
	"vehiclecode-go/cantx"
	"vehiclecode-go/rangecheck"
)

// RangeSource is anything that can hand over a consistent (value, status)
// pair. *rangecheck.Check[float32] is the usual one.
type RangeSource interface {
	Reading() rangecheck.Reading[float32]
}

type rangeEntry struct {
	src     RangeSource
	value   cantx.Signal
	status  cantx.Signal
	choices cantx.RangeChoices
}

type boolEntry struct {
	src     func() bool
	status  cantx.Signal
	choices cantx.BoolChoices
}

// Publisher copies range readings and boolean states into outbound signal
// slots. It never samples and never transmits; every call overwrites the
// slots it owns.
type Publisher struct {
	tx     cantx.Tx
	ranges []rangeEntry
	bools  []boolEntry
}

func NewPublisher(tx cantx.Tx) *Publisher { return &Publisher{tx: tx} }

// AddRange registers a monitored quantity: its value goes to value and its
// classification, mapped through choices, to status.
func (p *Publisher) AddRange(src RangeSource, value, status cantx.Signal, choices cantx.RangeChoices) {
	p.ranges = append(p.ranges, rangeEntry{src: src, value: value, status: status, choices: choices})
}

// AddBool registers a boolean sensor state written to status.
func (p *Publisher) AddBool(src func() bool, status cantx.Signal, choices cantx.BoolChoices) {
	p.bools = append(p.bools, boolEntry{src: src, status: status, choices: choices})
}

// Publish writes every registered entry once.
func (p *Publisher) Publish() {
	for _, e := range p.ranges {
		r := e.src.Reading()
		p.tx.SetValue(e.value, r.Value)
		p.tx.SetChoice(e.status, e.choices.For(r.Status))
	}
	for _, e := range p.bools {
		p.tx.SetChoice(e.status, e.choices.For(e.src()))
	}
}

// EachRange reports the current classification of every range entry, keyed
// by its status signal.
func (p *Publisher) EachRange(fn func(status cantx.Signal, st rangecheck.Status)) {
	for _, e := range p.ranges {
		fn(e.status, e.src.Reading().Status)
	}
}
