package types

// ------------------------
// Charger (bms)
// ------------------------

// Retained value: bms/charger/state
type ChargerState struct {
	Enabled   bool  `json:"enabled"`
	Connected bool  `json:"connected"`
	TS        int64 `json:"ts_ms"`
}

// ChargerSet is accepted on bms/charger/control/set.
type ChargerSet struct {
	On bool `json:"on"`
}

// ------------------------
// E-fuses (pdm)
// ------------------------

// Retained value: pdm/efuse/<id>/state
type EFuseState struct {
	ID       string `json:"id"`
	State    string `json:"state"` // "normal" | "tripped" | "retrying"
	Attempts uint32 `json:"attempts"`
	TS       int64  `json:"ts_ms"`
}

// EFuseEvent verbs reported by a switch driver on pdm/efuse/<id>/event/<verb>.
const (
	EFuseEventTrip = "trip"
	EFuseEventOK   = "ok"
	EFuseEventFail = "fail"
)
