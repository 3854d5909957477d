package types

// SignalFrame is one committed set of outbound periodic signals, published
// retained on can/tx/<node>.
type SignalFrame struct {
	Node    string             `json:"node"`
	Seq     uint32             `json:"seq"`
	Values  map[string]float32 `json:"values"`
	Choices map[string]uint8   `json:"choices"`
	TS      int64              `json:"ts_ms"`
}
