package types

// ---- Common service state (retained) ----

type ServiceState struct {
	Level  string `json:"level"`  // "idle", "ready", "degraded", "stopped", "error"
	Status string `json:"status"` // freeform short code
	Error  string `json:"error,omitempty"`
	TS     int64  `json:"ts_ms"`
}

// ---- Generic replies ----

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// ---- Heartbeat (retained) ----

type Heartbeat struct {
	Seq      uint32 `json:"seq"`
	UptimeMs int64  `json:"uptime_ms"`
	TS       int64  `json:"ts_ms"`
}
