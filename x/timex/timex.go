package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Ms converts a millisecond count from configuration into a Duration.
func Ms(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// ResetTimer stops, drains and re-arms t. Negative d fires immediately.
func ResetTimer(t *time.Timer, d time.Duration) {
	if d < 0 {
		d = 0
	}
	if !t.Stop() {
		DrainTimer(t)
	}
	t.Reset(d)
}

// DrainTimer empties a stopped timer's channel without blocking.
func DrainTimer(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}
