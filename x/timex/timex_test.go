package timex

import (
	"testing"
	"time"
)

func TestMs(t *testing.T) {
	if got := Ms(250); got != 250*time.Millisecond {
		t.Fatalf("Ms(250)=%v", got)
	}
}

func TestResetTimerFiresOnce(t *testing.T) {
	tm := time.NewTimer(time.Hour)
	ResetTimer(tm, time.Millisecond)
	select {
	case <-tm.C:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timer did not fire after reset")
	}
	// Stopped and drained timers must re-arm cleanly.
	ResetTimer(tm, -time.Second)
	select {
	case <-tm.C:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("negative reset should fire immediately")
	}
}
