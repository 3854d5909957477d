package mathx

import (
	"testing"
	"time"
)

func TestClamp(t *testing.T) {
	cases := []struct{ v, lo, hi, want int }{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{11, 0, 10, 10},
		{11, 10, 0, 10}, // swapped bounds
	}
	for _, c := range cases {
		if got := Clamp(c.v, c.lo, c.hi); got != c.want {
			t.Errorf("Clamp(%d,%d,%d)=%d want %d", c.v, c.lo, c.hi, got, c.want)
		}
	}
	if got := Clamp(5*time.Millisecond, 10*time.Millisecond, time.Hour); got != 10*time.Millisecond {
		t.Fatalf("duration clamp: %v", got)
	}
}

func TestMax(t *testing.T) {
	if Max(3, 7) != 7 || Max(7, 3) != 7 {
		t.Fatal("Max incorrect")
	}
}
