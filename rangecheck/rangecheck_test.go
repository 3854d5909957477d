package rangecheck

import (
	"sync"
	"testing"
)

func TestClassifyInclusiveBounds(t *testing.T) {
	cases := []struct {
		v    float32
		want Status
	}{
		{-0.01, Underflow},
		{0, OK},
		{150, OK},
		{300, OK},
		{300.01, Overflow},
		{350, Overflow},
	}
	c := New[float32](0, 300)
	for _, tc := range cases {
		if got := c.Update(tc.v); got != tc.want {
			t.Errorf("Update(%v)=%v want %v", tc.v, got, tc.want)
		}
		if c.Value() != tc.v || c.Status() != tc.want {
			t.Errorf("accessors out of sync after Update(%v): %v/%v", tc.v, c.Value(), c.Status())
		}
	}
}

func TestIntegerSamples(t *testing.T) {
	c := New[int32](-110, 110)
	if c.Update(-111) != Underflow || c.Update(-110) != OK || c.Update(110) != OK || c.Update(111) != Overflow {
		t.Fatal("integer classification incorrect")
	}
}

func TestInitialReadingIsZeroSample(t *testing.T) {
	c := New[float32](1, 30)
	r := c.Reading()
	if r.Value != 0 || r.Status != Underflow {
		t.Fatalf("initial reading %+v, want zero sample classified as underflow", r)
	}
	if min, max := c.Bounds(); min != 1 || max != 30 {
		t.Fatalf("Bounds()=(%v,%v)", min, max)
	}
}

func TestUpdateIsIdempotent(t *testing.T) {
	c := New[float32](0, 10)
	first := c.Update(12)
	for i := 0; i < 5; i++ {
		if got := c.Update(12); got != first || c.Status() != first {
			t.Fatalf("repeat %d changed status: %v -> %v", i, first, got)
		}
	}
}

func TestNoHysteresisAtBoundary(t *testing.T) {
	c := New[float32](0, 10)
	want := []Status{OK, Overflow, OK, Overflow}
	for i, v := range []float32{10, 10.5, 10, 10.5} {
		if got := c.Update(v); got != want[i] {
			t.Fatalf("step %d: got %v want %v", i, got, want[i])
		}
	}
}

func TestReadingNeverTorn(t *testing.T) {
	c := New[int](0, 100)
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			c.Update(i%3*100 - 50) // -50, 50, 150
		}
	}()
	for i := 0; i < 10000; i++ {
		r := c.Reading()
		if Classify(r.Value, 0, 100) != r.Status {
			close(stop)
			wg.Wait()
			t.Fatalf("torn reading %+v", r)
		}
	}
	close(stop)
	wg.Wait()
}

func TestStatusString(t *testing.T) {
	if OK.String() != "ok" || Underflow.String() != "underflow" || Overflow.String() != "overflow" || Status(9).String() != "unknown" {
		t.Fatal("Status.String mapping incorrect")
	}
}
