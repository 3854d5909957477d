package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestOf(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, OK},
		{Busy, Busy},
		{&E{C: UnknownSwitch, Op: "trip"}, UnknownSwitch},
		{Wrap(Timeout, "publish", errors.New("broker slow")), Timeout},
		{errors.New("plain"), Error},
	}
	for _, c := range cases {
		if got := Of(c.err); got != c.want {
			t.Errorf("Of(%v)=%q want %q", c.err, got, c.want)
		}
	}
}

func TestEFormatsAndUnwraps(t *testing.T) {
	cause := errors.New("nack")
	e := Wrap(Timeout, "mqtt.publish", cause)
	if e.Error() != "mqtt.publish: timeout: nack" {
		t.Fatalf("unexpected message %q", e.Error())
	}
	if !errors.Is(fmt.Errorf("outer: %w", e), cause) {
		t.Fatal("cause not reachable through Unwrap")
	}
	if (&E{C: Duplicate}).Error() != "duplicate" {
		t.Fatal("bare code formatting")
	}
}
