package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	m := New("fsm")

	m.PublishTick("can/tx/fsm", 50*time.Microsecond)
	m.PublishTick("can/tx/fsm", 70*time.Microsecond)
	if got := testutil.ToFloat64(m.ticks.WithLabelValues("can/tx/fsm")); got != 2 {
		t.Fatalf("ticks=%v want 2", got)
	}
	if n := testutil.CollectAndCount(m.tickLatency.(prometheus.Collector)); n != 1 {
		t.Fatalf("latency series=%d want 1", n)
	}

	m.RangeStatus("LEFT_WHEEL_SPEED_OUT_OF_RANGE", 2)
	if got := testutil.ToFloat64(m.rangeStatus.WithLabelValues("LEFT_WHEEL_SPEED_OUT_OF_RANGE")); got != 2 {
		t.Fatalf("range status=%v", got)
	}

	m.Charger(true, false)
	if testutil.ToFloat64(m.chargerEnabled) != 1 || testutil.ToFloat64(m.chargerConnected) != 0 {
		t.Fatal("charger gauges")
	}

	m.EFuseRetry("aux1")
	m.EFuseRetry("aux1")
	m.EFuseState("aux1", 2)
	m.RetryDropped()
	if testutil.ToFloat64(m.efuseRetries.WithLabelValues("aux1")) != 2 ||
		testutil.ToFloat64(m.efuseState.WithLabelValues("aux1")) != 2 ||
		testutil.ToFloat64(m.retryDrops) != 1 {
		t.Fatal("efuse metrics")
	}

	m.Forwarded("mqtt")
	m.SendError("mqtt")
	if testutil.ToFloat64(m.forwarded.WithLabelValues("mqtt")) != 1 ||
		testutil.ToFloat64(m.sendErrs.WithLabelValues("mqtt")) != 1 {
		t.Fatal("bridge metrics")
	}
}

func TestHandlerServesPrivateRegistry(t *testing.T) {
	m := New("pdm")
	m.EFuseRetry("fan")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `vehicle_efuse_retries_total{efuse="fan",node="pdm"} 1`) {
		t.Fatalf("exposition missing retry counter:\n%s", body)
	}
}

func TestTwoInstancesDoNotCollide(t *testing.T) {
	// Each instance owns its registry; a second New must not panic.
	_ = New("a")
	_ = New("b")
}
