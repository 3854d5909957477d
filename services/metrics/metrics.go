// Package metrics exports control-loop, charger and e-fuse telemetry as
// Prometheus collectors on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	ticks       *prometheus.CounterVec
	tickLatency prometheus.Observer
	rangeStatus *prometheus.GaugeVec

	chargerEnabled   prometheus.Gauge
	chargerConnected prometheus.Gauge

	efuseState   *prometheus.GaugeVec
	efuseRetries *prometheus.CounterVec
	retryDrops   prometheus.Counter

	forwarded *prometheus.CounterVec
	sendErrs  *prometheus.CounterVec
}

// New registers every collector on a fresh registry tagged with node.
func New(node string) *Metrics {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"node": node}

	ticks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "vehicle_signal_publish_ticks_total",
		Help:        "Control ticks whose signal frame was committed.",
		ConstLabels: constLabels,
	}, []string{"frame"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "vehicle_signal_publish_seconds",
		Help:        "Time spent sampling, publishing and committing one tick.",
		ConstLabels: constLabels,
		Buckets:     prometheus.ExponentialBuckets(0.00001, 2, 12),
	})
	rangeStatus := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "vehicle_range_status",
		Help:        "Range classification per signal (0 ok, 1 underflow, 2 overflow).",
		ConstLabels: constLabels,
	}, []string{"signal"})
	chEnabled := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "vehicle_charger_enabled",
		Help:        "1 when the charger actuation is enabled.",
		ConstLabels: constLabels,
	})
	chConnected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "vehicle_charger_connected",
		Help:        "1 when the charger reports a physical connection.",
		ConstLabels: constLabels,
	})
	efState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "vehicle_efuse_state",
		Help:        "E-fuse fault state (0 normal, 1 tripped, 2 retrying).",
		ConstLabels: constLabels,
	}, []string{"efuse"})
	efRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "vehicle_efuse_retries_total",
		Help:        "Retry-close commands issued per e-fuse.",
		ConstLabels: constLabels,
	}, []string{"efuse"})
	drops := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "vehicle_efuse_retry_queue_dropped_total",
		Help:        "Retry commands lost because the driver queue was full.",
		ConstLabels: constLabels,
	})
	forwarded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "vehicle_bridge_forwarded_total",
		Help:        "Messages forwarded to an external transport.",
		ConstLabels: constLabels,
	}, []string{"transport"})
	sendErrs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "vehicle_bridge_errors_total",
		Help:        "Transport send failures.",
		ConstLabels: constLabels,
	}, []string{"transport"})

	reg.MustRegister(ticks, latency, rangeStatus, chEnabled, chConnected,
		efState, efRetries, drops, forwarded, sendErrs)

	return &Metrics{
		reg:              reg,
		ticks:            ticks,
		tickLatency:      latency,
		rangeStatus:      rangeStatus,
		chargerEnabled:   chEnabled,
		chargerConnected: chConnected,
		efuseState:       efState,
		efuseRetries:     efRetries,
		retryDrops:       drops,
		forwarded:        forwarded,
		sendErrs:         sendErrs,
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the private registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) PublishTick(frame string, d time.Duration) {
	m.ticks.WithLabelValues(frame).Inc()
	m.tickLatency.Observe(d.Seconds())
}

func (m *Metrics) RangeStatus(signal string, status int) {
	m.rangeStatus.WithLabelValues(signal).Set(float64(status))
}

func (m *Metrics) Charger(enabled, connected bool) {
	m.chargerEnabled.Set(b2f(enabled))
	m.chargerConnected.Set(b2f(connected))
}

func (m *Metrics) EFuseState(id string, state int) {
	m.efuseState.WithLabelValues(id).Set(float64(state))
}

func (m *Metrics) EFuseRetry(id string) { m.efuseRetries.WithLabelValues(id).Inc() }

func (m *Metrics) RetryDropped() { m.retryDrops.Inc() }

func (m *Metrics) Forwarded(transport string) { m.forwarded.WithLabelValues(transport).Inc() }

func (m *Metrics) SendError(transport string) { m.sendErrs.WithLabelValues(transport).Inc() }

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Nop satisfies every observer interface and records nothing.
type Nop struct{}

func (Nop) PublishTick(string, time.Duration) {}
func (Nop) RangeStatus(string, int)           {}
func (Nop) Charger(bool, bool)                {}
func (Nop) EFuseState(string, int)            {}
func (Nop) EFuseRetry(string)                 {}
func (Nop) RetryDropped()                     {}
func (Nop) Forwarded(string)                  {}
func (Nop) SendError(string)                  {}
