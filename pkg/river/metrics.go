package river

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/riverproto/channel/internal/wireproto"
)

// Metrics provides Prometheus metrics for the channel core. All methods are
// nil-safe: calls on a nil *Metrics are no-ops, matching this corpus's
// nil-safe metrics-struct convention.
type Metrics struct {
	InvocationsInFlight prometheus.Gauge
	DispatchTotal       *prometheus.CounterVec
	DispatchUnmatched   prometheus.Counter
	ProtocolErrors      prometheus.Counter
	HandshakeTotal      *prometheus.CounterVec
	CreditWaitSeconds   prometheus.Histogram
}

// NewMetrics creates and registers channel metrics with the given
// Prometheus registerer. If reg is nil, metrics are created but not
// registered (useful for tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		InvocationsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "river",
			Subsystem: "channel",
			Name:      "invocations_in_flight",
			Help:      "Current number of invocations awaiting a response.",
		}),
		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "river",
			Subsystem: "channel",
			Name:      "dispatch_total",
			Help:      "Inbound frames dispatched, labeled by opcode.",
		}, []string{"opcode"}),
		DispatchUnmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river",
			Subsystem: "channel",
			Name:      "dispatch_unmatched_total",
			Help:      "Inbound frames whose invocation id matched no pending record.",
		}),
		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river",
			Subsystem: "channel",
			Name:      "protocol_errors_total",
			Help:      "Frames rejected for an unrecognised opcode or malformed header.",
		}),
		HandshakeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "river",
			Subsystem: "channel",
			Name:      "handshake_total",
			Help:      "Handshake attempts, labeled by outcome (ok, failed).",
		}, []string{"outcome"}),
		CreditWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "river",
			Subsystem: "channel",
			Name:      "credit_wait_seconds",
			Help:      "Time spent blocked waiting for write credit.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		collectors := []prometheus.Collector{
			m.InvocationsInFlight,
			m.DispatchTotal,
			m.DispatchUnmatched,
			m.ProtocolErrors,
			m.HandshakeTotal,
			m.CreditWaitSeconds,
		}
		for _, c := range collectors {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					continue
				}
			}
		}
	}

	return m
}

// ObserveDispatch implements dispatcher.Metrics.
func (m *Metrics) ObserveDispatch(opcode wireproto.Opcode, found bool) {
	if m == nil {
		return
	}
	m.DispatchTotal.WithLabelValues(opcode.String()).Inc()
	if !found {
		m.DispatchUnmatched.Inc()
	}
}

// ObserveProtocolError implements dispatcher.Metrics.
func (m *Metrics) ObserveProtocolError() {
	if m == nil {
		return
	}
	m.ProtocolErrors.Inc()
}

// InvocationStarted increments the in-flight invocation gauge.
func (m *Metrics) InvocationStarted() {
	if m == nil {
		return
	}
	m.InvocationsInFlight.Inc()
}

// InvocationFinished decrements the in-flight invocation gauge.
func (m *Metrics) InvocationFinished() {
	if m == nil {
		return
	}
	m.InvocationsInFlight.Dec()
}

// ObserveCreditWait records time spent blocked in Counter.Acquire waiting
// for write credit.
func (m *Metrics) ObserveCreditWait(d time.Duration) {
	if m == nil {
		return
	}
	m.CreditWaitSeconds.Observe(d.Seconds())
}

// ObserveHandshake records a handshake outcome ("ok" or "failed").
func (m *Metrics) ObserveHandshake(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.HandshakeTotal.WithLabelValues("ok").Inc()
	} else {
		m.HandshakeTotal.WithLabelValues("failed").Inc()
	}
}
