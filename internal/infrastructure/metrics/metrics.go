// Package metrics provides Prometheus metrics for the farm bridge.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every bridge metric.
const Namespace = "farmbridge"

// Outcome label values shared by the bridge counters.
const (
	OutcomeOK        = "ok"
	OutcomeMalformed = "malformed"
	OutcomeUnknown   = "unknown_device"
	OutcomeError     = "error"
	OutcomeTimeout   = "timeout"
	OutcomeTransport = "transport"
	OutcomeMatched   = "matched"
	OutcomeAbandoned = "abandoned"
)

// NewRegistry returns a registry with the Go and process collectors
// already registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an HTTP handler exposing reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Bridge holds the bridge's own metrics. A nil *Bridge is valid and
// records nothing, so packages can be used without metrics in tests.
type Bridge struct {
	MessagesTotal      *prometheus.CounterVec
	CommandsTotal      *prometheus.CounterVec
	CommandDuration    *prometheus.HistogramVec
	WaitsTotal         *prometheus.CounterVec
	WaitDuration       *prometheus.HistogramVec
	WaitsInFlight      prometheus.Gauge
	AlertsTotal        *prometheus.CounterVec
	ThresholdPublishes *prometheus.CounterVec
}

// NewBridge creates the bridge metrics and registers them with reg.
func NewBridge(reg prometheus.Registerer) *Bridge {
	m := &Bridge{
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "bus",
				Name:      "messages_total",
				Help:      "Inbound bus messages by consumer and outcome",
			},
			[]string{"consumer", "outcome"}, // consumer: ingest, alert
		),
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "control",
				Name:      "commands_total",
				Help:      "Device commands dispatched by capability and outcome",
			},
			[]string{"capability", "outcome"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "control",
				Name:      "command_duration_seconds",
				Help:      "Time from dispatch to broker acknowledgement",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"capability"},
		),
		WaitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "correlation",
				Name:      "waits_total",
				Help:      "Completed correlation waits by outcome",
			},
			[]string{"outcome"}, // outcome: matched, timeout
		),
		WaitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "correlation",
				Name:      "wait_duration_seconds",
				Help:      "Time a caller waited for a correlated bus message",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"outcome"},
		),
		WaitsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "correlation",
				Name:      "waits_in_flight",
				Help:      "Callers currently waiting for a correlated bus message",
			},
		),
		AlertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "alert",
				Name:      "forwarded_total",
				Help:      "Threshold alerts by attribute and outcome",
			},
			[]string{"attribute", "outcome"},
		),
		ThresholdPublishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "control",
				Name:      "threshold_publishes_total",
				Help:      "Threshold configuration publishes by outcome",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(
		m.MessagesTotal,
		m.CommandsTotal,
		m.CommandDuration,
		m.WaitsTotal,
		m.WaitDuration,
		m.WaitsInFlight,
		m.AlertsTotal,
		m.ThresholdPublishes,
	)

	return m
}

// ObserveMessage counts one inbound message handled by consumer.
func (m *Bridge) ObserveMessage(consumer, outcome string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(consumer, outcome).Inc()
}

// ObserveCommand records one dispatched command.
func (m *Bridge) ObserveCommand(capability, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(capability, outcome).Inc()
	m.CommandDuration.WithLabelValues(capability).Observe(took.Seconds())
}

// WaitStarted marks a caller as waiting.
func (m *Bridge) WaitStarted() {
	if m == nil {
		return
	}
	m.WaitsInFlight.Inc()
}

// WaitFinished records the end of a wait started with WaitStarted.
func (m *Bridge) WaitFinished(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.WaitsInFlight.Dec()
	m.WaitsTotal.WithLabelValues(outcome).Inc()
	m.WaitDuration.WithLabelValues(outcome).Observe(took.Seconds())
}

// ObserveAlert counts one forwarded (or failed) alert.
func (m *Bridge) ObserveAlert(attribute, outcome string) {
	if m == nil {
		return
	}
	m.AlertsTotal.WithLabelValues(attribute, outcome).Inc()
}

// ObserveThresholdPublish counts one threshold fan-out.
func (m *Bridge) ObserveThresholdPublish(outcome string) {
	if m == nil {
		return
	}
	m.ThresholdPublishes.WithLabelValues(outcome).Inc()
}
