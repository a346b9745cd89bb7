package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the dispatcher's Prometheus series. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	CommandsDispatchedTotal *prometheus.CounterVec
	CommandsTimedOutTotal   prometheus.Counter
	StreamSubscriptions     *prometheus.GaugeVec
	OutboxDeliveriesTotal   *prometheus.CounterVec
	OutboxPending           *prometheus.GaugeVec
	PullsTotal              *prometheus.CounterVec
	MeasurementsPulledTotal prometheus.Counter
	APIRequestsTotal        *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		CommandsDispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetdispatch_commands_dispatched_total",
				Help: "Total number of commands pushed to vehicle streams",
			},
			[]string{"type"},
		),
		CommandsTimedOutTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fleetdispatch_commands_timed_out_total",
				Help: "Total number of open commands moved to TIMEOUT",
			},
		),
		StreamSubscriptions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fleetdispatch_stream_subscriptions",
				Help: "Number of open live update subscriptions",
			},
			[]string{"stream"},
		),
		OutboxDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetdispatch_outbox_deliveries_total",
				Help: "Total number of outbox delivery attempts",
			},
			[]string{"kind", "result"},
		),
		OutboxPending: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fleetdispatch_outbox_pending",
				Help: "Number of outbox messages awaiting delivery after the latest flush",
			},
			[]string{"kind"},
		),
		PullsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetdispatch_pulls_total",
				Help: "Total number of measurement pulls per campaign",
			},
			[]string{"mode", "result"},
		),
		MeasurementsPulledTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fleetdispatch_measurements_pulled_total",
				Help: "Total number of measurements stored from the backend",
			},
		),
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetdispatch_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "status"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.CommandsDispatchedTotal,
		m.CommandsTimedOutTotal,
		m.StreamSubscriptions,
		m.OutboxDeliveriesTotal,
		m.OutboxPending,
		m.PullsTotal,
		m.MeasurementsPulledTotal,
		m.APIRequestsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CommandDispatched(commandType string) {
	if m == nil {
		return
	}
	m.CommandsDispatchedTotal.WithLabelValues(commandType).Inc()
}

func (m *Metrics) CommandsTimedOut(n int) {
	if m == nil {
		return
	}
	m.CommandsTimedOutTotal.Add(float64(n))
}

func (m *Metrics) SubscriptionOpened(stream string) {
	if m == nil {
		return
	}
	m.StreamSubscriptions.WithLabelValues(stream).Inc()
}

func (m *Metrics) SubscriptionClosed(stream string) {
	if m == nil {
		return
	}
	m.StreamSubscriptions.WithLabelValues(stream).Dec()
}

func (m *Metrics) OutboxDelivery(kind string, ok bool) {
	if m == nil {
		return
	}
	m.OutboxDeliveriesTotal.WithLabelValues(kind, result(ok)).Inc()
}

func (m *Metrics) SetOutboxPending(kind string, n int) {
	if m == nil {
		return
	}
	m.OutboxPending.WithLabelValues(kind).Set(float64(n))
}

func (m *Metrics) Pull(mode string, ok bool) {
	if m == nil {
		return
	}
	m.PullsTotal.WithLabelValues(mode, result(ok)).Inc()
}

func (m *Metrics) MeasurementsPulled(n int) {
	if m == nil {
		return
	}
	m.MeasurementsPulledTotal.Add(float64(n))
}

func (m *Metrics) APIRequest(method string, status int) {
	if m == nil {
		return
	}
	m.APIRequestsTotal.WithLabelValues(method, http.StatusText(status)).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
