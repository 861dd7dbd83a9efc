package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devasign/task-escrow/internal/escrow"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	deliveries *prometheus.CounterVec
	requests   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_operations_total",
			Help: "Escrow operations by name and result code.",
		}, []string{"operation", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "escrow_operation_duration_seconds",
			Help:    "Time spent inside one atomic escrow call.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_events_delivered_total",
			Help: "Indexer webhook deliveries by topic and outcome.",
		}, []string{"topic", "result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		}, []string{"route", "status"}),
	}
	m.registry.MustRegister(
		m.operations,
		m.latency,
		m.deliveries,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

var _ escrow.Observer = (*Metrics)(nil)

// ObserveOperation records one escrow call. Failures are labelled with the
// escrow error name, or "internal" for storage and transport errors.
func (m *Metrics) ObserveOperation(op string, err error, elapsed time.Duration) {
	m.operations.WithLabelValues(op, resultLabel(err)).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveDelivery records one indexer webhook attempt.
func (m *Metrics) ObserveDelivery(topic string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.deliveries.WithLabelValues(topic, result).Inc()
}

// ObserveRequest records one HTTP response.
func (m *Metrics) ObserveRequest(route string, status int) {
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code, ok := escrow.AsError(err); ok {
		return code.Error()
	}
	return "internal"
}
