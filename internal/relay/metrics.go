package relay

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors for the relay.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	sseClients      prometheus.Gauge
	broadcastDrops  prometheus.Counter
	rateLimited     prometheus.Counter
	upstreamErrors  *prometheus.CounterVec
}

func newMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waveroom",
			Name:      "relay_http_requests_total",
			Help:      "Total HTTP requests received",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "waveroom",
			Name:      "relay_http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		sseClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "waveroom",
			Name:      "relay_sse_clients",
			Help:      "Current connected SSE clients",
		}),
		broadcastDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "waveroom",
			Name:      "relay_broadcast_drops_total",
			Help:      "Number of events dropped due to slow SSE clients",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "waveroom",
			Name:      "relay_rate_limited_total",
			Help:      "Number of requests rejected due to rate limiting",
		}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waveroom",
			Name:      "relay_upstream_errors_total",
			Help:      "Number of failed requests to the radio server",
		}, []string{"endpoint"}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.sseClients,
		m.broadcastDrops,
		m.rateLimited,
		m.upstreamErrors,
	)
	return m
}

// Handler returns the metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records timing and status information.
func (m *Metrics) ObserveRequest(route, method string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(dur.Seconds())
}

// IncSSEClients adjusts the SSE client gauge by delta.
func (m *Metrics) IncSSEClients(delta float64) {
	if m == nil {
		return
	}
	m.sseClients.Add(delta)
}
