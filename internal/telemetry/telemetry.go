// Package telemetry keeps local Prometheus metrics for the sync core. The
// registry is only exposed over the loopback API; nothing is pushed off the
// device.
package telemetry

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
	syncpkg "github.com/youngukshin9402-code/cloud-sync-manager/internal/sync"
)

const namespace = "yanggaeng"

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	drains        *prometheus.CounterVec
	drainItems    *prometheus.CounterVec
	drainDuration prometheus.Histogram
	pending       prometheus.Gauge
	lastSuccess   prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		drains: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "drains_total",
				Help:      "Total number of queue drains by outcome.",
			},
			[]string{"outcome"},
		),
		drainItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "items_total",
				Help:      "Pending items processed by drains.",
			},
			[]string{"result"},
		),
		drainDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "drain_duration_seconds",
				Help:      "Duration of queue drains.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
		),
		pending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "pending_items",
				Help:      "Writes waiting in the pending queue.",
			},
		),
		lastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last drain that synced at least one item.",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of local API requests.",
			},
			[]string{"method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of local API requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
			},
			[]string{"method"},
		),
	}

	m.registry.MustRegister(
		m.drains,
		m.drainItems,
		m.drainDuration,
		m.pending,
		m.lastSuccess,
		m.httpRequests,
		m.httpDuration,
		prometheus.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OnSyncEvent records drain outcomes. It implements sync.SyncEventHandler.
func (m *Metrics) OnSyncEvent(event syncpkg.SyncEvent) {
	switch event.Type {
	case syncpkg.SyncEventSkipped:
		m.drains.WithLabelValues("skipped").Inc()
	case syncpkg.SyncEventCompleted, syncpkg.SyncEventFailed:
		outcome := "completed"
		if event.Type == syncpkg.SyncEventFailed {
			outcome = "failed"
		}
		m.drains.WithLabelValues(outcome).Inc()

		if r := event.Result; r != nil {
			m.drainItems.WithLabelValues("success").Add(float64(r.Success))
			m.drainItems.WithLabelValues("failed").Add(float64(r.Failed))
			m.drainItems.WithLabelValues("dropped").Add(float64(r.Dropped))
			m.drainDuration.Observe(r.Duration.Seconds())
			if r.Success > 0 {
				m.lastSuccess.Set(float64(event.Timestamp.Unix()))
			}
		}
	}
}

// SetPending records the queue length. Pass it to queue.Subscribe.
func (m *Metrics) SetPending(total int) {
	m.pending.Set(float64(total))
}

// InstrumentHandler wraps next with request metrics.
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		m.httpRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack hands the connection to websocket upgrades.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New(errors.ErrInternal, "response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the inner writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
