// Package metrics exposes portal counters on a private Prometheus registry.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	snapshotWrites  *prometheus.CounterVec
	recordsCreated  *prometheus.CounterVec
	alertsCreated   *prometheus.CounterVec
	alertResponses  prometheus.Counter
	statusChanges   *prometheus.CounterVec
	attachmentBytes prometheus.Counter
	pushDeliveries  *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		snapshotWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_snapshot_writes_total",
			Help: "Snapshot writes by snapshot name and result.",
		}, []string{"snapshot", "result"}),
		recordsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_records_created_total",
			Help: "Feature records created.",
		}, []string{"department", "feature"}),
		alertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_alerts_created_total",
			Help: "Alerts created by sending department.",
		}, []string{"department"}),
		alertResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_alert_responses_total",
			Help: "Responses appended to alerts.",
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_alert_status_changes_total",
			Help: "Alert status transitions by target status.",
		}, []string{"status"}),
		attachmentBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_attachment_bytes_total",
			Help: "Bytes of new attachment content written to the blob store.",
		}),
		pushDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_push_deliveries_total",
			Help: "Web push deliveries by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.snapshotWrites,
		m.recordsCreated,
		m.alertsCreated,
		m.alertResponses,
		m.statusChanges,
		m.attachmentBytes,
		m.pushDeliveries,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) SnapshotWritten(snapshot string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.snapshotWrites.WithLabelValues(snapshot, result).Inc()
}

func (m *Metrics) RecordCreated(department, feature string) {
	if m == nil {
		return
	}
	m.recordsCreated.WithLabelValues(department, feature).Inc()
}

func (m *Metrics) AlertCreated(department string) {
	if m == nil {
		return
	}
	m.alertsCreated.WithLabelValues(department).Inc()
}

func (m *Metrics) ResponsesAdded(n int) {
	if m == nil || n == 0 {
		return
	}
	m.alertResponses.Add(float64(n))
}

func (m *Metrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

func (m *Metrics) AttachmentStored(size int64) {
	if m == nil {
		return
	}
	m.attachmentBytes.Add(float64(size))
}

func (m *Metrics) PushDelivered(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.pushDeliveries.WithLabelValues(result).Inc()
}

// Instrument wraps next, labelling samples with the route pattern rather
// than the raw path to keep label cardinality bounded.
func (m *Metrics) Instrument(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
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
