package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the intake pipeline: upload outcomes,
// ingress traffic, and notification sync behavior.
type Metrics struct {
	UploadsTotal          *prometheus.CounterVec
	UploadForwardDuration prometheus.Histogram
	IngressReceived       prometheus.Counter
	SyncMergedTotal       prometheus.Counter
	SyncErrorsTotal       prometheus.Counter
	CompositionsTotal     *prometheus.CounterVec
}

// New creates a Metrics instance with all intake metrics registered.
func New() *Metrics {
	return &Metrics{
		UploadsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cvintake_uploads_total",
			Help: "Total upload submissions by terminal outcome",
		}, []string{"outcome"}),
		UploadForwardDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cvintake_upload_forward_duration_seconds",
			Help:    "Duration of webhook forwarding calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		IngressReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cvintake_ingress_notifications_total",
			Help: "Total webhook completion payloads accepted by the ingress",
		}),
		SyncMergedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cvintake_sync_merged_total",
			Help: "Total ingress notifications merged into the local store",
		}),
		SyncErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cvintake_sync_errors_total",
			Help: "Total notification sync fetch failures (retried next tick)",
		}),
		CompositionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cvintake_compositions_total",
			Help: "Total image composition attempts by outcome",
		}, []string{"outcome"}),
	}
}

// RecordUpload records one terminal upload outcome ("success" or "error").
func (m *Metrics) RecordUpload(outcome string) {
	m.UploadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveForward records the duration of a webhook forwarding call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveForward(start time.Time) {
	m.UploadForwardDuration.Observe(time.Since(start).Seconds())
}

// RecordComposition records one composition outcome ("success" or "error").
func (m *Metrics) RecordComposition(outcome string) {
	m.CompositionsTotal.WithLabelValues(outcome).Inc()
}

// IngressAccepted records one retained webhook completion.
func (m *Metrics) IngressAccepted() {
	m.IngressReceived.Inc()
}

// SyncMerged records notifications merged by one sync cycle.
func (m *Metrics) SyncMerged(count int) {
	if count > 0 {
		m.SyncMergedTotal.Add(float64(count))
	}
}

// SyncError records one failed sync fetch.
func (m *Metrics) SyncError() {
	m.SyncErrorsTotal.Inc()
}
