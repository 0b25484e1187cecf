// Package metrics exposes reconciliation engine events as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Veraticus/invoice-chaser/internal/model"
)

const namespace = "chaser"

// Recorder implements engine.Recorder on a Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	// cycleDuration tracks how long reconciliation cycles take.
	// Labels: result (success, error)
	cycleDuration *prometheus.HistogramVec

	// messagesFetched counts inbound messages handed to cycles.
	messagesFetched prometheus.Counter

	// itemsQueued counts report items produced by cycles.
	// Labels: kind, status
	itemsQueued *prometheus.CounterVec

	// extractionFailures counts documents that could not be converted to images.
	extractionFailures prometheus.Counter

	// recordsSatisfied counts expected records flipped to SATISFIED.
	recordsSatisfied prometheus.Counter

	// remindersSent counts reminder messages delivered.
	remindersSent prometheus.Counter
}

// New registers the engine metrics on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		cycleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "cycle",
				Name:      "duration_seconds",
				Help:      "Duration of reconciliation cycles in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"result"},
		),
		messagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "messages_fetched_total",
			Help:      "Total number of inbound messages fetched",
		}),
		itemsQueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cycle",
				Name:      "items_total",
				Help:      "Total number of report items produced by kind and status",
			},
			[]string{"kind", "status"},
		),
		extractionFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "failures_total",
			Help:      "Total number of documents that could not be converted to images",
		}),
		recordsSatisfied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "records_satisfied_total",
			Help:      "Total number of expected records marked satisfied",
		}),
		remindersSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "sent_total",
			Help:      "Total number of reminder messages sent",
		}),
	}
}

// CycleFinished observes one cycle's duration.
func (r *Recorder) CycleFinished(elapsed time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	r.cycleDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// MessagesFetched adds n fetched messages.
func (r *Recorder) MessagesFetched(n int) {
	r.messagesFetched.Add(float64(n))
}

// ItemQueued counts one report item.
func (r *Recorder) ItemQueued(kind model.ItemKind, status model.ItemStatus) {
	r.itemsQueued.WithLabelValues(string(kind), string(status)).Inc()
}

// ExtractionFailed counts one document that could not be converted.
func (r *Recorder) ExtractionFailed() {
	r.extractionFailures.Inc()
}

// RecordsSatisfied adds n satisfied records.
func (r *Recorder) RecordsSatisfied(n int) {
	r.recordsSatisfied.Add(float64(n))
}

// ReminderSent counts one reminder.
func (r *Recorder) ReminderSent() {
	r.remindersSent.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
