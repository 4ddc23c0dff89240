// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	WebhooksReceived  prometheus.Counter
	WebhooksCompleted *prometheus.CounterVec
	RawEventsStored   prometheus.Counter
	SwapsUpserted     prometheus.Counter
	StageErrors       *prometheus.CounterVec
	HandleLatency     prometheus.Histogram

	// Trigger metrics
	TriggerOutcomes *prometheus.CounterVec

	// Subscription sync metrics
	SyncRuns          *prometheus.CounterVec
	AddressesWatched  prometheus.Gauge
	AddressesRejected prometheus.Counter

	// Feed metrics
	FeedClients prometheus.Gauge
	FeedDropped prometheus.Counter

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "helius_ingest"
	}
	f := promauto.With(reg)

	return &Metrics{
		// Ingestion metrics
		WebhooksReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "webhooks_received_total",
			Help:      "Total number of webhook requests received",
		}),
		WebhooksCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "webhooks_completed_total",
			Help:      "Total number of webhook requests by final pipeline state",
		}, []string{"state"}),
		RawEventsStored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "raw_events_stored_total",
			Help:      "Total number of raw payloads stored",
		}),
		SwapsUpserted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "swaps_upserted_total",
			Help:      "Total number of canonical swap records upserted",
		}),
		StageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "stage_errors_total",
			Help:      "Total number of pipeline errors by stage",
		}, []string{"stage"}),
		HandleLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "handle_latency_seconds",
			Help:      "Webhook handling latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Trigger metrics
		TriggerOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trigger",
			Name:      "outcomes_total",
			Help:      "Total number of downstream trigger attempts by outcome",
		}, []string{"outcome"}),

		// Subscription sync metrics
		SyncRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of webhook subscription sync runs by action",
		}, []string{"action"}),
		AddressesWatched: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "addresses_watched",
			Help:      "Number of addresses sent in the last successful sync",
		}),
		AddressesRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "addresses_rejected_total",
			Help:      "Total number of addresses dropped as invalid",
		}),

		// Feed metrics
		FeedClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "clients",
			Help:      "Number of connected live feed clients",
		}),
		FeedDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_dropped_total",
			Help:      "Total number of feed messages dropped for slow clients",
		}),

		// Health metrics
		LastSuccessfulIngestion: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last stored raw payload",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordWebhookReceived increments the received counter.
func RecordWebhookReceived() {
	DefaultMetrics.WebhooksReceived.Inc()
}

// RecordWebhookCompleted records the final state and latency of one request.
func RecordWebhookCompleted(state string, seconds float64) {
	DefaultMetrics.WebhooksCompleted.WithLabelValues(state).Inc()
	DefaultMetrics.HandleLatency.Observe(seconds)
}

// RecordRawStored increments the raw events counter and the health gauge.
func RecordRawStored(unixSeconds int64) {
	DefaultMetrics.RawEventsStored.Inc()
	DefaultMetrics.LastSuccessfulIngestion.Set(float64(unixSeconds))
}

// RecordSwapUpserted increments the upserted swaps counter.
func RecordSwapUpserted() {
	DefaultMetrics.SwapsUpserted.Inc()
}

// RecordStageError records an error in a pipeline stage.
func RecordStageError(stage string) {
	DefaultMetrics.StageErrors.WithLabelValues(stage).Inc()
}

// RecordTrigger records a trigger outcome.
func RecordTrigger(outcome string) {
	DefaultMetrics.TriggerOutcomes.WithLabelValues(outcome).Inc()
}

// RecordSync records a subscription sync run.
func RecordSync(action string, addresses, rejected int) {
	DefaultMetrics.SyncRuns.WithLabelValues(action).Inc()
	if addresses > 0 {
		DefaultMetrics.AddressesWatched.Set(float64(addresses))
	}
	DefaultMetrics.AddressesRejected.Add(float64(rejected))
}

// SetFeedClients updates the connected feed clients gauge.
func SetFeedClients(n int) {
	DefaultMetrics.FeedClients.Set(float64(n))
}

// RecordFeedDropped increments the dropped feed messages counter.
func RecordFeedDropped() {
	DefaultMetrics.FeedDropped.Inc()
}
