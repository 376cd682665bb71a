// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the pipeline. A nil *Metrics is
// valid and disables recording, so tests can run components unregistered.
type Metrics struct {
	// Feed metrics
	MessagesTotal      *prometheus.CounterVec
	DecodeDropsTotal   prometheus.Counter
	ReconnectsTotal    prometheus.Counter
	RestartsTotal      prometheus.Counter
	HandlerPanicsTotal prometheus.Counter

	// Persistence metrics
	PersistErrorsTotal *prometheus.CounterVec
	BucketsFlushed     prometheus.Counter
	SnapshotsPersisted prometheus.Counter
	SnapshotErrors     prometheus.Counter

	// Feature metrics
	FeatureMinutesComputed prometheus.Counter
	FeatureMinutesSkipped  *prometheus.CounterVec

	// Health metrics
	LastMessageAgeSeconds prometheus.Gauge
}

// NewMetrics creates a Metrics instance with all metrics registered on the
// default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "perp_feature_lab"
	}

	return &Metrics{
		MessagesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_total",
			Help:      "Decoded stream messages by event type",
		}, []string{"event_type"}),
		DecodeDropsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "decode_drops_total",
			Help:      "Messages dropped due to decode failure or unknown discriminator",
		}),
		ReconnectsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Reconnects scheduled after connection close/failure",
		}),
		RestartsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "restarts_total",
			Help:      "Supervisor-forced connection restarts",
		}),
		HandlerPanicsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "handler_panics_total",
			Help:      "Recovered panics in message handlers",
		}),
		PersistErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "persist_errors_total",
			Help:      "Dropped records by table due to persistence errors",
		}, []string{"table"}),
		BucketsFlushed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "trade_buckets_flushed_total",
			Help:      "Minute trade buckets flushed to storage",
		}),
		SnapshotsPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "depth_snapshots_persisted_total",
			Help:      "Per-second depth snapshots persisted",
		}),
		SnapshotErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "depth_snapshot_errors_total",
			Help:      "Depth snapshot ticks that failed",
		}),
		FeatureMinutesComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feature",
			Name:      "minutes_computed_total",
			Help:      "Feature minutes computed and persisted",
		}),
		FeatureMinutesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feature",
			Name:      "minutes_skipped_total",
			Help:      "Feature minutes skipped by reason",
		}, []string{"reason"}),
		LastMessageAgeSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "last_message_age_seconds",
			Help:      "Seconds since the last decoded stream message",
		}),
	}
}

// Handler returns the HTTP handler for the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Message records a decoded message of the given event type.
func (m *Metrics) Message(eventType string) {
	if m != nil {
		m.MessagesTotal.WithLabelValues(eventType).Inc()
	}
}

// DecodeDrop records a dropped undecodable or unrecognized message.
func (m *Metrics) DecodeDrop() {
	if m != nil {
		m.DecodeDropsTotal.Inc()
	}
}

// Reconnect records one scheduled reconnect.
func (m *Metrics) Reconnect() {
	if m != nil {
		m.ReconnectsTotal.Inc()
	}
}

// Restart records one supervisor-forced restart.
func (m *Metrics) Restart() {
	if m != nil {
		m.RestartsTotal.Inc()
	}
}

// HandlerPanic records one recovered handler panic.
func (m *Metrics) HandlerPanic() {
	if m != nil {
		m.HandlerPanicsTotal.Inc()
	}
}

// PersistError records one dropped record for the given table.
func (m *Metrics) PersistError(table string) {
	if m != nil {
		m.PersistErrorsTotal.WithLabelValues(table).Inc()
	}
}

// BucketFlushed records one flushed trade bucket.
func (m *Metrics) BucketFlushed() {
	if m != nil {
		m.BucketsFlushed.Inc()
	}
}

// SnapshotPersisted records one persisted depth snapshot.
func (m *Metrics) SnapshotPersisted() {
	if m != nil {
		m.SnapshotsPersisted.Inc()
	}
}

// SnapshotError records one failed depth snapshot tick.
func (m *Metrics) SnapshotError() {
	if m != nil {
		m.SnapshotErrors.Inc()
	}
}

// FeatureComputed records one computed feature minute.
func (m *Metrics) FeatureComputed() {
	if m != nil {
		m.FeatureMinutesComputed.Inc()
	}
}

// FeatureSkipped records one skipped feature minute.
func (m *Metrics) FeatureSkipped(reason string) {
	if m != nil {
		m.FeatureMinutesSkipped.WithLabelValues(reason).Inc()
	}
}

// SetLastMessageAge publishes the feed staleness gauge.
func (m *Metrics) SetLastMessageAge(seconds float64) {
	if m != nil {
		m.LastMessageAgeSeconds.Set(seconds)
	}
}
