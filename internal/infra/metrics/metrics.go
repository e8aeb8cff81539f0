package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Audit log metrics, registered on the default registry.
var (
	EntriesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditchain_entries_ingested_total",
			Help: "Total number of audit entries appended to the chain",
		},
		[]string{"category", "severity"},
	)

	IngestFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditchain_ingest_failures_total",
			Help: "Total number of rejected or failed ingest attempts",
		},
		[]string{"reason"}, // validation, storage, conflict
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auditchain_ingest_duration_seconds",
			Help:    "Ingest latency from validation to durable append",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
	)

	ChainConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auditchain_chain_conflicts_total",
			Help: "Total number of appends that lost a race for the chain head",
		},
	)

	VerificationFindings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditchain_verification_findings_total",
			Help: "Total number of integrity findings reported by chain verification",
		},
		[]string{"reason"},
	)

	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditchain_anomalies_detected_total",
			Help: "Total number of anomaly details reported, by anomaly type",
		},
		[]string{"type"},
	)

	EntriesArchived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auditchain_entries_archived_total",
			Help: "Total number of entries flagged as archived",
		},
	)

	RecorderDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auditchain_recorder_dropped_total",
			Help: "Total number of fail-open recordings that were dropped or failed",
		},
	)
)

const (
	ReasonValidation = "validation"
	ReasonStorage    = "storage"
	ReasonConflict   = "conflict"
)
