// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trade_ingestion"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Validation metrics
	RecordsValidated   *prometheus.CounterVec
	RecordsWithAnomaly *prometheus.CounterVec
	RuleViolations     *prometheus.CounterVec
	ValidationLatency  prometheus.Histogram
	SchemaErrors       prometheus.Counter

	// Batch metrics
	BatchesCreated prometheus.Counter
	BatchesByState *prometheus.CounterVec
	BatchSize      prometheus.Histogram

	// Source metrics
	SourceRecordsRead *prometheus.CounterVec
	SourceErrors      *prometheus.CounterVec

	// Sink metrics
	SinkWrites       *prometheus.CounterVec
	SinkErrors       *prometheus.CounterVec
	SinkWriteLatency *prometheus.HistogramVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// API metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all Prometheus metrics and registers them with reg.
// A nil registerer leaves the metrics unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Validation metrics
		RecordsValidated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_validated_total",
			Help:      "Total number of records passed through validation",
		}, []string{"schema"}),
		RecordsWithAnomaly: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_with_anomalies_total",
			Help:      "Total number of records with at least one anomaly",
		}, []string{"schema"}),
		RuleViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_violations_total",
			Help:      "Total number of rule violations by rule kind and field",
		}, []string{"kind", "field"}),
		ValidationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_latency_seconds",
			Help:      "Time spent validating a batch in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		SchemaErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_errors_total",
			Help:      "Total number of validation runs rejected for a malformed schema",
		}),

		// Batch metrics
		BatchesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_created_total",
			Help:      "Total number of batches created",
		}),
		BatchesByState: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_completed_total",
			Help:      "Total number of batches reaching a terminal state",
		}, []string{"state"}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size_records",
			Help:      "Number of records per validated batch",
			Buckets:   []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
		}),

		// Source metrics
		SourceRecordsRead: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_records_read_total",
			Help:      "Total number of records read from a source",
		}, []string{"source"}),
		SourceErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Total number of source read errors",
		}, []string{"source"}),

		// Sink metrics
		SinkWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Total number of batch results written to a sink",
		}, []string{"sink"}),
		SinkErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Total number of sink write errors",
		}, []string{"sink"}),
		SinkWriteLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sink_write_latency_seconds",
			Help:      "Sink write latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"sink"}),

		// Kafka publish metrics
		KafkaPublishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// API metrics
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of API requests",
		}, []string{"transport", "method", "code"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"transport", "method"}),
	}
}

// RecordValidation records the outcome of validating one batch.
func (m *Metrics) RecordValidation(schema string, records, withAnomalies int, latencySeconds float64) {
	m.RecordsValidated.WithLabelValues(schema).Add(float64(records))
	m.RecordsWithAnomaly.WithLabelValues(schema).Add(float64(withAnomalies))
	m.ValidationLatency.Observe(latencySeconds)
	m.BatchSize.Observe(float64(records))
}

// RecordViolation records a single rule violation.
func (m *Metrics) RecordViolation(kind, field string) {
	m.RuleViolations.WithLabelValues(kind, field).Inc()
}

// RecordSchemaError records a validation run rejected by schema checks.
func (m *Metrics) RecordSchemaError() {
	m.SchemaErrors.Inc()
}

// RecordBatchCreated records a new batch being opened.
func (m *Metrics) RecordBatchCreated() {
	m.BatchesCreated.Inc()
}

// RecordBatchState records a batch reaching a terminal state.
func (m *Metrics) RecordBatchState(state string) {
	m.BatchesByState.WithLabelValues(state).Inc()
}

// RecordSourceRead records records read from a source.
func (m *Metrics) RecordSourceRead(source string, n int) {
	m.SourceRecordsRead.WithLabelValues(source).Add(float64(n))
}

// RecordSourceError records a source read error.
func (m *Metrics) RecordSourceError(source string) {
	m.SourceErrors.WithLabelValues(source).Inc()
}

// RecordSinkWrite records a sink write attempt.
func (m *Metrics) RecordSinkWrite(sink string, err error, latencySeconds float64) {
	m.SinkWrites.WithLabelValues(sink).Inc()
	m.SinkWriteLatency.WithLabelValues(sink).Observe(latencySeconds)
	if err != nil {
		m.SinkErrors.WithLabelValues(sink).Inc()
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordRequest records an API request.
func (m *Metrics) RecordRequest(transport, method, code string, durationSeconds float64) {
	m.RequestsTotal.WithLabelValues(transport, method, code).Inc()
	m.RequestDuration.WithLabelValues(transport, method).Observe(durationSeconds)
}
