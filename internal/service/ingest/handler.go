// Package ingest provides the batch handler that coordinates between record
// sources, the validator and the anomaly sinks.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"trade-ingestion-service/internal/models"
	"trade-ingestion-service/internal/observability/logging"
	"trade-ingestion-service/internal/observability/metrics"
	"trade-ingestion-service/internal/schema"
	"trade-ingestion-service/internal/service/batch"
	"trade-ingestion-service/internal/sink"
	"trade-ingestion-service/internal/source"
)

// ErrBatchDropped is returned when a batch is abandoned after a sink failure.
var ErrBatchDropped = errors.New("batch dropped")

// BatchLimits bound how many records a streamed batch may hold and how long
// a partial batch may wait before it is flushed.
type BatchLimits struct {
	MaxRecords    int           // Flush once this many records are buffered
	FlushInterval time.Duration // Flush a non-empty buffer at this interval
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() BatchLimits {
	return BatchLimits{
		MaxRecords:    500,
		FlushInterval: 5 * time.Second,
	}
}

// Stats are running totals across every batch the handler has processed.
type Stats struct {
	Batches   int `json:"batches"`
	Records   int `json:"records"`
	Anomalies int `json:"anomalies"`
	Dropped   int `json:"dropped"`
}

// Handler validates batches of records and hands the results to a sink.
// Each batch runs through its own lifecycle: OPEN → VALIDATED → PUBLISHED,
// or DROPPED when the sink rejects it and DropOnSinkError is set.
type Handler struct {
	validator *schema.Validator
	sink      sink.Sink
	batchGen  *batch.Generator
	limits    BatchLimits
	metrics   *metrics.Metrics

	// DropOnSinkError marks a batch DROPPED and returns ErrBatchDropped when
	// the sink fails. Otherwise sink failures are logged and the batch is
	// still considered published.
	DropOnSinkError bool

	mu    sync.RWMutex
	stats Stats
}

// NewHandler creates a handler with default batch limits.
func NewHandler(v *schema.Validator, snk sink.Sink, gen *batch.Generator) *Handler {
	return NewHandlerWithLimits(v, snk, gen, DefaultLimits())
}

// NewHandlerWithLimits creates a handler with custom batch limits.
func NewHandlerWithLimits(v *schema.Validator, snk sink.Sink, gen *batch.Generator, limits BatchLimits) *Handler {
	if gen == nil {
		gen = batch.New()
	}
	return &Handler{
		validator: v,
		sink:      snk,
		batchGen:  gen,
		limits:    limits,
		metrics:   metrics.DefaultMetrics,
	}
}

// Schema returns the schema batches are validated against.
func (h *Handler) Schema() *schema.Schema {
	return h.validator.Schema()
}

// Limits returns the configured batch limits.
func (h *Handler) Limits() BatchLimits {
	return h.limits
}

// Stats returns a snapshot of the running totals.
func (h *Handler) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}

// ValidateBatch validates records as one batch and delivers the result to
// the sink. The result is returned even when the batch is dropped.
func (h *Handler) ValidateBatch(ctx context.Context, sourceName string, records []schema.Record) (*models.BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batchId := h.batchGen.Next(sourceName)
	lc := batch.NewLifecycle(batchId)
	h.metrics.RecordBatchCreated()
	logger := logging.WithBatch(sourceName, batchId)

	if err := lc.Add(len(records)); err != nil {
		return nil, err
	}

	start := time.Now()
	report := h.validator.Validate(records)
	if err := lc.Validate(); err != nil {
		return nil, err
	}

	schemaName := h.validator.Schema().Name
	h.metrics.RecordValidation(schemaName, len(report.CleanedRecords), len(report.Anomalies), time.Since(start).Seconds())
	for _, a := range report.Anomalies {
		for _, v := range a.Violations {
			h.metrics.RecordViolation(string(v.Kind), v.Field)
		}
	}

	result := &models.BatchResult{
		BatchID:     batchId,
		Source:      sourceName,
		Schema:      schemaName,
		ValidatedAt: time.Now().UTC(),
		Report:      report,
	}

	if h.sink != nil {
		if err := h.sink.Write(ctx, result); err != nil {
			if h.DropOnSinkError {
				lc.Drop()
				h.metrics.RecordBatchState(batch.StateDropped.String())
				h.record(result, true)
				logger.Error().Err(err).Msg("Batch DROPPED after sink failure")
				return result, fmt.Errorf("%w: %s: %v", ErrBatchDropped, batchId, err)
			}
			logger.Warn().Err(err).Msg("Sink write failed, batch kept")
		}
	}

	if err := lc.Publish(); err != nil {
		return nil, err
	}
	h.metrics.RecordBatchState(batch.StatePublished.String())
	h.record(result, false)

	logger.Info().
		Int("records", lc.Records()).
		Int("anomalies", result.AnomalyCount()).
		Str("state", lc.State().String()).
		Msg("Batch validated")

	return result, nil
}

func (h *Handler) record(result *models.BatchResult, dropped bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats.Batches++
	h.stats.Records += result.RecordCount()
	h.stats.Anomalies += result.AnomalyCount()
	if dropped {
		h.stats.Dropped++
	}
}

// Run consumes src until it is exhausted or ctx is cancelled, validating
// records in batches bounded by the handler's limits. Records already
// buffered when ctx is cancelled are still validated.
func (h *Handler) Run(ctx context.Context, src source.Source) error {
	name := src.Name()
	label := sourceLabel(name)
	logger := logging.WithSource(name)

	maxRecords := h.limits.MaxRecords
	if maxRecords <= 0 {
		maxRecords = DefaultLimits().MaxRecords
	}

	var tick <-chan time.Time
	if h.limits.FlushInterval > 0 {
		ticker := time.NewTicker(h.limits.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	records, errs := src.Read(ctx)
	buf := make([]schema.Record, 0, maxRecords)

	flush := func() {
		if len(buf) == 0 {
			return
		}
		// Drain even after cancellation so read records are not lost.
		if _, err := h.ValidateBatch(context.WithoutCancel(ctx), label, buf); err != nil {
			logger.Error().Err(err).Int("records", len(buf)).Msg("Batch failed")
		}
		buf = make([]schema.Record, 0, maxRecords)
	}

	logger.Info().
		Int("maxRecords", maxRecords).
		Dur("flushInterval", h.limits.FlushInterval).
		Msg("Ingestion started")

	for {
		select {
		case rec, ok := <-records:
			if !ok {
				flush()
				err := <-errs
				if err != nil && !errors.Is(err, context.Canceled) {
					h.metrics.RecordSourceError(label)
					logger.Error().Err(err).Msg("Source failed")
					return err
				}
				stats := h.Stats()
				logger.Info().
					Int("batches", stats.Batches).
					Int("anomalies", stats.Anomalies).
					Msgf("Ingestion complete: %d transactions processed", stats.Records)
				return nil
			}
			h.metrics.RecordSourceRead(label, 1)
			buf = append(buf, rec)
			if len(buf) >= maxRecords {
				flush()
			}
		case <-tick:
			flush()
		}
	}
}

// sourceLabel turns a source name such as "csv:/data/trades.csv" into the
// short label used in batch IDs and metrics.
func sourceLabel(name string) string {
	if i := strings.IndexByte(name, ':'); i > 0 {
		return name[:i]
	}
	return name
}
