// Package sink delivers validated batches to downstream anomaly stores.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trade-ingestion-service/internal/models"
	"trade-ingestion-service/internal/observability/logging"
	"trade-ingestion-service/internal/observability/metrics"
)

// Sink receives the result of every validated batch.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Write delivers one batch result. Implementations must not modify it.
	Write(ctx context.Context, result *models.BatchResult) error

	// Close releases any resources held by the sink.
	Close() error
}

// Multi fans a batch out to several sinks. A failing sink does not stop the
// others from receiving the batch; failures are joined into one error.
type Multi struct {
	sinks   []Sink
	metrics *metrics.Metrics
}

// NewMulti returns a fan-out sink over sinks.
func NewMulti(m *metrics.Metrics, sinks ...Sink) *Multi {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Multi{sinks: sinks, metrics: m}
}

// Name implements Sink.
func (s *Multi) Name() string { return "multi" }

// Sinks returns the wrapped sinks.
func (s *Multi) Sinks() []Sink { return s.sinks }

// Write implements Sink.
func (s *Multi) Write(ctx context.Context, result *models.BatchResult) error {
	var errs []error
	for _, snk := range s.sinks {
		start := time.Now()
		err := snk.Write(ctx, result)
		s.metrics.RecordSinkWrite(snk.Name(), err, time.Since(start).Seconds())
		if err != nil {
			logger := logging.WithSink(snk.Name(), result.BatchID)
			logger.Error().Err(err).Msg("Sink write failed")
			errs = append(errs, fmt.Errorf("sink %s: %w", snk.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close implements Sink.
func (s *Multi) Close() error {
	var errs []error
	for _, snk := range s.sinks {
		if err := snk.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", snk.Name(), err))
		}
	}
	return errors.Join(errs...)
}
