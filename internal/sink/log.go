package sink

import (
	"context"

	"github.com/rs/zerolog"

	"trade-ingestion-service/internal/models"
	"trade-ingestion-service/internal/observability/logging"
)

// Log writes batch summaries and anomalies to the structured log.
type Log struct {
	logger zerolog.Logger
}

// NewLog returns a sink logging through the global logger.
func NewLog() *Log {
	return &Log{logger: logging.WithComponent("anomaly-log")}
}

// NewLogWithLogger returns a sink logging through logger.
func NewLogWithLogger(logger zerolog.Logger) *Log {
	return &Log{logger: logger}
}

// Name implements Sink.
func (s *Log) Name() string { return "log" }

// Write implements Sink.
func (s *Log) Write(_ context.Context, result *models.BatchResult) error {
	logger := s.logger.With().
		Str("batchId", result.BatchID).
		Str("source", result.Source).
		Str("schema", result.Schema).
		Logger()

	if result.Report != nil {
		for _, a := range result.Report.Anomalies {
			logger.Warn().
				Str("tradeId", a.RecordID).
				Strs("issues", a.Issues).
				Msg("Data anomaly")
		}
	}

	logger.Info().
		Int("records", result.RecordCount()).
		Int("anomalies", result.AnomalyCount()).
		Msgf("Ingestion complete: %d transactions processed, found %d anomalies",
			result.RecordCount(), result.AnomalyCount())
	return nil
}

// Close implements Sink.
func (s *Log) Close() error { return nil }
