package sink

import (
	"context"
	"fmt"

	"trade-ingestion-service/internal/models"
)

// eventPublisher is implemented by *events.Publisher.
type eventPublisher interface {
	PublishAnomaly(ctx context.Context, key string, event any) error
	PublishBatch(ctx context.Context, key string, event any) error
	Close() error
}

// Kafka publishes one event per anomalous record, then the batch summary.
type Kafka struct {
	publisher eventPublisher
}

// NewKafka returns a sink publishing through p.
func NewKafka(p eventPublisher) *Kafka {
	return &Kafka{publisher: p}
}

// Name implements Sink.
func (s *Kafka) Name() string { return "kafka" }

// Write implements Sink. The summary is only published once every anomaly
// event has been written.
func (s *Kafka) Write(ctx context.Context, result *models.BatchResult) error {
	for _, ev := range result.AnomalyEvents() {
		if err := s.publisher.PublishAnomaly(ctx, ev.TradeID, ev); err != nil {
			return fmt.Errorf("publish anomaly %s: %w", ev.TradeID, err)
		}
	}
	if err := s.publisher.PublishBatch(ctx, result.BatchID, result.Summary()); err != nil {
		return fmt.Errorf("publish batch summary: %w", err)
	}
	return nil
}

// Close implements Sink.
func (s *Kafka) Close() error {
	return s.publisher.Close()
}
