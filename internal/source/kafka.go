package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"trade-ingestion-service/internal/observability/logging"
	"trade-ingestion-service/internal/observability/metrics"
	"trade-ingestion-service/internal/schema"
)

// DefaultGroupID is the consumer group used when none is configured.
const DefaultGroupID = "trade-ingestion"

// messageReader is the subset of *kafka.Reader used by the source.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Kafka consumes trade records from a topic. A message holds one JSON
// object or an array of them. Offsets are committed by the consumer group
// as messages are read.
type Kafka struct {
	reader  messageReader
	topic   string
	metrics *metrics.Metrics
}

// NewKafka returns a Kafka source joined to groupID.
func NewKafka(brokers []string, topic, groupID string) *Kafka {
	if groupID == "" {
		groupID = DefaultGroupID
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})
	return newKafkaWithReader(reader, topic, metrics.DefaultMetrics)
}

func newKafkaWithReader(r messageReader, topic string, m *metrics.Metrics) *Kafka {
	return &Kafka{reader: r, topic: topic, metrics: m}
}

// Name implements Source.
func (s *Kafka) Name() string { return "kafka:" + s.topic }

// Read implements Source. Malformed messages are logged and skipped; the
// stream ends when ctx is cancelled.
func (s *Kafka) Read(ctx context.Context) (<-chan schema.Record, <-chan error) {
	logger := logging.WithSource(s.Name())

	return emit(ctx, func(ctx context.Context, out chan<- schema.Record) error {
		defer s.reader.Close()

		for {
			msg, err := s.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, io.EOF) {
					return nil
				}
				s.metrics.RecordSourceError(s.Name())
				return fmt.Errorf("read message: %w", err)
			}

			records, err := decodeMessage(msg.Value)
			if err != nil {
				s.metrics.RecordSourceError(s.Name())
				logger.Warn().
					Err(err).
					Int("partition", msg.Partition).
					Int64("offset", msg.Offset).
					Msg("Skipping malformed message")
				continue
			}

			for _, rec := range records {
				if err := send(ctx, out, rec); err != nil {
					return nil
				}
			}
		}
	})
}

// decodeMessage accepts a single JSON object or an array of objects.
func decodeMessage(value []byte) ([]schema.Record, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var rec schema.Record
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		return []schema.Record{rec}, nil
	}
	return schema.DecodeRecordsBytes(trimmed)
}
