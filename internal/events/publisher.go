// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"trade-ingestion-service/internal/observability/metrics"
)

// messageWriter is the subset of *kafka.Writer used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes validation events to separate Kafka topics: one for
// per-record anomalies and one for batch summaries carrying the cleaned records.
type Publisher struct {
	writerAnomaly messageWriter
	writerBatch   messageWriter
	principal     string
	topicAnomaly  string
	topicBatch    string
	enabled       bool
	metrics       *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers      []string
	TopicAnomaly string
	TopicBatch   string
	Principal    string
	Enabled      bool
}

// New creates a new Kafka event publisher.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:    cfg.Principal,
			topicAnomaly: cfg.TopicAnomaly,
			topicBatch:   cfg.TopicBatch,
			enabled:      false,
			metrics:      m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerAnomaly := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicAnomaly,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerBatch := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicBatch,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicAnomaly", cfg.TopicAnomaly).
		Str("topicBatch", cfg.TopicBatch).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerAnomaly: writerAnomaly,
		writerBatch:   writerBatch,
		principal:     cfg.Principal,
		topicAnomaly:  cfg.TopicAnomaly,
		topicBatch:    cfg.TopicBatch,
		enabled:       true,
		metrics:       m,
	}
}

// Enabled reports whether events are written to Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// PublishAnomaly publishes a record anomaly event keyed by trade ID.
func (p *Publisher) PublishAnomaly(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerAnomaly, p.topicAnomaly, "anomaly", key, event)
}

// PublishBatch publishes a batch summary event keyed by batch ID.
func (p *Publisher) PublishBatch(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerBatch, p.topicBatch, "batch", key, event)
}

func (p *Publisher) publish(ctx context.Context, writer messageWriter, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerAnomaly != nil {
		if e := p.writerAnomaly.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing anomaly writer")
			err = e
		}
	}
	if p.writerBatch != nil {
		if e := p.writerBatch.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing batch writer")
			err = e
		}
	}
	return err
}
