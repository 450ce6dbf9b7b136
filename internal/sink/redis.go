package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"trade-ingestion-service/internal/models"
)

// DefaultRedisPrefix namespaces every key written by the Redis sink.
const DefaultRedisPrefix = "trade-ingestion:"

// Redis keeps the latest issues per trade and the anomaly list per batch.
//
// Keys:
//
//	<prefix>trade:<tradeId>  hash {batchId, issues, updatedAt}
//	<prefix>batch:<batchId>  list of anomaly events (JSON)
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis returns a sink over client. A zero ttl keeps keys forever.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// OpenRedis parses url (redis://host:port/db), connects and returns a sink.
func OpenRedis(ctx context.Context, url, prefix string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedis(client, prefix, ttl), nil
}

// Name implements Sink.
func (s *Redis) Name() string { return "redis" }

func (s *Redis) tradeKey(tradeId string) string { return s.prefix + "trade:" + tradeId }
func (s *Redis) batchKey(batchId string) string { return s.prefix + "batch:" + batchId }

// Write implements Sink.
func (s *Redis) Write(ctx context.Context, result *models.BatchResult) error {
	events := result.AnomalyEvents()
	if len(events) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	batchKey := s.batchKey(result.BatchID)
	for _, ev := range events {
		issues, err := json.Marshal(ev.Issues)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}

		key := s.tradeKey(ev.TradeID)
		pipe.HSet(ctx, key,
			"batchId", result.BatchID,
			"issues", string(issues),
			"updatedAt", result.ValidatedAt.UTC().Format(time.RFC3339),
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		pipe.RPush(ctx, batchKey, payload)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, batchKey, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// LatestIssues returns the most recent issues recorded for tradeId.
// The boolean is false when the trade has no recorded anomaly.
func (s *Redis) LatestIssues(ctx context.Context, tradeId string) ([]string, bool, error) {
	raw, err := s.client.HGet(ctx, s.tradeKey(tradeId), "issues").Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var issues []string
	if err := json.Unmarshal([]byte(raw), &issues); err != nil {
		return nil, false, fmt.Errorf("decode issues for %s: %w", tradeId, err)
	}
	return issues, true, nil
}

// Close implements Sink.
func (s *Redis) Close() error {
	return s.client.Close()
}
