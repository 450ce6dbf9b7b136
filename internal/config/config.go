// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration.
type Config struct {
	Service       ServiceConfig
	Schema        SchemaConfig
	Source        SourceConfig
	Batch         BatchConfig
	Kafka         KafkaConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds service identity and listener settings.
type ServiceConfig struct {
	Principal   string
	GRPCPort    string
	HTTPPort    string
	MetricsPort string
}

// SchemaConfig selects the validation schema.
type SchemaConfig struct {
	File    string // YAML schema; empty uses the built-in trade schema
	IDField string // Overrides the schema's identifier field
}

// SourceConfig selects the background record source. An empty Type
// disables background ingestion.
type SourceConfig struct {
	Type     string
	Path     string
	DataPath string
	Topic    string
	GroupID  string
}

// BatchConfig bounds streamed batches.
type BatchConfig struct {
	MaxRecords      int
	FlushInterval   time.Duration
	DropOnSinkError bool
}

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	TopicAnomaly string
	TopicCleaned string
	Principal    string
}

// PostgresConfig holds the anomaly table sink settings.
type PostgresConfig struct {
	Enabled     bool
	DSN         string
	Table       string
	CreateTable bool
}

// RedisConfig holds the anomaly cache sink settings.
type RedisConfig struct {
	Enabled bool
	URL     string
	Prefix  string
	TTL     time.Duration
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment. A .env file in the working
// directory, if present, is loaded first without overriding set variables.
func Load() *Config {
	_ = godotenv.Load()

	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-trade-ingestion")

	return &Config{
		Service: ServiceConfig{
			Principal:   principal,
			GRPCPort:    envOrDefault("GRPC_PORT", "50051"),
			HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
		Schema: SchemaConfig{
			File:    os.Getenv("SCHEMA_FILE"),
			IDField: os.Getenv("SCHEMA_ID_FIELD"),
		},
		Source: SourceConfig{
			Type:     strings.ToLower(os.Getenv("SOURCE_TYPE")),
			Path:     os.Getenv("SOURCE_PATH"),
			DataPath: os.Getenv("SOURCE_DATA_PATH"),
			Topic:    envOrDefault("SOURCE_TOPIC", "trades.raw"),
			GroupID:  envOrDefault("SOURCE_GROUP_ID", "trade-ingestion"),
		},
		Batch: BatchConfig{
			MaxRecords:      envOrDefaultInt("BATCH_MAX_RECORDS", 500),
			FlushInterval:   envOrDefaultDuration("BATCH_FLUSH_INTERVAL", 5*time.Second),
			DropOnSinkError: envOrDefaultBool("BATCH_DROP_ON_SINK_ERROR", false),
		},
		Kafka: KafkaConfig{
			Enabled:      envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:      envOrDefaultList("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicAnomaly: envOrDefault("KAFKA_TOPIC_ANOMALY", "trades.anomalies"),
			TopicCleaned: envOrDefault("KAFKA_TOPIC_CLEANED", "trades.cleaned"),
			Principal:    envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Postgres: PostgresConfig{
			Enabled:     envOrDefaultBool("POSTGRES_ENABLED", false),
			DSN:         envOrDefault("POSTGRES_DSN", "postgres://localhost:5432/trades?sslmode=disable"),
			Table:       envOrDefault("POSTGRES_TABLE", "trade_anomalies"),
			CreateTable: envOrDefaultBool("POSTGRES_CREATE_TABLE", true),
		},
		Redis: RedisConfig{
			Enabled: envOrDefaultBool("REDIS_ENABLED", false),
			URL:     envOrDefault("REDIS_URL", "redis://localhost:6379/0"),
			Prefix:  envOrDefault("REDIS_PREFIX", "trade-ingestion:"),
			TTL:     envOrDefaultDuration("REDIS_TTL", 24*time.Hour),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
