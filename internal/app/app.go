// Package app wires configuration, validation and sinks into one service.
package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"trade-ingestion-service/internal/config"
	"trade-ingestion-service/internal/events"
	"trade-ingestion-service/internal/observability/logging"
	"trade-ingestion-service/internal/observability/metrics"
	"trade-ingestion-service/internal/schema"
	"trade-ingestion-service/internal/service/batch"
	"trade-ingestion-service/internal/service/ingest"
	"trade-ingestion-service/internal/sink"
	"trade-ingestion-service/internal/source"
)

// AnomalyLookup answers which issues were last recorded for a trade.
type AnomalyLookup interface {
	LatestIssues(ctx context.Context, tradeId string) ([]string, bool, error)
}

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config
	Handler     *ingest.Handler
	Sinks       *sink.Multi

	// Anomalies is set when the Redis sink is enabled.
	Anomalies AnomalyLookup

	ready atomic.Bool
}

// New constructs an Application from cfg: the logger, the schema, every
// enabled sink and the ingest handler.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	logging.Init(logging.Config{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})

	a := &Application{
		Cfg:    cfg,
		Logger: logging.WithComponent("application"),
	}

	s, err := loadSchema(cfg.Schema)
	if err != nil {
		metrics.DefaultMetrics.RecordSchemaError()
		return nil, err
	}
	v, err := schema.New(s)
	if err != nil {
		metrics.DefaultMetrics.RecordSchemaError()
		return nil, err
	}

	sinks, lookup, err := buildSinks(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Sinks = sink.NewMulti(metrics.DefaultMetrics, sinks...)
	a.Anomalies = lookup

	a.Handler = ingest.NewHandlerWithLimits(v, a.Sinks, batch.New(), ingest.BatchLimits{
		MaxRecords:    cfg.Batch.MaxRecords,
		FlushInterval: cfg.Batch.FlushInterval,
	})
	a.Handler.DropOnSinkError = cfg.Batch.DropOnSinkError

	names := make([]string, 0, len(sinks))
	for _, snk := range sinks {
		names = append(names, snk.Name())
	}
	a.Logger.Info().
		Str("schema", s.Name).
		Int("rules", len(s.Rules)).
		Strs("sinks", names).
		Msg("Trade ingestion service application created")
	return a, nil
}

func loadSchema(cfg config.SchemaConfig) (*schema.Schema, error) {
	s := schema.TradeSchema()
	if cfg.File != "" {
		loaded, err := schema.LoadFile(cfg.File)
		if err != nil {
			return nil, err
		}
		s = loaded
	}
	if cfg.IDField != "" {
		s.IDField = cfg.IDField
	}
	return s, nil
}

func buildSinks(ctx context.Context, cfg *config.Config) ([]sink.Sink, AnomalyLookup, error) {
	sinks := []sink.Sink{sink.NewLog()}
	var lookup AnomalyLookup

	closeAll := func() {
		for _, snk := range sinks {
			snk.Close()
		}
	}

	if cfg.Kafka.Enabled {
		publisher := events.New(&events.Config{
			Enabled:      cfg.Kafka.Enabled,
			Brokers:      cfg.Kafka.Brokers,
			TopicAnomaly: cfg.Kafka.TopicAnomaly,
			TopicBatch:   cfg.Kafka.TopicCleaned,
			Principal:    cfg.Kafka.Principal,
		})
		sinks = append(sinks, sink.NewKafka(publisher))
	}

	if cfg.Postgres.Enabled {
		pg, err := sink.OpenPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.Table)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("postgres sink: %w", err)
		}
		if cfg.Postgres.CreateTable {
			if err := pg.EnsureTable(ctx); err != nil {
				pg.Close()
				closeAll()
				return nil, nil, fmt.Errorf("postgres sink: %w", err)
			}
		}
		sinks = append(sinks, pg)
	}

	if cfg.Redis.Enabled {
		rs, err := sink.OpenRedis(ctx, cfg.Redis.URL, cfg.Redis.Prefix, cfg.Redis.TTL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("redis sink: %w", err)
		}
		sinks = append(sinks, rs)
		lookup = rs
	}

	return sinks, lookup, nil
}

// Source builds the configured background source, or returns nil when
// background ingestion is disabled.
func (a *Application) Source() (source.Source, error) {
	if a.Cfg.Source.Type == "" {
		return nil, nil
	}
	return source.New(source.Config{
		Type:     a.Cfg.Source.Type,
		Path:     a.Cfg.Source.Path,
		DataPath: a.Cfg.Source.DataPath,
		Brokers:  a.Cfg.Kafka.Brokers,
		Topic:    a.Cfg.Source.Topic,
		GroupID:  a.Cfg.Source.GroupID,
	}, a.Handler.Schema())
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	a.ready.Store(true)
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Trade ingestion service starting")

	return nil
}

// Ready reports whether the service accepts traffic.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Shutdown stops accepting traffic and closes every sink.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	a.ready.Store(false)
	if a.Sinks != nil {
		if err := a.Sinks.Close(); err != nil {
			shutdownLogger.Error().Err(err).Msg("Error closing sinks")
		}
	}
	shutdownLogger.Info().Msg("Trade ingestion service shutting down")
}
