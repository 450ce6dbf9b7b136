package sink

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/lib/pq"

	"trade-ingestion-service/internal/models"
)

// DefaultPostgresTable is the anomaly table used when none is configured.
const DefaultPostgresTable = "trade_anomalies"

var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Postgres stores one row per anomalous record.
type Postgres struct {
	db    *sql.DB
	table string
}

// NewPostgres returns a sink writing into table through db.
func NewPostgres(db *sql.DB, table string) (*Postgres, error) {
	if table == "" {
		table = DefaultPostgresTable
	}
	if !tableNameRegex.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Postgres{db: db, table: table}, nil
}

// OpenPostgres connects to dsn and returns a sink over the connection.
func OpenPostgres(ctx context.Context, dsn, table string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s, err := NewPostgres(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Name implements Sink.
func (s *Postgres) Name() string { return "postgres" }

// EnsureTable creates the anomaly table if it does not exist.
func (s *Postgres) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	batch_id TEXT NOT NULL,
	source TEXT NOT NULL,
	schema_name TEXT NOT NULL,
	trade_id TEXT NOT NULL,
	issues TEXT[] NOT NULL,
	validated_at TIMESTAMPTZ NOT NULL
)`, pq.QuoteIdentifier(s.table))

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Write implements Sink. All rows of a batch are inserted in one transaction.
func (s *Postgres) Write(ctx context.Context, result *models.BatchResult) error {
	if result.AnomalyCount() == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (batch_id, source, schema_name, trade_id, issues, validated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		pq.QuoteIdentifier(s.table))

	for _, a := range result.Report.Anomalies {
		if _, err := tx.ExecContext(ctx, query,
			result.BatchID, result.Source, result.Schema, a.RecordID, pq.Array(a.Issues), result.ValidatedAt,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert anomaly %s: %w", a.RecordID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close implements Sink.
func (s *Postgres) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
