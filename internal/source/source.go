// Package source reads raw trade records from files and streams.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trade-ingestion-service/internal/schema"
)

// Source types accepted by New.
const (
	TypeJSON  = "json"
	TypeCSV   = "csv"
	TypeKafka = "kafka"
)

// ErrUnknownType is returned by New for an unsupported source type.
var ErrUnknownType = errors.New("unknown source type")

// Source produces records until it is exhausted or ctx is cancelled.
//
// Both channels are closed when the source stops. A terminal error, if any,
// is delivered on the error channel before it is closed.
type Source interface {
	Name() string
	Read(ctx context.Context) (<-chan schema.Record, <-chan error)
}

// Config selects and configures a source.
type Config struct {
	Type string

	// File sources
	Path     string
	DataPath string // dot-separated key holding the JSON array

	// Kafka source
	Brokers []string
	Topic   string
	GroupID string
}

// New builds the source described by cfg. s decides which CSV columns are
// kept as text; it may be nil.
func New(cfg Config, s *schema.Schema) (Source, error) {
	switch strings.ToLower(cfg.Type) {
	case TypeJSON:
		if cfg.Path == "" {
			return nil, fmt.Errorf("json source: path is required")
		}
		return NewJSON(cfg.Path, cfg.DataPath), nil
	case TypeCSV:
		if cfg.Path == "" {
			return nil, fmt.Errorf("csv source: path is required")
		}
		var numeric map[string]bool
		if s != nil {
			numeric = s.NumericFields()
		}
		return NewCSV(cfg.Path, numeric), nil
	case TypeKafka:
		if len(cfg.Brokers) == 0 || cfg.Topic == "" {
			return nil, fmt.Errorf("kafka source: brokers and topic are required")
		}
		return NewKafka(cfg.Brokers, cfg.Topic, cfg.GroupID), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
}

// FromExtension maps a file name to a file source type.
func FromExtension(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		return TypeCSV
	}
	return TypeJSON
}

// Collect drains src into a slice. It returns the first error reported.
func Collect(ctx context.Context, src Source) ([]schema.Record, error) {
	records, errs := src.Read(ctx)

	var out []schema.Record
	for rec := range records {
		out = append(out, rec)
	}
	if err := <-errs; err != nil {
		return out, err
	}
	return out, nil
}

// emit runs produce in a goroutine and wires its output to the returned
// channels.
func emit(ctx context.Context, produce func(ctx context.Context, out chan<- schema.Record) error) (<-chan schema.Record, <-chan error) {
	out := make(chan schema.Record)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(out)
		if err := produce(ctx, out); err != nil {
			errs <- err
		}
	}()
	return out, errs
}

// send delivers rec unless ctx is done first.
func send(ctx context.Context, out chan<- schema.Record, rec schema.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case out <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
