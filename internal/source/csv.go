package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"trade-ingestion-service/internal/schema"
)

// CSV reads a file whose header row names the record fields.
type CSV struct {
	path    string
	numeric map[string]bool
}

// NewCSV returns a CSV file source. Only columns named in numeric are
// converted to numbers; all other cells are kept as read.
func NewCSV(path string, numeric map[string]bool) *CSV {
	return &CSV{path: path, numeric: numeric}
}

// Name implements Source.
func (s *CSV) Name() string { return "csv:" + s.path }

// Read implements Source.
func (s *CSV) Read(ctx context.Context) (<-chan schema.Record, <-chan error) {
	return emit(ctx, func(ctx context.Context, out chan<- schema.Record) error {
		f, err := os.Open(s.path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", s.path, err)
		}
		defer f.Close()
		return s.decode(ctx, f, out)
	})
}

func (s *CSV) decode(ctx context.Context, r io.Reader, out chan<- schema.Record) error {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	reader.FieldsPerRecord = len(header)

	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		rec := make(schema.Record, len(header))
		for i, name := range header {
			rec[name] = s.cell(name, row[i])
		}
		if err := send(ctx, out, rec); err != nil {
			return err
		}
	}
}

// cell types a raw value. In numeric columns integers become int64 and
// decimals float64; anything else stays a string.
func (s *CSV) cell(name, raw string) any {
	v := strings.TrimSpace(raw)
	if v == "" || !s.numeric[name] {
		return v
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if strings.ContainsAny(v, ".eE") && strings.ContainsAny(v, "0123456789") {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return v
}
