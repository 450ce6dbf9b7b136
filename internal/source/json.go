package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"trade-ingestion-service/internal/schema"
)

// JSON reads a file holding an array of records, either at the document root
// or under a dot-separated key path such as "payload.trades".
type JSON struct {
	path     string
	dataPath string
}

// NewJSON returns a JSON file source.
func NewJSON(path, dataPath string) *JSON {
	return &JSON{path: path, dataPath: dataPath}
}

// Name implements Source.
func (s *JSON) Name() string { return "json:" + s.path }

// Read implements Source.
func (s *JSON) Read(ctx context.Context) (<-chan schema.Record, <-chan error) {
	return emit(ctx, func(ctx context.Context, out chan<- schema.Record) error {
		records, err := s.load()
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := send(ctx, out, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *JSON) load() ([]schema.Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.path, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w: unexpected data after the document", s.path, schema.ErrInvalidInput)
	}

	data, err := lookup(doc, s.dataPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return schema.RecordsFrom(data)
}

// lookup walks a dot-separated key path through nested objects.
func lookup(doc any, path string) (any, error) {
	if path == "" {
		return doc, nil
	}
	cur := doc
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not an object", schema.ErrInvalidInput, key)
		}
		if cur, ok = obj[key]; !ok {
			return nil, fmt.Errorf("%w: key %q not found", schema.ErrInvalidInput, key)
		}
	}
	return cur, nil
}
