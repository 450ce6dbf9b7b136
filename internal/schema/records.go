package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DecodeRecords reads a JSON array of objects. Numbers are kept as
// json.Number so integer and floating values stay distinguishable.
func DecodeRecords(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after the array", ErrInvalidInput)
	}
	return RecordsFrom(raw)
}

// DecodeRecordsBytes is DecodeRecords over an in-memory payload.
func DecodeRecordsBytes(data []byte) ([]Record, error) {
	return DecodeRecords(bytes.NewReader(data))
}

// RecordsFrom adapts a decoded JSON value to records. The value must be an
// array whose elements are objects.
func RecordsFrom(v any) ([]Record, error) {
	switch items := v.(type) {
	case []Record:
		return items, nil
	case []map[string]any:
		out := make([]Record, len(items))
		for i, m := range items {
			out[i] = m
		}
		return out, nil
	case []any:
		out := make([]Record, len(items))
		for i, item := range items {
			switch m := item.(type) {
			case map[string]any:
				out[i] = m
			case Record:
				out[i] = m
			default:
				return nil, fmt.Errorf("%w: element %d is %T", ErrInvalidInput, i, item)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidInput, v)
	}
}
