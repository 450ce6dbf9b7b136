package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-ingestion-service/internal/schema"
)

const trades = `[
  {"trade_id": "T1", "instrument": "AAPL", "isin": "US0378331005",
   "trade_date": "2024-01-15", "settlement_date": "2024-01-17",
   "buyer_lei": "5493001KJTIIGC8Y1R12", "seller_lei": "549300EX04Q2QBFQTQ27",
   "price": 189.5, "quantity": 100, "trade_type": "BUY", "venue": "XNAS"},
  {"trade_id": "T2", "instrument": "MSFT", "isin": "US59491",
   "trade_date": "2024-01-15", "settlement_date": "2024-01-17",
   "buyer_lei": "5493001KJTIIGC8Y1R12", "seller_lei": "549300EX04Q2QBFQTQ27",
   "price": 10, "quantity": 5, "trade_type": "SELL", "venue": "XNAS"}
]`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidate_JSONOutput(t *testing.T) {
	path := writeTemp(t, "trades.json", trades)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), &out, "validate", path, "-o", "json"))

	var report schema.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Len(t, report.CleanedRecords, 2)
	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, "T2", report.Anomalies[0].RecordID)
	assert.Equal(t, []string{"Invalid ISIN format"}, report.Anomalies[0].Issues)
}

func TestValidate_TableOutput(t *testing.T) {
	path := writeTemp(t, "trades.json", trades)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), &out, "validate", path))

	text := out.String()
	assert.Contains(t, text, "Ingestion complete: 2 transactions processed")
	assert.Contains(t, text, "Found 1 anomalies")
	assert.Contains(t, text, "Invalid ISIN format")
}

func TestValidate_CSV(t *testing.T) {
	path := writeTemp(t, "trades.csv", "trade_id,price\nT1,-2\n")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), &out, "validate", path, "-o", "json"))

	var report schema.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Len(t, report.Anomalies, 1)
	assert.Contains(t, report.Anomalies[0].Issues, "Price must be a positive number")
}

func TestValidate_FailOnAnomaly(t *testing.T) {
	path := writeTemp(t, "trades.json", trades)

	err := run(context.Background(), &bytes.Buffer{}, "validate", path, "--fail-on-anomaly")
	assert.True(t, errors.Is(err, errAnomalies), "expected errAnomalies, got %v", err)
}

func TestValidate_Errors(t *testing.T) {
	path := writeTemp(t, "trades.json", `{"trade_id": "T1"}`)

	err := run(context.Background(), &bytes.Buffer{}, "validate", path)
	assert.ErrorIs(t, err, schema.ErrInvalidInput)

	err = run(context.Background(), &bytes.Buffer{}, "validate", path, "-o", "xml")
	assert.Error(t, err)

	err = run(context.Background(), &bytes.Buffer{}, "validate")
	assert.Error(t, err)
}

func TestValidate_CustomSchema(t *testing.T) {
	schemaPath := writeTemp(t, "schema.yaml", `
name: minimal
rules:
  - field: trade_id
    kind: required
`)
	path := writeTemp(t, "trades.json", `[{"trade_id": "T1"}, {}]`)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), &out, "validate", path, "--schema", schemaPath, "-o", "json"))

	var report schema.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, schema.UnknownRecordID, report.Anomalies[0].RecordID)
}

func TestSchemaCmd(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), &out, "schema"))

	parsed, err := schema.Parse(out.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "trade", parsed.Name)
	assert.True(t, strings.Contains(out.String(), "buyer_lei"))
}
