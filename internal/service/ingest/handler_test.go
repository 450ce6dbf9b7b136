package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"trade-ingestion-service/internal/models"
	"trade-ingestion-service/internal/schema"
	"trade-ingestion-service/internal/service/batch"
)

// testSink captures batch results for assertions
type testSink struct {
	mu      sync.Mutex
	err     error
	results []*models.BatchResult
}

func (s *testSink) Name() string { return "test" }

func (s *testSink) Write(_ context.Context, r *models.BatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return s.err
}

func (s *testSink) Close() error { return nil }

func (s *testSink) Results() []*models.BatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.BatchResult(nil), s.results...)
}

// testSource replays records, then optionally waits for cancellation
type testSource struct {
	records []schema.Record
	err     error
	hold    bool
}

func (s *testSource) Name() string { return "test:memory" }

func (s *testSource) Read(ctx context.Context) (<-chan schema.Record, <-chan error) {
	out := make(chan schema.Record)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(out)
		for _, rec := range s.records {
			select {
			case out <- rec:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if s.hold {
			<-ctx.Done()
			errs <- ctx.Err()
			return
		}
		if s.err != nil {
			errs <- s.err
		}
	}()
	return out, errs
}

func validTrade(id string) schema.Record {
	return schema.Record{
		"trade_id":        id,
		"instrument":      "AAPL",
		"isin":            "US0378331005",
		"trade_date":      "2024-01-15",
		"settlement_date": "2024-01-17",
		"buyer_lei":       "5493001KJTIIGC8Y1R12",
		"seller_lei":      "549300EX04Q2QBFQTQ27",
		"price":           189.5,
		"quantity":        100,
		"trade_type":      "BUY",
		"venue":           "XNAS",
	}
}

func newTestHandler(t *testing.T, snk *testSink, limits BatchLimits) *Handler {
	t.Helper()
	v, err := schema.New(schema.TradeSchema())
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return NewHandlerWithLimits(v, snk, batch.NewWithRunId("run1"), limits)
}

func TestHandler_ValidateBatch(t *testing.T) {
	snk := &testSink{}
	h := newTestHandler(t, snk, DefaultLimits())

	bad := validTrade("T2")
	bad["price"] = -1.0

	result, err := h.ValidateBatch(context.Background(), "api", []schema.Record{validTrade("T1"), bad})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.BatchID != "api-run1-batch-1" {
		t.Errorf("expected batch ID api-run1-batch-1, got %s", result.BatchID)
	}
	if result.Schema != "trade" {
		t.Errorf("expected schema trade, got %s", result.Schema)
	}
	if result.RecordCount() != 2 || result.AnomalyCount() != 1 {
		t.Errorf("expected 2 records and 1 anomaly, got %d and %d", result.RecordCount(), result.AnomalyCount())
	}
	if got := result.Report.Anomalies[0].Issues; len(got) != 1 || got[0] != "Price must be a positive number" {
		t.Errorf("unexpected issues: %v", got)
	}
	if len(snk.Results()) != 1 {
		t.Errorf("expected sink to receive 1 batch, got %d", len(snk.Results()))
	}

	stats := h.Stats()
	if stats.Batches != 1 || stats.Records != 2 || stats.Anomalies != 1 || stats.Dropped != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestHandler_ValidateBatch_EmptyInput(t *testing.T) {
	h := newTestHandler(t, &testSink{}, DefaultLimits())

	result, err := h.ValidateBatch(context.Background(), "api", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Report.CleanedRecords == nil || result.Report.Anomalies == nil {
		t.Error("expected non-nil empty lists")
	}
}

func TestHandler_ValidateBatch_SinkError(t *testing.T) {
	t.Run("kept by default", func(t *testing.T) {
		h := newTestHandler(t, &testSink{err: errors.New("down")}, DefaultLimits())

		result, err := h.ValidateBatch(context.Background(), "api", []schema.Record{validTrade("T1")})
		if err != nil {
			t.Fatalf("expected sink error to be tolerated, got %v", err)
		}
		if result == nil {
			t.Fatal("expected result")
		}
		if h.Stats().Dropped != 0 {
			t.Error("expected no dropped batches")
		}
	})

	t.Run("dropped when configured", func(t *testing.T) {
		h := newTestHandler(t, &testSink{err: errors.New("down")}, DefaultLimits())
		h.DropOnSinkError = true

		result, err := h.ValidateBatch(context.Background(), "api", []schema.Record{validTrade("T1")})
		if !errors.Is(err, ErrBatchDropped) {
			t.Fatalf("expected ErrBatchDropped, got %v", err)
		}
		if result == nil || result.RecordCount() != 1 {
			t.Error("expected result to be returned with the error")
		}
		if h.Stats().Dropped != 1 {
			t.Errorf("expected 1 dropped batch, got %d", h.Stats().Dropped)
		}
	})
}

func TestHandler_ValidateBatch_NilSink(t *testing.T) {
	v, _ := schema.New(schema.TradeSchema())
	h := NewHandler(v, nil, nil)

	result, err := h.ValidateBatch(context.Background(), "api", []schema.Record{{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(result.BatchID, "api-") {
		t.Errorf("unexpected batch ID %s", result.BatchID)
	}
	if result.Report.Anomalies[0].RecordID != schema.UnknownRecordID {
		t.Errorf("expected UNKNOWN record ID, got %s", result.Report.Anomalies[0].RecordID)
	}
}

func TestHandler_ValidateBatch_Cancelled(t *testing.T) {
	snk := &testSink{}
	h := newTestHandler(t, snk, DefaultLimits())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.ValidateBatch(ctx, "api", []schema.Record{validTrade("T1")}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(snk.Results()) != 0 {
		t.Error("expected no batches after cancellation")
	}
}

func TestHandler_Run_MaxRecords(t *testing.T) {
	snk := &testSink{}
	h := newTestHandler(t, snk, BatchLimits{MaxRecords: 2})

	src := &testSource{records: []schema.Record{
		validTrade("T1"), validTrade("T2"), validTrade("T3"), validTrade("T4"), {"trade_id": "T5"},
	}}

	if err := h.Run(context.Background(), src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results := snk.Results()
	if len(results) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(results))
	}
	sizes := []int{2, 2, 1}
	for i, r := range results {
		if r.RecordCount() != sizes[i] {
			t.Errorf("batch %d: expected %d records, got %d", i, sizes[i], r.RecordCount())
		}
		if r.Source != "test" {
			t.Errorf("batch %d: expected source label test, got %s", i, r.Source)
		}
	}
	if results[2].AnomalyCount() != 1 {
		t.Errorf("expected last batch to hold 1 anomaly, got %d", results[2].AnomalyCount())
	}
	if results[0].BatchID != "test-run1-batch-1" {
		t.Errorf("expected test-run1-batch-1, got %s", results[0].BatchID)
	}
}

func TestHandler_Run_FlushInterval(t *testing.T) {
	snk := &testSink{}
	h := newTestHandler(t, snk, BatchLimits{MaxRecords: 100, FlushInterval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- h.Run(ctx, &testSource{records: []schema.Record{validTrade("T1")}, hold: true})
	}()

	deadline := time.After(2 * time.Second)
	for len(snk.Results()) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for interval flush")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("expected nil error on cancellation, got %v", err)
	}
	if got := snk.Results()[0].RecordCount(); got != 1 {
		t.Errorf("expected 1 record in flushed batch, got %d", got)
	}
}

func TestHandler_Run_SourceError(t *testing.T) {
	snk := &testSink{}
	h := newTestHandler(t, snk, BatchLimits{MaxRecords: 10})

	srcErr := errors.New("disk unreadable")
	err := h.Run(context.Background(), &testSource{records: []schema.Record{validTrade("T1")}, err: srcErr})
	if !errors.Is(err, srcErr) {
		t.Fatalf("expected source error, got %v", err)
	}
	if len(snk.Results()) != 1 {
		t.Error("expected buffered records to be flushed before returning the error")
	}
}

func TestSourceLabel(t *testing.T) {
	tests := map[string]string{
		"csv:/data/trades.csv": "csv",
		"kafka:trades.raw":     "kafka",
		"api":                  "api",
		":odd":                 ":odd",
	}
	for in, want := range tests {
		if got := sourceLabel(in); got != want {
			t.Errorf("sourceLabel(%s) = %s, want %s", in, got, want)
		}
	}
}
