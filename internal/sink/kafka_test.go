package sink

import (
	"context"
	"errors"
	"testing"

	"trade-ingestion-service/internal/events"
	"trade-ingestion-service/internal/models"
)

type fakePublisher struct {
	anomalies []models.AnomalyEvent
	batches   []models.BatchSummary
	keys      []string
	err       error
}

func (p *fakePublisher) PublishAnomaly(_ context.Context, key string, event any) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	p.anomalies = append(p.anomalies, event.(models.AnomalyEvent))
	return nil
}

func (p *fakePublisher) PublishBatch(_ context.Context, key string, event any) error {
	p.keys = append(p.keys, key)
	p.batches = append(p.batches, event.(models.BatchSummary))
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func TestKafka_Write(t *testing.T) {
	p := &fakePublisher{}
	s := NewKafka(p)

	if err := s.Write(context.Background(), testResult()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(p.anomalies) != 2 {
		t.Fatalf("expected 2 anomaly events, got %d", len(p.anomalies))
	}
	if p.anomalies[0].EventType != models.EventTypeAnomaly || p.anomalies[0].TradeID != "T2" {
		t.Errorf("unexpected first event: %+v", p.anomalies[0])
	}
	if len(p.batches) != 1 {
		t.Fatalf("expected 1 batch summary, got %d", len(p.batches))
	}
	summary := p.batches[0]
	if summary.RecordCount != 3 || summary.AnomalyCount != 2 || len(summary.CleanedRecords) != 3 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	wantKeys := []string{"T2", "UNKNOWN", "trades-run1-batch-1"}
	for i, k := range wantKeys {
		if p.keys[i] != k {
			t.Errorf("key %d: expected %s, got %s", i, k, p.keys[i])
		}
	}
}

func TestKafka_Write_StopsOnAnomalyError(t *testing.T) {
	p := &fakePublisher{err: errors.New("broker down")}
	s := NewKafka(p)

	if err := s.Write(context.Background(), testResult()); err == nil {
		t.Fatal("expected error")
	}
	if len(p.batches) != 0 {
		t.Error("expected no batch summary after a failed anomaly publish")
	}
}

func TestKafka_Write_DisabledPublisher(t *testing.T) {
	s := NewKafka(events.New(&events.Config{Enabled: false}))

	if err := s.Write(context.Background(), testResult()); err != nil {
		t.Errorf("expected no error in log-only mode, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}
