// Package models defines the data structures for validation events.
package models

import (
	"time"

	"trade-ingestion-service/internal/schema"
)

// Event types published to the anomaly and cleaned topics.
const (
	EventTypeAnomaly        = "trade.anomaly.detected"
	EventTypeBatchValidated = "trade.batch.validated"
)

// BatchResult is the unit handed to anomaly sinks: one validated batch.
type BatchResult struct {
	BatchID     string         `json:"batchId"`
	Source      string         `json:"source"`
	Schema      string         `json:"schema"`
	ValidatedAt time.Time      `json:"validatedAt"`
	Report      *schema.Report `json:"report"`
}

// RecordCount returns the number of records in the batch.
func (b *BatchResult) RecordCount() int {
	if b.Report == nil {
		return 0
	}
	return len(b.Report.CleanedRecords)
}

// AnomalyCount returns the number of records with at least one anomaly.
func (b *BatchResult) AnomalyCount() int {
	if b.Report == nil {
		return 0
	}
	return len(b.Report.Anomalies)
}

// AnomalyEvent reports the issues of a single record.
type AnomalyEvent struct {
	EventType string   `json:"eventType"`
	BatchID   string   `json:"batchId"`
	Source    string   `json:"source"`
	Schema    string   `json:"schema"`
	TradeID   string   `json:"trade_id"`
	Issues    []string `json:"issues"`
	Timestamp int64    `json:"timestamp"`
}

// BatchSummary is published once per batch after its anomalies.
type BatchSummary struct {
	EventType      string          `json:"eventType"`
	BatchID        string          `json:"batchId"`
	Source         string          `json:"source"`
	Schema         string          `json:"schema"`
	RecordCount    int             `json:"recordCount"`
	AnomalyCount   int             `json:"anomalyCount"`
	CleanedRecords []schema.Record `json:"cleaned_records"`
	Timestamp      int64           `json:"timestamp"`
}

// AnomalyEvents expands a batch into one event per anomalous record.
func (b *BatchResult) AnomalyEvents() []AnomalyEvent {
	if b.Report == nil {
		return nil
	}
	ts := b.ValidatedAt.UnixMilli()
	events := make([]AnomalyEvent, 0, len(b.Report.Anomalies))
	for _, a := range b.Report.Anomalies {
		events = append(events, AnomalyEvent{
			EventType: EventTypeAnomaly,
			BatchID:   b.BatchID,
			Source:    b.Source,
			Schema:    b.Schema,
			TradeID:   a.RecordID,
			Issues:    a.Issues,
			Timestamp: ts,
		})
	}
	return events
}

// Summary builds the batch summary event.
func (b *BatchResult) Summary() BatchSummary {
	var cleaned []schema.Record
	if b.Report != nil {
		cleaned = b.Report.CleanedRecords
	}
	return BatchSummary{
		EventType:      EventTypeBatchValidated,
		BatchID:        b.BatchID,
		Source:         b.Source,
		Schema:         b.Schema,
		RecordCount:    b.RecordCount(),
		AnomalyCount:   b.AnomalyCount(),
		CleanedRecords: cleaned,
		Timestamp:      b.ValidatedAt.UnixMilli(),
	}
}
