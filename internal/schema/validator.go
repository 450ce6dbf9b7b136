package schema

import "fmt"

// Record is one raw key-value transaction. A key present with a nil value is
// distinct from an absent key.
type Record map[string]any

// Violation is a single rule failure attributed to a record.
type Violation struct {
	Field   string `json:"field"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Anomaly groups the failures of one record, in rule order.
type Anomaly struct {
	RecordID   string      `json:"trade_id"`
	Issues     []string    `json:"issues"`
	Violations []Violation `json:"-"`
}

// Report is the outcome of one validation run. Every input record appears in
// CleanedRecords; Anomalies only holds records with at least one failure.
type Report struct {
	CleanedRecords []Record  `json:"cleaned_records"`
	Anomalies      []Anomaly `json:"data_anomalies"`
}

// Validator applies a checked schema to batches of records.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	schema *Schema
}

// New returns a Validator for s, failing if the schema is malformed.
func New(s *Schema) (*Validator, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	return &Validator{schema: s}, nil
}

// Validate checks s and applies it to records.
func Validate(s *Schema, records []Record) (*Report, error) {
	v, err := New(s)
	if err != nil {
		return nil, err
	}
	return v.Validate(records), nil
}

// Schema returns the schema the validator enforces.
func (v *Validator) Schema() *Schema {
	return v.schema
}

// Validate partitions records into the pass-through list and the sparse
// anomaly list. Inputs are not modified.
func (v *Validator) Validate(records []Record) *Report {
	report := &Report{
		CleanedRecords: make([]Record, 0, len(records)),
		Anomalies:      make([]Anomaly, 0),
	}
	for _, rec := range records {
		report.CleanedRecords = append(report.CleanedRecords, rec)
		if violations := v.Check(rec); len(violations) > 0 {
			report.Anomalies = append(report.Anomalies, newAnomaly(v.RecordID(rec), violations))
		}
	}
	return report
}

// Check evaluates every rule against a single record and returns the
// failures in rule order.
func (v *Validator) Check(rec Record) []Violation {
	// A field whose mandatory check fails reports only that failure.
	missing := make(map[string]bool)
	for _, r := range v.schema.Rules {
		if r.Kind != KindRequired {
			continue
		}
		val, ok := rec[r.Field]
		if !ok || isMissing(val) {
			missing[r.Field] = true
		}
	}

	var violations []Violation
	for _, r := range v.schema.Rules {
		if r.Kind == KindRequired {
			if missing[r.Field] {
				violations = append(violations, Violation{Field: r.Field, Kind: r.Kind, Message: r.message()})
			}
			continue
		}
		val, ok := rec[r.Field]
		if !ok || missing[r.Field] {
			continue
		}
		if !r.passes(val) {
			violations = append(violations, Violation{Field: r.Field, Kind: r.Kind, Message: r.message()})
		}
	}
	return violations
}

// RecordID returns the record's identifier, or UnknownRecordID when the
// identifier field is absent, null or empty.
func (v *Validator) RecordID(rec Record) string {
	id, ok := rec[v.schema.RecordIDField()]
	if !ok || id == nil {
		return UnknownRecordID
	}
	s, isString := id.(string)
	if !isString {
		s = fmt.Sprint(id)
	}
	if s == "" {
		return UnknownRecordID
	}
	return s
}

func newAnomaly(id string, violations []Violation) Anomaly {
	issues := make([]string, len(violations))
	for i, vi := range violations {
		issues[i] = vi.Message
	}
	return Anomaly{RecordID: id, Issues: issues, Violations: violations}
}
