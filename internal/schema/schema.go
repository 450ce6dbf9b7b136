// Package schema validates semi-structured records against a declarative
// schema of field rules and builds the anomaly report for a batch.
package schema

import (
	"errors"
	"fmt"
)

// DefaultIDField is the record identifier used when a schema does not name one.
const DefaultIDField = "trade_id"

// UnknownRecordID keys anomalies of records that carry no identifier.
const UnknownRecordID = "UNKNOWN"

var (
	// ErrEmptySchema is returned when a schema is nil or declares no rules.
	ErrEmptySchema = errors.New("schema has no rules")

	// ErrInvalidRule is returned when a rule is structurally invalid.
	ErrInvalidRule = errors.New("invalid schema rule")

	// ErrInvalidInput is returned when a payload is not a sequence of records.
	ErrInvalidInput = errors.New("records must be a sequence of objects")
)

// Schema is an ordered set of field rules applied to every record of a batch.
type Schema struct {
	Name    string      `json:"name" yaml:"name"`
	IDField string      `json:"idField,omitempty" yaml:"id_field,omitempty"`
	Rules   []FieldRule `json:"rules" yaml:"rules"`
}

// Check reports whether the schema is usable. It never inspects records.
func (s *Schema) Check() error {
	if s == nil || len(s.Rules) == 0 {
		return ErrEmptySchema
	}
	seen := make(map[FieldRule]bool, len(s.Rules))
	for i, r := range s.Rules {
		if err := r.check(); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		key := FieldRule{Field: r.Field, Kind: r.Kind}
		if seen[key] {
			return fmt.Errorf("rule %d: %w: duplicate %s rule for field %q", i, ErrInvalidRule, r.Kind, r.Field)
		}
		seen[key] = true
	}
	return nil
}

// RecordIDField returns the identifier field name.
func (s *Schema) RecordIDField() string {
	if s.IDField != "" {
		return s.IDField
	}
	return DefaultIDField
}

// RequiredFields lists the mandatory fields in rule order.
func (s *Schema) RequiredFields() []string {
	var fields []string
	for _, r := range s.Rules {
		if r.Kind == KindRequired {
			fields = append(fields, r.Field)
		}
	}
	return fields
}

// NumericFields reports the fields checked by a numeric rule. Tabular
// sources convert only these cells to numbers; every other cell, the record
// ID included, stays text.
func (s *Schema) NumericFields() map[string]bool {
	fields := make(map[string]bool)
	for _, r := range s.Rules {
		switch r.Kind {
		case KindPositiveFloat, KindPositiveInt:
			fields[r.Field] = true
		}
	}
	delete(fields, s.RecordIDField())
	return fields
}

// tradeFields are the mandatory fields of a capital-markets trade.
var tradeFields = []string{
	"trade_id", "instrument", "isin", "trade_date", "settlement_date",
	"buyer_lei", "seller_lei", "price", "quantity", "trade_type", "venue",
}

// TradeSchema returns the built-in schema for trade ingestion.
func TradeSchema() *Schema {
	rules := make([]FieldRule, 0, len(tradeFields)+7)
	for _, f := range tradeFields {
		rules = append(rules, FieldRule{Field: f, Kind: KindRequired})
	}
	rules = append(rules,
		FieldRule{Field: "isin", Kind: KindISIN},
		FieldRule{Field: "buyer_lei", Kind: KindLEI, Label: "Buyer LEI"},
		FieldRule{Field: "seller_lei", Kind: KindLEI, Label: "Seller LEI"},
		FieldRule{Field: "trade_date", Kind: KindDate},
		FieldRule{Field: "settlement_date", Kind: KindDate},
		FieldRule{Field: "price", Kind: KindPositiveFloat, Label: "Price"},
		FieldRule{Field: "quantity", Kind: KindPositiveInt, Label: "Quantity"},
	)
	return &Schema{
		Name:    "trade",
		IDField: DefaultIDField,
		Rules:   rules,
	}
}
