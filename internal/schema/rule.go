package schema

import (
	"fmt"
	"strings"
)

// Kind identifies the constraint a FieldRule enforces.
type Kind string

const (
	KindRequired      Kind = "required"
	KindISIN          Kind = "format:isin"
	KindLEI           Kind = "format:lei"
	KindDate          Kind = "format:date"
	KindPositiveFloat Kind = "numeric:positive_float"
	KindPositiveInt   Kind = "numeric:positive_int"
)

const (
	defaultISINLength = 12
	defaultLEILength  = 20
	defaultDateLayout = "2006-01-02"
)

// Known reports whether k is one of the supported rule kinds.
func (k Kind) Known() bool {
	switch k {
	case KindRequired, KindISIN, KindLEI, KindDate, KindPositiveFloat, KindPositiveInt:
		return true
	default:
		return false
	}
}

// FieldRule describes a single validity constraint on one field.
type FieldRule struct {
	Field string `json:"field" yaml:"field"`
	Kind  Kind   `json:"kind" yaml:"kind"`

	// Label is the human-readable name used in anomaly messages.
	// Defaults to "ISIN"/"LEI" for identifier formats and to Field otherwise.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// Length overrides the expected identifier length for ISIN and LEI rules.
	Length int `json:"length,omitempty" yaml:"length,omitempty"`

	// Layout overrides the time layout for date rules.
	Layout string `json:"layout,omitempty" yaml:"layout,omitempty"`
}

func (r FieldRule) check() error {
	if strings.TrimSpace(r.Field) == "" {
		return fmt.Errorf("%w: empty field name", ErrInvalidRule)
	}
	if !r.Kind.Known() {
		return fmt.Errorf("%w: field %q: unknown kind %q", ErrInvalidRule, r.Field, r.Kind)
	}
	if r.Length < 0 {
		return fmt.Errorf("%w: field %q: negative length %d", ErrInvalidRule, r.Field, r.Length)
	}
	if r.Length != 0 && r.Kind != KindISIN && r.Kind != KindLEI {
		return fmt.Errorf("%w: field %q: length is only valid for identifier formats", ErrInvalidRule, r.Field)
	}
	if r.Layout != "" && r.Kind != KindDate {
		return fmt.Errorf("%w: field %q: layout is only valid for date formats", ErrInvalidRule, r.Field)
	}
	return nil
}

func (r FieldRule) label() string {
	if r.Label != "" {
		return r.Label
	}
	switch r.Kind {
	case KindISIN:
		return "ISIN"
	case KindLEI:
		return "LEI"
	default:
		return r.Field
	}
}

func (r FieldRule) length() int {
	if r.Length > 0 {
		return r.Length
	}
	if r.Kind == KindLEI {
		return defaultLEILength
	}
	return defaultISINLength
}

func (r FieldRule) layout() string {
	if r.Layout != "" {
		return r.Layout
	}
	return defaultDateLayout
}

// message renders the anomaly text for a failure of this rule.
func (r FieldRule) message() string {
	switch r.Kind {
	case KindRequired:
		return "Missing mandatory field: " + r.Field
	case KindISIN, KindLEI, KindDate:
		return "Invalid " + r.label() + " format"
	case KindPositiveFloat:
		return r.label() + " must be a positive number"
	case KindPositiveInt:
		return r.label() + " must be a positive integer"
	default:
		return "Invalid " + r.Field
	}
}

// passes evaluates the rule against a value that is present in the record.
func (r FieldRule) passes(v any) bool {
	switch r.Kind {
	case KindRequired:
		return !isMissing(v)
	case KindISIN, KindLEI:
		s, ok := v.(string)
		return ok && len(s) == r.length() && isAlnum(s)
	case KindDate:
		return isDate(v, r.layout())
	case KindPositiveFloat:
		n, ok := toNumber(v)
		return ok && n.value > 0
	case KindPositiveInt:
		n, ok := toNumber(v)
		return ok && n.integer && n.value > 0
	default:
		return false
	}
}
