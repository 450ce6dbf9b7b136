package batch

import (
	"testing"
)

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle("batch-1")

	if lc.State() != StateOpen {
		t.Errorf("expected StateOpen, got %v", lc.State())
	}
	if lc.BatchId() != "batch-1" {
		t.Errorf("expected batch-1, got %v", lc.BatchId())
	}
	if lc.Records() != 0 {
		t.Errorf("expected 0 records, got %d", lc.Records())
	}
	if err := lc.Add(2); err != nil {
		t.Errorf("expected Add to succeed, got %v", err)
	}
	if lc.Records() != 2 {
		t.Errorf("expected 2 records, got %d", lc.Records())
	}
	if lc.IsClosed() {
		t.Error("expected IsClosed to be false")
	}
}

func TestLifecycle_Validate_OnlyOnce(t *testing.T) {
	lc := NewLifecycle("batch-1")

	if err := lc.Validate(); err != nil {
		t.Fatalf("first validate: unexpected error: %v", err)
	}
	if lc.State() != StateValidated {
		t.Errorf("expected StateValidated, got %v", lc.State())
	}
	if err := lc.Validate(); err != ErrAlreadyValidated {
		t.Errorf("second validate: expected ErrAlreadyValidated, got %v", err)
	}
	if err := lc.Add(1); err != ErrCannotAddAfterReport {
		t.Errorf("expected ErrCannotAddAfterReport, got %v", err)
	}
	if lc.Records() != 0 {
		t.Errorf("expected rejected Add to leave 0 records, got %d", lc.Records())
	}
}

func TestLifecycle_Publish_RequiresValidation(t *testing.T) {
	lc := NewLifecycle("batch-1")

	if err := lc.Publish(); err != ErrNotValidated {
		t.Errorf("expected ErrNotValidated, got %v", err)
	}
	if lc.State() != StateOpen {
		t.Errorf("expected StateOpen, got %v", lc.State())
	}
}

func TestLifecycle_FullCycle(t *testing.T) {
	lc := NewLifecycle("batch-1")

	for i := 0; i < 3; i++ {
		if err := lc.Add(2); err != nil {
			t.Fatalf("add %d failed: %v", i, err)
		}
	}
	if lc.Records() != 6 {
		t.Errorf("expected 6 records, got %d", lc.Records())
	}
	if err := lc.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if err := lc.Publish(); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if lc.State() != StatePublished {
		t.Errorf("expected StatePublished, got %v", lc.State())
	}
	if !lc.IsClosed() {
		t.Error("expected IsClosed to be true")
	}
}

func TestLifecycle_OperationsFailWhenClosed(t *testing.T) {
	published := NewLifecycle("batch-1")
	published.Validate()
	published.Publish()

	dropped := NewLifecycle("batch-2")
	dropped.Drop()

	for _, lc := range []*Lifecycle{published, dropped} {
		if err := lc.Add(1); err != ErrBatchClosed {
			t.Errorf("%s Add: expected ErrBatchClosed, got %v", lc.State(), err)
		}
		if err := lc.Validate(); err != ErrBatchClosed {
			t.Errorf("%s Validate: expected ErrBatchClosed, got %v", lc.State(), err)
		}
		if err := lc.Publish(); err != ErrBatchClosed {
			t.Errorf("%s Publish: expected ErrBatchClosed, got %v", lc.State(), err)
		}
	}
}

func TestLifecycle_Drop(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(*Lifecycle)
		dropped bool
		final   State
	}{
		{"from open", func(*Lifecycle) {}, true, StateDropped},
		{"from validated", func(lc *Lifecycle) { lc.Validate() }, true, StateDropped},
		{"after publish", func(lc *Lifecycle) { lc.Validate(); lc.Publish() }, false, StatePublished},
		{"twice", func(lc *Lifecycle) { lc.Drop() }, false, StateDropped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := NewLifecycle("batch-1")
			tt.prepare(lc)

			if got := lc.Drop(); got != tt.dropped {
				t.Errorf("Drop() = %v, want %v", got, tt.dropped)
			}
			if lc.State() != tt.final {
				t.Errorf("expected %v, got %v", tt.final, lc.State())
			}
		})
	}
}

func TestLifecycle_Reset(t *testing.T) {
	lc := NewLifecycle("batch-1")
	lc.Add(5)
	lc.Validate()
	lc.Publish()

	lc.Reset("batch-2")

	if lc.Records() != 0 {
		t.Errorf("expected 0 records after reset, got %d", lc.Records())
	}

	if lc.BatchId() != "batch-2" {
		t.Errorf("expected batch-2, got %v", lc.BatchId())
	}
	if lc.State() != StateOpen {
		t.Errorf("expected StateOpen after reset, got %v", lc.State())
	}
	if lc.IsDropped() {
		t.Error("expected IsDropped to be false after reset")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateOpen, "OPEN"},
		{StateValidated, "VALIDATED"},
		{StatePublished, "PUBLISHED"},
		{StateDropped, "DROPPED"},
		{State(99), "UNKNOWN(99)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %v, want %v", tt.state, got, tt.expected)
		}
	}
}

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state      State
		isTerminal bool
	}{
		{StateOpen, false},
		{StateValidated, false},
		{StatePublished, true},
		{StateDropped, true},
	}

	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.isTerminal {
			t.Errorf("State(%s).IsTerminal() = %v, want %v", tt.state, got, tt.isTerminal)
		}
	}
}
