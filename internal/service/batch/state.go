// Package batch provides batch ID generation and lifecycle management.
package batch

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a batch.
type State int

const (
	// StateOpen - Batch is accepting records.
	StateOpen State = iota
	// StateValidated - Report built, waiting to be handed to the sinks.
	StateValidated
	// StatePublished - Report delivered to the sinks.
	StatePublished
	// StateDropped - Batch abandoned without a delivered report.
	StateDropped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateValidated:
		return "VALIDATED"
	case StatePublished:
		return "PUBLISHED"
	case StateDropped:
		return "DROPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal (PUBLISHED or DROPPED).
func (s State) IsTerminal() bool {
	return s == StatePublished || s == StateDropped
}

// Errors for invalid state transitions.
var (
	ErrBatchClosed          = errors.New("batch is closed")
	ErrAlreadyValidated     = errors.New("batch already validated")
	ErrCannotAddAfterReport = errors.New("cannot add records after validation")
	ErrNotValidated         = errors.New("batch has not been validated")
)

// Lifecycle manages the state machine for a single batch.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	OPEN → VALIDATED → PUBLISHED
//	  │        │
//	  └────────┴──→ DROPPED
//
// Rules:
//   - OPEN: records may be added; Validate moves to VALIDATED (once)
//   - VALIDATED: no more records; Publish moves to PUBLISHED
//   - PUBLISHED, DROPPED: terminal, all operations return errors
type Lifecycle struct {
	mu      sync.RWMutex
	batchId string
	state   State
	records int
}

// NewLifecycle creates a new batch lifecycle in OPEN state.
func NewLifecycle(batchId string) *Lifecycle {
	return &Lifecycle{
		batchId: batchId,
		state:   StateOpen,
	}
}

// BatchId returns the batch ID.
func (l *Lifecycle) BatchId() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.batchId
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Records returns the number of records added to the batch.
func (l *Lifecycle) Records() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.records
}

// IsClosed returns true if the batch is in a terminal state.
func (l *Lifecycle) IsClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.IsTerminal()
}

// IsDropped returns true if the batch was dropped.
func (l *Lifecycle) IsDropped() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateDropped
}

// Add records n more records in the batch. It fails once the batch has
// been validated or closed.
func (l *Lifecycle) Add(n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateOpen:
		l.records += n
		return nil
	case StateValidated:
		return ErrCannotAddAfterReport
	case StatePublished, StateDropped:
		return ErrBatchClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Validate transitions OPEN to VALIDATED.
func (l *Lifecycle) Validate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateOpen:
		l.state = StateValidated
		return nil
	case StateValidated:
		return ErrAlreadyValidated
	case StatePublished, StateDropped:
		return ErrBatchClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Publish transitions VALIDATED to PUBLISHED.
func (l *Lifecycle) Publish() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateValidated:
		l.state = StatePublished
		return nil
	case StateOpen:
		return ErrNotValidated
	case StatePublished, StateDropped:
		return ErrBatchClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Drop transitions the batch to DROPPED.
// Returns true if the batch was dropped, false if already in a terminal state.
func (l *Lifecycle) Drop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateDropped
	return true
}

// Reset reopens the lifecycle under a new batch ID.
func (l *Lifecycle) Reset(newBatchId string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batchId = newBatchId
	l.state = StateOpen
	l.records = 0
}
