package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ledger/internal/core"
)

// Event types published on the ledger exchange
const (
	EventEntryCreated       = "entry.created"
	EventAssignmentRecorded = "assignment.recorded"
)

// LedgerEvent carries a full record: entries and assignments are immutable,
// so consumers never need to read back from the producer's store.
type LedgerEvent struct {
	Type       string           `json:"type"`
	Entry      *core.Entry      `json:"entry,omitempty"`
	Assignment *core.Assignment `json:"assignment,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// NewEntryCreatedEvent creates an event announcing a new entry
func NewEntryCreatedEvent(e core.Entry) *LedgerEvent {
	return &LedgerEvent{
		Type:      EventEntryCreated,
		Entry:     &e,
		Timestamp: time.Now(),
	}
}

// NewAssignmentRecordedEvent creates an event announcing a new assignment
func NewAssignmentRecordedEvent(a core.Assignment) *LedgerEvent {
	return &LedgerEvent{
		Type:       EventAssignmentRecorded,
		Assignment: &a,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Validate checks that the payload matches the event type
func (m *LedgerEvent) Validate() error {
	switch m.Type {
	case EventEntryCreated:
		if m.Entry == nil {
			return errors.New("entry event without entry")
		}
	case EventAssignmentRecorded:
		if m.Assignment == nil {
			return errors.New("assignment event without assignment")
		}
	default:
		return fmt.Errorf("unknown event type %q", m.Type)
	}
	return nil
}

// LedgerEventFromJSON decodes and validates an event
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
