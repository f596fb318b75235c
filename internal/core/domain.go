package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayout is the ISO-8601 form used wherever createdAt is stored
// or sent: UTC, millisecond precision, literal Z.
const timestampLayout = "2006-01-02T15:04:05.000Z"

type (
	// Timestamp is a UTC instant truncated to milliseconds.
	Timestamp struct {
		time.Time
	}

	// Clock supplies the current instant. A nil Clock, or one returning the
	// zero time, falls back to time.Now.
	Clock func() time.Time

	// Entry is a named entity that assignments reference.
	Entry struct {
		Name           string    `json:"name"`
		NormalizedName string    `json:"normalizedName"`
		CreatedAt      Timestamp `json:"createdAt"`
	}

	// Assignment is an amount attached to an entry at a point in time.
	Assignment struct {
		Name           string    `json:"name"`
		NormalizedName string    `json:"normalizedName"`
		Amount         float64   `json:"amount"`
		CreatedAt      Timestamp `json:"createdAt"`
	}

	// Total is the sum of all assignments sharing a normalized name.
	Total struct {
		Name           string  `json:"name"`
		NormalizedName string  `json:"normalizedName"`
		Total          float64 `json:"total"`
	}
)

// NewTimestamp converts t to UTC and drops sub-millisecond precision so the
// value round-trips through its string form.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Millisecond)}
}

// ParseTimestamp accepts RFC 3339 with or without fractional seconds.
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return NewTimestamp(t), nil
}

// String returns the ISO-8601 form, e.g. 2024-01-01T12:00:00.000Z.
func (ts Timestamp) String() string {
	return ts.UTC().Format(timestampLayout)
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.String())
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		*ts = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func (c Clock) now() Timestamp {
	if c != nil {
		if t := c(); !t.IsZero() {
			return NewTimestamp(t)
		}
	}
	return NewTimestamp(time.Now())
}
