package core

import (
	"bytes"
	"encoding/json"
	"errors"
)

var errNotArray = errors.New("not a JSON array")

// DecodeEntries decodes a JSON array of entries. Anything that is not an
// array of well-formed entries fails with the sentinel for code.
func DecodeEntries(data []byte, code Code) ([]Entry, error) {
	var entries []Entry
	if err := decodeArray(data, &entries); err != nil {
		return nil, collectionError(code)
	}
	return entries, nil
}

// DecodeAssignments decodes a JSON array of assignments. Anything that is
// not an array of well-formed assignments fails with the sentinel for code.
func DecodeAssignments(data []byte, code Code) ([]Assignment, error) {
	var assignments []Assignment
	if err := decodeArray(data, &assignments); err != nil {
		return nil, collectionError(code)
	}
	return assignments, nil
}

func decodeArray(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return errNotArray
	}
	return json.Unmarshal(trimmed, v)
}

func collectionError(code Code) error {
	if e := ErrorFor(code); e != nil {
		return e
	}
	return ErrEntryInvalidCollection
}
