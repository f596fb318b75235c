package core

import "errors"

// Code is a stable, machine-readable failure identifier. Hosts branch on
// the code, never on the message text.
type Code string

const (
	CodeEntryInvalidType         Code = "ENTRY_INVALID_TYPE"
	CodeEntryEmpty               Code = "ENTRY_EMPTY"
	CodeEntryInvalidCollection   Code = "ENTRY_INVALID_COLLECTION"
	CodeEntryDuplicate           Code = "ENTRY_DUPLICATE"
	CodeAssignInvalidCollection  Code = "ASSIGN_INVALID_COLLECTION"
	CodeAssignInvalidEntries     Code = "ASSIGN_INVALID_ENTRIES"
	CodeAssignUnknownEntry       Code = "ASSIGN_UNKNOWN_ENTRY"
	CodeAssignInvalidNumber      Code = "ASSIGN_INVALID_NUMBER"
	CodeSummaryInvalidCollection Code = "SUMMARY_INVALID_COLLECTION"
)

// Error is the failure returned by every ledger operation.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Is reports whether target carries the same code, so that
// errors.Is(err, ErrEntryDuplicate) works for any *Error with that code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrEntryInvalidType         = newError(CodeEntryInvalidType, "Name must be a string.")
	ErrEntryEmpty               = newError(CodeEntryEmpty, "Name cannot be empty.")
	ErrEntryInvalidCollection   = newError(CodeEntryInvalidCollection, "Entries must be an array.")
	ErrEntryDuplicate           = newError(CodeEntryDuplicate, "This entry already exists.")
	ErrAssignInvalidCollection  = newError(CodeAssignInvalidCollection, "Assignments must be an array.")
	ErrAssignInvalidEntries     = newError(CodeAssignInvalidEntries, "Entries must be an array.")
	ErrAssignUnknownEntry       = newError(CodeAssignUnknownEntry, "Entry was not found.")
	ErrAssignInvalidNumber      = newError(CodeAssignInvalidNumber, "Amount must be a valid number.")
	ErrSummaryInvalidCollection = newError(CodeSummaryInvalidCollection, "Assignments must be an array.")
)

var byCode = map[Code]*Error{
	CodeEntryInvalidType:         ErrEntryInvalidType,
	CodeEntryEmpty:               ErrEntryEmpty,
	CodeEntryInvalidCollection:   ErrEntryInvalidCollection,
	CodeEntryDuplicate:           ErrEntryDuplicate,
	CodeAssignInvalidCollection:  ErrAssignInvalidCollection,
	CodeAssignInvalidEntries:     ErrAssignInvalidEntries,
	CodeAssignUnknownEntry:       ErrAssignUnknownEntry,
	CodeAssignInvalidNumber:      ErrAssignInvalidNumber,
	CodeSummaryInvalidCollection: ErrSummaryInvalidCollection,
}

// ErrorFor returns the sentinel registered for code, or nil.
func ErrorFor(code Code) *Error {
	return byCode[code]
}

// CodeOf extracts the ledger code from err, looking through wrapping.
// It returns "" when err is not a ledger error.
func CodeOf(err error) Code {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
