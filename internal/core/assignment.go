package core

// RecordAssignment attaches amount to the entry matching name.
//
// The record copies the display and normalized names from the resolved
// entry, not from the query. It returns the record and a new collection
// with the record appended; neither input slice is modified.
func RecordAssignment(assignments []Assignment, entries []Entry, name string, amount any, clock Clock) (Assignment, []Assignment, error) {
	createdAt := clock.now()
	entry, err := ResolveEntry(entries, name)
	if err != nil {
		return Assignment{}, nil, err
	}
	value, err := ValidateAmount(amount)
	if err != nil {
		return Assignment{}, nil, err
	}

	record := Assignment{
		Name:           entry.Name,
		NormalizedName: entry.NormalizedName,
		Amount:         value,
		CreatedAt:      createdAt,
	}
	out := make([]Assignment, 0, len(assignments)+1)
	out = append(out, assignments...)
	out = append(out, record)
	return record, out, nil
}
