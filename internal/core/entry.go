package core

import "sort"

// EnsureUniqueEntry creates an entry for rawName unless an entry with the
// same normalized name already exists.
//
// It returns the new entry and a new collection holding the entry first,
// followed by the existing entries sorted newest first. entries is not
// modified; a nil slice is an empty collection.
func EnsureUniqueEntry(entries []Entry, rawName string, clock Clock) (Entry, []Entry, error) {
	createdAt := clock.now()
	name, err := SanitizeName(rawName)
	if err != nil {
		return Entry{}, nil, err
	}
	normalized := NormalizeName(name)
	for _, e := range entries {
		if e.NormalizedName == normalized {
			return Entry{}, nil, ErrEntryDuplicate
		}
	}

	entry := Entry{
		Name:           name,
		NormalizedName: normalized,
		CreatedAt:      createdAt,
	}
	out := make([]Entry, 0, len(entries)+1)
	out = append(out, entry)
	out = append(out, SortEntries(entries)...)
	return entry, out, nil
}

// ResolveEntry returns the first entry, in collection order, whose
// normalized name matches name.
func ResolveEntry(entries []Entry, name string) (Entry, error) {
	normalized := NormalizeName(name)
	for _, e := range entries {
		if e.NormalizedName == normalized {
			return e, nil
		}
	}
	return Entry{}, ErrAssignUnknownEntry
}

// SortEntries returns a copy of entries ordered by creation time, most
// recent first. Entries with equal timestamps keep their relative order.
func SortEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt.Time)
	})
	return out
}
