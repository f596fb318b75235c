package core

import "strings"

// SanitizeName trims surrounding whitespace and keeps the original case.
func SanitizeName(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEntryEmpty
	}
	return trimmed, nil
}

// NormalizeName returns the comparison key for a name: trimmed and
// lowercased. It is applied to stored names and lookup queries alike.
func NormalizeName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NameFromValue asserts that a decoded payload value is textual.
func NameFromValue(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", ErrEntryInvalidType
	}
	return s, nil
}
