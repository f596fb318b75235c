package google

import (
	"fmt"
	"strings"

	"ledger/internal/core"
)

var headerRow = []any{"createdAt", "name", "amount"}

func assignmentRow(a core.Assignment) []any {
	return []any{a.CreatedAt.String(), a.Name, a.Amount}
}

// parseAssignmentRows converts a values matrix (as returned by the Sheets
// API) into assignments. A leading header row is ignored; rows with a bad
// timestamp, an empty name or a non-numeric amount are counted as skipped.
func parseAssignmentRows(values [][]any) ([]core.Assignment, int) {
	out := make([]core.Assignment, 0, len(values))
	skipped := 0
	for i, raw := range values {
		row := toStrings(raw)
		if i == 0 && isHeader(row) {
			continue
		}
		if len(row) < 3 {
			skipped++
			continue
		}
		createdAt, err := core.ParseTimestamp(row[0])
		if err != nil {
			skipped++
			continue
		}
		name, err := core.SanitizeName(row[1])
		if err != nil {
			skipped++
			continue
		}
		amount, err := core.ValidateAmount(row[2])
		if err != nil {
			skipped++
			continue
		}
		out = append(out, core.Assignment{
			Name:           name,
			NormalizedName: core.NormalizeName(name),
			Amount:         amount,
			CreatedAt:      createdAt,
		})
	}
	return out, skipped
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(row[0], fmt.Sprint(headerRow[0]))
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
