package core

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultRecentLimit is used by RecentAssignments when no positive limit is given.
const DefaultRecentLimit = 5

// CalculateTotals sums assignment amounts per normalized name.
//
// The display name of each total comes from the first assignment seen for
// that key. Records without a normalized name fall back to normalizing
// their display name. NaN and infinite amounts count as zero. The result is
// ordered by display name using locale-aware collation.
func CalculateTotals(assignments []Assignment) []Total {
	type group struct {
		name  string
		key   string
		total decimal.Decimal
	}
	var (
		order  []*group
		groups = make(map[string]*group)
	)
	for _, a := range assignments {
		key := a.NormalizedName
		if key == "" {
			key = NormalizeName(a.Name)
		}
		g, ok := groups[key]
		if !ok {
			g = &group{name: a.Name, key: key}
			groups[key] = g
			order = append(order, g)
		}
		// NaN and infinite amounts count as zero. Infinities cannot come from
		// ValidateAmount or JSON, and a decimal sum cannot hold them.
		if math.IsNaN(a.Amount) || math.IsInf(a.Amount, 0) {
			continue
		}
		g.total = g.total.Add(decimal.NewFromFloat(a.Amount))
	}

	totals := make([]Total, 0, len(order))
	for _, g := range order {
		totals = append(totals, Total{
			Name:           g.name,
			NormalizedName: g.key,
			Total:          g.total.InexactFloat64(),
		})
	}
	col := collate.New(language.Und)
	sort.SliceStable(totals, func(i, j int) bool {
		return col.CompareString(totals[i].Name, totals[j].Name) < 0
	})
	return totals
}

// RecentAssignments returns at most limit assignments, most recent first.
// A limit of zero or less means DefaultRecentLimit. assignments is not
// modified.
func RecentAssignments(assignments []Assignment, limit int) []Assignment {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	out := make([]Assignment, len(assignments))
	copy(out, assignments)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt.Time)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
