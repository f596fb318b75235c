// Package render formats ledger data for terminals.
package render

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// Money formats amount in currency using the currency's symbol, separators
// and minor-unit precision. Unknown currencies fall back to "<amount> <code>".
func Money(amount float64, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return decimal.NewFromFloat(amount).String() + " " + currency
	}
	minor := decimal.NewFromFloat(amount).Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// Entries writes one line per entry, newest first as given.
func Entries(w io.Writer, entries []core.Entry) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tCREATED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\n", e.Name, e.CreatedAt)
	}
	return tw.Flush()
}

// Assignments writes one line per assignment.
func Assignments(w io.Writer, assignments []core.Assignment, currency string) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "CREATED\tNAME\tAMOUNT")
	for _, a := range assignments {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.CreatedAt, a.Name, Money(a.Amount, currency))
	}
	return tw.Flush()
}

// Totals writes one line per total followed by the grand total.
func Totals(w io.Writer, totals []core.Total, currency string) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tTOTAL")
	var sum decimal.Decimal
	for _, t := range totals {
		fmt.Fprintf(tw, "%s\t%s\n", t.Name, Money(t.Total, currency))
		sum = sum.Add(decimal.NewFromFloat(t.Total))
	}
	fmt.Fprintf(tw, "\t\nALL\t%s\n", Money(sum.InexactFloat64(), currency))
	return tw.Flush()
}
