package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"ledger/internal/core"
)

func TestMoney(t *testing.T) {
	tests := []struct {
		amount   float64
		currency string
		want     string
	}{
		{12.5, "USD", "$12.50"},
		{1234.56, "USD", "$1,234.56"},
		{-3, "USD", "-$3.00"},
		{0.105, "USD", "$0.11"},
		{500, "JPY", "¥500"},
		{1.5, "XYZ", "1.5 XYZ"},
	}
	for _, tt := range tests {
		if got := Money(tt.amount, tt.currency); got != tt.want {
			t.Errorf("Money(%v, %s) = %q, want %q", tt.amount, tt.currency, got, tt.want)
		}
	}
}

func TestTotals(t *testing.T) {
	var buf bytes.Buffer
	totals := []core.Total{
		{Name: "Coffee", NormalizedName: "coffee", Total: 0.1},
		{Name: "Rent", NormalizedName: "rent", Total: 0.2},
	}
	if err := Totals(&buf, totals, "USD"); err != nil {
		t.Fatalf("Totals: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Coffee", "$0.10", "Rent", "$0.20", "ALL", "$0.30"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAssignments(t *testing.T) {
	var buf bytes.Buffer
	a := core.Assignment{
		Name:      "Coffee",
		Amount:    2,
		CreatedAt: core.NewTimestamp(time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)),
	}
	if err := Assignments(&buf, []core.Assignment{a}, "USD"); err != nil {
		t.Fatalf("Assignments: %v", err)
	}
	if !strings.Contains(buf.String(), "2024-02-03T04:05:06.000Z") || !strings.Contains(buf.String(), "$2.00") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}
