// Package core holds the domain types and money/time parsing rules shared
// by the ledger service, the storage layer and the HTTP handlers.
package core

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var maxCents = decimal.NewFromInt(math.MaxInt64)

// ParseAmountCents converts a user-entered decimal amount into signed
// integer cents. The magnitude is |amount|*100 rounded half away from zero
// on the scaled value; the sign comes from kind (income positive, anything
// else negative).
//
// Examples:
//
//	ParseAmountCents("12.34", KindExpense)  -> -1234
//	ParseAmountCents("12.34", KindIncome)   -> 1234
//	ParseAmountCents("12.345", KindIncome)  -> 1235 (1234.5 rounds up)
//	ParseAmountCents("-5", KindIncome)      -> 500 (sign of input ignored)
func ParseAmountCents(amount string, kind Kind) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Shift to cents, then round; decimal.Round is half away from zero.
	abs := d.Abs().Shift(2).Round(0)
	if abs.GreaterThan(maxCents) {
		return 0, ErrInvalidAmount
	}
	cents := abs.IntPart()
	if kind == KindIncome {
		return cents, nil
	}
	return -cents, nil
}

// occurredAtLayouts are the accepted shapes for the business timestamp.
// Layouts without a zone are interpreted as UTC.
var occurredAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseOccurredAt parses the user-supplied occurrence timestamp.
func ParseOccurredAt(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range occurredAtLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// MonthWindow returns the aggregate window [start of ref's calendar month,
// ref], both bounds inclusive, evaluated in UTC. The reference is truncated
// to whole seconds so both bounds live in the same resolution as stored
// timestamps.
func MonthWindow(ref time.Time) (start, end time.Time) {
	end = ref.UTC().Truncate(time.Second)
	start = time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, end
}
