// Package schedule is the recurrence-based schedule engine: it expands
// obligations into dated occurrences over a query window, reconciles them
// against persisted ledger entries, and aggregates the result into cash-flow
// totals. Everything in this package is pure; persistence lives with the
// caller.
package schedule

import (
	"fmt"

	"fluxo/internal/core"
)

// Iteration safety caps for open-ended recurrences. Expansion over a large
// window stops after this many occurrences regardless of the window end;
// callers needing longer horizons page by narrowing the window.
const (
	maxWeeklyOccurrences   = 104
	maxCalendarOccurrences = 24 // monthly and annual
)

// Due is one generated (date, amount) pair before reconciliation.
type Due struct {
	Date   core.Date
	Amount core.Money
}

// Expand produces the dated occurrences an obligation generates inside
// [from, to] inclusive, in ascending date order.
//
// Inactive obligations expand to nothing. One-off obligations yield a single
// occurrence on their start date when it falls inside the window. Recurring
// obligations step from the start date by their periodicity, stop at the end
// date when one is set, and are bounded by a periodicity-dependent safety
// cap. The obligation is re-validated here; boundary validation upstream is
// not trusted.
func Expand(o core.Obligation, from, to core.Date) ([]Due, error) {
	if from.After(to.Time) {
		return nil, fmt.Errorf("expand obligation %d: %w", o.ID, core.ErrInvalidWindow)
	}
	if !o.Active {
		return nil, nil
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("expand obligation %d: %w", o.ID, err)
	}

	if o.Category == core.OneOff {
		if o.StartDate.Within(from, to) {
			return []Due{{Date: o.StartDate, Amount: o.Amount}}, nil
		}
		return nil, nil
	}

	limit := maxCalendarOccurrences
	if o.Periodicity == core.Weekly {
		limit = maxWeeklyOccurrences
	}

	var dues []Due
	for n := 0; n < limit; n++ {
		date := core.NthOccurrence(o.StartDate, o.Periodicity, o.DueDay, n)
		if date.After(to.Time) {
			break
		}
		if !o.OpenEnded() && date.After(o.EndDate.Time) {
			break
		}
		if date.Before(from.Time) {
			continue
		}
		dues = append(dues, Due{Date: date, Amount: o.Amount})
	}
	return dues, nil
}
