package schedule

import "fluxo/internal/core"

// Totals is the windowed cash-flow summary across obligations.
// Balance is revenue minus expense; investment is capital movement, not
// P&L, and is deliberately excluded from the balance.
type Totals struct {
	Revenue    core.Money `json:"revenue"`
	Expense    core.Money `json:"expense"`
	Investment core.Money `json:"investment"`
	Balance    core.Money `json:"balance"`
}

// Aggregate sums occurrences falling inside [from, to] into per-kind totals.
// Each occurrence counts once whether virtual or persisted. With
// realizedOnly set, only occurrences already marked paid are summed: the
// "realized" view as opposed to the projection view.
func Aggregate(occs []core.Occurrence, from, to core.Date, realizedOnly bool) Totals {
	var t Totals
	for _, occ := range occs {
		if !occ.DueDate.Within(from, to) {
			continue
		}
		if realizedOnly && occ.Status != core.StatusPaid {
			continue
		}
		switch occ.Kind {
		case core.Revenue:
			t.Revenue = t.Revenue.Add(occ.Amount)
		case core.Expense:
			t.Expense = t.Expense.Add(occ.Amount)
		case core.Investment:
			t.Investment = t.Investment.Add(occ.Amount)
		}
	}
	t.Balance = t.Revenue.Sub(t.Expense)
	return t
}
