package schedule

import "fluxo/internal/core"

// Reconcile merges the generated occurrences of one obligation with its
// persisted ledger entries, matching on exact calendar-day equality.
//
// A matched entry is authoritative: its status, amount, and paid date win
// over the obligation's current values, so editing an obligation's price
// never rewrites history. Unmatched occurrences come back virtual and
// pending, carrying the obligation's current amount.
//
// Reconcile is idempotent and never mutates its inputs. Persisted entries
// whose due date falls outside the generated set (the due day was edited
// after materialization) are orphaned: not surfaced here, not deleted;
// full-ledger listing is the path for orphan visibility.
func Reconcile(o core.Obligation, dues []Due, entries []core.LedgerEntry) []core.Occurrence {
	byDay := make(map[string]core.LedgerEntry, len(entries))
	for _, e := range entries {
		byDay[e.DueDate.String()] = e
	}

	occs := make([]core.Occurrence, 0, len(dues))
	for _, due := range dues {
		occ := core.Occurrence{
			ObligationID: o.ID,
			Counterparty: o.Counterparty,
			ServiceLabel: o.ServiceLabel,
			Kind:         o.Kind,
			DueDate:      due.Date,
		}
		if e, ok := byDay[due.Date.String()]; ok {
			occ.Amount = e.Amount
			occ.Status = e.Status
			occ.PaidDate = e.PaidDate
			occ.Persisted = true
		} else {
			occ.Amount = due.Amount
			occ.Status = core.StatusPending
		}
		occs = append(occs, occ)
	}
	return occs
}
