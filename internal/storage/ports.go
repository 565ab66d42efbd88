package storage

import (
	"context"

	"fluxo/internal/core"
)

// Ports for the persistence collaborator. The schedule engine and services
// depend on these, never on the concrete repository.
type (
	ObligationStore interface {
		ListObligations(ctx context.Context, ownerID int64) ([]core.Obligation, error)
		GetObligation(ctx context.Context, id int64) (core.Obligation, error)
		CreateObligation(ctx context.Context, o core.Obligation) (core.Obligation, error)
		UpdateObligation(ctx context.Context, o core.Obligation) (core.Obligation, error)
		SetObligationActive(ctx context.Context, id int64, active bool) error
	}

	LedgerStore interface {
		// ListLedgerEntries returns every entry for an obligation, orphans
		// included, ordered by due date.
		ListLedgerEntries(ctx context.Context, obligationID int64) ([]core.LedgerEntry, error)
		// FindLedgerEntry looks up the unique entry for an
		// (obligation, due date) pair. Returns core.ErrNotFound when none
		// exists.
		FindLedgerEntry(ctx context.Context, obligationID int64, dueDate core.Date) (core.LedgerEntry, error)
		// InsertLedgerEntry creates a new entry. Returns
		// core.ErrDuplicateEntry when an entry for the same
		// (obligation, due date) pair already exists.
		InsertLedgerEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error)
		UpdateLedgerEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error)
		GetLedgerEntry(ctx context.Context, id int64) (core.LedgerEntry, error)
	}
)
