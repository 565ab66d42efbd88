package sheets

import (
	"context"

	"fluxo/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerExporter appends a ledger entry, together with its owning
	// obligation, to an external bookkeeping sheet.
	LedgerExporter interface {
		Append(ctx context.Context, o core.Obligation, e core.LedgerEntry) (rowRef string, err error)
	}
)
