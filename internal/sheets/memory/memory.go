// Package memory provides an in-memory ledger exporter used in tests and
// when no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"fluxo/internal/core"

	ports "fluxo/internal/sheets"
)

type Exporter struct {
	mu   sync.Mutex
	rows []Row
}

type Row struct {
	Obligation core.Obligation
	Entry      core.LedgerEntry
}

var _ ports.LedgerExporter = (*Exporter)(nil)

func NewExporter() *Exporter {
	return &Exporter{}
}

func (x *Exporter) Append(ctx context.Context, o core.Obligation, e core.LedgerEntry) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.rows = append(x.rows, Row{Obligation: o, Entry: e})
	return fmt.Sprintf("memory!A%d", len(x.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (x *Exporter) Rows() []Row {
	x.mu.Lock()
	defer x.mu.Unlock()
	out := make([]Row, len(x.rows))
	copy(out, x.rows)
	return out
}
