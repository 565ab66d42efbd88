// Package worker contains the background consumer that exports ledger
// changes to an external bookkeeping sheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fluxo/internal/amqp"
	"fluxo/internal/core"
	"fluxo/internal/metrics"
	"fluxo/internal/sheets"
	"fluxo/internal/storage"
)

// ExportWorker consumes ledger event messages and appends the affected
// entries to a spreadsheet. The message only carries identifiers, the
// authoritative row always comes from the database.
type ExportWorker struct {
	obligations storage.ObligationStore
	ledger      storage.LedgerStore
	exporter    sheets.LedgerExporter
}

func NewExportWorker(obligations storage.ObligationStore, ledger storage.LedgerStore, exporter sheets.LedgerExporter) *ExportWorker {
	return &ExportWorker{
		obligations: obligations,
		ledger:      ledger,
		exporter:    exporter,
	}
}

// HandleLedgerEvent processes a single ledger event message from AMQP.
func (w *ExportWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"event_id", msg.EventID,
		"entry_id", msg.EntryID,
		"obligation_id", msg.ObligationID)

	entry, err := w.ledger.GetLedgerEntry(ctx, msg.EntryID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// The entry was removed after the event was published.
			// Nothing to export and requeueing would never succeed.
			slog.WarnContext(ctx, "Ledger entry gone, skipping export",
				"entry_id", msg.EntryID)
			return nil
		}
		return fmt.Errorf("get ledger entry: %w", err)
	}

	obligation, err := w.obligations.GetObligation(ctx, entry.ObligationID)
	if err != nil {
		return fmt.Errorf("get obligation: %w", err)
	}

	rowRef, err := w.exporter.Append(ctx, obligation, entry)
	if err != nil {
		return fmt.Errorf("append ledger entry to sheet: %w", err)
	}

	metrics.LedgerEventsExported.Inc()

	slog.InfoContext(ctx, "Exported ledger entry",
		"entry_id", entry.ID,
		"obligation_id", obligation.ID,
		"due_date", entry.DueDate.String(),
		"status", string(entry.Status),
		"row_ref", rowRef)

	return nil
}
