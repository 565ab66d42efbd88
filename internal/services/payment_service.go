package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fluxo/internal/core"
	"fluxo/internal/metrics"
	"fluxo/internal/storage"
)

// EventPublisher pushes ledger mutation events to collaborators (export
// worker, cache invalidation). A nil publisher disables publishing.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, entryID, obligationID int64, dueDate string, status string) error
}

// timeNow is swapped in tests for deterministic paid dates.
var timeNow = time.Now

// PaymentService is the write path of the schedule engine: it marks a
// reconciled occurrence paid or pending, materializing a ledger entry on
// first pay.
//
// State machine per (obligation, due date) pair: no entry --pay--> paid
// --unpay--> pending --pay--> paid, forever. Once materialized an entry is
// never deleted; reverting to pending clears the paid date but keeps the row
// as audit history.
type PaymentService struct {
	obligations storage.ObligationStore
	ledger      storage.LedgerStore
	events      EventPublisher
}

func NewPaymentService(obligations storage.ObligationStore, ledger storage.LedgerStore, events EventPublisher) *PaymentService {
	return &PaymentService{obligations: obligations, ledger: ledger, events: events}
}

// MarkPaid marks the occurrence at dueDate paid, creating the ledger entry
// if it has never been persisted. The materialized amount is the
// obligation's current amount and stays frozen afterwards.
func (s *PaymentService) MarkPaid(ctx context.Context, obligationID int64, dueDate core.Date) (core.LedgerEntry, error) {
	existing, err := s.ledger.FindLedgerEntry(ctx, obligationID, dueDate)
	switch {
	case err == nil:
		return s.setStatus(ctx, existing, core.StatusPaid)
	case errors.Is(err, core.ErrNotFound):
		return s.materialize(ctx, obligationID, dueDate)
	default:
		return core.LedgerEntry{}, fmt.Errorf("find ledger entry: %w", err)
	}
}

// MarkPending reopens a paid occurrence. Unpaying an occurrence that was
// never persisted is a benign caller mistake: it returns
// core.ErrNothingToReopen and writes nothing, so a phantom entry is never
// created.
func (s *PaymentService) MarkPending(ctx context.Context, obligationID int64, dueDate core.Date) (core.LedgerEntry, error) {
	existing, err := s.ledger.FindLedgerEntry(ctx, obligationID, dueDate)
	if errors.Is(err, core.ErrNotFound) {
		slog.DebugContext(ctx, "Unpay of virtual occurrence ignored",
			"obligation_id", obligationID,
			"due_date", dueDate.String())
		return core.LedgerEntry{}, core.ErrNothingToReopen
	}
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("find ledger entry: %w", err)
	}
	return s.setStatus(ctx, existing, core.StatusPending)
}

func (s *PaymentService) materialize(ctx context.Context, obligationID int64, dueDate core.Date) (core.LedgerEntry, error) {
	o, err := s.obligations.GetObligation(ctx, obligationID)
	if err != nil {
		return core.LedgerEntry{}, err
	}

	entry := core.LedgerEntry{
		ObligationID: obligationID,
		DueDate:      dueDate,
		Amount:       o.Amount,
		Status:       core.StatusPaid,
		PaidDate:     core.DateOf(timeNow()),
	}
	created, err := s.ledger.InsertLedgerEntry(ctx, entry)
	if errors.Is(err, core.ErrDuplicateEntry) {
		// A concurrent first-pay won the insert. Fall back to updating the
		// existing row, never surface the conflict.
		metrics.LedgerInsertConflicts.Inc()
		slog.WarnContext(ctx, "Concurrent ledger materialization, retrying as update",
			"obligation_id", obligationID,
			"due_date", dueDate.String())
		existing, findErr := s.ledger.FindLedgerEntry(ctx, obligationID, dueDate)
		if findErr != nil {
			return core.LedgerEntry{}, fmt.Errorf("resolve duplicate ledger entry: %w", findErr)
		}
		return s.setStatus(ctx, existing, core.StatusPaid)
	}
	if err != nil {
		return core.LedgerEntry{}, err
	}

	metrics.LedgerWrites.WithLabelValues("pay").Inc()
	s.publish(ctx, created)
	return created, nil
}

func (s *PaymentService) setStatus(ctx context.Context, entry core.LedgerEntry, status core.EntryStatus) (core.LedgerEntry, error) {
	entry.Status = status
	if status == core.StatusPaid {
		entry.PaidDate = core.DateOf(timeNow())
	} else {
		entry.PaidDate = core.Date{}
	}

	updated, err := s.ledger.UpdateLedgerEntry(ctx, entry)
	if err != nil {
		return core.LedgerEntry{}, err
	}

	action := "pay"
	if status == core.StatusPending {
		action = "unpay"
	}
	metrics.LedgerWrites.WithLabelValues(action).Inc()

	slog.InfoContext(ctx, "Ledger entry status changed",
		"id", updated.ID,
		"obligation_id", updated.ObligationID,
		"due_date", updated.DueDate.String(),
		"status", updated.Status)

	s.publish(ctx, updated)
	return updated, nil
}

func (s *PaymentService) publish(ctx context.Context, e core.LedgerEntry) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishLedgerEvent(ctx, e.ID, e.ObligationID, e.DueDate.String(), string(e.Status)); err != nil {
		// The write already succeeded; export lag is acceptable, data loss
		// at the ledger is not.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"entry_id", e.ID,
			"obligation_id", e.ObligationID,
			"error", err)
	}
}
