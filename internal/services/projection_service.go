// Package services orchestrates the schedule engine over the persistence
// and messaging collaborators: cash-flow projection on the read path,
// payment toggling on the write path.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"fluxo/internal/core"
	"fluxo/internal/metrics"
	"fluxo/internal/schedule"
	"fluxo/internal/storage"
)

// Projection is the combined result of expanding, reconciling, and
// aggregating every active obligation of one owner over a window.
type Projection struct {
	Occurrences []core.Occurrence `json:"occurrences"`
	Totals      schedule.Totals   `json:"totals"`
}

// scheduleHorizonMonths bounds the default window of per-obligation
// schedules for open-ended obligations.
const scheduleHorizonMonths = 24

type ProjectionService struct {
	obligations storage.ObligationStore
	ledger      storage.LedgerStore
}

func NewProjectionService(obligations storage.ObligationStore, ledger storage.LedgerStore) *ProjectionService {
	return &ProjectionService{obligations: obligations, ledger: ledger}
}

// Project computes the cash-flow projection for an owner over [from, to].
// Occurrences are ordered by due date, ties broken by obligation ID. Any
// per-obligation failure fails the whole projection; a partial total is
// never returned.
func (s *ProjectionService) Project(ctx context.Context, ownerID int64, from, to core.Date, realizedOnly bool) (Projection, error) {
	if from.After(to.Time) {
		return Projection{}, core.ErrInvalidWindow
	}

	timer := metrics.NewProjectionTimer()
	defer timer.ObserveDuration()

	obls, err := s.obligations.ListObligations(ctx, ownerID)
	if err != nil {
		return Projection{}, fmt.Errorf("list obligations for owner %d: %w", ownerID, err)
	}

	occs := make([]core.Occurrence, 0, len(obls))
	for _, o := range obls {
		if !o.Active {
			continue
		}
		reconciled, err := s.reconcileObligation(ctx, o, from, to)
		if err != nil {
			return Projection{}, err
		}
		occs = append(occs, reconciled...)
	}

	sort.SliceStable(occs, func(i, j int) bool {
		if !occs[i].DueDate.SameDay(occs[j].DueDate) {
			return occs[i].DueDate.Before(occs[j].DueDate.Time)
		}
		return occs[i].ObligationID < occs[j].ObligationID
	})

	totals := schedule.Aggregate(occs, from, to, realizedOnly)

	metrics.ProjectionsComputed.Inc()
	slog.DebugContext(ctx, "Projection computed",
		"owner_id", ownerID,
		"from", from.String(),
		"to", to.String(),
		"occurrences", len(occs),
		"balance_cents", totals.Balance.Cents)

	return Projection{Occurrences: occs, Totals: totals}, nil
}

// Schedule returns the reconciled occurrences of a single obligation. A zero
// from defaults to the obligation's start date; a zero to defaults to two
// years from today, mirroring the projection horizon for open-ended
// obligations.
func (s *ProjectionService) Schedule(ctx context.Context, obligationID int64, from, to core.Date) ([]core.Occurrence, error) {
	o, err := s.obligations.GetObligation(ctx, obligationID)
	if err != nil {
		return nil, err
	}
	if from.IsZero() {
		from = o.StartDate
	}
	if to.IsZero() {
		to = core.Date{Time: core.DateOf(timeNow()).AddDate(0, scheduleHorizonMonths, 0)}
	}
	return s.reconcileObligation(ctx, o, from, to)
}

func (s *ProjectionService) reconcileObligation(ctx context.Context, o core.Obligation, from, to core.Date) ([]core.Occurrence, error) {
	dues, err := schedule.Expand(o, from, to)
	if err != nil {
		return nil, err
	}
	if len(dues) == 0 {
		return nil, nil
	}
	entries, err := s.ledger.ListLedgerEntries(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries for obligation %d: %w", o.ID, err)
	}
	return schedule.Reconcile(o, dues, entries), nil
}
