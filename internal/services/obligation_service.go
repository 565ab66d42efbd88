package services

import (
	"context"

	"fluxo/internal/core"
	"fluxo/internal/storage"
)

// ObligationService is the thin CRUD boundary for obligations. Malformed
// obligations are rejected here and never reach the expander.
type ObligationService struct {
	store storage.ObligationStore
}

func NewObligationService(store storage.ObligationStore) *ObligationService {
	return &ObligationService{store: store}
}

func (s *ObligationService) List(ctx context.Context, ownerID int64) ([]core.Obligation, error) {
	return s.store.ListObligations(ctx, ownerID)
}

func (s *ObligationService) Get(ctx context.Context, id int64) (core.Obligation, error) {
	return s.store.GetObligation(ctx, id)
}

func (s *ObligationService) Create(ctx context.Context, o core.Obligation) (core.Obligation, error) {
	o = normalizeForStorage(o)
	if err := o.Validate(); err != nil {
		return core.Obligation{}, err
	}
	return s.store.CreateObligation(ctx, o)
}

func (s *ObligationService) Update(ctx context.Context, o core.Obligation) (core.Obligation, error) {
	o = normalizeForStorage(o)
	if err := o.Validate(); err != nil {
		return core.Obligation{}, err
	}
	return s.store.UpdateObligation(ctx, o)
}

// Deactivate excludes an obligation from expansion without deleting it or
// its ledger history.
func (s *ObligationService) Deactivate(ctx context.Context, id int64) error {
	return s.store.SetObligationActive(ctx, id, false)
}

// normalizeForStorage fills defaults before validation: one-off obligations
// get uniform periodicity fields, recurring ones default the due day to the
// start date's day when unset.
func normalizeForStorage(o core.Obligation) core.Obligation {
	if o.Category == core.Recurring && o.DueDay == 0 && !o.StartDate.IsZero() {
		o.DueDay = o.StartDate.Day()
	}
	return o.Normalize()
}
