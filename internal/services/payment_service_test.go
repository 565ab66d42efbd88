package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fluxo/internal/core"
)

func seedObligation(t *testing.T, store *fakeStore) core.Obligation {
	t.Helper()
	o, err := store.CreateObligation(context.Background(), core.Obligation{
		OwnerID:      1,
		Counterparty: "Beta Consulting",
		ServiceLabel: "retainer",
		Category:     core.Recurring,
		Kind:         core.Revenue,
		Amount:       core.Money{Cents: 100000},
		StartDate:    core.NewDate(2024, 1, 10),
		Periodicity:  core.Monthly,
		DueDay:       10,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("seed obligation: %v", err)
	}
	return o
}

func fixedNow(t *testing.T, d core.Date) {
	t.Helper()
	prev := timeNow
	timeNow = func() time.Time { return d.Time }
	t.Cleanup(func() { timeNow = prev })
}

func TestMarkPaidMaterializesOnce(t *testing.T) {
	store := newFakeStore()
	pub := &recordingPublisher{}
	svc := NewPaymentService(store, store, pub)
	o := seedObligation(t, store)
	fixedNow(t, core.NewDate(2024, 2, 11))

	due := core.NewDate(2024, 2, 10)
	entry, err := svc.MarkPaid(context.Background(), o.ID, due)
	if err != nil {
		t.Fatalf("first pay: %v", err)
	}
	if entry.ID == 0 {
		t.Fatal("entry should be persisted with an ID")
	}
	if entry.Status != core.StatusPaid {
		t.Errorf("status = %q, want paid", entry.Status)
	}
	if entry.Amount != o.Amount {
		t.Errorf("amount = %d, want obligation's current %d", entry.Amount.Cents, o.Amount.Cents)
	}
	if !entry.PaidDate.SameDay(core.NewDate(2024, 2, 11)) {
		t.Errorf("paid date = %s, want 2024-02-11", entry.PaidDate)
	}
	if store.entryCount() != 1 {
		t.Fatalf("entry count = %d, want 1", store.entryCount())
	}

	// A second pay on the now-persisted occurrence updates in place.
	again, err := svc.MarkPaid(context.Background(), o.ID, due)
	if err != nil {
		t.Fatalf("second pay: %v", err)
	}
	if again.ID != entry.ID {
		t.Errorf("second pay created entry %d, want update of %d", again.ID, entry.ID)
	}
	if store.entryCount() != 1 {
		t.Fatalf("entry count after second pay = %d, want 1", store.entryCount())
	}

	events := pub.published()
	if len(events) != 2 {
		t.Fatalf("published %d events, want 2", len(events))
	}
	if events[0].Status != string(core.StatusPaid) || events[0].DueDate != due.String() {
		t.Errorf("unexpected first event %+v", events[0])
	}
}

func TestMarkPaidFrozenAmount(t *testing.T) {
	store := newFakeStore()
	svc := NewPaymentService(store, store, nil)
	o := seedObligation(t, store)
	fixedNow(t, core.NewDate(2024, 2, 11))

	due := core.NewDate(2024, 2, 10)
	entry, err := svc.MarkPaid(context.Background(), o.ID, due)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}

	// Raising the obligation's price must not rewrite the persisted entry.
	o.Amount = core.Money{Cents: 150000}
	if _, err := store.UpdateObligation(context.Background(), o); err != nil {
		t.Fatalf("update obligation: %v", err)
	}

	stored, err := store.GetLedgerEntry(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if stored.Amount.Cents != 100000 {
		t.Fatalf("amount = %d, want frozen 100000", stored.Amount.Cents)
	}
}

func TestMarkPendingReopens(t *testing.T) {
	store := newFakeStore()
	svc := NewPaymentService(store, store, nil)
	o := seedObligation(t, store)
	fixedNow(t, core.NewDate(2024, 2, 11))

	due := core.NewDate(2024, 2, 10)
	paid, err := svc.MarkPaid(context.Background(), o.ID, due)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}

	reopened, err := svc.MarkPending(context.Background(), o.ID, due)
	if err != nil {
		t.Fatalf("unpay: %v", err)
	}
	if reopened.ID != paid.ID {
		t.Errorf("unpay touched entry %d, want %d", reopened.ID, paid.ID)
	}
	if reopened.Status != core.StatusPending {
		t.Errorf("status = %q, want pending", reopened.Status)
	}
	if !reopened.PaidDate.IsZero() {
		t.Errorf("paid date should be cleared, got %s", reopened.PaidDate)
	}
	// The row survives as audit history.
	if store.entryCount() != 1 {
		t.Fatalf("entry count = %d, want 1", store.entryCount())
	}
}

func TestMarkPendingVirtualIsNoop(t *testing.T) {
	store := newFakeStore()
	svc := NewPaymentService(store, store, nil)
	o := seedObligation(t, store)

	_, err := svc.MarkPending(context.Background(), o.ID, core.NewDate(2024, 5, 10))
	if !errors.Is(err, core.ErrNothingToReopen) {
		t.Fatalf("expected ErrNothingToReopen, got %v", err)
	}
	if store.entryCount() != 0 {
		t.Fatalf("unpay of a virtual occurrence created %d entries", store.entryCount())
	}
}

func TestMarkPaidUnknownObligation(t *testing.T) {
	store := newFakeStore()
	svc := NewPaymentService(store, store, nil)

	_, err := svc.MarkPaid(context.Background(), 404, core.NewDate(2024, 2, 10))
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// conflictingStore simulates a concurrent first-pay: the insert always
// reports a duplicate while the entry is visible to Find.
type conflictingStore struct {
	*fakeStore
	inserted bool
}

func (c *conflictingStore) InsertLedgerEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	if !c.inserted {
		// The competing writer lands first.
		c.inserted = true
		if _, err := c.fakeStore.InsertLedgerEntry(ctx, e); err != nil {
			return core.LedgerEntry{}, err
		}
	}
	return core.LedgerEntry{}, core.ErrDuplicateEntry
}

func TestMarkPaidInsertConflictFallsBackToUpdate(t *testing.T) {
	store := newFakeStore()
	conflicting := &conflictingStore{fakeStore: store}
	svc := NewPaymentService(store, conflicting, nil)
	o := seedObligation(t, store)
	fixedNow(t, core.NewDate(2024, 2, 11))

	entry, err := svc.MarkPaid(context.Background(), o.ID, core.NewDate(2024, 2, 10))
	if err != nil {
		t.Fatalf("pay with conflict: %v", err)
	}
	if entry.Status != core.StatusPaid {
		t.Errorf("status = %q, want paid", entry.Status)
	}
	if store.entryCount() != 1 {
		t.Fatalf("entry count = %d, want 1", store.entryCount())
	}
}
