package services

import (
	"context"
	"sort"
	"sync"

	"fluxo/internal/core"
)

// fakeStore implements both storage ports in memory for service tests.
type fakeStore struct {
	mu          sync.Mutex
	obligations map[int64]core.Obligation
	entries     map[int64]core.LedgerEntry
	nextOblID   int64
	nextEntryID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		obligations: make(map[int64]core.Obligation),
		entries:     make(map[int64]core.LedgerEntry),
		nextOblID:   1,
		nextEntryID: 1,
	}
}

func (f *fakeStore) ListObligations(ctx context.Context, ownerID int64) ([]core.Obligation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Obligation
	for _, o := range f.obligations {
		if o.OwnerID == ownerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetObligation(ctx context.Context, id int64) (core.Obligation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.obligations[id]
	if !ok {
		return core.Obligation{}, core.ErrNotFound
	}
	return o, nil
}

func (f *fakeStore) CreateObligation(ctx context.Context, o core.Obligation) (core.Obligation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = f.nextOblID
	f.nextOblID++
	f.obligations[o.ID] = o
	return o, nil
}

func (f *fakeStore) UpdateObligation(ctx context.Context, o core.Obligation) (core.Obligation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.obligations[o.ID]; !ok {
		return core.Obligation{}, core.ErrNotFound
	}
	f.obligations[o.ID] = o
	return o, nil
}

func (f *fakeStore) SetObligationActive(ctx context.Context, id int64, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.obligations[id]
	if !ok {
		return core.ErrNotFound
	}
	o.Active = active
	f.obligations[id] = o
	return nil
}

func (f *fakeStore) ListLedgerEntries(ctx context.Context, obligationID int64) ([]core.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.LedgerEntry
	for _, e := range f.entries {
		if e.ObligationID == obligationID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate.Time) })
	return out, nil
}

func (f *fakeStore) FindLedgerEntry(ctx context.Context, obligationID int64, dueDate core.Date) (core.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ObligationID == obligationID && e.DueDate.SameDay(dueDate) {
			return e, nil
		}
	}
	return core.LedgerEntry{}, core.ErrNotFound
}

func (f *fakeStore) InsertLedgerEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.entries {
		if existing.ObligationID == e.ObligationID && existing.DueDate.SameDay(e.DueDate) {
			return core.LedgerEntry{}, core.ErrDuplicateEntry
		}
	}
	e.ID = f.nextEntryID
	f.nextEntryID++
	f.entries[e.ID] = e
	return e, nil
}

func (f *fakeStore) UpdateLedgerEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[e.ID]; !ok {
		return core.LedgerEntry{}, core.ErrNotFound
	}
	f.entries[e.ID] = e
	return e, nil
}

func (f *fakeStore) GetLedgerEntry(ctx context.Context, id int64) (core.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return core.LedgerEntry{}, core.ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) entryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// recordingPublisher captures published ledger events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	EntryID      int64
	ObligationID int64
	DueDate      string
	Status       string
}

func (p *recordingPublisher) PublishLedgerEvent(ctx context.Context, entryID, obligationID int64, dueDate string, status string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{entryID, obligationID, dueDate, status})
	return nil
}

func (p *recordingPublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedEvent, len(p.events))
	copy(out, p.events)
	return out
}
