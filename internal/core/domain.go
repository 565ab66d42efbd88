package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	Weekly  Periodicity = "weekly"
	Monthly Periodicity = "monthly"
	Annual  Periodicity = "annual"
)

const (
	Recurring Category = "recurring"
	OneOff    Category = "oneoff"
)

const (
	Revenue    Kind = "revenue"
	Expense    Kind = "expense"
	Investment Kind = "investment"
)

const (
	StatusPending EntryStatus = "pending"
	StatusPaid    EntryStatus = "paid"
)

type (
	Periodicity string
	Category    string
	Kind        string
	EntryStatus string

	Money struct {
		Cents int64
	}

	// Obligation is a billing or expense rule: either a recurring contract
	// or a one-off charge. Recurring obligations generate one occurrence per
	// period between StartDate and EndDate (open-ended when EndDate is zero).
	Obligation struct {
		ID           int64       `json:"id"`
		OwnerID      int64       `json:"owner_id"`
		Counterparty string      `json:"counterparty"`
		ServiceLabel string      `json:"service_label"`
		Category     Category    `json:"category"`
		Kind         Kind        `json:"kind"`
		Amount       Money       `json:"amount_cents"`
		StartDate    Date        `json:"start_date"`
		EndDate      Date        `json:"end_date"` // zero = open-ended
		Periodicity  Periodicity `json:"periodicity,omitempty"`
		DueDay       int         `json:"due_day"` // nominal day of month, 1-31, clamped per month
		Active       bool        `json:"active"`
	}

	// LedgerEntry is the authoritative record of one concrete payment
	// instance. Entries are created lazily on first pay; at most one exists
	// per (obligation, due date) pair.
	LedgerEntry struct {
		ID           int64       `json:"id"`
		ObligationID int64       `json:"obligation_id"`
		DueDate      Date        `json:"due_date"`
		Amount       Money       `json:"amount_cents"`
		Status       EntryStatus `json:"status"`
		PaidDate     Date        `json:"paid_date"` // set iff Status == StatusPaid
	}

	// Occurrence is the reconciled, in-memory unit handed to callers. It is
	// recomputed on every query and never stored. Persisted reports whether
	// an authoritative ledger entry backs it.
	Occurrence struct {
		ObligationID int64       `json:"obligation_id"`
		Counterparty string      `json:"counterparty"`
		ServiceLabel string      `json:"service_label"`
		Kind         Kind        `json:"kind"`
		DueDate      Date        `json:"due_date"`
		Amount       Money       `json:"amount_cents"`
		Status       EntryStatus `json:"status"`
		PaidDate     Date        `json:"paid_date"`
		Persisted    bool        `json:"persisted"`
	}
)

var (
	ErrInvalidObligation = errors.New("invalid obligation")
	ErrInvalidWindow     = errors.New("window start after window end")
	ErrNothingToReopen   = errors.New("nothing to reopen")
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEntry    = errors.New("duplicate ledger entry")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyCounterparty = errors.New("empty counterparty")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p Periodicity) Valid() bool {
	switch p {
	case Weekly, Monthly, Annual:
		return true
	}
	return false
}

func (k Kind) Valid() bool {
	switch k {
	case Revenue, Expense, Investment:
		return true
	}
	return false
}

func (o Obligation) Validate() error {
	if len(strings.TrimSpace(o.Counterparty)) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidObligation, ErrEmptyCounterparty)
	}
	if err := o.Amount.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidObligation, err)
	}
	if o.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalidObligation)
	}
	if !o.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidObligation, o.Kind)
	}
	if !o.EndDate.IsZero() && o.EndDate.Before(o.StartDate.Time) {
		return fmt.Errorf("%w: end date %s before start date %s", ErrInvalidObligation, o.EndDate, o.StartDate)
	}
	switch o.Category {
	case OneOff:
		return nil
	case Recurring:
		if !o.Periodicity.Valid() {
			return fmt.Errorf("%w: periodicity %q", ErrInvalidObligation, o.Periodicity)
		}
		if o.DueDay < 1 || o.DueDay > 31 {
			return fmt.Errorf("%w: due day %d outside 1-31", ErrInvalidObligation, o.DueDay)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown category %q", ErrInvalidObligation, o.Category)
	}
}

// Normalize fills the periodicity fields of a one-off obligation for storage
// uniformity: the due day becomes the start date's day, the end date the
// start date, the periodicity monthly. The normalized fields are never used
// to change one-off behavior; expansion keys off Category alone.
func (o Obligation) Normalize() Obligation {
	if o.Category != OneOff {
		return o
	}
	o.DueDay = o.StartDate.Day()
	o.EndDate = o.StartDate
	o.Periodicity = Monthly
	return o
}

// OpenEnded reports whether the obligation has no end date.
func (o Obligation) OpenEnded() bool {
	return o.EndDate.IsZero()
}
