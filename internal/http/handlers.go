package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fluxo/internal/core"
	applog "fluxo/internal/log"
)

// handleProjection computes the cash-flow projection for one owner:
// GET /api/projection?owner_id&from&to&realized_only
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	ownerID, err := queryInt64(r, "owner_id")
	if err != nil || ownerID < 1 {
		badRequest(w, "owner_id is required")
		return
	}
	from, err := queryDate(r, "from")
	if err != nil {
		badRequest(w, "invalid from date, want YYYY-MM-DD")
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		badRequest(w, "invalid to date, want YYYY-MM-DD")
		return
	}
	if from.IsZero() || to.IsZero() {
		badRequest(w, "from and to are required")
		return
	}

	projection, err := s.projections.Project(r.Context(), ownerID, from, to, queryBool(r, "realized_only"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projection)
}

func (s *Server) handleListObligations(w http.ResponseWriter, r *http.Request) {
	ownerID, err := queryInt64(r, "owner_id")
	if err != nil || ownerID < 1 {
		badRequest(w, "owner_id is required")
		return
	}

	obls, err := s.obligations.List(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if obls == nil {
		obls = []core.Obligation{}
	}
	writeJSON(w, http.StatusOK, obls)
}

func (s *Server) handleGetObligation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	o, err := s.obligations.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleCreateObligation(w http.ResponseWriter, r *http.Request) {
	// A body that omits "active" creates an active obligation.
	o := core.Obligation{Active: true}
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	o.ID = 0

	created, err := s.obligations.Create(r.Context(), o)
	if err != nil {
		writeError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Obligation created",
		applog.FieldObligationID, created.ID,
		applog.FieldOwnerID, created.OwnerID)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateObligation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	current, err := s.obligations.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Omitting "active" keeps the stored state instead of deactivating.
	o := core.Obligation{Active: current.Active}
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	o.ID = id

	updated, err := s.obligations.Update(r.Context(), o)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeactivateObligation soft-deletes: the obligation disappears from
// projections but its ledger history stays queryable.
func (s *Server) handleDeactivateObligation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := s.obligations.Deactivate(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deactivated": true})
}

// handleSchedule returns the reconciled occurrences of one obligation:
// GET /api/obligations/{id}/schedule?from&to
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	from, err := queryDate(r, "from")
	if err != nil {
		badRequest(w, "invalid from date, want YYYY-MM-DD")
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		badRequest(w, "invalid to date, want YYYY-MM-DD")
		return
	}

	occs, err := s.projections.Schedule(r.Context(), id, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if occs == nil {
		occs = []core.Occurrence{}
	}
	writeJSON(w, http.StatusOK, occs)
}

// handleLedger lists every persisted entry of an obligation, including
// entries whose due date no longer matches the current recurrence rule.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	if _, err := s.obligations.Get(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := s.ledger.ListLedgerEntries(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handlePay marks one occurrence as paid, creating the ledger entry if the
// occurrence was still virtual.
func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	id, dueDate, ok := s.paymentParams(w, r)
	if !ok {
		return
	}

	entry, err := s.payments.MarkPaid(r.Context(), id, dueDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleUnpay reverts an occurrence to pending. Unpaying a virtual
// occurrence changes nothing, the response says so instead of failing.
func (s *Server) handleUnpay(w http.ResponseWriter, r *http.Request) {
	id, dueDate, ok := s.paymentParams(w, r)
	if !ok {
		return
	}

	entry, err := s.payments.MarkPending(r.Context(), id, dueDate)
	if err != nil {
		if errors.Is(err, core.ErrNothingToReopen) {
			writeJSON(w, http.StatusOK, map[string]bool{"noop": true})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) paymentParams(w http.ResponseWriter, r *http.Request) (int64, core.Date, bool) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err.Error())
		return 0, core.Date{}, false
	}
	dueDate, err := core.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		badRequest(w, "invalid due date, want YYYY-MM-DD")
		return 0, core.Date{}, false
	}
	return id, dueDate, true
}
