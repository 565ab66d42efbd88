package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"fluxo/internal/core"
	applog "fluxo/internal/log"
	"fluxo/internal/services"
	"fluxo/internal/storage"
)

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "fluxo_test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	srv := NewServer(
		services.NewObligationService(repo),
		services.NewProjectionService(repo, repo),
		services.NewPaymentService(repo, repo, nil),
		repo,
		applog.New(applog.DefaultConfig()),
	)
	srv.SetReadinessProbe(repo.Ping)
	return srv.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func createObligation(t *testing.T, h http.Handler) core.Obligation {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/obligations", map[string]any{
		"owner_id":      1,
		"counterparty":  "Acme Hosting",
		"service_label": "server rent",
		"category":      "recurring",
		"kind":          "revenue",
		"amount_cents":  1000,
		"start_date":    "2024-01-10",
		"end_date":      "2024-03-10",
		"periodicity":   "monthly",
		"due_day":       10,
		"active":        true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create obligation: status %d, body %s", rec.Code, rec.Body.String())
	}
	return decode[core.Obligation](t, rec)
}

func TestHealthEndpoints(t *testing.T) {
	h := testHandler(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, h, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status %d", path, rec.Code)
		}
	}

	rec := doJSON(t, h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("/metrics: status %d", rec.Code)
	}
}

func TestObligationCRUD(t *testing.T) {
	h := testHandler(t)
	created := createObligation(t, h)
	if created.ID == 0 {
		t.Fatal("created obligation has no ID")
	}

	rec := doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/obligations/%d", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}
	got := decode[core.Obligation](t, rec)
	if got.Counterparty != "Acme Hosting" || got.Amount.Cents != 1000 {
		t.Fatalf("get returned %+v", got)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/obligations?owner_id=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	if list := decode[[]core.Obligation](t, rec); len(list) != 1 {
		t.Fatalf("list returned %d obligations, want 1", len(list))
	}

	got.Amount = core.Money{Cents: 1500}
	rec = doJSON(t, h, http.MethodPut, fmt.Sprintf("/api/obligations/%d", created.ID), got)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/obligations/%d", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate: status %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/obligations/%d", created.ID), nil)
	if got := decode[core.Obligation](t, rec); got.Active {
		t.Fatal("obligation still active after delete")
	}
}

func TestCreateObligationDefaultsActive(t *testing.T) {
	h := testHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/obligations", map[string]any{
		"owner_id":      1,
		"counterparty":  "Acme Hosting",
		"service_label": "server rent",
		"category":      "recurring",
		"kind":          "revenue",
		"amount_cents":  1000,
		"start_date":    "2024-01-10",
		"end_date":      "2024-03-10",
		"periodicity":   "monthly",
		"due_day":       10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", rec.Code, rec.Body.String())
	}
	created := decode[core.Obligation](t, rec)
	if !created.Active {
		t.Fatal(`obligation created without "active" should be active`)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/projection?owner_id=1&from=2024-01-01&to=2024-12-31", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("projection: status %d", rec.Code)
	}
	p := decode[services.Projection](t, rec)
	if len(p.Occurrences) != 3 || p.Totals.Revenue.Cents != 3000 {
		t.Fatalf("projection has %d occurrences, revenue %d cents; want 3 and 3000",
			len(p.Occurrences), p.Totals.Revenue.Cents)
	}

	// An explicit false is still honored.
	rec = doJSON(t, h, http.MethodPost, "/api/obligations", map[string]any{
		"owner_id":     2,
		"counterparty": "Parked Deal",
		"category":     "oneoff",
		"kind":         "revenue",
		"amount_cents": 500,
		"start_date":   "2024-06-01",
		"active":       false,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create inactive: status %d, body %s", rec.Code, rec.Body.String())
	}
	if parked := decode[core.Obligation](t, rec); parked.Active {
		t.Fatal(`"active": false in the body was ignored`)
	}
}

func TestUpdateObligationWithoutActiveKeepsState(t *testing.T) {
	h := testHandler(t)
	created := createObligation(t, h)

	rec := doJSON(t, h, http.MethodPut, fmt.Sprintf("/api/obligations/%d", created.ID), map[string]any{
		"owner_id":      1,
		"counterparty":  "Acme Hosting",
		"service_label": "server rent",
		"category":      "recurring",
		"kind":          "revenue",
		"amount_cents":  2000,
		"start_date":    "2024-01-10",
		"end_date":      "2024-03-10",
		"periodicity":   "monthly",
		"due_day":       10,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d, body %s", rec.Code, rec.Body.String())
	}
	updated := decode[core.Obligation](t, rec)
	if !updated.Active {
		t.Fatal(`update without "active" deactivated the obligation`)
	}
	if updated.Amount.Cents != 2000 {
		t.Fatalf("amount = %d, want 2000", updated.Amount.Cents)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/projection?owner_id=1&from=2024-01-01&to=2024-12-31", nil)
	if p := decode[services.Projection](t, rec); len(p.Occurrences) != 3 {
		t.Fatalf("projection has %d occurrences after update, want 3", len(p.Occurrences))
	}
}

func TestObligationValidationErrors(t *testing.T) {
	h := testHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/obligations", map[string]any{
		"owner_id":     1,
		"counterparty": "",
		"category":     "recurring",
		"kind":         "expense",
		"amount_cents": 100,
		"start_date":   "2024-01-01",
		"periodicity":  "monthly",
		"due_day":      1,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty counterparty: status %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/obligations/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing obligation: status %d, want 404", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/obligations", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("list without owner_id: status %d, want 400", rec.Code)
	}
}

func TestProjectionEndpoint(t *testing.T) {
	h := testHandler(t)
	createObligation(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/projection?owner_id=1&from=2024-01-01&to=2024-12-31", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("projection: status %d, body %s", rec.Code, rec.Body.String())
	}
	p := decode[services.Projection](t, rec)
	if len(p.Occurrences) != 3 {
		t.Fatalf("got %d occurrences, want 3", len(p.Occurrences))
	}
	if p.Totals.Revenue.Cents != 3000 || p.Totals.Balance.Cents != 3000 {
		t.Fatalf("totals = %+v", p.Totals)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/projection?owner_id=1&from=2024-12-31&to=2024-01-01", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted window: status %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/projection?owner_id=1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing window: status %d, want 400", rec.Code)
	}
}

func TestScheduleEndpoint(t *testing.T) {
	h := testHandler(t)
	created := createObligation(t, h)

	rec := doJSON(t, h, http.MethodGet,
		fmt.Sprintf("/api/obligations/%d/schedule?from=2024-01-01&to=2024-12-31", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("schedule: status %d", rec.Code)
	}
	occs := decode[[]core.Occurrence](t, rec)
	if len(occs) != 3 {
		t.Fatalf("got %d occurrences, want 3", len(occs))
	}
	for _, occ := range occs {
		if occ.Persisted {
			t.Fatal("fresh schedule should be all virtual")
		}
	}
}

func TestPayUnpayFlow(t *testing.T) {
	h := testHandler(t)
	created := createObligation(t, h)
	payPath := fmt.Sprintf("/api/obligations/%d/payments/2024-02-10/pay", created.ID)
	unpayPath := fmt.Sprintf("/api/obligations/%d/payments/2024-02-10/unpay", created.ID)

	rec := doJSON(t, h, http.MethodPost, payPath, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pay: status %d, body %s", rec.Code, rec.Body.String())
	}
	entry := decode[core.LedgerEntry](t, rec)
	if entry.Status != core.StatusPaid || entry.ID == 0 {
		t.Fatalf("pay returned %+v", entry)
	}

	// Schedule now shows the persisted occurrence.
	rec = doJSON(t, h, http.MethodGet,
		fmt.Sprintf("/api/obligations/%d/schedule?from=2024-01-01&to=2024-12-31", created.ID), nil)
	occs := decode[[]core.Occurrence](t, rec)
	var persisted int
	for _, occ := range occs {
		if occ.Persisted {
			persisted++
			if occ.Status != core.StatusPaid {
				t.Errorf("persisted occurrence status = %q, want paid", occ.Status)
			}
		}
	}
	if persisted != 1 {
		t.Fatalf("persisted occurrences = %d, want 1", persisted)
	}

	rec = doJSON(t, h, http.MethodPost, unpayPath, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unpay: status %d", rec.Code)
	}
	reopened := decode[core.LedgerEntry](t, rec)
	if reopened.Status != core.StatusPending {
		t.Fatalf("unpay returned %+v", reopened)
	}

	// Ledger keeps the reopened row.
	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/obligations/%d/ledger", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ledger: status %d", rec.Code)
	}
	if entries := decode[[]core.LedgerEntry](t, rec); len(entries) != 1 {
		t.Fatalf("ledger has %d entries, want 1", len(entries))
	}
}

func TestUnpayVirtualIsNoop(t *testing.T) {
	h := testHandler(t)
	created := createObligation(t, h)

	rec := doJSON(t, h, http.MethodPost,
		fmt.Sprintf("/api/obligations/%d/payments/2024-03-10/unpay", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unpay virtual: status %d, want 200", rec.Code)
	}
	resp := decode[map[string]bool](t, rec)
	if !resp["noop"] {
		t.Fatalf("expected noop response, got %s", rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/obligations/%d/ledger", created.ID), nil)
	if entries := decode[[]core.LedgerEntry](t, rec); len(entries) != 0 {
		t.Fatalf("unpay of virtual occurrence created %d entries", len(entries))
	}
}

func TestPaymentBadDate(t *testing.T) {
	h := testHandler(t)
	created := createObligation(t, h)

	rec := doJSON(t, h, http.MethodPost,
		fmt.Sprintf("/api/obligations/%d/payments/not-a-date/pay", created.ID), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: status %d, want 400", rec.Code)
	}
}
