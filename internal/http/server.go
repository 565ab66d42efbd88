// Package http exposes the schedule engine as a JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	applog "fluxo/internal/log"
	"fluxo/internal/services"
	"fluxo/internal/storage"
)

// Server holds the HTTP-facing collaborators. Readiness is a pluggable
// probe so the binary can wire a database ping without the handlers
// knowing about SQL.
type Server struct {
	obligations *services.ObligationService
	projections *services.ProjectionService
	payments    *services.PaymentService
	ledger      storage.LedgerStore
	logger      *applog.Logger
	ready       func(ctx context.Context) error
}

func NewServer(
	obligations *services.ObligationService,
	projections *services.ProjectionService,
	payments *services.PaymentService,
	ledger storage.LedgerStore,
	logger *applog.Logger,
) *Server {
	return &Server{
		obligations: obligations,
		projections: projections,
		payments:    payments,
		ledger:      ledger,
		logger:      logger,
	}
}

// SetReadinessProbe sets the check behind GET /readyz.
func (s *Server) SetReadinessProbe(probe func(ctx context.Context) error) {
	s.ready = probe
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(applog.Middleware(s.logger))
	r.Use(applog.RequestIDMiddleware(func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	r.Use(metricsMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/projection", s.handleProjection)

		r.Route("/obligations", func(r chi.Router) {
			r.Get("/", s.handleListObligations)
			r.Post("/", s.handleCreateObligation)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetObligation)
				r.Put("/", s.handleUpdateObligation)
				r.Delete("/", s.handleDeactivateObligation)

				r.Get("/schedule", s.handleSchedule)
				r.Get("/ledger", s.handleLedger)

				r.Post("/payments/{date}/pay", s.handlePay)
				r.Post("/payments/{date}/unpay", s.handleUnpay)
			})
		})
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
