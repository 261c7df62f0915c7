// package http exposes the stored evidence over a small read-only API, so
// dashboards and auditors can pull the latest compliance state without
// touching the evidence directory or database directly.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/grcops/pr-compliance/internal/apperrors"
	"github.com/grcops/pr-compliance/internal/domain"
	"github.com/grcops/pr-compliance/internal/repository"
	"github.com/grcops/pr-compliance/pkg/logger/sl"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultHistoryLimit = 20

// Server holds the dependencies for the evidence read API.
type Server struct {
	log       *slog.Logger
	store     repository.EvidenceRepository
	controlID int
}

func NewServer(log *slog.Logger, store repository.EvidenceRepository, controlID int) *Server {
	return &Server{
		log:       log,
		store:     store,
		controlID: controlID,
	}
}

// Routes sets up the router with all middleware and endpoints.
func (s *Server) Routes() http.Handler {
	mux := chi.NewRouter()

	mux.Use(s.requestID)
	mux.Use(s.logRequest)
	mux.Use(s.metricsMiddleware)

	mux.Handle("/metrics", promhttp.Handler())

	mux.Get("/healthz", s.GetHealth)
	mux.Get("/evidence", s.GetEvidenceHistory)
	mux.Get("/evidence/{id}", s.GetEvidence)
	mux.Get("/compliance/latest", s.GetLatestCompliance)

	return mux
}

func (s *Server) GetHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) GetEvidenceHistory(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.GetEvidenceHistory"

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}

		limit = parsed
	}

	history, err := s.store.History(r.Context(), s.controlID, limit)
	if err != nil {
		s.handleServiceError(w, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]any{"evidence": history})
}

func (s *Server) GetEvidence(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.GetEvidence"

	id := chi.URLParam(r, "id")

	evidence, err := s.store.Load(r.Context(), id)
	if err != nil {
		s.handleServiceError(w, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]*domain.Evidence{"evidence": evidence})
}

// GetLatestCompliance serves the most recent metrics, the payload the report
// layer consumes.
func (s *Server) GetLatestCompliance(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.GetLatestCompliance"

	evidence, err := s.store.Latest(r.Context(), s.controlID)
	if err != nil {
		s.handleServiceError(w, op, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]any{
		"status":     evidence.Status,
		"created_at": evidence.CreatedAt,
		"metrics":    evidence.Metrics,
	})
}

// respond encodes data as JSON; it centralizes the Content-Type header and
// status code handling.
func (s *Server) respond(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.log.Error("failed to encode response", sl.Err(err))
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, code int, message string) {
	s.respond(w, code, map[string]string{"error": message})
}

// handleServiceError logs the internal error and maps it to a user-facing
// HTTP response.
func (s *Server) handleServiceError(w http.ResponseWriter, op string, err error) {
	log := s.log.With(slog.String("op", op))
	log.Error("service error occurred", sl.Err(err))

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "resource not found")
	default:
		s.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
