// Package api provides the HTTP server for the Chaos Theorist console.
// It exposes the backend resources (systems, leverage analysis, simulation
// runs) and the console's orchestration operations over JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chaostheorist/chaos/internal/app/console"
	"github.com/chaostheorist/chaos/internal/domain"
	"github.com/chaostheorist/chaos/internal/health"
)

// RunController finishes simulation runs. *catalog.Service satisfies it.
type RunController interface {
	CancelSimulation(ctx context.Context, id, reason string) (domain.SimulationRun, error)
}

// Server is the Chaos Theorist HTTP API server.
type Server struct {
	gateway        domain.ResourceGateway
	console        *console.Console
	runs           RunController // nil disables the cancel route
	health         *health.Checker
	version        string
	metricsEnabled bool
	logger         *slog.Logger
}

// NewServer creates a new API server. A nil console disables the
// /api/console routes.
func NewServer(gw domain.ResourceGateway, c *console.Console, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{gateway: gw, console: c, version: "dev", logger: logger}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth sets the checker behind /health and /api/health/checks.
func (s *Server) SetHealth(h *health.Checker) { s.health = h }

// SetRunController enables POST /api/simulations/{id}/cancel.
func (s *Server) SetRunController(rc RunController) { s.runs = rc }

// SetVersion sets the version reported by /api/version.
func (s *Server) SetVersion(v string) { s.version = v }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
	})
	r.Get("/api/health/checks", s.handleHealthChecks)

	r.Route("/api/systems", func(r chi.Router) {
		r.Get("/", s.handleListSystems)
		r.Get("/{id}", s.handleGetSystem)
		r.Get("/{id}/leverage-points", s.handleLeveragePoints)
		r.Put("/{id}/parameters/{paramID}", s.handleUpdateParameter)
	})

	r.Route("/api/simulations", func(r chi.Router) {
		r.Post("/", s.handleStartSimulation)
		r.Get("/{id}", s.handleGetSimulation)
		if s.runs != nil {
			r.Post("/{id}/cancel", s.handleCancelSimulation)
		}
	})

	if s.console != nil {
		r.Route("/api/console", s.mountConsole)
	}

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Health ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil && !s.health.IsHealthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealthChecks(w http.ResponseWriter, r *http.Request) {
	statuses := []health.Status{}
	if s.health != nil {
		statuses = s.health.Statuses()
	}
	writeJSON(w, http.StatusOK, map[string]any{"checks": statuses})
}

// ─── Backend resources ──────────────────────────────────────────────────────

func (s *Server) handleListSystems(w http.ResponseWriter, r *http.Request) {
	systems, err := s.gateway.ListSystems(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if systems == nil {
		systems = []domain.ChaoticSystemDefinition{}
	}
	writeJSON(w, http.StatusOK, systems)
}

func (s *Server) handleGetSystem(w http.ResponseWriter, r *http.Request) {
	sys, err := s.gateway.GetSystem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sys)
}

func (s *Server) handleLeveragePoints(w http.ResponseWriter, r *http.Request) {
	points, err := s.gateway.IdentifyLeveragePoints(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if points == nil {
		points = []domain.LeveragePoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

type valueBody struct {
	Value domain.Value `json:"value"`
}

func (s *Server) handleUpdateParameter(w http.ResponseWriter, r *http.Request) {
	var body valueBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Value.IsZero() {
		writeError(w, http.StatusBadRequest, "invalid_request", "value is required")
		return
	}
	p, err := s.gateway.UpdateParameter(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "paramID"), body.Value)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleStartSimulation(w http.ResponseWriter, r *http.Request) {
	var req domain.StartRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SystemID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "systemId is required")
		return
	}
	run, err := s.gateway.StartSimulation(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (s *Server) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	run, err := s.gateway.GetSimulation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleCancelSimulation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &body) {
		return
	}
	run, err := s.runs.CancelSimulation(r.Context(), chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, errType, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// writeDomainError maps a domain error to its status code and error type.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status, errType := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", "type", errType, "error", err)
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, status, map[string]any{
			"error": map[string]any{
				"message": err.Error(),
				"type":    errType,
				"param":   ve.ParameterID,
				"reason":  ve.Reason,
			},
		})
		return
	}
	writeError(w, status, errType, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrEmptyMessage):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrChatBusy), errors.Is(err, domain.ErrNotAnalyzed):
		return http.StatusConflict, "conflict"
	}
	kind := domain.Kind(err)
	switch kind {
	case "not_found":
		return http.StatusNotFound, kind
	case "validation":
		return http.StatusUnprocessableEntity, kind
	case "lifecycle":
		return http.StatusConflict, kind
	case "analysis", "ai_service":
		return http.StatusBadGateway, kind
	case "transport":
		return http.StatusServiceUnavailable, kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, kind
}

// decodeBody decodes a JSON request body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
