// Package health serves the liveness, readiness and metrics endpoints every service exposes.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Checker reports whether one dependency is reachable.
type Checker func(ctx context.Context) error

// Handler serves liveness, readiness and metrics over HTTP.
type Handler struct {
	service  string
	checkers map[string]Checker
	metrics  http.Handler
	timeout  time.Duration
	logger   *slog.Logger
}

// NewHandler creates the handler a service mounts next to its gRPC port. Readiness fails
// while any checker fails. metrics may be nil.
func NewHandler(service string, checkers map[string]Checker, metrics http.Handler, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		checkers: checkers,
		metrics:  metrics,
		timeout:  2 * time.Second,
		logger:   logger,
	}
}

// Router returns the HTTP routes. A panicking checker is recovered and answered 500.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.liveness)
	r.Get("/readyz", h.readiness)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	return r
}

func (h *Handler) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": h.service,
	})
}

type readinessResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func (h *Handler) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := readinessResponse{Status: "ready", Service: h.service, Checks: map[string]string{}}
	code := http.StatusOK
	for _, name := range names {
		if err := h.checkers[name](ctx); err != nil {
			h.logger.WarnContext(ctx, "readiness check failed", "dependency", name, "error", err)
			resp.Checks[name] = err.Error()
			resp.Status = "not ready"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck
}
