package api

import (
	"context"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Health status values.
const (
	StatusOK          = "ok"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// HealthResponse is the body of /api/v1/health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(withRequestID)
	r.Use(s.accessLog)
	r.Use(s.recoverPanics)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		fail(w, r, http.StatusNotFound, CodeNotFound, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		fail(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/database/stats", s.handleDatabaseStats)
	})

	return r
}

// handleHealth runs every dependency check.
// A database failure is fatal (503); optional dependencies only degrade.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  StatusOK,
		Version: s.version,
		Checks:  make(map[string]string, len(s.checks)+1),
	}
	status := http.StatusOK

	if err := s.check(r.Context(), s.db); err != nil {
		s.logger.Warn("database health check failed", "error", err)
		resp.Checks["database"] = err.Error()
		resp.Status = StatusUnavailable
		status = http.StatusServiceUnavailable
	} else {
		resp.Checks["database"] = StatusOK
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.check(r.Context(), s.checks[name]); err != nil {
			resp.Checks[name] = err.Error()
			if resp.Status == StatusOK {
				resp.Status = StatusDegraded
			}
			continue
		}
		resp.Checks[name] = StatusOK
	}

	respond(w, status, resp)
}

// handleReady answers 200 only when the database can serve sessions.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.check(r.Context(), s.db); err != nil {
		fail(w, r, http.StatusServiceUnavailable, CodeUnavailable, "database unavailable")
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": StatusOK})
}

func (s *Server) check(ctx context.Context, c HealthChecker) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	return c.HealthCheck(ctx)
}
