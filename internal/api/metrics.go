package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/stockapi-core/internal/infrastructure/database"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	Database      DatabaseMetrics `json:"database"`
	Dependencies  map[string]bool `json:"dependencies"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// DatabaseMetrics contains manager state and connection pool statistics.
type DatabaseMetrics struct {
	Database        string `json:"database"`
	Driver          string `json:"driver"`
	Embedded        bool   `json:"embedded"`
	State           string `json:"state"`
	ActiveSessions  int    `json:"active_sessions"`
	MaxOpen         int    `json:"max_open"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	WaitCount       int64  `json:"wait_count"`
	WaitDurationMS  int64  `json:"wait_duration_ms"`
}

func newDatabaseMetrics(cfg database.ConnectionConfig, st database.Stats) DatabaseMetrics {
	return DatabaseMetrics{
		Database:        cfg.Redacted(),
		Driver:          cfg.Dialect.Driver,
		Embedded:        cfg.IsEmbedded(),
		State:           st.State.String(),
		ActiveSessions:  st.ActiveSessions,
		MaxOpen:         st.Pool.MaxOpenConnections,
		OpenConnections: st.Pool.OpenConnections,
		InUse:           st.Pool.InUse,
		Idle:            st.Pool.Idle,
		WaitCount:       st.Pool.WaitCount,
		WaitDurationMS:  st.Pool.WaitDuration.Milliseconds(),
	}
}

// handleDatabaseStats returns the manager's pool statistics.
func (s *Server) handleDatabaseStats(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, newDatabaseMetrics(s.db.Config(), s.db.Stats()))
}

// handleMetrics returns runtime, database and dependency metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Database:     newDatabaseMetrics(s.db.Config(), s.db.Stats()),
		Dependencies: make(map[string]bool, len(s.checks)),
	}

	for name, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		metrics.Dependencies[name] = c.HealthCheck(ctx) == nil
		cancel()
	}

	respond(w, http.StatusOK, metrics)
}
