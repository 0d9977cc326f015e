package api

import (
	"context"
	"net/http"
	"time"

	"github.com/QatreenFatima/ai-book/internal/log"
)

const healthCheckTimeout = 5 * time.Second

// PingFunc probes one dependency. A nil error means the dependency is up.
type PingFunc func(ctx context.Context) error

// healthHandler serves the liveness, readiness and aggregate health probes.
type healthHandler struct {
	postgres PingFunc
	vectorDB PingFunc
	llm      PingFunc
	logger   log.Logger
}

// liveness reports that the process is alive.
func (h *healthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness reports whether the server can do useful work, which for chat
// means the session database is reachable.
func (h *healthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.postgres == nil {
		http.Error(w, "database not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.postgres(r.Context()); err != nil {
		h.logger.Error("readiness check failed", "error", err)
		http.Error(w, "database not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// healthResponse is the aggregate health report.
type healthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// aggregate probes every dependency and reports healthy, degraded or
// unhealthy. The backend service is always up when this handler runs, so a
// failing dependency yields degraded rather than unhealthy.
func (h *healthHandler) aggregate(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{
		"backend":   "up",
		"postgres":  "down",
		"vector_db": "down",
		"llm":       "down",
	}

	checks := map[string]PingFunc{
		"postgres":  h.postgres,
		"vector_db": h.vectorDB,
		"llm":       h.llm,
	}
	for name, ping := range checks {
		if ping == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		if err := ping(ctx); err != nil {
			h.logger.Warn("health check failed", "service", name, "error", err)
		} else {
			services[name] = "up"
		}
		cancel()
	}

	allUp := true
	for _, state := range services {
		if state != "up" {
			allUp = false
			break
		}
	}

	status := "degraded"
	if allUp {
		status = "healthy"
	}

	writeJSON(w, http.StatusOK, healthResponse{Status: status, Services: services})
}
