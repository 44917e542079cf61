// Package healthprobe provides liveness and readiness checks with
// per-component readiness tracking.
package healthprobe

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthChecker provides health and readiness checks. Readiness is the
// conjunction of every registered component: the trade log, the venue
// adapters, and the market data feed each flip their own flag.
type HealthChecker struct {
	startTime time.Time

	mu         sync.RWMutex
	components map[string]bool
}

// New creates a new HealthChecker.
func New() *HealthChecker {
	return &HealthChecker{
		startTime:  time.Now(),
		components: make(map[string]bool),
	}
}

// SetComponent marks one component ready or not ready.
func (h *HealthChecker) SetComponent(name string, ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = ready
}

// SetReady marks the whole application ready under a single component.
func (h *HealthChecker) SetReady(ready bool) {
	h.SetComponent("app", ready)
}

// allReady reports whether every registered component is ready. An
// empty component set is not ready.
func (h *HealthChecker) allReady() (bool, []string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.components) == 0 {
		return false, nil
	}

	var waiting []string
	for name, ready := range h.components {
		if !ready {
			waiting = append(waiting, name)
		}
	}
	return len(waiting) == 0, waiting
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string   `json:"status"`
	Uptime  string   `json:"uptime"`
	Waiting []string `json:"waiting,omitempty"`
}

// Health returns an HTTP handler for liveness checks.
// Always returns 200 OK if the application is running.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status: "healthy",
			Uptime: time.Since(h.startTime).String(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Ready returns an HTTP handler for readiness checks.
// Returns 200 OK if every component is ready, 503 otherwise.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ready, waiting := h.allReady()

		if !ready {
			resp := HealthResponse{
				Status:  "not_ready",
				Waiting: waiting,
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(resp)
			return
		}

		resp := HealthResponse{
			Status: "ready",
			Uptime: time.Since(h.startTime).String(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
