package handler

import (
	"context"
	"net/http"
	"time"
)

const pingTimeout = time.Second

// Health status values.
const (
	StatusUp       = "up"
	StatusDegraded = "degraded"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string      `json:"status"`
	Version string      `json:"version"`
	Commit  string      `json:"commit,omitempty"`
	Time    string      `json:"time"`
	Store   StoreHealth `json:"counter_store"`
}

// StoreHealth reports the counter store probe.
type StoreHealth struct {
	Backend   string  `json:"backend"`
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// handleHealth reports the counter store state. A degraded store still
// answers 200 because the rate limiter fails open; a fail-closed limiter
// turns a store outage into 503.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	store := h.probeStore(r.Context())

	resp := HealthResponse{
		Status:  StatusUp,
		Version: h.build.Version,
		Commit:  h.build.Commit,
		Time:    h.clock.Now().UTC().Format(time.RFC3339),
		Store:   store,
	}
	status := http.StatusOK
	if store.Status != StatusUp {
		resp.Status = StatusDegraded
		if h.policy.FailClosed {
			status = http.StatusServiceUnavailable
		}
	}
	WriteJSON(w, r, status, resp)
}

// handleReady reports whether requests can be served.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.policy.FailClosed && h.policy.Enabled {
		if store := h.probeStore(r.Context()); store.Status != StatusUp {
			WriteJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": "counter store unavailable",
			})
			return
		}
	}
	WriteJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) probeStore(ctx context.Context) StoreHealth {
	sh := StoreHealth{Backend: h.backend, Status: StatusUp}
	if h.store == nil {
		return sh
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	start := time.Now()
	err := h.store.Ping(ctx)
	sh.LatencyMS = float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		sh.Status = StatusDegraded
		sh.Error = "unreachable"
		h.logger.Warn("counter store ping failed", "backend", h.backend, "error", err)
	}
	return sh
}
