package handler

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthHandler serves liveness checks.
type HealthHandler struct {
	startedAt time.Time
	version   string
}

// NewHealthHandler creates a health handler reporting the given version.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		startedAt: time.Now(),
		version:   version,
	}
}

// HandleHealth handles GET /health.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
	})
}
