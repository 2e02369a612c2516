package handlers

import (
	"net/http"
	"time"
)

// HealthHandler reports service liveness.
type HealthHandler struct {
	environment string
	now         func() time.Time
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(environment string) *HealthHandler {
	return &HealthHandler{environment: environment, now: time.Now}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
}

// Get handles the health check.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "OK",
		Timestamp:   h.now().UTC(),
		Environment: h.environment,
	})
}
