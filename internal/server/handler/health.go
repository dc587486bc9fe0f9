package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	logger    *slog.Logger
	startedAt time.Time
	state     func() domain.ConnectionState // nil when this node does not ingest
}

// NewHealthHandler creates a HealthHandler with the provided logger.
func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		logger:    logger,
		startedAt: time.Now().UTC(),
	}
}

// WithStreamState adds the price stream's connection state to the health
// payload. Used on nodes that run the ingest side.
func (h *HealthHandler) WithStreamState(state func() domain.ConnectionState) *HealthHandler {
	h.state = state
	return h
}

// HealthCheck responds with a JSON status including uptime and, when this
// node ingests, the price stream connection state.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":         "ok",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}
	if h.state != nil {
		body["stream_state"] = h.state().String()
	}
	writeJSON(w, http.StatusOK, body)
}
