package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

// SnapshotProvider serves the current price snapshot. *service.PriceService
// satisfies it.
type SnapshotProvider interface {
	GetSnapshot(ctx context.Context) (domain.Snapshot, error)
}

// PriceHandler serves the basic price snapshot endpoint.
type PriceHandler struct {
	prices SnapshotProvider
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler.
func NewPriceHandler(prices SnapshotProvider, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{
		prices: prices,
		logger: logger.With(slog.String("handler", "price")),
	}
}

// GetSnapshot returns the current price and 24h change. Missing upstream
// data degrades to a zero snapshot rather than an error.
// GET /api/price
func (h *PriceHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.prices.GetSnapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "price snapshot unavailable")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
