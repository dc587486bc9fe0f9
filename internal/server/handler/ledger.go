package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 60
)

// PaymentProvider serves live and historical payment events.
// *service.LedgerService satisfies it.
type PaymentProvider interface {
	Recent(limit int) []domain.ProcessedEvent
	History(ctx context.Context, limit int) ([]domain.ProcessedEvent, error)
}

// LedgerHandler serves the payment event endpoints.
type LedgerHandler struct {
	payments PaymentProvider
	archives domain.BlobReader // nil when object storage is disabled
	logger   *slog.Logger
}

// NewLedgerHandler creates a LedgerHandler. archives may be nil.
func NewLedgerHandler(payments PaymentProvider, archives domain.BlobReader, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		payments: payments,
		archives: archives,
		logger:   logger.With(slog.String("handler", "ledger")),
	}
}

// ListRecent returns the most recent payment events from the in-memory ring,
// newest first.
// GET /api/payments/recent?limit=20
func (h *LedgerHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(queryInt(r, "limit", defaultRecentLimit), defaultRecentLimit, maxRecentLimit)
	writeJSON(w, http.StatusOK, h.payments.Recent(limit))
}

// ListHistory returns recent payments from the postgres archive.
// GET /api/payments/history?limit=50
func (h *LedgerHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(queryInt(r, "limit", 50), 50, 500)

	events, err := h.payments.History(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "history query failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "payment history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// ListArchives lists the JSONL archive files in object storage.
// GET /api/payments/archives
func (h *LedgerHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	if h.archives == nil {
		writeError(w, http.StatusNotFound, "archives not configured")
		return
	}

	infos, err := h.archives.List(r.Context(), "archive/payments/")
	if err != nil {
		h.logger.ErrorContext(r.Context(), "archive list failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "archive listing unavailable")
		return
	}

	type archiveInfo struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	}
	out := make([]archiveInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, archiveInfo{Name: path.Base(info.Path), Size: info.Size})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetArchive streams one JSONL archive file.
// GET /api/payments/archives/{date}
func (h *LedgerHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	if h.archives == nil {
		writeError(w, http.StatusNotFound, "archives not configured")
		return
	}

	date := r.PathValue("date")
	body, err := h.archives.Get(r.Context(), "archive/payments/"+date+".jsonl")
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "archive not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "archive fetch failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "archive unavailable")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	io.Copy(w, body)
}
