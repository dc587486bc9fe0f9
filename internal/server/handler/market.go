package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ledgerpulse/ledgerpulse/internal/cache/memory"
	"github.com/ledgerpulse/ledgerpulse/internal/domain"
	"github.com/ledgerpulse/ledgerpulse/internal/service"
)

// MarketProvider serves the CoinGecko-backed views. *service.MarketService
// satisfies it.
type MarketProvider interface {
	Extended(ctx context.Context) (domain.ExtendedSnapshot, memory.Freshness, error)
	Market(ctx context.Context) (domain.MarketData, memory.Freshness, error)
	OHLC(ctx context.Context, days int) ([]domain.Candle, memory.Freshness, error)
}

// MarketHandler serves the extended snapshot, aggregated market, and OHLC
// endpoints.
type MarketHandler struct {
	markets MarketProvider
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketProvider, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger.With(slog.String("handler", "market")),
	}
}

// GetExtended returns the extended price snapshot. Stale data is served with
// an advisory header instead of failing the request.
// GET /api/price/extended
func (h *MarketHandler) GetExtended(w http.ResponseWriter, r *http.Request) {
	snap, fr, err := h.markets.Extended(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "extended snapshot unavailable")
		return
	}
	setFreshness(w, fr)
	writeJSON(w, http.StatusOK, snap)
}

// GetMarket returns the aggregated market view.
// GET /api/market
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	data, fr, err := h.markets.Market(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "market data unavailable")
		return
	}
	setFreshness(w, fr)
	writeJSON(w, http.StatusOK, data)
}

// GetOHLC returns candles for the requested day window (default 1).
// GET /api/ohlc?days=7
func (h *MarketHandler) GetOHLC(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 1)

	candles, fr, err := h.markets.OHLC(r.Context(), days)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDays) {
			writeError(w, http.StatusBadRequest, "unsupported days window")
			return
		}
		writeError(w, http.StatusBadGateway, "ohlc data unavailable")
		return
	}
	setFreshness(w, fr)
	writeJSON(w, http.StatusOK, candles)
}

// setFreshness marks responses served from the stale fallback.
func setFreshness(w http.ResponseWriter, fr memory.Freshness) {
	if fr == memory.Stale {
		w.Header().Set("X-Data-Freshness", "stale")
	}
}
