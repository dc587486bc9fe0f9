package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerpulse/ledgerpulse/internal/cache/memory"
	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

// Cache windows per endpoint. The extended snapshot tolerates staleness the
// longest because it backs the SEO-rendered stats block.
const (
	extendedTTL = 5 * time.Minute
	marketTTL   = time.Minute
	ohlcTTL     = 2 * time.Minute
)

// ErrInvalidDays is returned for OHLC windows the upstream API does not offer.
var ErrInvalidDays = fmt.Errorf("unsupported ohlc day window")

var allowedOHLCDays = map[int]bool{1: true, 7: true, 14: true, 30: true, 90: true, 180: true, 365: true}

// MarketFetcher is the upstream market-data API surface the service needs.
// *coingecko.Client satisfies it.
type MarketFetcher interface {
	FetchExtended(ctx context.Context) (domain.ExtendedSnapshot, error)
	FetchMarket(ctx context.Context) (domain.MarketData, error)
	FetchOHLC(ctx context.Context, days int) ([]domain.Candle, error)
}

// MarketService serves the extended snapshot, aggregated market view, and
// OHLC candles, each behind its own TTL cache with stale-serve fallback.
type MarketService struct {
	fetcher  MarketFetcher
	extended *memory.Cache[domain.ExtendedSnapshot]
	market   *memory.Cache[domain.MarketData]
	ohlc     *memory.Cache[[]domain.Candle]
	logger   *slog.Logger
}

// NewMarketService creates a MarketService over the given upstream client.
func NewMarketService(fetcher MarketFetcher, logger *slog.Logger) *MarketService {
	return &MarketService{
		fetcher:  fetcher,
		extended: memory.New[domain.ExtendedSnapshot](),
		market:   memory.New[domain.MarketData](),
		ohlc:     memory.New[[]domain.Candle](),
		logger:   logger.With(slog.String("component", "market_service")),
	}
}

// Extended returns the extended price snapshot. A stale value is served when
// the upstream refresh fails.
func (s *MarketService) Extended(ctx context.Context) (domain.ExtendedSnapshot, memory.Freshness, error) {
	snap, fr, err := s.extended.Get(ctx, "extended", extendedTTL, s.fetcher.FetchExtended)
	if err != nil {
		return domain.ExtendedSnapshot{}, fr, fmt.Errorf("market_service: extended: %w", err)
	}
	if fr == memory.Stale {
		s.logger.WarnContext(ctx, "serving stale extended snapshot")
	}
	return snap, fr, nil
}

// Market returns the aggregated market view.
func (s *MarketService) Market(ctx context.Context) (domain.MarketData, memory.Freshness, error) {
	data, fr, err := s.market.Get(ctx, "market", marketTTL, s.fetcher.FetchMarket)
	if err != nil {
		return domain.MarketData{}, fr, fmt.Errorf("market_service: market: %w", err)
	}
	return data, fr, nil
}

// OHLC returns candles for the given day window. Windows the upstream does
// not offer fail with ErrInvalidDays.
func (s *MarketService) OHLC(ctx context.Context, days int) ([]domain.Candle, memory.Freshness, error) {
	if !allowedOHLCDays[days] {
		return nil, memory.Fresh, fmt.Errorf("market_service: days %d: %w", days, ErrInvalidDays)
	}

	key := fmt.Sprintf("ohlc:%d", days)
	candles, fr, err := s.ohlc.Get(ctx, key, ohlcTTL, func(ctx context.Context) ([]domain.Candle, error) {
		return s.fetcher.FetchOHLC(ctx, days)
	})
	if err != nil {
		return nil, fr, fmt.Errorf("market_service: ohlc %d: %w", days, err)
	}
	return candles, fr, nil
}
