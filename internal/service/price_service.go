// Package service coordinates the ingest feeds, caches, stores, and the
// signal bus behind the HTTP and WebSocket surfaces.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerpulse/ledgerpulse/internal/cache/memory"
	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

// Bus channels shared by the services and the WebSocket hub.
const (
	ChannelTicks    = "ticks"
	ChannelTrades   = "trades"
	ChannelFlash    = "flash"
	ChannelState    = "state"
	ChannelPayments = "payments"
)

// snapshotTTL is how long a served price snapshot stays fresh.
const snapshotTTL = time.Minute

// TickFetcher is the REST fallback used when no tick has been cached yet.
type TickFetcher func(ctx context.Context) (domain.PriceTick, error)

// busEnvelope is the JSON frame published on the signal bus.
type busEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PriceService receives stream callbacks on the ingest side and serves the
// price snapshot on the API side. The two sides meet in the shared tick
// cache, so they can run in different processes.
type PriceService struct {
	tickCache domain.TickCache
	bus       domain.SignalBus
	fallback  TickFetcher
	snapCache *memory.Cache[domain.Snapshot]
	logger    *slog.Logger
}

// NewPriceService creates a PriceService. fallback may be nil when the node
// only ingests.
func NewPriceService(tickCache domain.TickCache, bus domain.SignalBus, fallback TickFetcher, logger *slog.Logger) *PriceService {
	return &PriceService{
		tickCache: tickCache,
		bus:       bus,
		fallback:  fallback,
		snapCache: memory.New[domain.Snapshot](),
		logger:    logger.With(slog.String("component", "price_service")),
	}
}

// HandleTick stores the accepted tick and fans it out on the bus.
func (s *PriceService) HandleTick(ctx context.Context, tick domain.PriceTick) {
	if err := s.tickCache.SetTick(ctx, tick); err != nil {
		s.logger.WarnContext(ctx, "set tick failed", slog.String("error", err.Error()))
	}
	s.publish(ctx, ChannelTicks, busEnvelope{Event: "tick", Data: tick})
}

// HandleTrade fans out one executed trade for the trade tape.
func (s *PriceService) HandleTrade(ctx context.Context, trade domain.Trade) {
	s.publish(ctx, ChannelTrades, busEnvelope{Event: "trade", Data: trade})
}

// HandleFlash fans out a flash direction change.
func (s *PriceService) HandleFlash(ctx context.Context, dir domain.FlashDirection) {
	s.publish(ctx, ChannelFlash, busEnvelope{Event: "flash", Data: map[string]string{"direction": string(dir)}})
}

// HandleState fans out a connection state transition.
func (s *PriceService) HandleState(ctx context.Context, state domain.ConnectionState) {
	s.publish(ctx, ChannelState, busEnvelope{Event: "state", Data: map[string]string{"state": state.String()}})
}

// GetSnapshot returns the current price snapshot. The result is memoized for
// one minute. When neither the tick cache nor the REST fallback yields data,
// a zero snapshot is returned so the dashboard renders placeholders instead
// of an error page.
func (s *PriceService) GetSnapshot(ctx context.Context) (domain.Snapshot, error) {
	snap, _, err := s.snapCache.Get(ctx, "price", snapshotTTL, s.fetchSnapshot)
	if err != nil {
		s.logger.WarnContext(ctx, "price snapshot unavailable, serving zero",
			slog.String("error", err.Error()))
		return domain.Snapshot{}, nil
	}
	return snap, nil
}

func (s *PriceService) fetchSnapshot(ctx context.Context) (domain.Snapshot, error) {
	tick, err := s.tickCache.GetTick(ctx)
	if err == nil {
		return domain.Snapshot{Price: tick.Price, Change24h: tick.Change24h}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Snapshot{}, fmt.Errorf("price_service: get tick: %w", err)
	}

	if s.fallback == nil {
		return domain.Snapshot{}, fmt.Errorf("price_service: %w", domain.ErrEmptyCache)
	}
	tick, err = s.fallback(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("price_service: fallback fetch: %w", err)
	}
	return domain.Snapshot{Price: tick.Price, Change24h: tick.Change24h}, nil
}

func (s *PriceService) publish(ctx context.Context, channel string, env busEnvelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()))
	}
}
