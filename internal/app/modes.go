package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/ledgerpulse/ledgerpulse/internal/blob/s3"
	"github.com/ledgerpulse/ledgerpulse/internal/domain"
	"github.com/ledgerpulse/ledgerpulse/internal/feed"
	"github.com/ledgerpulse/ledgerpulse/internal/ledger"
	"github.com/ledgerpulse/ledgerpulse/internal/platform/binance"
	"github.com/ledgerpulse/ledgerpulse/internal/platform/coingecko"
	"github.com/ledgerpulse/ledgerpulse/internal/platform/xrpl"
	"github.com/ledgerpulse/ledgerpulse/internal/server"
	"github.com/ledgerpulse/ledgerpulse/internal/server/handler"
	"github.com/ledgerpulse/ledgerpulse/internal/server/ws"
	"github.com/ledgerpulse/ledgerpulse/internal/service"
)

// ingestLockTTL is the writer lock TTL; the lock manager refreshes it while
// the process is alive.
const ingestLockTTL = 30 * time.Second

// services bundles the service layer shared by the ingest and server sides.
type services struct {
	price  *service.PriceService
	market *service.MarketService
	ledger *service.LedgerService

	// streamState reports the price stream FSM; set when ingest runs in
	// this process.
	streamState func() domain.ConnectionState
}

// buildServices constructs the service layer from wired dependencies.
func (a *App) buildServices(deps *Dependencies) *services {
	binanceREST := binance.NewRESTClient(a.cfg.Binance.RestHost)
	symbol := a.cfg.Binance.Symbol
	fallback := func(ctx context.Context) (domain.PriceTick, error) {
		return binanceREST.FetchTicker24h(ctx, symbol)
	}

	labels := ledger.NewLabeler(ledger.DefaultKnownAddresses)
	processor := ledger.NewProcessor(labels, a.logger)

	var archiver service.Archiver
	if deps.BlobWriter != nil && deps.PaymentStore != nil {
		archiver = s3blob.NewArchiver(deps.BlobWriter, deps.PaymentStore, a.logger)
	}

	return &services{
		price: service.NewPriceService(deps.TickCache, deps.SignalBus, fallback, a.logger),
		market: service.NewMarketService(
			coingecko.NewClient(a.cfg.CoinGecko.BaseURL, a.cfg.CoinGecko.CoinID).
				WithLimiter(deps.RateLimiter),
			a.logger,
		),
		ledger: service.NewLedgerService(service.LedgerServiceOptions{
			Processor: processor,
			Labels:    labels,
			Bus:       deps.SignalBus,
			Store:     deps.PaymentStore,
			AddrStore: deps.KnownAddressStore,
			Archiver:  archiver,
			Logger:    a.logger,
		}),
	}
}

// IngestMode runs the price stream and the ledger stream without the HTTP
// surface.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting ingest mode")

	svcs := a.buildServices(deps)

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startIngest(ctx, g, deps, svcs); err != nil {
		return err
	}
	return g.Wait()
}

// ServerMode serves the HTTP and WebSocket API from the shared caches and
// stores, without ingesting.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	svcs := a.buildServices(deps)

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps, svcs)
	return g.Wait()
}

// FullMode runs ingest and the API server in one process, sharing the
// service layer so the replay ring is fed live.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	svcs := a.buildServices(deps)

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startIngest(ctx, g, deps, svcs); err != nil {
		return err
	}
	a.startServer(ctx, g, deps, svcs)
	return g.Wait()
}

// startIngest acquires the writer lock and launches the price stream, the
// ledger stream, and the ledger maintenance loops on the errgroup.
func (a *App) startIngest(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) error {
	unlock, err := deps.LockManager.Acquire(ctx, "ingest:writer", ingestLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return fmt.Errorf("app: another ingest instance holds the writer lock: %w", err)
		}
		return fmt.Errorf("app: acquire writer lock: %w", err)
	}
	g.Go(func() error {
		<-ctx.Done()
		unlock()
		return ctx.Err()
	})

	// Price stream: Binance ticker WebSocket with a one-shot REST bootstrap.
	binanceREST := binance.NewRESTClient(a.cfg.Binance.RestHost)
	symbol := a.cfg.Binance.Symbol
	stream := feed.NewStreamClient(feed.StreamOptions{
		Transport: binance.NewWSTransport(a.cfg.Binance.WsHost, symbol),
		Decode:    binance.DecodeTicker,
		Bootstrap: func(ctx context.Context) (domain.PriceTick, error) {
			return binanceREST.FetchTicker24h(ctx, symbol)
		},
		OnTick: func(tick domain.PriceTick) {
			svcs.price.HandleTick(ctx, tick)
		},
		OnFlash: func(dir domain.FlashDirection) {
			svcs.price.HandleFlash(ctx, dir)
		},
		OnState: func(state domain.ConnectionState) {
			svcs.price.HandleState(ctx, state)
		},
		Logger: a.logger,
	})
	svcs.streamState = stream.State
	g.Go(func() error {
		defer stream.Close()
		err := stream.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return ctx.Err()
		}
		return err
	})

	// Trade stream: raw executed trades feeding the trade tape.
	trades := feed.NewTradeStream(feed.TradeStreamOptions{
		Transport: binance.NewTradeTransport(a.cfg.Binance.WsHost, symbol),
		Decode:    binance.DecodeTrade,
		OnTrade: func(trade domain.Trade) {
			svcs.price.HandleTrade(ctx, trade)
		},
		Logger: a.logger,
	})
	g.Go(func() error {
		defer trades.Close()
		err := trades.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return ctx.Err()
		}
		return err
	})

	// Ledger stream: XRPL validated transactions.
	xrplClient := xrpl.NewWSClient(a.cfg.XRPL.NodeURL)
	xrplClient.OnTransaction(func(tx domain.LedgerTransaction) {
		svcs.ledger.HandleTransaction(ctx, tx)
	})
	if err := xrplClient.Connect(ctx); err != nil {
		return fmt.Errorf("app: xrpl connect: %w", err)
	}
	g.Go(func() error {
		<-ctx.Done()
		_ = xrplClient.Close()
		return ctx.Err()
	})

	// Ledger maintenance loops.
	g.Go(func() error {
		return svcs.ledger.RunFlushLoop(ctx, a.cfg.Ingest.FlushInterval.Duration)
	})
	g.Go(func() error {
		return svcs.ledger.RunLabelRefresh(ctx, a.cfg.Ingest.LabelRefreshInterval.Duration)
	})
	g.Go(func() error {
		retention := time.Duration(a.cfg.Ingest.RetentionDays) * 24 * time.Hour
		return svcs.ledger.RunArchiveLoop(ctx, a.cfg.Ingest.ArchiveInterval.Duration, retention)
	})

	return nil
}

// startServer launches the WebSocket hub and the HTTP server on the errgroup.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled by config")
		return
	}

	// Rebuild the replay ring so the first clients see recent payments.
	if err := svcs.ledger.WarmUp(ctx); err != nil {
		a.logger.WarnContext(ctx, "replay ring warm-up failed", slog.String("error", err.Error()))
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srvCfg := server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}
	if a.cfg.Server.RateLimit > 0 {
		srvCfg.RateLimiter = deps.RateLimiter
		srvCfg.RateLimit = a.cfg.Server.RateLimit
		srvCfg.RateWindow = a.cfg.Server.RateWindow.Duration
	}

	health := handler.NewHealthHandler(a.logger)
	if svcs.streamState != nil {
		health = health.WithStreamState(svcs.streamState)
	}

	srv := server.NewServer(srvCfg, server.Handlers{
		Health: health,
		Price:  handler.NewPriceHandler(svcs.price, a.logger),
		Market: handler.NewMarketHandler(svcs.market, a.logger),
		Ledger: handler.NewLedgerHandler(svcs.ledger, deps.BlobReader, a.logger),
	}, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
