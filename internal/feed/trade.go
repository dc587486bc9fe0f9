package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

// TradeDecodeFunc parses a raw stream message into a trade. It reports false
// for messages that are not trades or fail to parse.
type TradeDecodeFunc func(raw []byte) (domain.Trade, bool)

// TradeHandler is called for every accepted trade.
type TradeHandler func(trade domain.Trade)

// TradeStream consumes the live trade feed over a Transport. It is the trade
// tape's counterpart to StreamClient: the same reconnect backoff, without the
// bootstrap, flash, or state machinery that only the price ticker needs.
type TradeStream struct {
	transport Transport
	decode    TradeDecodeFunc
	onTrade   TradeHandler
	logger    *slog.Logger

	backoff func(attempt int) time.Duration

	mu      sync.Mutex
	stopped bool
	conn    Conn

	closeOnce sync.Once
	done      chan struct{}
}

// TradeStreamOptions wires a TradeStream.
type TradeStreamOptions struct {
	Transport Transport
	Decode    TradeDecodeFunc
	OnTrade   TradeHandler
	Logger    *slog.Logger
}

// NewTradeStream creates a trade stream. Run starts it.
func NewTradeStream(opts TradeStreamOptions) *TradeStream {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TradeStream{
		transport: opts.Transport,
		decode:    opts.Decode,
		onTrade:   opts.OnTrade,
		logger:    logger.With(slog.String("component", "trade_stream")),
		backoff:   Backoff,
		done:      make(chan struct{}),
	}
}

// Run connects and reads trades until ctx is cancelled or Close is called.
// Failures schedule a reconnect with exponential backoff; a successful
// connect resets the attempt counter.
func (s *TradeStream) Run(ctx context.Context) error {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		default:
		}

		conn, err := s.transport.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			delay := s.backoff(attempt)
			attempt++
			s.logger.Warn("trade dial failed, reconnecting",
				slog.String("error", err.Error()),
				slog.Duration("delay", delay),
				slog.Int("attempt", attempt))
			if err := s.wait(ctx, delay); err != nil {
				return err
			}
			continue
		}

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		s.conn = conn
		s.mu.Unlock()

		attempt = 0
		err = s.readLoop(conn)

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()

		select {
		case <-s.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		delay := s.backoff(attempt)
		attempt++
		s.logger.Warn("trade stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
			slog.Int("attempt", attempt))
		if err := s.wait(ctx, delay); err != nil {
			return err
		}
	}
}

// Close stops the stream. Trade emissions after Close returns are suppressed.
func (s *TradeStream) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		if s.conn != nil {
			s.conn.Close()
			s.conn = nil
		}
		s.mu.Unlock()

		close(s.done)
	})
}

func (s *TradeStream) wait(ctx context.Context, delay time.Duration) error {
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return nil
	case <-t.C:
		return nil
	}
}

func (s *TradeStream) readLoop(conn Conn) error {
	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		trade, ok := s.decode(raw)
		if !ok {
			continue
		}

		s.mu.Lock()
		stopped := s.stopped
		onTrade := s.onTrade
		s.mu.Unlock()
		if stopped {
			return nil
		}
		if onTrade != nil {
			onTrade(trade)
		}
	}
}
