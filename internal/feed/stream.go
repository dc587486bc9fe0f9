// Package feed implements the resilient live price stream: a WebSocket
// client with reconnect backoff, a REST bootstrap for the first paint, and
// flash signals that mark the direction of the latest price move.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

// flashWindow is how long an up/down flash stays lit before it clears.
const flashWindow = 600 * time.Millisecond

// Conn is a single established stream connection.
type Conn interface {
	// ReadMessage blocks until the next raw message or a connection error.
	ReadMessage() ([]byte, error)
	Close() error
}

// Transport dials stream connections. Implementations live under
// internal/platform.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}

// DecodeFunc parses a raw stream message into a tick. It reports false for
// messages that are not ticks or fail to parse; those are dropped without
// disturbing the connection.
type DecodeFunc func(raw []byte) (domain.PriceTick, bool)

// BootstrapFunc fetches an initial tick over REST while the first connection
// is still being established.
type BootstrapFunc func(ctx context.Context) (domain.PriceTick, error)

// TickHandler is called for every accepted tick (StreamClient).
type TickHandler func(tick domain.PriceTick)

// FlashHandler is called when the price-move flash changes (StreamClient).
type FlashHandler func(dir domain.FlashDirection)

// StateHandler is called on every connection state transition (StreamClient).
type StateHandler func(state domain.ConnectionState)

// StreamClient maintains a live tick stream over a Transport. It reconnects
// with exponential backoff, resets the backoff after a successful connect,
// and fires a directional flash on each price change that clears itself
// after a short window. All emissions stop once Close is called.
type StreamClient struct {
	transport Transport
	decode    DecodeFunc
	bootstrap BootstrapFunc
	logger    *slog.Logger

	onTick  TickHandler
	onFlash FlashHandler
	onState StateHandler

	// backoff and afterFunc are swapped in tests.
	backoff   func(attempt int) time.Duration
	afterFunc func(d time.Duration, f func()) *time.Timer

	mu         sync.Mutex
	stopped    bool
	conn       Conn
	state      domain.ConnectionState
	lastPrice  float64
	hasTick    bool
	flashTimer *time.Timer

	closeOnce sync.Once
	done      chan struct{}
}

// StreamOptions wires a StreamClient.
type StreamOptions struct {
	Transport Transport
	Decode    DecodeFunc
	Bootstrap BootstrapFunc // optional
	OnTick    TickHandler
	OnFlash   FlashHandler
	OnState   StateHandler
	Logger    *slog.Logger
}

// NewStreamClient creates a stream client in the Closed state. Run starts it.
func NewStreamClient(opts StreamOptions) *StreamClient {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamClient{
		transport: opts.Transport,
		decode:    opts.Decode,
		bootstrap: opts.Bootstrap,
		onTick:    opts.OnTick,
		onFlash:   opts.OnFlash,
		onState:   opts.OnState,
		logger:    logger.With(slog.String("component", "stream_client")),
		backoff:   Backoff,
		afterFunc: time.AfterFunc,
		state:     domain.StateClosed,
		done:      make(chan struct{}),
	}
}

// Run connects and reads ticks until ctx is cancelled or Close is called.
// Connection failures schedule a reconnect with exponential backoff; a
// successful connect resets the attempt counter.
func (c *StreamClient) Run(ctx context.Context) error {
	if c.bootstrap != nil {
		go c.runBootstrap(ctx)
	}

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			c.setState(domain.StateClosed)
			return ctx.Err()
		case <-c.done:
			return nil
		default:
		}

		c.setState(domain.StateConnecting)
		conn, err := c.transport.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.setState(domain.StateClosed)
				return ctx.Err()
			}
			delay := c.backoff(attempt)
			attempt++
			c.logger.Warn("stream dial failed, reconnecting",
				slog.String("error", err.Error()),
				slog.Duration("delay", delay),
				slog.Int("attempt", attempt))
			if err := c.scheduleReconnect(ctx, delay); err != nil {
				return err
			}
			continue
		}

		c.mu.Lock()
		if c.stopped {
			c.mu.Unlock()
			conn.Close()
			return nil
		}
		c.conn = conn
		c.mu.Unlock()

		c.setState(domain.StateOpen)
		attempt = 0

		err = c.readLoop(conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()

		select {
		case <-c.done:
			return nil
		case <-ctx.Done():
			c.setState(domain.StateClosed)
			return ctx.Err()
		default:
		}

		delay := c.backoff(attempt)
		attempt++
		c.logger.Warn("stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
			slog.Int("attempt", attempt))
		if err := c.scheduleReconnect(ctx, delay); err != nil {
			return err
		}
	}
}

// Close stops the client. Any tick, flash, or state emission after Close
// returns is suppressed.
func (c *StreamClient) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		c.state = domain.StateClosed
		if c.flashTimer != nil {
			c.flashTimer.Stop()
			c.flashTimer = nil
		}
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		handler := c.onState
		c.mu.Unlock()

		close(c.done)
		if handler != nil {
			handler(domain.StateClosed)
		}
	})
}

// State returns the current connection state.
func (c *StreamClient) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *StreamClient) scheduleReconnect(ctx context.Context, delay time.Duration) error {
	c.setState(domain.StateReconnectScheduled)
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		c.setState(domain.StateClosed)
		return ctx.Err()
	case <-c.done:
		return nil
	case <-t.C:
		return nil
	}
}

func (c *StreamClient) readLoop(conn Conn) error {
	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		tick, ok := c.decode(raw)
		if !ok {
			continue // not a tick, or malformed; drop without logging
		}
		c.applyTick(tick, false)
	}
}

// runBootstrap fetches one snapshot over REST so the first paint does not
// wait on the socket handshake. The result is discarded when a live tick
// beat it.
func (c *StreamClient) runBootstrap(ctx context.Context) {
	tick, err := c.bootstrap(ctx)
	if err != nil {
		c.logger.Warn("bootstrap fetch failed", slog.String("error", err.Error()))
		return
	}
	c.applyTick(tick, true)
}

// applyTick records the tick and emits it plus a flash when the price moved.
// fromBootstrap ticks are only applied while no live tick has arrived.
func (c *StreamClient) applyTick(tick domain.PriceTick, fromBootstrap bool) {
	c.mu.Lock()
	if c.stopped || (fromBootstrap && c.hasTick) {
		c.mu.Unlock()
		return
	}
	prev := c.lastPrice
	hadPrev := c.hasTick
	c.lastPrice = tick.Price
	c.hasTick = true
	onTick := c.onTick
	c.mu.Unlock()

	if onTick != nil {
		onTick(tick)
	}
	if hadPrev && tick.Price != prev {
		dir := domain.FlashUp
		if tick.Price < prev {
			dir = domain.FlashDown
		}
		c.fireFlash(dir)
	}
}

// fireFlash emits the flash and arms a timer that clears it. A new flash
// inside the window replaces the pending clear.
func (c *StreamClient) fireFlash(dir domain.FlashDirection) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	if c.flashTimer != nil {
		c.flashTimer.Stop()
	}
	c.flashTimer = c.afterFunc(flashWindow, c.clearFlash)
	onFlash := c.onFlash
	c.mu.Unlock()

	if onFlash != nil {
		onFlash(dir)
	}
}

func (c *StreamClient) clearFlash() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.flashTimer = nil
	onFlash := c.onFlash
	c.mu.Unlock()

	if onFlash != nil {
		onFlash(domain.FlashNone)
	}
}

func (c *StreamClient) setState(s domain.ConnectionState) {
	c.mu.Lock()
	if c.stopped || c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	onState := c.onState
	c.mu.Unlock()

	if onState != nil {
		onState(s)
	}
}
