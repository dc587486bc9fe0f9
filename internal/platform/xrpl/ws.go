// Package xrpl is the WebSocket client for the XRP Ledger transactions
// stream. It subscribes to validated transactions and dispatches them to
// registered handlers.
package xrpl

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// TransactionHandler is called for every validated transaction received on
// the stream.
type TransactionHandler func(tx domain.LedgerTransaction)

// WSClient is a WebSocket client for an XRPL node's public streams. It
// manages the connection lifecycle, the transactions subscription, and
// dispatches messages to registered handlers.
type WSClient struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.RWMutex
	closed bool

	txHandlers []TransactionHandler
	handlerMu  sync.RWMutex

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewWSClient creates a client for the given node endpoint, e.g.
// "wss://s1.ripple.com".
func NewWSClient(wsURL string) *WSClient {
	return &WSClient{
		wsURL: wsURL,
		done:  make(chan struct{}),
	}
}

// Connect establishes the connection and subscribes to the transactions
// stream. The subscription is restored automatically after a reconnect.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("xrpl/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("xrpl/ws: connect: %w", err)
	}

	w.conn = conn

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.readLoop(conn)
	go w.pingLoop(conn)

	if err := w.subscribe(); err != nil {
		return fmt.Errorf("xrpl/ws: subscribe: %w", err)
	}

	return nil
}

// Close shuts down the connection and stops the read loop.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}

	return nil
}

// OnTransaction registers a handler that is called for every validated
// transaction on the stream.
func (w *WSClient) OnTransaction(handler TransactionHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.txHandlers = append(w.txHandlers, handler)
}

// subscribe sends the transactions stream subscription. Caller must hold w.mu.
func (w *WSClient) subscribe() error {
	cmd := subscribeCommand{
		ID:      1,
		Command: "subscribe",
		Streams: []string{"transactions"},
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop continuously reads stream messages from the connection it was
// started with and dispatches them. It runs in its own goroutine. On
// disconnect it closes only its own connection, then reconnects; a later
// connection is owned by the readLoop spawned for it.
func (w *WSClient) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}

			w.reconnect()
			return // the new connection gets its own readLoop via Connect
		}

		w.handleMessage(message)
	}
}

// pingLoop sends periodic ping messages on the connection it was started
// with. It stops when that connection's writes fail.
func (w *WSClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage parses a raw stream message and dispatches it. Subscription
// acks, non-transaction messages, and unparseable payloads are dropped.
func (w *WSClient) handleMessage(raw []byte) {
	var env txEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return // Silently drop unparseable messages.
	}

	tx, ok := env.toDomainTransaction()
	if !ok {
		return
	}

	w.handlerMu.RLock()
	handlers := w.txHandlers
	w.handlerMu.RUnlock()

	for _, h := range handlers {
		h(tx)
	}
}

// reconnect re-establishes the connection with exponential backoff. It
// blocks until successful or the client is closed.
func (w *WSClient) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
