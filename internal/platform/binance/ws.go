// Package binance provides the Binance market data clients: a WebSocket
// transport for the live ticker stream and a REST client used for the
// first-paint snapshot.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
	"github.com/ledgerpulse/ledgerpulse/internal/feed"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// WSTransport dials one Binance market stream for one symbol. It implements
// feed.Transport; reconnection is handled by the consuming stream client.
type WSTransport struct {
	url    string
	dialer websocket.Dialer
}

// NewWSTransport creates a transport for the given stream endpoint and
// symbol, e.g. ("wss://stream.binance.com:9443", "XRPUSDT").
func NewWSTransport(baseURL, symbol string) *WSTransport {
	return newTransport(baseURL, symbol, "ticker")
}

// NewTradeTransport creates a transport for the raw trade stream of one
// symbol, feeding the trade tape.
func NewTradeTransport(baseURL, symbol string) *WSTransport {
	return newTransport(baseURL, symbol, "trade")
}

func newTransport(baseURL, symbol, stream string) *WSTransport {
	return &WSTransport{
		url: fmt.Sprintf("%s/ws/%s@%s", baseURL, strings.ToLower(symbol), stream),
		dialer: websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
	}
}

// Dial establishes one stream connection and starts its keep-alive loop.
func (t *WSTransport) Dial(ctx context.Context) (feed.Conn, error) {
	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, fmt.Errorf("binance/ws: connect: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c := &wsConn{conn: conn, done: make(chan struct{})}
	go c.pingLoop()
	return c, nil
}

// wsConn wraps a gorilla connection as a feed.Conn.
type wsConn struct {
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("binance/ws: read: %w", err)
	}
	return data, nil
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// DecodeTicker parses one stream frame into a PriceTick. Frames that are not
// 24hr ticker events, or that fail to parse, report false.
func DecodeTicker(raw []byte) (domain.PriceTick, bool) {
	var msg tickerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.PriceTick{}, false
	}
	if msg.EventType != "24hrTicker" {
		return domain.PriceTick{}, false
	}
	return msg.toDomainTick()
}

// DecodeTrade parses one trade stream frame. Non-trade frames report false.
func DecodeTrade(raw []byte) (domain.Trade, bool) {
	var msg tradeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.Trade{}, false
	}
	if msg.EventType != "trade" {
		return domain.Trade{}, false
	}
	return msg.toDomainTrade()
}
