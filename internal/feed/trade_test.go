package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

func testTradeDecode(raw []byte) (domain.Trade, bool) {
	var m struct {
		Price    *float64 `json:"price"`
		Quantity float64  `json:"quantity"`
	}
	if err := json.Unmarshal(raw, &m); err != nil || m.Price == nil {
		return domain.Trade{}, false
	}
	return domain.Trade{Price: *m.Price, Quantity: m.Quantity, Timestamp: time.Now()}, true
}

type tradeRecorder struct {
	mu     sync.Mutex
	trades []domain.Trade
}

func (r *tradeRecorder) onTrade(t domain.Trade) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, t)
}

func (r *tradeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trades)
}

func newTestTradeStream(transport Transport, rec *tradeRecorder) *TradeStream {
	s := NewTradeStream(TradeStreamOptions{
		Transport: transport,
		Decode:    testTradeDecode,
		OnTrade:   rec.onTrade,
	})
	s.backoff = func(int) time.Duration { return time.Millisecond }
	return s
}

func TestTradeStreamEmitsTrades(t *testing.T) {
	transport := newFakeTransport()
	conn := newFakeConn()
	transport.dials <- dialResult{conn: conn}

	rec := &tradeRecorder{}
	stream := newTestTradeStream(transport, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stream.Run(ctx)
	defer stream.Close()

	conn.push([]byte(`{"price": 0.61, "quantity": 120}`))
	conn.push([]byte(`not json`))
	conn.push([]byte(`{"price": 0.62, "quantity": 30}`))

	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 0.61, rec.trades[0].Price)
	assert.Equal(t, 120.0, rec.trades[0].Quantity)
	assert.Equal(t, 0.62, rec.trades[1].Price)
}

func TestTradeStreamReconnectsAfterReadError(t *testing.T) {
	transport := newFakeTransport()
	first := newFakeConn()
	second := newFakeConn()
	transport.dials <- dialResult{conn: first}
	transport.dials <- dialResult{conn: second}

	rec := &tradeRecorder{}
	stream := newTestTradeStream(transport, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stream.Run(ctx)
	defer stream.Close()

	first.push([]byte(`{"price": 0.60, "quantity": 5}`))
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	first.fail(errors.New("peer reset"))

	second.push([]byte(`{"price": 0.59, "quantity": 7}`))
	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestTradeStreamSuppressesEmissionsAfterClose(t *testing.T) {
	transport := newFakeTransport()
	conn := newFakeConn()
	transport.dials <- dialResult{conn: conn}

	rec := &tradeRecorder{}
	stream := newTestTradeStream(transport, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		stream.Run(ctx)
		close(done)
	}()

	conn.push([]byte(`{"price": 0.58, "quantity": 9}`))
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	stream.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}

	assert.Equal(t, 1, rec.count())
}
