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

type readResult struct {
	data []byte
	err  error
}

type fakeConn struct {
	reads  chan readResult
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:  make(chan readResult, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) push(data []byte) { c.reads <- readResult{data: data} }
func (c *fakeConn) fail(err error)  { c.reads <- readResult{err: err} }

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case r := <-c.reads:
		return r.data, r.err
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type dialResult struct {
	conn Conn
	err  error
}

type fakeTransport struct {
	dials chan dialResult
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{dials: make(chan dialResult, 8)}
}

func (t *fakeTransport) Dial(ctx context.Context) (Conn, error) {
	select {
	case r := <-t.dials:
		return r.conn, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func testDecode(raw []byte) (domain.PriceTick, bool) {
	var m struct {
		Price *float64 `json:"price"`
	}
	if err := json.Unmarshal(raw, &m); err != nil || m.Price == nil {
		return domain.PriceTick{}, false
	}
	return domain.PriceTick{Price: *m.Price, ObservedAt: time.Now()}, true
}

type recorder struct {
	mu      sync.Mutex
	ticks   []domain.PriceTick
	flashes []domain.FlashDirection
	states  []domain.ConnectionState
}

func (r *recorder) onTick(t domain.PriceTick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, t)
}

func (r *recorder) onFlash(d domain.FlashDirection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flashes = append(r.flashes, d)
}

func (r *recorder) onState(s domain.ConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) tickCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ticks)
}

func (r *recorder) snapshotFlashes() []domain.FlashDirection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.FlashDirection(nil), r.flashes...)
}

func (r *recorder) snapshotStates() []domain.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ConnectionState(nil), r.states...)
}

func newTestClient(transport Transport, rec *recorder) *StreamClient {
	c := NewStreamClient(StreamOptions{
		Transport: transport,
		Decode:    testDecode,
		OnTick:    rec.onTick,
		OnFlash:   rec.onFlash,
		OnState:   rec.onState,
	})
	c.backoff = func(int) time.Duration { return time.Millisecond }
	return c
}

func TestStreamEmitsTicksAndDirectionalFlashes(t *testing.T) {
	transport := newFakeTransport()
	conn := newFakeConn()
	transport.dials <- dialResult{conn: conn}

	rec := &recorder{}
	client := newTestClient(transport, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	defer client.Close()

	conn.push([]byte(`{"price": 1.00}`))
	conn.push([]byte(`{"price": 1.02}`))
	conn.push([]byte(`{"price": 1.01}`))

	require.Eventually(t, func() bool { return rec.tickCount() == 3 }, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	last := rec.ticks[len(rec.ticks)-1].Price
	rec.mu.Unlock()
	assert.Equal(t, 1.01, last)

	flashes := rec.snapshotFlashes()
	require.GreaterOrEqual(t, len(flashes), 2)
	assert.Equal(t, domain.FlashUp, flashes[0])
	assert.Equal(t, domain.FlashDown, flashes[1])
}

func TestStreamFlashClearsAfterWindow(t *testing.T) {
	transport := newFakeTransport()
	conn := newFakeConn()
	transport.dials <- dialResult{conn: conn}

	rec := &recorder{}
	client := newTestClient(transport, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	defer client.Close()

	conn.push([]byte(`{"price": 2.00}`))
	conn.push([]byte(`{"price": 2.10}`))

	require.Eventually(t, func() bool {
		flashes := rec.snapshotFlashes()
		return len(flashes) == 2 && flashes[1] == domain.FlashNone
	}, 2*time.Second, 10*time.Millisecond)

	flashes := rec.snapshotFlashes()
	assert.Equal(t, []domain.FlashDirection{domain.FlashUp, domain.FlashNone}, flashes)
}

func TestStreamDropsMalformedMessages(t *testing.T) {
	transport := newFakeTransport()
	conn := newFakeConn()
	transport.dials <- dialResult{conn: conn}

	rec := &recorder{}
	client := newTestClient(transport, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	defer client.Close()

	conn.push([]byte(`not json`))
	conn.push([]byte(`{"volume": 12}`))
	conn.push([]byte(`{"price": 3.33}`))

	require.Eventually(t, func() bool { return rec.tickCount() == 1 }, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	price := rec.ticks[0].Price
	rec.mu.Unlock()
	assert.Equal(t, 3.33, price)
	assert.Empty(t, rec.snapshotFlashes(), "a single tick must not flash")
}

func TestStreamReconnectsAfterDialFailure(t *testing.T) {
	transport := newFakeTransport()
	conn := newFakeConn()
	transport.dials <- dialResult{err: errors.New("refused")}
	transport.dials <- dialResult{conn: conn}

	rec := &recorder{}
	client := newTestClient(transport, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	defer client.Close()

	require.Eventually(t, func() bool {
		return client.State() == domain.StateOpen
	}, time.Second, 5*time.Millisecond)

	states := rec.snapshotStates()
	assert.Equal(t, []domain.ConnectionState{
		domain.StateConnecting,
		domain.StateReconnectScheduled,
		domain.StateConnecting,
		domain.StateOpen,
	}, states)
}

func TestStreamReconnectsAfterReadError(t *testing.T) {
	transport := newFakeTransport()
	first := newFakeConn()
	second := newFakeConn()
	transport.dials <- dialResult{conn: first}
	transport.dials <- dialResult{conn: second}

	rec := &recorder{}
	client := newTestClient(transport, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	defer client.Close()

	first.push([]byte(`{"price": 5.00}`))
	require.Eventually(t, func() bool { return rec.tickCount() == 1 }, time.Second, 5*time.Millisecond)

	first.fail(errors.New("peer reset"))

	second.push([]byte(`{"price": 5.50}`))
	require.Eventually(t, func() bool { return rec.tickCount() == 2 }, time.Second, 5*time.Millisecond)

	flashes := rec.snapshotFlashes()
	require.NotEmpty(t, flashes)
	assert.Equal(t, domain.FlashUp, flashes[0], "flash direction carries across reconnects")
}

func TestStreamSuppressesEmissionsAfterClose(t *testing.T) {
	transport := newFakeTransport()
	conn := newFakeConn()
	transport.dials <- dialResult{conn: conn}

	rec := &recorder{}
	client := newTestClient(transport, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		client.Run(ctx)
		close(done)
	}()

	conn.push([]byte(`{"price": 7.00}`))
	require.Eventually(t, func() bool { return rec.tickCount() == 1 }, time.Second, 5*time.Millisecond)

	client.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}

	client.applyTick(domain.PriceTick{Price: 9.99}, false)
	client.fireFlash(domain.FlashUp)

	assert.Equal(t, 1, rec.tickCount())
	assert.Empty(t, rec.snapshotFlashes())
	assert.Equal(t, domain.StateClosed, client.State())
}

func TestStreamBootstrapFillsFirstTick(t *testing.T) {
	transport := newFakeTransport()
	conn := newFakeConn()
	transport.dials <- dialResult{conn: conn}

	rec := &recorder{}
	client := NewStreamClient(StreamOptions{
		Transport: transport,
		Decode:    testDecode,
		Bootstrap: func(ctx context.Context) (domain.PriceTick, error) {
			return domain.PriceTick{Price: 0.95}, nil
		},
		OnTick: rec.onTick,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	defer client.Close()

	require.Eventually(t, func() bool { return rec.tickCount() == 1 }, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	price := rec.ticks[0].Price
	rec.mu.Unlock()
	assert.Equal(t, 0.95, price)
}

func TestStreamBootstrapDiscardedAfterLiveTick(t *testing.T) {
	transport := newFakeTransport()
	conn := newFakeConn()
	transport.dials <- dialResult{conn: conn}

	release := make(chan struct{})
	rec := &recorder{}
	client := NewStreamClient(StreamOptions{
		Transport: transport,
		Decode:    testDecode,
		Bootstrap: func(ctx context.Context) (domain.PriceTick, error) {
			<-release
			return domain.PriceTick{Price: 0.90}, nil
		},
		OnTick: rec.onTick,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	defer client.Close()

	conn.push([]byte(`{"price": 1.00}`))
	require.Eventually(t, func() bool { return rec.tickCount() == 1 }, time.Second, 5*time.Millisecond)

	close(release)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, rec.tickCount(), "late bootstrap result must not overwrite live data")
}
