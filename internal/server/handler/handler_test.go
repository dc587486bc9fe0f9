package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerpulse/ledgerpulse/internal/cache/memory"
	"github.com/ledgerpulse/ledgerpulse/internal/domain"
	"github.com/ledgerpulse/ledgerpulse/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- fakes ---

type fakeSnapshotProvider struct {
	snap domain.Snapshot
	err  error
}

func (f *fakeSnapshotProvider) GetSnapshot(ctx context.Context) (domain.Snapshot, error) {
	return f.snap, f.err
}

type fakeMarketProvider struct {
	extended  domain.ExtendedSnapshot
	market    domain.MarketData
	candles   []domain.Candle
	freshness memory.Freshness
	err       error
	gotDays   int
}

func (f *fakeMarketProvider) Extended(ctx context.Context) (domain.ExtendedSnapshot, memory.Freshness, error) {
	return f.extended, f.freshness, f.err
}

func (f *fakeMarketProvider) Market(ctx context.Context) (domain.MarketData, memory.Freshness, error) {
	return f.market, f.freshness, f.err
}

func (f *fakeMarketProvider) OHLC(ctx context.Context, days int) ([]domain.Candle, memory.Freshness, error) {
	f.gotDays = days
	return f.candles, f.freshness, f.err
}

type fakePaymentProvider struct {
	recent  []domain.ProcessedEvent
	history []domain.ProcessedEvent
	err     error
	gotLim  int
}

func (f *fakePaymentProvider) Recent(limit int) []domain.ProcessedEvent {
	f.gotLim = limit
	return f.recent
}

func (f *fakePaymentProvider) History(ctx context.Context, limit int) ([]domain.ProcessedEvent, error) {
	f.gotLim = limit
	return f.history, f.err
}

type fakeBlobReader struct {
	infos []domain.BlobInfo
	body  string
	err   error
}

func (f *fakeBlobReader) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func (f *fakeBlobReader) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	return f.infos, f.err
}

// --- tests ---

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(testLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestGetSnapshot(t *testing.T) {
	h := NewPriceHandler(&fakeSnapshotProvider{
		snap: domain.Snapshot{Price: 2.41, Change24h: -1.2},
	}, testLogger())

	rec := httptest.NewRecorder()
	h.GetSnapshot(rec, httptest.NewRequest(http.MethodGet, "/api/price", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, 2.41, snap.Price)
	require.Equal(t, -1.2, snap.Change24h)
}

func TestGetSnapshotError(t *testing.T) {
	h := NewPriceHandler(&fakeSnapshotProvider{err: errors.New("redis down")}, testLogger())

	rec := httptest.NewRecorder()
	h.GetSnapshot(rec, httptest.NewRequest(http.MethodGet, "/api/price", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetExtendedStaleHeader(t *testing.T) {
	h := NewMarketHandler(&fakeMarketProvider{
		extended:  domain.ExtendedSnapshot{Price: 2.4},
		freshness: memory.Stale,
	}, testLogger())

	rec := httptest.NewRecorder()
	h.GetExtended(rec, httptest.NewRequest(http.MethodGet, "/api/price/extended", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "stale", rec.Header().Get("X-Data-Freshness"))
}

func TestGetExtendedUpstreamFailure(t *testing.T) {
	h := NewMarketHandler(&fakeMarketProvider{err: errors.New("upstream 500")}, testLogger())

	rec := httptest.NewRecorder()
	h.GetExtended(rec, httptest.NewRequest(http.MethodGet, "/api/price/extended", nil))

	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetOHLCDefaultsAndDays(t *testing.T) {
	fake := &fakeMarketProvider{candles: []domain.Candle{{Timestamp: 1, Close: 2.5}}}
	h := NewMarketHandler(fake, testLogger())

	rec := httptest.NewRecorder()
	h.GetOHLC(rec, httptest.NewRequest(http.MethodGet, "/api/ohlc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, fake.gotDays)

	rec = httptest.NewRecorder()
	h.GetOHLC(rec, httptest.NewRequest(http.MethodGet, "/api/ohlc?days=30", nil))
	require.Equal(t, 30, fake.gotDays)
}

func TestGetOHLCInvalidDays(t *testing.T) {
	h := NewMarketHandler(&fakeMarketProvider{err: service.ErrInvalidDays}, testLogger())

	rec := httptest.NewRecorder()
	h.GetOHLC(rec, httptest.NewRequest(http.MethodGet, "/api/ohlc?days=3", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRecentClampsLimit(t *testing.T) {
	fake := &fakePaymentProvider{recent: []domain.ProcessedEvent{}}
	h := NewLedgerHandler(fake, nil, testLogger())

	rec := httptest.NewRecorder()
	h.ListRecent(rec, httptest.NewRequest(http.MethodGet, "/api/payments/recent?limit=500", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, maxRecentLimit, fake.gotLim)
}

func TestListHistoryError(t *testing.T) {
	h := NewLedgerHandler(&fakePaymentProvider{err: errors.New("pg down")}, nil, testLogger())

	rec := httptest.NewRecorder()
	h.ListHistory(rec, httptest.NewRequest(http.MethodGet, "/api/payments/history", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestArchivesWithoutReader(t *testing.T) {
	h := NewLedgerHandler(&fakePaymentProvider{}, nil, testLogger())

	rec := httptest.NewRecorder()
	h.ListArchives(rec, httptest.NewRequest(http.MethodGet, "/api/payments/archives", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.GetArchive(rec, httptest.NewRequest(http.MethodGet, "/api/payments/archives/2026-01-01", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListArchives(t *testing.T) {
	reader := &fakeBlobReader{infos: []domain.BlobInfo{
		{Path: "archive/payments/2026-01-01.jsonl", Size: 512},
	}}
	h := NewLedgerHandler(&fakePaymentProvider{}, reader, testLogger())

	rec := httptest.NewRecorder()
	h.ListArchives(rec, httptest.NewRequest(http.MethodGet, "/api/payments/archives", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"name":"2026-01-01.jsonl"`)
	require.Contains(t, rec.Body.String(), `"size":512`)
}

func TestGetArchiveStreamsBody(t *testing.T) {
	reader := &fakeBlobReader{body: `{"transaction":{"id":"abc"}}` + "\n"}
	h := NewLedgerHandler(&fakePaymentProvider{}, reader, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/payments/archives/2026-01-01", nil)
	req.SetPathValue("date", "2026-01-01")
	rec := httptest.NewRecorder()
	h.GetArchive(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), `"id":"abc"`)
}

func TestGetArchiveNotFound(t *testing.T) {
	reader := &fakeBlobReader{err: domain.ErrNotFound}
	h := NewLedgerHandler(&fakePaymentProvider{}, reader, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/payments/archives/2000-01-01", nil)
	req.SetPathValue("date", "2000-01-01")
	rec := httptest.NewRecorder()
	h.GetArchive(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
