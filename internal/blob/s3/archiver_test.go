package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

type fakeWriter struct {
	path        string
	contentType string
	data        []byte
	puts        int
}

func (w *fakeWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	w.path = path
	w.contentType = contentType
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.data = b
	w.puts++
	return nil
}

type fakeArchiveStore struct {
	events []domain.ProcessedEvent
}

func (s *fakeArchiveStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ProcessedEvent, error) {
	return s.events, nil
}

func TestArchivePaymentsUploadsJSONL(t *testing.T) {
	events := []domain.ProcessedEvent{
		{Transaction: domain.LedgerTransaction{ID: "T1", Amount: 10}, Weight: domain.WeightNormal},
		{Transaction: domain.LedgerTransaction{ID: "T2", Amount: 300_000}, Weight: domain.WeightLarge},
	}
	writer := &fakeWriter{}
	a := NewArchiver(writer, &fakeArchiveStore{events: events}, nil)

	cutoff := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	count, err := a.ArchivePayments(context.Background(), cutoff)
	require.NoError(t, err)

	assert.Equal(t, int64(2), count)
	assert.Equal(t, "archive/payments/2025-01-31.jsonl", writer.path)
	assert.Equal(t, "application/x-ndjson", writer.contentType)

	lines := bytes.Split(bytes.TrimSpace(writer.data), []byte("\n"))
	require.Len(t, lines, 2)
	var ev domain.ProcessedEvent
	require.NoError(t, json.Unmarshal(lines[1], &ev))
	assert.Equal(t, "T2", ev.Transaction.ID)
	assert.Equal(t, domain.WeightLarge, ev.Weight)
}

func TestArchivePaymentsSkipsEmptyWindow(t *testing.T) {
	writer := &fakeWriter{}
	a := NewArchiver(writer, &fakeArchiveStore{}, nil)

	count, err := a.ArchivePayments(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, writer.puts, "no upload for an empty window")
}
