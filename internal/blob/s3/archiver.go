package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

// PaymentArchiveStore provides the read side the archiver needs. The full
// domain.PaymentStore satisfies it implicitly.
type PaymentArchiveStore interface {
	// ListBefore returns all payments executed strictly before the cutoff.
	ListBefore(ctx context.Context, before time.Time) ([]domain.ProcessedEvent, error)
}

// Archiver offloads aged payment events to object storage as JSONL files,
// partitioned by the cutoff date.
//
// Deletion of the archived rows from postgres is intentionally not performed
// here; the caller prunes after the upload has succeeded.
type Archiver struct {
	writer   domain.BlobWriter
	payments PaymentArchiveStore
	logger   *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, payments PaymentArchiveStore, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		writer:   writer,
		payments: payments,
		logger:   logger.With(slog.String("component", "payment_archiver")),
	}
}

// ArchivePayments queries all payments before the cutoff, serializes them to
// JSONL, and uploads the file to archive/payments/YYYY-MM-DD.jsonl. It
// returns the number of archived records.
func (a *Archiver) ArchivePayments(ctx context.Context, before time.Time) (int64, error) {
	events, err := a.payments.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive payments query: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(events)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive payments marshal: %w", err)
	}

	path := archivePath("payments", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive payments upload: %w", err)
	}

	count := int64(len(events))
	a.logger.Info("payments archived",
		slog.String("path", path),
		slog.Int64("count", count),
		slog.String("before", before.Format(time.RFC3339)))

	return count, nil
}

// archivePath builds the object key for an archive file, partitioned by the
// cutoff date.
//
//	archive/payments/2025-01-31.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01-02"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
