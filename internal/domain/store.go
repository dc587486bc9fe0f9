package domain

import (
	"context"
	"io"
	"time"
)

// KnownAddressStore provides read access to the known-address table that the
// ledger processor uses for label and geo resolution.
type KnownAddressStore interface {
	ListAll(ctx context.Context) ([]KnownAddress, error)
}

// PaymentStore archives processed payment events. The live feed itself is
// in-memory; this store is a side archive for the dashboard's history views
// and for S3 offloading.
type PaymentStore interface {
	InsertBatch(ctx context.Context, events []ProcessedEvent) error
	ListRecent(ctx context.Context, limit int) ([]ProcessedEvent, error)
	ListBefore(ctx context.Context, before time.Time) ([]ProcessedEvent, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// BlobWriter uploads a blob to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobInfo describes one stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// BlobReader retrieves archived blobs from object storage.
type BlobReader interface {
	// Get returns the object body; the caller closes it. Returns
	// ErrNotFound when the object does not exist.
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}
