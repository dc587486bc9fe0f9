package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

// PaymentStore implements domain.PaymentStore using PostgreSQL. Queryable
// columns are stored flat for indexing; the full event, arc included, is
// kept as a JSONB payload so history reads round-trip losslessly.
type PaymentStore struct {
	pool *pgxpool.Pool
}

// NewPaymentStore creates a store backed by the given connection pool.
func NewPaymentStore(pool *pgxpool.Pool) *PaymentStore {
	return &PaymentStore{pool: pool}
}

// InsertBatch inserts multiple payment events using pgx Batch. Duplicate
// transaction hashes are silently skipped via ON CONFLICT DO NOTHING.
func (s *PaymentStore) InsertBatch(ctx context.Context, events []domain.ProcessedEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO payments (
			tx_hash, account, destination, amount, weight,
			sender_label, dest_label, ledger_index, executed_at, payload
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10
		) ON CONFLICT (tx_hash) DO NOTHING`

	for i, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("postgres: marshal payment %d: %w", i, err)
		}
		tx := ev.Transaction
		batch.Queue(query,
			tx.ID, tx.Account, tx.Destination, tx.Amount, string(ev.Weight),
			ev.SenderLabel, ev.DestLabel, int64(tx.LedgerIndex),
			time.UnixMilli(tx.TimestampMs).UTC(), payload,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert payment batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListRecent returns up to limit events, newest first.
func (s *PaymentStore) ListRecent(ctx context.Context, limit int) ([]domain.ProcessedEvent, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT payload FROM payments ORDER BY executed_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent payments: %w", err)
	}
	defer rows.Close()

	return scanEventRows(rows)
}

// ListBefore returns all events executed before the given time, oldest
// first. Used by the archiver to page out history.
func (s *PaymentStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ProcessedEvent, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT payload FROM payments WHERE executed_at < $1 ORDER BY executed_at ASC", before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list payments before %s: %w", before, err)
	}
	defer rows.Close()

	return scanEventRows(rows)
}

// DeleteBefore removes events executed before the given time and returns the
// number of rows deleted.
func (s *PaymentStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM payments WHERE executed_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete payments before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func scanEventRows(rows pgx.Rows) ([]domain.ProcessedEvent, error) {
	var events []domain.ProcessedEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("postgres: scan payment payload: %w", err)
		}
		var ev domain.ProcessedEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal payment payload: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read payment rows: %w", err)
	}
	return events, nil
}

// Compile-time interface check.
var _ domain.PaymentStore = (*PaymentStore)(nil)
