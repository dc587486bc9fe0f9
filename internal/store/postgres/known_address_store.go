package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

// KnownAddressStore implements domain.KnownAddressStore using PostgreSQL.
type KnownAddressStore struct {
	pool *pgxpool.Pool
}

// NewKnownAddressStore creates a store backed by the given connection pool.
func NewKnownAddressStore(pool *pgxpool.Pool) *KnownAddressStore {
	return &KnownAddressStore{pool: pool}
}

// ListAll returns the full known-address table.
func (s *KnownAddressStore) ListAll(ctx context.Context) ([]domain.KnownAddress, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT address, label, lat, lng FROM known_addresses ORDER BY address")
	if err != nil {
		return nil, fmt.Errorf("postgres: list known addresses: %w", err)
	}
	defer rows.Close()

	var addrs []domain.KnownAddress
	for rows.Next() {
		var a domain.KnownAddress
		if err := rows.Scan(&a.Address, &a.Label, &a.Lat, &a.Lng); err != nil {
			return nil, fmt.Errorf("postgres: scan known address: %w", err)
		}
		addrs = append(addrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list known addresses: %w", err)
	}
	return addrs, nil
}

// Compile-time interface check.
var _ domain.KnownAddressStore = (*KnownAddressStore)(nil)
