package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/monorail-xyz/envio-stats-indexer/internal/stats"
)

var _ stats.Store = (*EntityStore)(nil)

// EntityStore persists stats entities as JSONB rows keyed by (kind, id)
type EntityStore struct {
	db *Database
}

func NewEntityStore(db *Database) *EntityStore {
	return &EntityStore{db: db}
}

func (s *EntityStore) Get(ctx context.Context, kind stats.Kind, id string) ([]byte, error) {
	var data []byte
	err := s.db.pool.QueryRow(ctx,
		`SELECT data FROM entities WHERE kind = $1 AND id = $2`,
		string(kind), id,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stats.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s %s: %w", kind, id, err)
	}
	return data, nil
}

func (s *EntityStore) Set(ctx context.Context, kind stats.Kind, id string, data []byte) error {
	query := `
		INSERT INTO entities (kind, id, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (kind, id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = NOW()`

	if _, err := s.db.pool.Exec(ctx, query, string(kind), id, string(data)); err != nil {
		return fmt.Errorf("failed to set %s %s: %w", kind, id, err)
	}
	return nil
}

// Count returns the number of stored entities of kind
func (s *EntityStore) Count(ctx context.Context, kind stats.Kind) (int64, error) {
	var n int64
	if err := s.db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM entities WHERE kind = $1`, string(kind),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", kind, err)
	}
	return n, nil
}

func (s *EntityStore) Close() error {
	return s.db.Close()
}
