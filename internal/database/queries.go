package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/monorail-xyz/envio-stats-indexer/internal/stats"
)

// TopExchanges returns exchanges ordered by transaction count
func (s *EntityStore) TopExchanges(ctx context.Context, limit int) ([]stats.Exchange, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT data
		FROM entities
		WHERE kind = $1
		ORDER BY (data->>'transactionCount')::BIGINT DESC, id
		LIMIT $2`

	rows, err := s.db.pool.Query(ctx, query, string(stats.KindExchange), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []stats.Exchange
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var ex stats.Exchange
		if err := json.Unmarshal(data, &ex); err != nil {
			return nil, fmt.Errorf("failed to decode exchange: %w", err)
		}
		exchanges = append(exchanges, ex)
	}

	return exchanges, rows.Err()
}

// SwapsByUser returns a user's swaps, newest block first
func (s *EntityStore) SwapsByUser(ctx context.Context, user string, limit, offset int) ([]stats.SwapEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT data
		FROM entities
		WHERE kind = $1 AND data->>'userAddress' = $2
		ORDER BY (data->>'blockNumber')::BIGINT DESC, id
		LIMIT $3 OFFSET $4`

	rows, err := s.db.pool.Query(ctx, query, string(stats.KindSwapEvent), stats.Canonical(user), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query swaps for %s: %w", user, err)
	}
	defer rows.Close()

	var swaps []stats.SwapEvent
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var sw stats.SwapEvent
		if err := json.Unmarshal(data, &sw); err != nil {
			return nil, fmt.Errorf("failed to decode swap event: %w", err)
		}
		swaps = append(swaps, sw)
	}

	return swaps, rows.Err()
}
