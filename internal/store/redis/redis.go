// Package redis stores stats entities as Redis string values.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/monorail-xyz/envio-stats-indexer/internal/config"
	"github.com/monorail-xyz/envio-stats-indexer/internal/stats"
)

// Store keys each entity as {prefix}{kind}:{id}
type Store struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

var _ stats.Store = (*Store)(nil)

// New connects to Redis and verifies the connection
func New(ctx context.Context, cfg *config.RedisConfig, logger zerolog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}

	logger = logger.With().Str("component", "redis_store").Logger()
	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Connected to redis")

	return NewWithClient(client, cfg.KeyPrefix, logger), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, prefix string, logger zerolog.Logger) *Store {
	return &Store{client: client, prefix: prefix, logger: logger}
}

func (s *Store) key(kind stats.Kind, id string) string {
	return fmt.Sprintf("%s%s:%s", s.prefix, kind, id)
}

func (s *Store) Get(ctx context.Context, kind stats.Kind, id string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(kind, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, stats.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s %s: %w", kind, id, err)
	}
	return data, nil
}

func (s *Store) Set(ctx context.Context, kind stats.Kind, id string, data []byte) error {
	if err := s.client.Set(ctx, s.key(kind, id), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s %s: %w", kind, id, err)
	}
	return nil
}

// Count scans the keyspace for kind. Intended for reporting, not the hot path.
func (s *Store) Count(ctx context.Context, kind stats.Kind) (int64, error) {
	var (
		cursor uint64
		n      int64
	)
	pattern := s.key(kind, "*")
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		n += int64(len(keys))
		if next == 0 {
			return n, nil
		}
		cursor = next
	}
}

func (s *Store) Close() error {
	return s.client.Close()
}
