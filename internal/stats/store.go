package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind names an entity family in the store
type Kind string

const (
	KindAggregation           Kind = "Aggregate_Aggregation"
	KindSwapEvent             Kind = "SwapEvent"
	KindAggregatorToken       Kind = "AggregatorToken"
	KindToken                 Kind = "Token"
	KindExchange              Kind = "Exchange"
	KindUser                  Kind = "User"
	KindExchangeTokenStat     Kind = "ExchangeTokenStat"
	KindUserTokenStat         Kind = "UserTokenStat"
	KindUserExchangeStat      Kind = "UserExchangeStat"
	KindUserTokenExchangeStat Kind = "UserTokenExchangeStat"
	KindGlobalStats           Kind = "GlobalStats"
	KindDailyUserData         Kind = "DailyUserData"
	KindMonthlyUserData       Kind = "MonthlyUserData"
	KindUserDay               Kind = "UserDay"
	KindUserMonth             Kind = "UserMonth"
	KindIndexerState          Kind = "IndexerState"
)

// ErrNotFound is returned by Store.Get when no entity exists for the key
var ErrNotFound = errors.New("entity not found")

// Store is keyed document persistence with upsert semantics. Entities are
// JSON documents; the engine never deletes or lists.
type Store interface {
	Get(ctx context.Context, kind Kind, id string) ([]byte, error)
	Set(ctx context.Context, kind Kind, id string, data []byte) error
}

// Get loads and decodes an entity. It returns ErrNotFound when absent.
func Get[T any](ctx context.Context, s Store, kind Kind, id string) (*T, error) {
	data, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
	}
	return &v, nil
}

// Put encodes and stores an entity
func Put[T any](ctx context.Context, s Store, kind Kind, id string, v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", kind, id, err)
	}
	if err := s.Set(ctx, kind, id, data); err != nil {
		return fmt.Errorf("failed to store %s %s: %w", kind, id, err)
	}
	return nil
}

// exists reports whether an entity is present without decoding it
func exists(ctx context.Context, s Store, kind Kind, id string) (bool, error) {
	_, err := s.Get(ctx, kind, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("failed to load %s %s: %w", kind, id, err)
	}
}

// apply is the single get-or-default, mutate, set step used by every counter
// family. init builds the zeroed entity when none is stored yet.
func apply[T any](ctx context.Context, s Store, kind Kind, id string, init func() *T, delta func(*T)) (*T, error) {
	v, err := Get[T](ctx, s, kind, id)
	switch {
	case errors.Is(err, ErrNotFound):
		v = init()
	case err != nil:
		return nil, fmt.Errorf("failed to load %s %s: %w", kind, id, err)
	}

	delta(v)

	if err := Put(ctx, s, kind, id, v); err != nil {
		return nil, err
	}
	return v, nil
}
