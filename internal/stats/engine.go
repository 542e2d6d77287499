package stats

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/rs/zerolog"
)

// Engine folds aggregation records and swap facts into cumulative counters.
// Each update family is an independent get-or-default/set on the Store. A
// store failure in one family does not stop the others; all failures are
// joined and returned. Calls are serialized so several chains can share one
// engine.
type Engine struct {
	mu     sync.Mutex
	store  Store
	logger zerolog.Logger
}

// NewEngine creates a statistics engine over store
func NewEngine(store Store, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger.With().Str("component", "stats").Logger(),
	}
}

// Store returns the backing store
func (e *Engine) Store() Store {
	return e.store
}

// ApplyAggregation writes the record and the token-in/token-out pair stats.
// When both sides name the same token the two deltas apply one after the other.
func (e *Engine) ApplyAggregation(ctx context.Context, rec AggregationRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec.TokenAddress = Canonical(rec.TokenAddress)
	rec.OutTokenAddress = Canonical(rec.OutTokenAddress)
	rec.Amount = orZero(rec.Amount)
	rec.DestinationAmount = orZero(rec.DestinationAmount)
	rec.FeeAmount = orZero(rec.FeeAmount)

	var errs []error
	if err := Put(ctx, e.store, KindAggregation, rec.ID, &rec); err != nil {
		errs = append(errs, err)
	}

	if _, err := apply(ctx, e.store, KindAggregatorToken, rec.TokenAddress, newTokenStat(rec.TokenAddress),
		func(t *TokenStat) {
			t.TradeInAmount.Add(t.TradeInAmount, rec.Amount)
			t.TradeInCount++
			t.AvgTradeInAmount = average(t.TradeInAmount, t.TradeInCount)
			t.TotalAmount.Add(t.TotalAmount, rec.Amount)
			t.FeeAmount.Add(t.FeeAmount, rec.FeeAmount)
		},
	); err != nil {
		errs = append(errs, fmt.Errorf("token in stats: %w", err))
	}

	if _, err := apply(ctx, e.store, KindAggregatorToken, rec.OutTokenAddress, newTokenStat(rec.OutTokenAddress),
		func(t *TokenStat) {
			t.TradeOutAmount.Add(t.TradeOutAmount, rec.DestinationAmount)
			t.TradeOutCount++
			t.AvgTradeOutAmount = average(t.TradeOutAmount, t.TradeOutCount)
			t.TotalAmount.Add(t.TotalAmount, rec.DestinationAmount)
			t.FeeAmount.Add(t.FeeAmount, rec.FeeAmount)
		},
	); err != nil {
		errs = append(errs, fmt.Errorf("token out stats: %w", err))
	}

	e.logger.Debug().
		Str("id", rec.ID).
		Str("token_in", rec.TokenAddress).
		Str("token_out", rec.OutTokenAddress).
		Int("failed", len(errs)).
		Msg("Applied aggregation")

	return errors.Join(errs...)
}

// ApplyTransaction adds a sender's transaction to the global totals and its
// day and month activity buckets.
func (e *Engine) ApplyTransaction(ctx context.Context, user string, fee, gasUsed *big.Int, ts uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fee, gasUsed = orZero(fee), orZero(gasUsed)

	_, err := apply(ctx, e.store, KindGlobalStats, GlobalStatsID, newGlobalStats,
		func(g *GlobalStats) {
			g.TotalTransactionCount++
			g.TotalFee.Add(g.TotalFee, fee)
			g.TotalGasUsed.Add(g.TotalGasUsed, gasUsed)
			g.LastUpdatedTimestamp = ts
		},
	)
	if err != nil {
		err = fmt.Errorf("global stats: %w", err)
	}

	return errors.Join(err, e.recordActivity(ctx, user, ts))
}

// CountUniqueUser bumps the global unique-user count if user has no User
// entity yet. ApplyTrade runs this check and the swap under one lock and is
// what concurrent callers should use.
func (e *Engine) CountUniqueUser(ctx context.Context, user string, ts uint64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.countUniqueUser(ctx, user, ts)
}

func (e *Engine) countUniqueUser(ctx context.Context, user string, ts uint64) (bool, error) {
	user = Canonical(user)

	known, err := exists(ctx, e.store, KindUser, user)
	if err != nil {
		return false, err
	}

	if _, err := apply(ctx, e.store, KindGlobalStats, GlobalStatsID, newGlobalStats,
		func(g *GlobalStats) {
			g.LastUpdatedTimestamp = ts
			if !known {
				g.TotalUniqueUsers++
			}
		},
	); err != nil {
		return false, fmt.Errorf("global stats: %w", err)
	}

	return !known, nil
}

// ApplyTrade counts the swap's user as unique if unseen, then applies the
// swap. Both steps happen in one critical section so two chains cannot both
// observe the same new user. It reports whether the user was new.
func (e *Engine) ApplyTrade(ctx context.Context, ev SwapEvent) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	first, err := e.countUniqueUser(ctx, ev.UserAddress, ev.Timestamp)
	if err != nil {
		err = fmt.Errorf("unique user: %w", err)
	}
	return first, errors.Join(err, e.applySwap(ctx, ev))
}

// ApplySwap writes the swap event and updates the token, exchange, user and
// composite counters it touches.
func (e *Engine) ApplySwap(ctx context.Context, ev SwapEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applySwap(ctx, ev)
}

func (e *Engine) applySwap(ctx context.Context, ev SwapEvent) error {
	ev.UserAddress = Canonical(ev.UserAddress)
	ev.ExchangeAddress = Canonical(ev.ExchangeAddress)
	ev.TokenInAddress = Canonical(ev.TokenInAddress)
	ev.TokenOutAddress = Canonical(ev.TokenOutAddress)
	ev.AmountIn = orZero(ev.AmountIn)
	ev.AmountOut = orZero(ev.AmountOut)
	ev.Fee = orZero(ev.Fee)
	ev.GasPrice = orZero(ev.GasPrice)
	ev.GasUsed = orZero(ev.GasUsed)

	var errs []error
	if err := Put(ctx, e.store, KindSwapEvent, ev.ID, &ev); err != nil {
		errs = append(errs, err)
	}

	user, exchange, token := ev.UserAddress, ev.ExchangeAddress, ev.TokenInAddress
	amount := ev.AmountIn

	if _, err := apply(ctx, e.store, KindToken, token,
		func() *Token {
			return &Token{ID: token, Address: token, VolumeIn: new(big.Int), VolumeOut: new(big.Int), FeesGenerated: new(big.Int)}
		},
		func(t *Token) {
			t.VolumeIn.Add(t.VolumeIn, amount)
			t.TransactionCount++
		},
	); err != nil {
		errs = append(errs, fmt.Errorf("token stats: %w", err))
	}

	if _, err := apply(ctx, e.store, KindExchange, exchange,
		func() *Exchange {
			return &Exchange{ID: exchange, Address: exchange, Name: ev.ExchangeName, TotalVolume: new(big.Int)}
		},
		func(x *Exchange) {
			x.TotalVolume.Add(x.TotalVolume, amount)
			x.TransactionCount++
		},
	); err != nil {
		errs = append(errs, fmt.Errorf("exchange stats: %w", err))
	}

	if _, err := apply(ctx, e.store, KindUser, user,
		func() *User {
			return &User{ID: user, Address: user, TotalFee: new(big.Int), TotalGasUsed: new(big.Int), TotalVolumeTraded: new(big.Int)}
		},
		func(u *User) {
			u.TotalFee.Add(u.TotalFee, ev.Fee)
			u.TotalGasUsed.Add(u.TotalGasUsed, ev.GasUsed)
			u.TotalVolumeTraded.Add(u.TotalVolumeTraded, amount)
			u.TotalTransactionCount++
		},
	); err != nil {
		errs = append(errs, fmt.Errorf("user stats: %w", err))
	}

	exchangeTokenID := compositeID(exchange, token)
	if _, err := apply(ctx, e.store, KindExchangeTokenStat, exchangeTokenID,
		func() *ExchangeTokenStat {
			return &ExchangeTokenStat{ID: exchangeTokenID, ExchangeID: exchange, TokenID: token, VolumeIn: new(big.Int)}
		},
		func(s *ExchangeTokenStat) {
			s.VolumeIn.Add(s.VolumeIn, amount)
			s.TransactionCount++
		},
	); err != nil {
		errs = append(errs, fmt.Errorf("exchange token stats: %w", err))
	}

	userTokenID := compositeID(user, token)
	if _, err := apply(ctx, e.store, KindUserTokenStat, userTokenID,
		func() *UserTokenStat {
			return &UserTokenStat{ID: userTokenID, UserID: user, TokenID: token, VolumeTraded: new(big.Int)}
		},
		func(s *UserTokenStat) {
			s.VolumeTraded.Add(s.VolumeTraded, amount)
			s.TransactionCount++
		},
	); err != nil {
		errs = append(errs, fmt.Errorf("user token stats: %w", err))
	}

	userExchangeID := compositeID(user, exchange)
	if _, err := apply(ctx, e.store, KindUserExchangeStat, userExchangeID,
		func() *UserExchangeStat {
			return &UserExchangeStat{ID: userExchangeID, UserID: user, ExchangeID: exchange, VolumeTraded: new(big.Int)}
		},
		func(s *UserExchangeStat) {
			s.VolumeTraded.Add(s.VolumeTraded, amount)
			s.TransactionCount++
		},
	); err != nil {
		errs = append(errs, fmt.Errorf("user exchange stats: %w", err))
	}

	userTokenExchangeID := compositeID(user, token, exchange)
	if _, err := apply(ctx, e.store, KindUserTokenExchangeStat, userTokenExchangeID,
		func() *UserTokenExchangeStat {
			return &UserTokenExchangeStat{ID: userTokenExchangeID, UserID: user, TokenID: token, ExchangeID: exchange, VolumeTraded: new(big.Int)}
		},
		func(s *UserTokenExchangeStat) {
			s.VolumeTraded.Add(s.VolumeTraded, amount)
			s.TransactionCount++
		},
	); err != nil {
		errs = append(errs, fmt.Errorf("user token exchange stats: %w", err))
	}

	e.logger.Debug().
		Str("id", ev.ID).
		Str("exchange", ev.ExchangeName).
		Str("token_in", token).
		Str("amount_in", amount.String()).
		Int("failed", len(errs)).
		Msg("Applied swap")

	return errors.Join(errs...)
}

func newTokenStat(id string) func() *TokenStat {
	return func() *TokenStat {
		return &TokenStat{
			ID:                id,
			TradeInAmount:     new(big.Int),
			TradeOutAmount:    new(big.Int),
			AvgTradeInAmount:  new(big.Int),
			AvgTradeOutAmount: new(big.Int),
			FeeAmount:         new(big.Int),
			TotalAmount:       new(big.Int),
		}
	}
}

func newGlobalStats() *GlobalStats {
	return &GlobalStats{
		ID:           GlobalStatsID,
		TotalFee:     new(big.Int),
		TotalGasUsed: new(big.Int),
	}
}

// average truncates toward zero
func average(total *big.Int, count uint64) *big.Int {
	if count == 0 {
		return new(big.Int)
	}
	return new(big.Int).Quo(total, new(big.Int).SetUint64(count))
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
