package stats_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monorail-xyz/envio-stats-indexer/internal/stats"
	"github.com/monorail-xyz/envio-stats-indexer/internal/store/memory"
)

const (
	user     = "0xAbCdEf0000000000000000000000000000000001"
	exchange = "0xFB8E1C3B833F9E67A71C859A132CF783B645E436"
	tokenIn  = "0x00000000000000000000000000000000000000AA"
	tokenOut = "0x00000000000000000000000000000000000000BB"
)

func newEngine() (*stats.Engine, *memory.Store) {
	store := memory.New()
	return stats.NewEngine(store, zerolog.Nop()), store
}

func load[T any](t *testing.T, s stats.Store, kind stats.Kind, id string) *T {
	t.Helper()
	v, err := stats.Get[T](context.Background(), s, kind, id)
	require.NoError(t, err, "%s %s", kind, id)
	return v
}

func swap(id string, amount int64) stats.SwapEvent {
	return stats.SwapEvent{
		ID:              id,
		TransactionHash: "0xhash",
		BlockNumber:     10,
		Timestamp:       1735732800,
		UserAddress:     user,
		ExchangeAddress: exchange,
		ExchangeName:    "Uniswap V2",
		TokenInAddress:  tokenIn,
		TokenOutAddress: tokenOut,
		AmountIn:        big.NewInt(amount),
		Fee:             big.NewInt(21),
		GasPrice:        big.NewInt(1),
		GasUsed:         big.NewInt(21),
	}
}

func TestApplyAggregationAverages(t *testing.T) {
	ctx := context.Background()
	engine, store := newEngine()

	amounts := []int64{10, 3, 4}
	for i, a := range amounts {
		err := engine.ApplyAggregation(ctx, stats.AggregationRecord{
			ID:                stats.AggregationID(10143, 100, uint(i)),
			TokenAddress:      tokenIn,
			OutTokenAddress:   tokenOut,
			Amount:            big.NewInt(a),
			DestinationAmount: big.NewInt(a * 2),
			FeeAmount:         big.NewInt(1),
		})
		require.NoError(t, err)
	}

	in := load[stats.TokenStat](t, store, stats.KindAggregatorToken, stats.Canonical(tokenIn))
	assert.Equal(t, big.NewInt(17), in.TradeInAmount)
	assert.Equal(t, uint64(3), in.TradeInCount)
	// 17 / 3 truncates
	assert.Equal(t, big.NewInt(5), in.AvgTradeInAmount)
	assert.Equal(t, big.NewInt(17), in.TotalAmount)
	assert.Equal(t, big.NewInt(3), in.FeeAmount)
	assert.Zero(t, in.TradeOutCount)

	remainder := new(big.Int).Mod(in.TradeInAmount, new(big.Int).SetUint64(in.TradeInCount))
	product := new(big.Int).Mul(in.AvgTradeInAmount, new(big.Int).SetUint64(in.TradeInCount))
	assert.Equal(t, new(big.Int).Sub(in.TradeInAmount, remainder), product)

	out := load[stats.TokenStat](t, store, stats.KindAggregatorToken, stats.Canonical(tokenOut))
	assert.Equal(t, big.NewInt(34), out.TradeOutAmount)
	assert.Equal(t, uint64(3), out.TradeOutCount)
	assert.Equal(t, big.NewInt(11), out.AvgTradeOutAmount)

	rec := load[stats.AggregationRecord](t, store, stats.KindAggregation, "10143_100_1")
	assert.Equal(t, stats.Canonical(tokenIn), rec.TokenAddress)
	assert.Equal(t, big.NewInt(3), rec.Amount)
}

func TestApplyAggregationSameToken(t *testing.T) {
	ctx := context.Background()
	engine, store := newEngine()

	err := engine.ApplyAggregation(ctx, stats.AggregationRecord{
		ID:                "1_1_0",
		TokenAddress:      tokenIn,
		OutTokenAddress:   tokenIn,
		Amount:            big.NewInt(100),
		DestinationAmount: big.NewInt(90),
		FeeAmount:         big.NewInt(0),
	})
	require.NoError(t, err)

	tok := load[stats.TokenStat](t, store, stats.KindAggregatorToken, stats.Canonical(tokenIn))
	assert.Equal(t, big.NewInt(100), tok.TradeInAmount)
	assert.Equal(t, big.NewInt(90), tok.TradeOutAmount)
	assert.Equal(t, uint64(1), tok.TradeInCount)
	assert.Equal(t, uint64(1), tok.TradeOutCount)
	assert.Equal(t, big.NewInt(190), tok.TotalAmount)
}

func TestApplySwapCountersAndKeys(t *testing.T) {
	ctx := context.Background()
	engine, store := newEngine()

	for i := 0; i < 3; i++ {
		require.NoError(t, engine.ApplySwap(ctx, swap(stats.SwapEventID("0xhash", 4, i), 100)))
	}

	u, x, tk := stats.Canonical(user), stats.Canonical(exchange), stats.Canonical(tokenIn)

	ev := load[stats.SwapEvent](t, store, stats.KindSwapEvent, "0xhash-4-2")
	assert.Equal(t, u, ev.UserAddress)
	assert.Equal(t, x, ev.ExchangeAddress)
	assert.Equal(t, stats.Canonical(tokenOut), ev.TokenOutAddress)
	assert.Zero(t, ev.AmountOut.Sign())

	token := load[stats.Token](t, store, stats.KindToken, tk)
	assert.Equal(t, uint64(3), token.TransactionCount)
	assert.Equal(t, big.NewInt(300), token.VolumeIn)

	ex := load[stats.Exchange](t, store, stats.KindExchange, x)
	assert.Equal(t, "Uniswap V2", ex.Name)
	assert.Equal(t, uint64(3), ex.TransactionCount)
	assert.Equal(t, big.NewInt(300), ex.TotalVolume)

	usr := load[stats.User](t, store, stats.KindUser, u)
	assert.Equal(t, uint64(3), usr.TotalTransactionCount)
	assert.Equal(t, big.NewInt(63), usr.TotalFee)
	assert.Equal(t, big.NewInt(63), usr.TotalGasUsed)
	assert.Equal(t, big.NewInt(300), usr.TotalVolumeTraded)

	et := load[stats.ExchangeTokenStat](t, store, stats.KindExchangeTokenStat, x+"-"+tk)
	assert.Equal(t, uint64(3), et.TransactionCount)
	assert.Equal(t, big.NewInt(300), et.VolumeIn)

	ut := load[stats.UserTokenStat](t, store, stats.KindUserTokenStat, u+"-"+tk)
	assert.Equal(t, uint64(3), ut.TransactionCount)

	ue := load[stats.UserExchangeStat](t, store, stats.KindUserExchangeStat, u+"-"+x)
	assert.Equal(t, uint64(3), ue.TransactionCount)

	ute := load[stats.UserTokenExchangeStat](t, store, stats.KindUserTokenExchangeStat, u+"-"+tk+"-"+x)
	assert.Equal(t, uint64(3), ute.TransactionCount)
	assert.Equal(t, big.NewInt(300), ute.VolumeTraded)

	// never alphabetized
	_, err := store.Get(ctx, stats.KindUserTokenExchangeStat, tk+"-"+u+"-"+x)
	assert.ErrorIs(t, err, stats.ErrNotFound)
}

func TestCountUniqueUser(t *testing.T) {
	ctx := context.Background()
	engine, store := newEngine()

	first, err := engine.CountUniqueUser(ctx, user, 100)
	require.NoError(t, err)
	assert.True(t, first)
	require.NoError(t, engine.ApplySwap(ctx, swap("a-0-0", 1)))

	first, err = engine.CountUniqueUser(ctx, user, 200)
	require.NoError(t, err)
	assert.False(t, first)

	g := load[stats.GlobalStats](t, store, stats.KindGlobalStats, stats.GlobalStatsID)
	assert.Equal(t, uint64(1), g.TotalUniqueUsers)
	assert.Equal(t, uint64(200), g.LastUpdatedTimestamp)
	assert.Zero(t, g.TotalTransactionCount)
}

func TestApplyTransaction(t *testing.T) {
	ctx := context.Background()
	engine, store := newEngine()

	ts := uint64(time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC).Unix())
	require.NoError(t, engine.ApplyTransaction(ctx, user, big.NewInt(50), big.NewInt(25), ts))
	require.NoError(t, engine.ApplyTransaction(ctx, user, nil, nil, ts+10))

	g := load[stats.GlobalStats](t, store, stats.KindGlobalStats, stats.GlobalStatsID)
	assert.Equal(t, uint64(2), g.TotalTransactionCount)
	assert.Equal(t, big.NewInt(50), g.TotalFee)
	assert.Equal(t, big.NewInt(25), g.TotalGasUsed)
	assert.Equal(t, ts+10, g.LastUpdatedTimestamp)

	day := load[stats.DailyUserData](t, store, stats.KindDailyUserData, "2025-03-14")
	assert.Equal(t, uint64(2), day.TotalTransactions)
	assert.Equal(t, uint64(1), day.UniqueUserCount)
}

func TestRecordActivityBuckets(t *testing.T) {
	ctx := context.Background()
	engine, store := newEngine()

	morning := uint64(time.Date(2025, 1, 31, 1, 0, 0, 0, time.UTC).Unix())
	evening := uint64(time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC).Unix())
	nextDay := uint64(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC).Unix())
	other := "0x0000000000000000000000000000000000000002"

	require.NoError(t, engine.RecordActivity(ctx, user, morning))
	require.NoError(t, engine.RecordActivity(ctx, user, evening))
	require.NoError(t, engine.RecordActivity(ctx, other, evening))
	require.NoError(t, engine.RecordActivity(ctx, user, nextDay))

	jan31 := load[stats.DailyUserData](t, store, stats.KindDailyUserData, "2025-01-31")
	assert.Equal(t, uint64(3), jan31.TotalTransactions)
	assert.Equal(t, uint64(2), jan31.UniqueUserCount)
	assert.Equal(t, uint64(time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC).Unix()), jan31.Date)

	feb1 := load[stats.DailyUserData](t, store, stats.KindDailyUserData, "2025-02-01")
	assert.Equal(t, uint64(1), feb1.TotalTransactions)
	assert.Equal(t, uint64(1), feb1.UniqueUserCount)

	jan := load[stats.MonthlyUserData](t, store, stats.KindMonthlyUserData, "2025-01")
	assert.Equal(t, uint64(3), jan.TotalTransactions)
	assert.Equal(t, uint64(2), jan.UniqueUserCount)
	assert.Equal(t, uint64(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Unix()), jan.MonthStartDate)

	feb := load[stats.MonthlyUserData](t, store, stats.KindMonthlyUserData, "2025-02")
	assert.Equal(t, uint64(1), feb.UniqueUserCount)

	_ = load[stats.Marker](t, store, stats.KindUserDay, "2025-01-31-"+stats.Canonical(user))
	_ = load[stats.Marker](t, store, stats.KindUserMonth, "2025-02-"+stats.Canonical(user))
}

type failingStore struct {
	*memory.Store
	failKind stats.Kind
}

var errBoom = errors.New("boom")

func (f failingStore) Set(ctx context.Context, kind stats.Kind, id string, data []byte) error {
	if kind == f.failKind {
		return errBoom
	}
	return f.Store.Set(ctx, kind, id, data)
}

func TestStoreFailurePropagates(t *testing.T) {
	ctx := context.Background()
	store := failingStore{Store: memory.New(), failKind: stats.KindExchange}
	engine := stats.NewEngine(store, zerolog.Nop())

	err := engine.ApplySwap(ctx, swap("x-0-0", 5))
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "exchange stats")

	// every other family is still written
	_ = load[stats.SwapEvent](t, store, stats.KindSwapEvent, "x-0-0")
	_ = load[stats.Token](t, store, stats.KindToken, stats.Canonical(tokenIn))
	u := load[stats.User](t, store, stats.KindUser, stats.Canonical(user))
	assert.Equal(t, uint64(1), u.TotalTransactionCount)
	_ = load[stats.ExchangeTokenStat](t, store, stats.KindExchangeTokenStat, stats.Canonical(exchange)+"-"+stats.Canonical(tokenIn))
	_ = load[stats.UserTokenStat](t, store, stats.KindUserTokenStat, stats.Canonical(user)+"-"+stats.Canonical(tokenIn))
	_ = load[stats.UserExchangeStat](t, store, stats.KindUserExchangeStat, stats.Canonical(user)+"-"+stats.Canonical(exchange))
	_ = load[stats.UserTokenExchangeStat](t, store, stats.KindUserTokenExchangeStat,
		stats.Canonical(user)+"-"+stats.Canonical(tokenIn)+"-"+stats.Canonical(exchange))

	_, err = store.Get(ctx, stats.KindExchange, stats.Canonical(exchange))
	assert.ErrorIs(t, err, stats.ErrNotFound)
}

func TestAggregationFamiliesAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := failingStore{Store: memory.New(), failKind: stats.KindAggregation}
	engine := stats.NewEngine(store, zerolog.Nop())

	err := engine.ApplyAggregation(ctx, stats.AggregationRecord{
		ID:                "1-10-0",
		TokenAddress:      tokenIn,
		OutTokenAddress:   tokenOut,
		Amount:            big.NewInt(100),
		DestinationAmount: big.NewInt(90),
	})
	assert.ErrorIs(t, err, errBoom)

	in := load[stats.TokenStat](t, store, stats.KindAggregatorToken, stats.Canonical(tokenIn))
	assert.Equal(t, uint64(1), in.TradeInCount)
	out := load[stats.TokenStat](t, store, stats.KindAggregatorToken, stats.Canonical(tokenOut))
	assert.Equal(t, uint64(1), out.TradeOutCount)
}

func TestActivityBucketsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := failingStore{Store: memory.New(), failKind: stats.KindDailyUserData}
	engine := stats.NewEngine(store, zerolog.Nop())

	err := engine.ApplyTransaction(ctx, user, big.NewInt(1), big.NewInt(1), 1735732800)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily activity")

	g := load[stats.GlobalStats](t, store, stats.KindGlobalStats, stats.GlobalStatsID)
	assert.Equal(t, uint64(1), g.TotalTransactionCount)
	m := load[stats.MonthlyUserData](t, store, stats.KindMonthlyUserData, "2025-01")
	assert.Equal(t, uint64(1), m.UniqueUserCount)
}

// gatedStore blocks the first User lookup until released
type gatedStore struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) Get(ctx context.Context, kind stats.Kind, id string) ([]byte, error) {
	if kind == stats.KindUser {
		g.once.Do(func() {
			close(g.entered)
			<-g.release
		})
	}
	return g.Store.Get(ctx, kind, id)
}

func TestApplyTradeCountsUserOnceAcrossChains(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{Store: memory.New(), entered: make(chan struct{}), release: make(chan struct{})}
	engine := stats.NewEngine(store, zerolog.Nop())

	results := make(chan bool, 2)
	go func() {
		first, err := engine.ApplyTrade(ctx, swap("chain-a-0-0", 1))
		assert.NoError(t, err)
		results <- first
	}()

	<-store.entered
	go func() {
		first, err := engine.ApplyTrade(ctx, swap("chain-b-0-0", 1))
		assert.NoError(t, err)
		results <- first
	}()

	select {
	case <-results:
		t.Fatal("second chain ran while the first held the user check")
	case <-time.After(50 * time.Millisecond):
	}
	close(store.release)

	firsts := []bool{<-results, <-results}
	assert.ElementsMatch(t, []bool{true, false}, firsts)

	g := load[stats.GlobalStats](t, store, stats.KindGlobalStats, stats.GlobalStatsID)
	assert.Equal(t, uint64(1), g.TotalUniqueUsers)
	u := load[stats.User](t, store, stats.KindUser, stats.Canonical(user))
	assert.Equal(t, uint64(2), u.TotalTransactionCount)
}

func TestApplyTradeConcurrent(t *testing.T) {
	ctx := context.Background()
	engine, store := newEngine()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := engine.ApplyTrade(ctx, swap(stats.SwapEventID("0xhash", uint(i), 0), 1))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	g := load[stats.GlobalStats](t, store, stats.KindGlobalStats, stats.GlobalStatsID)
	assert.Equal(t, uint64(1), g.TotalUniqueUsers)
	x := load[stats.Exchange](t, store, stats.KindExchange, stats.Canonical(exchange))
	assert.Equal(t, uint64(16), x.TransactionCount)
}

func TestDayAndMonthBuckets(t *testing.T) {
	ts := uint64(time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC).Unix())
	assert.Equal(t, "2024-02-29", stats.DayBucket(ts).ID)
	assert.Equal(t, "2024-02", stats.MonthBucket(ts).ID)
	assert.Equal(t, "1970-01-01", stats.DayBucket(0).ID)
}
