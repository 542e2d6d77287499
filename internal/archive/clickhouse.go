// Package archive keeps an append-only copy of every swap in ClickHouse for
// analytical queries the entity store cannot answer.
package archive

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/rs/zerolog"

	"github.com/monorail-xyz/envio-stats-indexer/internal/config"
	"github.com/monorail-xyz/envio-stats-indexer/internal/stats"
)

const (
	flushInterval = time.Second
	flushSize     = 1000
	maxBuffered   = 50000
)

const createSwapEvents = `
	CREATE TABLE IF NOT EXISTS swap_events (
		id                String,
		transaction_hash  String,
		block_number      UInt64,
		timestamp         DateTime,
		user_address      String,
		exchange_address  String,
		exchange_name     String,
		token_in          String,
		token_out         String,
		amount_in         UInt256,
		amount_out        UInt256,
		fee               UInt256,
		gas_price         UInt256,
		gas_used          UInt256,
		inserted_at       DateTime DEFAULT now()
	) ENGINE = ReplacingMergeTree(inserted_at)
	ORDER BY (exchange_address, timestamp, id)
`

// Archive buffers swaps and writes them to ClickHouse in batches. Rows are
// deduplicated by id on merge, so a replayed range does not double count.
type Archive struct {
	conn   driver.Conn
	logger zerolog.Logger

	mu      sync.Mutex
	pending []stats.SwapEvent
	flushCh chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Open connects, creates the swap_events table and starts the flusher
func Open(ctx context.Context, cfg *config.ClickHouseConfig, logger zerolog.Logger) (*Archive, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: cfg.Timeout,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return New(ctx, conn, logger)
}

// New wraps an open connection
func New(ctx context.Context, conn driver.Conn, logger zerolog.Logger) (*Archive, error) {
	if err := conn.Exec(ctx, createSwapEvents); err != nil {
		return nil, fmt.Errorf("create swap_events: %w", err)
	}

	fctx, cancel := context.WithCancel(context.Background())
	a := &Archive{
		conn:    conn,
		logger:  logger.With().Str("component", "clickhouse-archive").Logger(),
		flushCh: make(chan struct{}, 1),
		ctx:     fctx,
		cancel:  cancel,
	}
	a.startFlusher()

	a.logger.Info().Msg("Swap archive ready")
	return a, nil
}

func (a *Archive) startFlusher() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-a.ctx.Done():
				return
			case <-ticker.C:
				a.flushLogged(a.ctx)
			case <-a.flushCh:
				a.flushLogged(a.ctx)
			}
		}
	}()
}

// PublishSwap buffers a swap for the next batch
func (a *Archive) PublishSwap(_ context.Context, ev stats.SwapEvent) {
	a.mu.Lock()
	if len(a.pending) >= maxBuffered {
		a.mu.Unlock()
		a.logger.Warn().Str("swap", ev.ID).Msg("Archive buffer full, dropping swap")
		return
	}
	a.pending = append(a.pending, ev)
	full := len(a.pending) >= flushSize
	a.mu.Unlock()

	if full {
		select {
		case a.flushCh <- struct{}{}:
		default:
		}
	}
}

// Flush writes buffered swaps now
func (a *Archive) Flush(ctx context.Context) error {
	a.mu.Lock()
	swaps := a.pending
	a.pending = nil
	a.mu.Unlock()

	if len(swaps) == 0 {
		return nil
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO swap_events (
			id, transaction_hash, block_number, timestamp, user_address,
			exchange_address, exchange_name, token_in, token_out,
			amount_in, amount_out, fee, gas_price, gas_used
		)
	`)
	if err != nil {
		a.requeue(swaps)
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, sw := range swaps {
		err = batch.Append(
			sw.ID,
			sw.TransactionHash,
			sw.BlockNumber,
			time.Unix(int64(sw.Timestamp), 0).UTC(),
			sw.UserAddress,
			sw.ExchangeAddress,
			sw.ExchangeName,
			sw.TokenInAddress,
			sw.TokenOutAddress,
			orZero(sw.AmountIn),
			orZero(sw.AmountOut),
			orZero(sw.Fee),
			orZero(sw.GasPrice),
			orZero(sw.GasUsed),
		)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append swap %s: %w", sw.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		a.requeue(swaps)
		return fmt.Errorf("send batch: %w", err)
	}

	a.logger.Debug().Int("count", len(swaps)).Msg("Archived swaps")
	return nil
}

func (a *Archive) flushLogged(ctx context.Context) {
	if err := a.Flush(ctx); err != nil && ctx.Err() == nil {
		a.logger.Error().Err(err).Msg("Failed to archive swaps")
	}
}

// requeue puts a failed batch back in front of anything queued since
func (a *Archive) requeue(swaps []stats.SwapEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(swaps)+len(a.pending) > maxBuffered {
		a.logger.Warn().Int("count", len(swaps)).Msg("Archive buffer full, dropping failed batch")
		return
	}
	a.pending = append(swaps, a.pending...)
}

// Pending returns the number of buffered swaps
func (a *Archive) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// ExchangeVolume is a per-venue rollup over the archive
type ExchangeVolume struct {
	ExchangeAddress string
	Swaps           uint64
	AmountIn        *big.Int
}

// VolumeByExchange sums swaps per exchange in [from, to)
func (a *Archive) VolumeByExchange(ctx context.Context, from, to time.Time) ([]ExchangeVolume, error) {
	rows, err := a.conn.Query(ctx, `
		SELECT exchange_address, count() AS swaps, sum(amount_in) AS amount_in
		FROM swap_events FINAL
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY exchange_address
		ORDER BY swaps DESC, exchange_address
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query volume: %w", err)
	}
	defer rows.Close()

	var out []ExchangeVolume
	for rows.Next() {
		v := ExchangeVolume{AmountIn: new(big.Int)}
		if err := rows.Scan(&v.ExchangeAddress, &v.Swaps, v.AmountIn); err != nil {
			return nil, fmt.Errorf("scan volume: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Close stops the flusher, writes what is left and closes the connection
func (a *Archive) Close() error {
	a.cancel()
	a.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Flush(ctx); err != nil {
		a.logger.Error().Err(err).Int("pending", a.Pending()).Msg("Final archive flush failed")
	}
	return a.conn.Close()
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
