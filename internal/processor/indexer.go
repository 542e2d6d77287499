package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/monorail-xyz/envio-stats-indexer/internal/config"
	"github.com/monorail-xyz/envio-stats-indexer/internal/pipeline"
	"github.com/monorail-xyz/envio-stats-indexer/internal/stats"
)

const (
	maxConsecutiveErrors = 10
	txLookupChunk        = 100
)

// Source is the chain access the indexer needs. *rpc.Client implements it.
type Source interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error)
	TransactionContexts(ctx context.Context, hashes []common.Hash) (map[common.Hash]pipeline.TxContext, error)
}

// Router dispatches logs to handlers. *core.ModuleRegistry implements it.
type Router interface {
	ProcessEvent(ctx context.Context, log *types.Log, tx pipeline.TxContext) error
	Addresses() []common.Address
	Topics() []common.Hash
}

// Progress is a point-in-time view of an indexer
type Progress struct {
	ChainID   uint64
	LastBlock uint64
	Processed uint64
	Failed    uint64
}

// Indexer follows one chain: it fetches matching logs in bounded block
// ranges, orders them by (block, log index) and hands them to the router one
// at a time. The cursor is saved after every log so a restart never applies
// a log twice.
type Indexer struct {
	chain  config.ChainConfig
	source Source
	router Router
	store  stats.Store
	logger zerolog.Logger

	mu     sync.Mutex
	cursor *stats.IndexerState

	processed atomic.Uint64
	failed    atomic.Uint64
	lastBlock atomic.Uint64
}

// NewIndexer creates an indexer for chain
func NewIndexer(chain config.ChainConfig, source Source, router Router, store stats.Store, logger zerolog.Logger) *Indexer {
	return &Indexer{
		chain:  chain,
		source: source,
		router: router,
		store:  store,
		logger: logger.With().Str("component", "indexer").Uint64("chain_id", chain.ChainID).Logger(),
	}
}

// CursorID is the IndexerState key for a chain
func CursorID(chainID uint64) string {
	return fmt.Sprintf("chain-%d", chainID)
}

// Run syncs until ctx is cancelled or too many consecutive errors occur
func (i *Indexer) Run(ctx context.Context) error {
	i.logger.Info().
		Str("name", i.chain.Name).
		Uint64("start_block", i.chain.StartBlock).
		Uint64("block_range", i.chain.BlockRange).
		Msg("Starting indexer")

	consecutiveErrors := 0
	for {
		if ctx.Err() != nil {
			i.logger.Info().Msg("Sync loop stopped")
			return nil
		}

		progressed, err := i.SyncOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			consecutiveErrors++
			i.logger.Error().
				Err(err).
				Int("consecutive_errors", consecutiveErrors).
				Msg("Sync step failed")
			if consecutiveErrors >= maxConsecutiveErrors {
				return fmt.Errorf("chain %d: too many consecutive errors: %w", i.chain.ChainID, err)
			}
			if !sleep(ctx, 5*time.Second) {
				return nil
			}
			continue
		}
		consecutiveErrors = 0

		if !progressed {
			if !sleep(ctx, i.chain.PollInterval) {
				return nil
			}
		}
	}
}

// SyncOnce processes the next block range, if any. It reports whether a
// range was processed.
func (i *Indexer) SyncOnce(ctx context.Context) (bool, error) {
	cursor, err := i.loadCursor(ctx)
	if err != nil {
		return false, err
	}

	latest, err := i.source.LatestBlockNumber(ctx)
	if err != nil {
		return false, err
	}
	if latest < i.chain.Confirmations {
		return false, nil
	}
	head := latest - i.chain.Confirmations

	var from uint64
	switch {
	case cursor == nil && i.chain.StartBlock == 0:
		from = head
		i.logger.Info().Uint64("block", from).Msg("Starting from latest block")
	case cursor == nil:
		from = i.chain.StartBlock
	case cursor.HasLog:
		// The cursor block may hold logs after the last applied one
		from = cursor.LastBlock
	default:
		from = cursor.LastBlock + 1
	}

	if from > head {
		i.logger.Debug().
			Uint64("next", from).
			Uint64("head", head).
			Msg("Caught up with chain")
		return false, nil
	}

	to := head
	if i.chain.BlockRange > 0 && to-from+1 > i.chain.BlockRange {
		to = from + i.chain.BlockRange - 1
	}

	startTime := time.Now()
	if err := i.processRange(ctx, from, to, cursor, true); err != nil {
		return false, err
	}

	i.logger.Info().
		Uint64("from", from).
		Uint64("to", to).
		Uint64("lag", head-to).
		Dur("duration", time.Since(startTime)).
		Msg("Range processed")

	return true, nil
}

// Backfill replays [from, to] in BlockRange chunks without reading or
// moving the cursor. Counters are cumulative, so replaying a range that was
// already applied counts it twice.
func (i *Indexer) Backfill(ctx context.Context, from, to uint64) error {
	if from > to {
		return fmt.Errorf("invalid range: from %d > to %d", from, to)
	}

	step := i.chain.BlockRange
	if step == 0 {
		step = to - from + 1
	}

	for start := from; start <= to; start += step {
		end := min(start+step-1, to)
		if err := i.processRange(ctx, start, end, nil, false); err != nil {
			return fmt.Errorf("backfill %d-%d: %w", start, end, err)
		}
		i.logger.Info().
			Uint64("from", start).
			Uint64("to", end).
			Uint64("processed", i.processed.Load()).
			Msg("Backfill range processed")
		if end == to {
			break
		}
	}
	return nil
}

// Progress returns counters for reporting
func (i *Indexer) Progress() Progress {
	return Progress{
		ChainID:   i.chain.ChainID,
		LastBlock: i.lastBlock.Load(),
		Processed: i.processed.Load(),
		Failed:    i.failed.Load(),
	}
}

func (i *Indexer) processRange(ctx context.Context, from, to uint64, cursor *stats.IndexerState, track bool) error {
	topics := i.router.Topics()
	if len(topics) == 0 {
		return fmt.Errorf("no event topics registered")
	}

	logs, err := i.source.FilterLogs(ctx, from, to, i.router.Addresses(), [][]common.Hash{topics})
	if err != nil {
		return err
	}

	logs = orderLogs(logs, cursor)

	txs, err := i.fetchTransactions(ctx, logs)
	if err != nil {
		return err
	}

	for idx := range logs {
		log := &logs[idx]

		tx, ok := txs[log.TxHash]
		if !ok {
			tx = pipeline.TxContext{Hash: log.TxHash, BlockNumber: log.BlockNumber}
		}

		if err := i.router.ProcessEvent(ctx, log, tx); err != nil {
			// Handler failures are not retried; the log is counted and skipped
			i.failed.Add(1)
		} else {
			i.processed.Add(1)
		}

		if track {
			if err := i.saveCursor(ctx, log.BlockNumber, log.Index, true); err != nil {
				return err
			}
		}
	}

	if track {
		if err := i.saveCursor(ctx, to, 0, false); err != nil {
			return err
		}
	}
	i.lastBlock.Store(to)

	return nil
}

// fetchTransactions resolves the transaction of every log with bounded
// concurrency
func (i *Indexer) fetchTransactions(ctx context.Context, logs []types.Log) (map[common.Hash]pipeline.TxContext, error) {
	var hashes []common.Hash
	seen := make(map[common.Hash]bool)
	for _, log := range logs {
		if !seen[log.TxHash] {
			seen[log.TxHash] = true
			hashes = append(hashes, log.TxHash)
		}
	}

	out := make(map[common.Hash]pipeline.TxContext, len(hashes))
	if len(hashes) == 0 {
		return out, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if i.chain.FetchWorkers > 0 {
		g.SetLimit(int(i.chain.FetchWorkers))
	}

	for start := 0; start < len(hashes); start += txLookupChunk {
		chunk := hashes[start:min(start+txLookupChunk, len(hashes))]
		g.Go(func() error {
			txs, err := i.source.TransactionContexts(gctx, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			for h, tx := range txs {
				out[h] = tx
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	return out, nil
}

func (i *Indexer) loadCursor(ctx context.Context) (*stats.IndexerState, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.cursor != nil {
		c := *i.cursor
		return &c, nil
	}

	state, err := stats.Get[stats.IndexerState](ctx, i.store, stats.KindIndexerState, CursorID(i.chain.ChainID))
	switch {
	case errors.Is(err, stats.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load cursor: %w", err)
	}

	i.cursor = state
	i.lastBlock.Store(state.LastBlock)
	c := *state
	return &c, nil
}

func (i *Indexer) saveCursor(ctx context.Context, block uint64, logIndex uint, hasLog bool) error {
	state := &stats.IndexerState{
		ID:           CursorID(i.chain.ChainID),
		ChainID:      i.chain.ChainID,
		LastBlock:    block,
		LastLogIndex: logIndex,
		HasLog:       hasLog,
		UpdatedAt:    time.Now().Unix(),
	}
	if err := stats.Put(ctx, i.store, stats.KindIndexerState, state.ID, state); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}

	i.mu.Lock()
	i.cursor = state
	i.mu.Unlock()
	return nil
}

// orderLogs drops removed logs and logs at or before the cursor, then sorts
// the rest by (block, log index)
func orderLogs(logs []types.Log, cursor *stats.IndexerState) []types.Log {
	out := logs[:0]
	for _, log := range logs {
		if log.Removed {
			continue
		}
		if cursor != nil && cursor.HasLog {
			if log.BlockNumber < cursor.LastBlock ||
				(log.BlockNumber == cursor.LastBlock && log.Index <= cursor.LastLogIndex) {
				continue
			}
		}
		out = append(out, log)
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].BlockNumber != out[b].BlockNumber {
			return out[a].BlockNumber < out[b].BlockNumber
		}
		return out[a].Index < out[b].Index
	})
	return out
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
