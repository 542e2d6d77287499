package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/monorail-xyz/envio-stats-indexer/internal/pipeline"
)

const (
	// maxLogRange is a conservative eth_getLogs span accepted by most providers
	maxLogRange = uint64(2000)
	// maxBatchSize bounds a single JSON-RPC batch
	maxBatchSize = 100

	timestampCacheSize = 4096
	logRetries         = 3
)

// ErrTransactionNotFound is returned when the node has no record of a hash
var ErrTransactionNotFound = errors.New("transaction not found")

// Client wraps an Ethereum JSON-RPC client with the lookups the indexer needs
type Client struct {
	rpc     *rpc.Client
	client  *ethclient.Client
	chainID uint64
	logger  zerolog.Logger

	timestamps *lru.Cache[uint64, uint64]
}

// NewClient dials endpoint over HTTP
func NewClient(ctx context.Context, endpoint string, chainID uint64, logger zerolog.Logger) (*Client, error) {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	rpcClient, err := rpc.DialHTTPWithClient(endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	c := NewClientWithRPC(rpcClient, chainID, logger)
	c.verifyChainID(ctx)

	c.logger.Info().
		Str("endpoint", endpoint).
		Uint64("chain_id", chainID).
		Msg("Connected to RPC endpoint")

	return c, nil
}

// NewClientWithRPC wraps an already dialed RPC client
func NewClientWithRPC(rpcClient *rpc.Client, chainID uint64, logger zerolog.Logger) *Client {
	return &Client{
		rpc:        rpcClient,
		client:     ethclient.NewClient(rpcClient),
		chainID:    chainID,
		logger:     logger.With().Str("component", "rpc").Uint64("chain_id", chainID).Logger(),
		timestamps: lru.NewCache[uint64, uint64](timestampCacheSize),
	}
}

func (c *Client) verifyChainID(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	networkID, err := c.client.ChainID(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to verify chain ID, continuing anyway")
		return
	}
	if networkID.Uint64() != c.chainID {
		c.logger.Warn().
			Uint64("expected", c.chainID).
			Uint64("got", networkID.Uint64()).
			Msg("Chain ID mismatch, continuing anyway")
	}
}

func (c *Client) Close() {
	c.client.Close()
	c.logger.Info().Msg("RPC client connection closed")
}

func (c *Client) ChainID() uint64 {
	return c.chainID
}

// LatestBlockNumber returns the head block number
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	blockNumber, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block number: %w", err)
	}
	return blockNumber, nil
}

// FilterLogs fetches logs for [fromBlock, toBlock], splitting wide ranges
// into concurrent chunks. The result is unordered.
func (c *Client) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error) {
	if fromBlock > toBlock {
		return nil, fmt.Errorf("invalid range: from %d > to %d", fromBlock, toBlock)
	}

	if toBlock-fromBlock+1 <= maxLogRange {
		return c.filterLogsRange(ctx, fromBlock, toBlock, addresses, topics)
	}

	numChunks := (toBlock - fromBlock + maxLogRange) / maxLogRange
	maxConcurrency := int64(4)
	if numChunks < 4 {
		maxConcurrency = int64(numChunks)
	}
	sem := semaphore.NewWeighted(maxConcurrency)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		allLogs  []types.Log
		fetchErr error
	)

	for start := fromBlock; start <= toBlock; start += maxLogRange {
		end := min(start+maxLogRange-1, toBlock)

		wg.Add(1)
		go func(chunkStart, chunkEnd uint64) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				if fetchErr == nil {
					fetchErr = err
				}
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			logs, err := c.filterLogsRange(ctx, chunkStart, chunkEnd, addresses, topics)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if fetchErr == nil {
					fetchErr = err
				}
				return
			}
			allLogs = append(allLogs, logs...)
		}(start, end)

		if end == toBlock {
			break
		}
	}

	wg.Wait()
	if fetchErr != nil {
		return nil, fetchErr
	}

	c.logger.Debug().
		Uint64("from", fromBlock).
		Uint64("to", toBlock).
		Int("total_logs", len(allLogs)).
		Uint64("chunks", numChunks).
		Msg("Fetched logs in chunks")

	return allLogs, nil
}

func (c *Client) filterLogsRange(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error) {
	startTime := time.Now()

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
		Topics:    topics,
	}

	var logs []types.Log
	err := c.Retry(ctx, func() error {
		var err error
		logs, err = c.client.FilterLogs(ctx, query)
		return err
	}, logRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs for range %d-%d: %w", fromBlock, toBlock, err)
	}

	c.logger.Debug().
		Uint64("from", fromBlock).
		Uint64("to", toBlock).
		Int("logs", len(logs)).
		Dur("elapsed", time.Since(startTime)).
		Msg("Fetched logs range")

	return logs, nil
}

// TransactionContexts resolves the metadata for each hash using batched
// eth_getTransactionByHash calls plus cached block timestamps.
func (c *Client) TransactionContexts(ctx context.Context, hashes []common.Hash) (map[common.Hash]pipeline.TxContext, error) {
	out := make(map[common.Hash]pipeline.TxContext, len(hashes))
	if len(hashes) == 0 {
		return out, nil
	}

	txs := make([]*RawTransaction, len(hashes))
	for start := 0; start < len(hashes); start += maxBatchSize {
		end := min(start+maxBatchSize, len(hashes))

		batch := make([]rpc.BatchElem, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, rpc.BatchElem{
				Method: "eth_getTransactionByHash",
				Args:   []interface{}{hashes[i]},
				Result: &txs[i],
			})
		}

		if err := c.rpc.BatchCallContext(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to fetch transactions: %w", err)
		}
		for i, elem := range batch {
			if elem.Error != nil {
				return nil, fmt.Errorf("failed to fetch transaction %s: %w", hashes[start+i].Hex(), elem.Error)
			}
		}
	}

	var blocks []uint64
	seen := make(map[uint64]bool)
	for i, tx := range txs {
		if tx == nil {
			return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, hashes[i].Hex())
		}
		if tx.BlockNumber == nil {
			continue
		}
		n := (*big.Int)(tx.BlockNumber).Uint64()
		if !seen[n] {
			seen[n] = true
			blocks = append(blocks, n)
		}
	}

	timestamps, err := c.BlockTimestamps(ctx, blocks)
	if err != nil {
		return nil, err
	}

	for _, tx := range txs {
		var ts uint64
		if tx.BlockNumber != nil {
			ts = timestamps[(*big.Int)(tx.BlockNumber).Uint64()]
		}
		out[tx.Hash] = tx.Context(ts)
	}

	return out, nil
}

// BlockTimestamps returns unix timestamps for the given blocks, fetching
// only those not already cached.
func (c *Client) BlockTimestamps(ctx context.Context, numbers []uint64) (map[uint64]uint64, error) {
	out := make(map[uint64]uint64, len(numbers))

	var missing []uint64
	for _, n := range numbers {
		if ts, ok := c.timestamps.Get(n); ok {
			out[n] = ts
			continue
		}
		missing = append(missing, n)
	}

	for start := 0; start < len(missing); start += maxBatchSize {
		end := min(start+maxBatchSize, len(missing))

		headers := make([]*RawHeader, end-start)
		batch := make([]rpc.BatchElem, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, rpc.BatchElem{
				Method: "eth_getBlockByNumber",
				Args:   []interface{}{hexutil.EncodeUint64(missing[i]), false},
				Result: &headers[i-start],
			})
		}

		if err := c.rpc.BatchCallContext(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to fetch block headers: %w", err)
		}

		for i, elem := range batch {
			n := missing[start+i]
			if elem.Error != nil {
				return nil, fmt.Errorf("failed to fetch block %d: %w", n, elem.Error)
			}
			if headers[i] == nil {
				c.logger.Warn().Uint64("block", n).Msg("Block not found, timestamp unavailable")
				continue
			}
			ts := uint64(headers[i].Timestamp)
			c.timestamps.Add(n, ts)
			out[n] = ts
		}
	}

	return out, nil
}

// Retry runs fn up to maxRetries times with linear backoff
func (c *Client) Retry(ctx context.Context, fn func() error, maxRetries int) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = fn(); err == nil {
			return nil
		}

		if i < maxRetries-1 {
			waitTime := time.Duration(i+1) * time.Second
			c.logger.Warn().
				Err(err).
				Int("attempt", i+1).
				Dur("wait", waitTime).
				Msg("Retrying RPC call")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitTime):
				continue
			}
		}
	}
	return fmt.Errorf("max retries exceeded: %w", err)
}

func withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 30*time.Second)
}
