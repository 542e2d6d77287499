package pipeline

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TxContext is the transaction metadata delivered with each log. Optional
// fields are resolved through the accessors below, never read directly.
type TxContext struct {
	Hash        common.Hash
	From        *common.Address
	Input       []byte
	GasPrice    *big.Int
	Gas         *big.Int
	Value       *big.Int
	BlockNumber uint64
	// Timestamp is unix seconds; zero means the source did not supply one
	Timestamp uint64
}

// GasPriceOrZero returns the gas price, or 0 when absent
func (tx TxContext) GasPriceOrZero() *big.Int {
	if tx.GasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(tx.GasPrice)
}

// GasOrZero returns the gas limit, or 0 when absent
func (tx TxContext) GasOrZero() *big.Int {
	if tx.Gas == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(tx.Gas)
}

// Fee is gas price times gas limit
func (tx TxContext) Fee() *big.Int {
	return new(big.Int).Mul(tx.GasPriceOrZero(), tx.GasOrZero())
}

// BlockTime returns the block timestamp, falling back to the wall clock
func (tx TxContext) BlockTime(now func() time.Time) uint64 {
	if tx.Timestamp != 0 {
		return tx.Timestamp
	}
	return uint64(now().Unix())
}

// Aggregation is the aggregator's per-call summary event. The calldata
// protocol emits it as Aggregation; later protocols emit the same shape as
// Aggregated.
type Aggregation struct {
	ChainID   uint64
	LogIndex  uint
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
	FeeAmount *big.Int
	Tx        TxContext
}

// AggregatedTrade is one routed step already decoded on-chain
type AggregatedTrade struct {
	ChainID  uint64
	LogIndex uint
	Router   common.Address
	TokenIn  common.Address
	TokenOut common.Address
	Amount   *big.Int
	Tx       TxContext
}
