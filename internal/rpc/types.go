package rpc

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/monorail-xyz/envio-stats-indexer/internal/pipeline"
)

// RawTransaction is the subset of eth_getTransactionByHash the indexer reads.
// Decoding the JSON directly keeps unknown transaction types and missing
// signature fields from failing the lookup.
type RawTransaction struct {
	Hash        common.Hash     `json:"hash"`
	BlockNumber *hexutil.Big    `json:"blockNumber"`
	From        *common.Address `json:"from"`
	To          *common.Address `json:"to"`
	Value       *hexutil.Big    `json:"value"`
	Gas         *hexutil.Big    `json:"gas"`
	GasPrice    *hexutil.Big    `json:"gasPrice"`
	Input       hexutil.Bytes   `json:"input"`
}

// RawHeader is the subset of eth_getBlockByNumber used for timestamps
type RawHeader struct {
	Number    *hexutil.Big   `json:"number"`
	Hash      common.Hash    `json:"hash"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

// Context converts the transaction to the metadata delivered with each log.
// A zero timestamp means the block time is unknown.
func (rt *RawTransaction) Context(timestamp uint64) pipeline.TxContext {
	tx := pipeline.TxContext{
		Hash:      rt.Hash,
		From:      rt.From,
		Input:     rt.Input,
		GasPrice:  toBig(rt.GasPrice),
		Gas:       toBig(rt.Gas),
		Value:     toBig(rt.Value),
		Timestamp: timestamp,
	}
	if rt.BlockNumber != nil {
		tx.BlockNumber = (*big.Int)(rt.BlockNumber).Uint64()
	}
	return tx
}

func toBig(v *hexutil.Big) *big.Int {
	if v == nil {
		return nil
	}
	return (*big.Int)(v)
}
