package aggregator

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/monorail-xyz/envio-stats-indexer/internal/modules/core"
	"github.com/monorail-xyz/envio-stats-indexer/internal/pipeline"
)

// registerEventHandlers sets up event signature to handler mappings
func (m *Module) registerEventHandlers() error {
	for name, handler := range map[string]EventHandler{
		"Aggregation":     handleAggregation,
		"Aggregated":      handleAggregated,
		"AggregatedTrade": handleAggregatedTrade,
	} {
		ev, ok := m.eventsABI.Events[name]
		if !ok {
			return fmt.Errorf("event %s missing from ABI", name)
		}
		m.handlers[ev.ID] = handler
	}
	return nil
}

// handleAggregation processes the calldata-era summary event
func handleAggregation(ctx context.Context, m *Module, event *core.ParsedEvent, tx pipeline.TxContext) error {
	ev, err := m.aggregation(event, tx, "tokenAddress", "outTokenAddress")
	if err != nil {
		return err
	}
	return m.handler.HandleAggregation(ctx, ev)
}

// handleAggregated processes the summary event of later deployments
func handleAggregated(ctx context.Context, m *Module, event *core.ParsedEvent, tx pipeline.TxContext) error {
	ev, err := m.aggregation(event, tx, "tokenIn", "tokenOut")
	if err != nil {
		return err
	}
	return m.handler.HandleAggregated(ctx, ev)
}

// handleAggregatedTrade processes one routed step
func handleAggregatedTrade(ctx context.Context, m *Module, event *core.ParsedEvent, tx pipeline.TxContext) error {
	router, err := event.AddressArg("router")
	if err != nil {
		return err
	}
	tokenIn, err := event.AddressArg("tokenIn")
	if err != nil {
		return err
	}
	tokenOut, err := event.AddressArg("tokenOut")
	if err != nil {
		return err
	}
	amount, err := event.BigArg("amount")
	if err != nil {
		return err
	}

	return m.handler.HandleAggregatedTrade(ctx, pipeline.AggregatedTrade{
		ChainID:  m.chainID,
		LogIndex: event.LogIndex,
		Router:   router,
		TokenIn:  tokenIn,
		TokenOut: tokenOut,
		Amount:   amount,
		Tx:       m.withBlock(event, tx),
	})
}

func (m *Module) aggregation(event *core.ParsedEvent, tx pipeline.TxContext, inName, outName string) (pipeline.Aggregation, error) {
	tokenIn, err := event.AddressArg(inName)
	if err != nil {
		return pipeline.Aggregation{}, err
	}
	tokenOut, err := event.AddressArg(outName)
	if err != nil {
		return pipeline.Aggregation{}, err
	}
	amount, err := event.BigArg("amount")
	if err != nil {
		return pipeline.Aggregation{}, err
	}
	destination, err := event.BigArg("destinationAmount")
	if err != nil {
		return pipeline.Aggregation{}, err
	}
	fee, err := event.BigArg("feeAmount")
	if err != nil {
		return pipeline.Aggregation{}, err
	}

	return pipeline.Aggregation{
		ChainID:   m.chainID,
		LogIndex:  event.LogIndex,
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AmountIn:  amount,
		AmountOut: destination,
		FeeAmount: fee,
		Tx:        m.withBlock(event, tx),
	}, nil
}

// withBlock fills identity fields the transaction lookup may not carry
func (m *Module) withBlock(event *core.ParsedEvent, tx pipeline.TxContext) pipeline.TxContext {
	if tx.Hash == (common.Hash{}) {
		tx.Hash = event.TransactionHash
	}
	if tx.BlockNumber == 0 {
		tx.BlockNumber = event.BlockNumber
	}
	return tx
}
