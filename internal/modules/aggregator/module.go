// Package aggregator turns aggregator contract logs into pipeline events.
package aggregator

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/monorail-xyz/envio-stats-indexer/internal/modules/core"
	"github.com/monorail-xyz/envio-stats-indexer/internal/pipeline"
)

// Handler consumes decoded aggregator events. *pipeline.Pipeline implements it.
type Handler interface {
	HandleAggregation(ctx context.Context, ev pipeline.Aggregation) error
	HandleAggregated(ctx context.Context, ev pipeline.Aggregation) error
	HandleAggregatedTrade(ctx context.Context, tr pipeline.AggregatedTrade) error
}

// EventHandler function type for handling specific events
type EventHandler func(ctx context.Context, module *Module, event *core.ParsedEvent, tx pipeline.TxContext) error

// Module watches the aggregator deployments of one chain
type Module struct {
	chainID   uint64
	addresses []common.Address
	logger    zerolog.Logger
	parser    *core.EventParser
	eventsABI *abi.ABI
	handler   Handler

	// Event handlers
	handlers map[common.Hash]EventHandler
}

var _ core.Module = (*Module)(nil)

// New creates the module for the aggregator contracts at addresses
func New(chainID uint64, addresses []common.Address, handler Handler, logger zerolog.Logger) (*Module, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("no aggregator addresses for chain %d", chainID)
	}

	m := &Module{
		chainID:   chainID,
		addresses: addresses,
		logger:    logger.With().Str("module", "aggregator").Uint64("chain_id", chainID).Logger(),
		parser:    core.NewEventParser(),
		handler:   handler,
		handlers:  make(map[common.Hash]EventHandler),
	}

	if err := m.initializeABIs(); err != nil {
		return nil, fmt.Errorf("failed to initialize ABIs: %w", err)
	}
	if err := m.registerEventHandlers(); err != nil {
		return nil, fmt.Errorf("failed to register event handlers: %w", err)
	}

	return m, nil
}

func (m *Module) Name() string {
	return fmt.Sprintf("aggregator-%d", m.chainID)
}

// EventFilters returns one filter per (deployment, event) pair
func (m *Module) EventFilters() []core.EventFilter {
	filters := make([]core.EventFilter, 0, len(m.addresses)*len(m.handlers))
	for _, addr := range m.addresses {
		for _, name := range []string{"Aggregation", "Aggregated", "AggregatedTrade"} {
			filters = append(filters, core.EventFilter{
				Address: addr,
				Topic0:  m.eventsABI.Events[name].ID,
			})
		}
	}
	return filters
}

// HandleEvent parses log and forwards it to the matching handler
func (m *Module) HandleEvent(ctx context.Context, log *types.Log, tx pipeline.TxContext) error {
	if len(log.Topics) == 0 {
		return nil
	}

	handler, exists := m.handlers[log.Topics[0]]
	if !exists {
		return nil
	}

	parsedEvent, err := m.parser.ParseEvent(log)
	if err != nil {
		return fmt.Errorf("failed to parse event: %w", err)
	}

	if err := handler(ctx, m, parsedEvent, tx); err != nil {
		return fmt.Errorf("%s handler: %w", parsedEvent.EventName, err)
	}

	m.logger.Debug().
		Str("event", parsedEvent.EventName).
		Str("address", parsedEvent.Address.Hex()).
		Uint64("block", parsedEvent.BlockNumber).
		Uint("log_index", parsedEvent.LogIndex).
		Msg("Processed event")

	return nil
}
