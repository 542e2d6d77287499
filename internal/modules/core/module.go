package core

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/monorail-xyz/envio-stats-indexer/internal/pipeline"
)

// Module handles the logs of one contract family
type Module interface {
	// Name returns the unique name of the module
	Name() string

	// EventFilters returns the events this module wants to receive
	EventFilters() []EventFilter

	// HandleEvent processes a single log together with its transaction
	HandleEvent(ctx context.Context, log *types.Log, tx pipeline.TxContext) error
}

// EventFilter selects logs by event signature and, optionally, emitter
type EventFilter struct {
	// Address is the contract to watch; the zero address matches any emitter
	Address common.Address

	// Topic0 is the event signature hash
	Topic0 common.Hash
}

// Matches reports whether log passes the filter
func (f EventFilter) Matches(log *types.Log) bool {
	if len(log.Topics) == 0 || log.Topics[0] != f.Topic0 {
		return false
	}
	return f.Address == (common.Address{}) || f.Address == log.Address
}
