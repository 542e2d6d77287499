package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/monorail-xyz/envio-stats-indexer/internal/pipeline"
)

// ModuleRegistry routes logs to the modules whose filters match them
type ModuleRegistry struct {
	mu      sync.RWMutex
	modules map[string]Module
	order   []string
	logger  zerolog.Logger
	byTopic map[common.Hash][]registeredFilter
}

type registeredFilter struct {
	module string
	filter EventFilter
}

// NewModuleRegistry creates an empty registry
func NewModuleRegistry(logger zerolog.Logger) *ModuleRegistry {
	return &ModuleRegistry{
		modules:      make(map[string]Module),
		logger:       logger.With().Str("component", "module_registry").Logger(),
		byTopic:      make(map[common.Hash][]registeredFilter),
	}
}

// RegisterModule adds module under its name. Names must be unique and every
// module needs at least one filter.
func (r *ModuleRegistry) RegisterModule(module Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := module.Name()
	if _, exists := r.modules[name]; exists {
		return fmt.Errorf("duplicate module name %s", name)
	}

	filters := module.EventFilters()
	if len(filters) == 0 {
		return fmt.Errorf("module %s declares no filters", name)
	}

	for _, filter := range filters {
		r.byTopic[filter.Topic0] = append(r.byTopic[filter.Topic0], registeredFilter{module: name, filter: filter})
		r.logger.Debug().
			Str("module", name).
			Str("topic0", filter.Topic0.Hex()).
			Str("address", filter.Address.Hex()).
			Msg("Filter indexed")
	}

	r.modules[name] = module
	r.order = append(r.order, name)

	r.logger.Info().
		Str("module", name).
		Int("filters", len(filters)).
		Msg("Module registered")

	return nil
}

// ProcessEvent hands log to every interested module in registration order.
// All modules run; their errors are joined.
func (r *ModuleRegistry) ProcessEvent(ctx context.Context, log *types.Log, tx pipeline.TxContext) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, name := range r.matching(log) {
		if err := r.modules[name].HandleEvent(ctx, log, tx); err != nil {
			r.logger.Error().
				Err(err).
				Str("module", name).
				Uint64("block", log.BlockNumber).
				Uint("log_index", log.Index).
				Str("tx_hash", log.TxHash.Hex()).
				Msg("Module handler failed")
			errs = append(errs, fmt.Errorf("module %s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// matching lists each module with a filter accepting log, once
func (r *ModuleRegistry) matching(log *types.Log) []string {
	if len(log.Topics) == 0 {
		return nil
	}

	var names []string
	for _, rf := range r.byTopic[log.Topics[0]] {
		if rf.filter.Matches(log) && !slices.Contains(names, rf.module) {
			names = append(names, rf.module)
		}
	}
	return names
}

// Addresses returns the distinct emitters named by filters. A nil result
// means at least one filter accepts any emitter.
func (r *ModuleRegistry) Addresses() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var addrs []common.Address
	seen := make(map[common.Address]bool)
	for _, filters := range r.byTopic {
		for _, rf := range filters {
			if rf.filter.Address == (common.Address{}) {
				return nil
			}
			if !seen[rf.filter.Address] {
				seen[rf.filter.Address] = true
				addrs = append(addrs, rf.filter.Address)
			}
		}
	}
	return addrs
}

// Topics returns the distinct event signatures any module listens for
func (r *ModuleRegistry) Topics() []common.Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]common.Hash, 0, len(r.byTopic))
	for topic := range r.byTopic {
		topics = append(topics, topic)
	}
	return topics
}

// GetModule looks a module up by name
func (r *ModuleRegistry) GetModule(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	module, exists := r.modules[name]
	return module, exists
}

// ListModules returns registered module names in registration order
func (r *ModuleRegistry) ListModules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}
