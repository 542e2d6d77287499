// Package app wires configuration into running indexers. It is shared by the
// indexer and backfill commands.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/monorail-xyz/envio-stats-indexer/internal/archive"
	"github.com/monorail-xyz/envio-stats-indexer/internal/config"
	"github.com/monorail-xyz/envio-stats-indexer/internal/database"
	"github.com/monorail-xyz/envio-stats-indexer/internal/decoder"
	"github.com/monorail-xyz/envio-stats-indexer/internal/modules/aggregator"
	"github.com/monorail-xyz/envio-stats-indexer/internal/modules/core"
	"github.com/monorail-xyz/envio-stats-indexer/internal/pipeline"
	"github.com/monorail-xyz/envio-stats-indexer/internal/processor"
	"github.com/monorail-xyz/envio-stats-indexer/internal/queue"
	"github.com/monorail-xyz/envio-stats-indexer/internal/realtime"
	"github.com/monorail-xyz/envio-stats-indexer/internal/routers"
	"github.com/monorail-xyz/envio-stats-indexer/internal/rpc"
	"github.com/monorail-xyz/envio-stats-indexer/internal/stats"
	"github.com/monorail-xyz/envio-stats-indexer/internal/store/memory"
	redisstore "github.com/monorail-xyz/envio-stats-indexer/internal/store/redis"
)

// App holds everything built from one configuration
type App struct {
	Store    stats.Store
	Engine   *stats.Engine
	Routers  *routers.Registry
	Indexers []*processor.Indexer

	logger  zerolog.Logger
	closers []io.Closer
}

// Build opens the store and sinks, then creates one indexer per chain. On
// error everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *App, err error) {
	a := &App{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Store, err = a.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Engine = stats.NewEngine(a.Store, logger)

	a.Routers, err = LoadRouters(cfg.Routers, logger)
	if err != nil {
		return nil, err
	}

	sinks, err := a.openSinks(ctx, cfg)
	if err != nil {
		return nil, err
	}

	for _, chain := range cfg.Chains {
		idx, err := a.buildIndexer(ctx, chain, sinks)
		if err != nil {
			return nil, fmt.Errorf("chain %d: %w", chain.ChainID, err)
		}
		a.Indexers = append(a.Indexers, idx)
	}

	return a, nil
}

// LoadRouters returns the built-in router table with the optional manifest
// merged over it
func LoadRouters(cfg config.RoutersConfig, logger zerolog.Logger) (*routers.Registry, error) {
	registry := routers.NewDefaultRegistry()
	if cfg.Manifest == "" {
		return registry, nil
	}

	manifest, err := routers.NewManifestLoader(logger).LoadFromFile(cfg.Manifest)
	if err != nil {
		return nil, err
	}
	manifest.Apply(registry)

	logger.Info().
		Str("manifest", cfg.Manifest).
		Int("routers", registry.Len()).
		Msg("Router manifest loaded")
	return registry, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (stats.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		a.logger.Warn().Msg("Using in-memory store, stats are lost on exit")
		return memory.New(), nil

	case "postgres":
		applied, err := database.RunMigrations(ctx, cfg.Database.ConnectionString(), a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		a.logger.Info().Int("applied", applied).Msg("Migrations complete")

		db, err := database.New(ctx, &cfg.Database, a.logger)
		if err != nil {
			return nil, err
		}
		store := database.NewEntityStore(db)
		a.closers = append(a.closers, store)
		return store, nil

	case "redis":
		store, err := redisstore.New(ctx, &cfg.Redis, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store)
		return store, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func (a *App) openSinks(ctx context.Context, cfg *config.Config) ([]pipeline.SwapSink, error) {
	var sinks []pipeline.SwapSink

	if cfg.Realtime.Enabled {
		p := realtime.NewPublisher(realtime.PublishConfig{
			APIURL: cfg.Realtime.APIURL,
			APIKey: cfg.Realtime.APIKey,
		}, a.logger)
		a.closers = append(a.closers, p)
		sinks = append(sinks, p)
		a.logger.Info().Str("url", cfg.Realtime.APIURL).Msg("Realtime publishing enabled")
	}

	if cfg.Kafka.Enabled {
		p := queue.NewSwapProducer(&cfg.Kafka, a.logger)
		a.closers = append(a.closers, p)
		sinks = append(sinks, p)
		a.logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka publishing enabled")
	}

	if cfg.ClickHouse.Enabled {
		arc, err := archive.Open(ctx, &cfg.ClickHouse, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, arc)
		sinks = append(sinks, arc)
	}

	return sinks, nil
}

func (a *App) buildIndexer(ctx context.Context, chain config.ChainConfig, sinks []pipeline.SwapSink) (*processor.Indexer, error) {
	logger := a.logger.With().Str("chain", chain.Name).Logger()

	wrapped, ok := a.Routers.WrappedNative(chain.ChainID)
	if !ok {
		logger.Warn().Msg("No wrapped native token configured, deposit and withdraw calls will not resolve")
	}

	dec, err := decoder.New(logger, wrapped)
	if err != nil {
		return nil, err
	}

	opts := make([]pipeline.Option, 0, len(sinks))
	for _, s := range sinks {
		opts = append(opts, pipeline.WithSink(s))
	}
	pipe := pipeline.New(a.Routers, dec, a.Engine, logger, opts...)

	client, err := rpc.NewClient(ctx, chain.RPCEndpoint, chain.ChainID, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closerFunc(client.Close))

	addresses := make([]common.Address, 0, len(chain.Aggregators))
	for _, addr := range chain.Aggregators {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid aggregator address %q", addr)
		}
		addresses = append(addresses, common.HexToAddress(addr))
	}

	module, err := aggregator.New(chain.ChainID, addresses, pipe, logger)
	if err != nil {
		return nil, err
	}

	registry := core.NewModuleRegistry(logger)
	if err := registry.RegisterModule(module); err != nil {
		return nil, err
	}

	return processor.NewIndexer(chain, client, registry, a.Store, logger), nil
}

// Indexer returns the indexer for chainID
func (a *App) Indexer(chainID uint64) (*processor.Indexer, bool) {
	for _, idx := range a.Indexers {
		if idx.Progress().ChainID == chainID {
			return idx, true
		}
	}
	return nil, false
}

// Close releases resources in reverse order of opening. Sinks flush before
// the store closes.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error().Err(err).Msg("Error during shutdown")
		}
	}
	a.closers = nil
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
