package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/monorail-xyz/envio-stats-indexer/internal/app"
	"github.com/monorail-xyz/envio-stats-indexer/internal/config"
)

// backfill replays a block range for one chain without moving its cursor.
// Counters are cumulative, so only replay ranges that were never applied.
func main() {
	var (
		configPath string
		chainID    uint64
		fromBlock  uint64
		toBlock    uint64
	)

	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Uint64Var(&chainID, "chain", 0, "Chain ID to backfill")
	flag.Uint64Var(&fromBlock, "from", 0, "Starting block")
	flag.Uint64Var(&toBlock, "to", 0, "Ending block")
	flag.Parse()

	if chainID == 0 {
		fmt.Fprintf(os.Stderr, "Chain ID is required\n")
		os.Exit(1)
	}
	if toBlock < fromBlock {
		fmt.Fprintf(os.Stderr, "Invalid range: from %d > to %d\n", fromBlock, toBlock)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	chain, ok := cfg.Chain(chainID)
	if !ok {
		fmt.Fprintf(os.Stderr, "Chain %d is not configured\n", chainID)
		os.Exit(1)
	}
	cfg.Chains = []config.ChainConfig{chain}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		Level(zerolog.DebugLevel).
		With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize backfill")
	}
	defer a.Close()

	idx, _ := a.Indexer(chainID)

	logger.Info().
		Uint64("chain_id", chainID).
		Uint64("from", fromBlock).
		Uint64("to", toBlock).
		Msg("Starting backfill")

	start := time.Now()
	if err := idx.Backfill(ctx, fromBlock, toBlock); err != nil {
		logger.Error().Err(err).Msg("Backfill failed")
		a.Close()
		os.Exit(1)
	}

	progress := idx.Progress()
	logger.Info().
		Uint64("processed", progress.Processed).
		Uint64("failed", progress.Failed).
		Dur("duration", time.Since(start)).
		Msg("Backfill complete")
}
