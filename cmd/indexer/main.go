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
	"golang.org/x/sync/errgroup"

	"github.com/monorail-xyz/envio-stats-indexer/internal/app"
	"github.com/monorail-xyz/envio-stats-indexer/internal/config"
	"github.com/monorail-xyz/envio-stats-indexer/internal/scheduler"
)

func main() {
	// Parse command-line flags
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging)

	logger.Info().
		Str("version", "0.1.0").
		Str("config", configPath).
		Str("store", cfg.Store.Backend).
		Int("chains", len(cfg.Chains)).
		Msg("Starting aggregator stats indexer")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize indexer")
	}
	defer a.Close()

	if cfg.Reporter.Enabled {
		sources := make([]scheduler.ProgressSource, 0, len(a.Indexers))
		for _, idx := range a.Indexers {
			sources = append(sources, idx)
		}
		reporter, err := scheduler.NewStatsReporter(a.Store, sources, cfg.Reporter.Interval, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create stats reporter")
		}
		if err := reporter.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start stats reporter")
		}
		defer reporter.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, idx := range a.Indexers {
		g.Go(func() error {
			return idx.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Indexer stopped with error")
		a.Close()
		os.Exit(1)
	}

	logger.Info().Msg("Indexer shutdown complete")
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set time format
	zerolog.TimeFieldFormat = time.RFC3339Nano

	// Parse log level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	// Configure output format
	var logger zerolog.Logger
	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05.000",
		}
		logger = zerolog.New(output).Level(level).With().Timestamp().Caller().Logger()
	} else {
		logger = zerolog.New(os.Stdout).Level(level).With().Timestamp().Caller().Logger()
	}

	return logger
}
