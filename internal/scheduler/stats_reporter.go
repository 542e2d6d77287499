package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/monorail-xyz/envio-stats-indexer/internal/processor"
	"github.com/monorail-xyz/envio-stats-indexer/internal/stats"
)

// ProgressSource is implemented by *processor.Indexer
type ProgressSource interface {
	Progress() processor.Progress
}

// ExchangeRanker is implemented by stores that can rank exchanges, such as
// *database.EntityStore
type ExchangeRanker interface {
	TopExchanges(ctx context.Context, limit int) ([]stats.Exchange, error)
}

const topExchanges = 5

// StatsReporter periodically logs global counters, today's activity and the
// progress of every indexer
type StatsReporter struct {
	store     stats.Store
	sources   []ProgressSource
	interval  time.Duration
	now       func() time.Time
	scheduler gocron.Scheduler
	logger    zerolog.Logger
}

func NewStatsReporter(store stats.Store, sources []ProgressSource, interval time.Duration, logger zerolog.Logger) (*StatsReporter, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if interval <= 0 {
		interval = time.Minute
	}

	return &StatsReporter{
		store:     store,
		sources:   sources,
		interval:  interval,
		now:       time.Now,
		scheduler: s,
		logger:    logger.With().Str("component", "stats-reporter").Logger(),
	}, nil
}

func (s *StatsReporter) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.report, ctx),
		gocron.WithName("report-stats"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	s.logger.Info().Dur("interval", s.interval).Msg("Stats reporter started")
	s.scheduler.Start()
	return nil
}

func (s *StatsReporter) Stop() {
	s.logger.Info().Msg("Stopping stats reporter")
	if err := s.scheduler.Shutdown(); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down scheduler")
	}
}

// Snapshot is what one report run observed
type Snapshot struct {
	Global   *stats.GlobalStats
	Today    *stats.DailyUserData
	Progress []processor.Progress
	Top      []stats.Exchange
}

// Collect reads the current counters. Missing entities are left nil.
func (s *StatsReporter) Collect(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	global, err := stats.Get[stats.GlobalStats](ctx, s.store, stats.KindGlobalStats, stats.GlobalStatsID)
	switch {
	case err == nil:
		snap.Global = global
	case !errors.Is(err, stats.ErrNotFound):
		return snap, err
	}

	day := stats.DayBucket(uint64(s.now().Unix()))
	today, err := stats.Get[stats.DailyUserData](ctx, s.store, stats.KindDailyUserData, day.ID)
	switch {
	case err == nil:
		snap.Today = today
	case !errors.Is(err, stats.ErrNotFound):
		return snap, err
	}

	for _, src := range s.sources {
		snap.Progress = append(snap.Progress, src.Progress())
	}

	if ranker, ok := s.store.(ExchangeRanker); ok {
		top, err := ranker.TopExchanges(ctx, topExchanges)
		if err != nil {
			return snap, err
		}
		snap.Top = top
	}
	return snap, nil
}

func (s *StatsReporter) report(ctx context.Context) {
	snap, err := s.Collect(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to collect stats")
		return
	}

	for _, p := range snap.Progress {
		s.logger.Info().
			Uint64("chain_id", p.ChainID).
			Uint64("last_block", p.LastBlock).
			Uint64("processed", p.Processed).
			Uint64("failed", p.Failed).
			Msg("Indexer progress")
	}

	if snap.Global == nil {
		s.logger.Info().Msg("No transactions indexed yet")
		return
	}

	event := s.logger.Info().
		Uint64("transactions", snap.Global.TotalTransactionCount).
		Uint64("unique_users", snap.Global.TotalUniqueUsers).
		Str("total_fee", snap.Global.TotalFee.String()).
		Str("total_gas_used", snap.Global.TotalGasUsed.String())
	if snap.Today != nil {
		event = event.
			Uint64("today_transactions", snap.Today.TotalTransactions).
			Uint64("today_users", snap.Today.UniqueUserCount)
	}
	event.Msg("Aggregator stats")

	for i, ex := range snap.Top {
		s.logger.Info().
			Int("rank", i+1).
			Str("exchange", ex.Name).
			Str("address", ex.Address).
			Uint64("transactions", ex.TransactionCount).
			Str("volume", ex.TotalVolume.String()).
			Msg("Top exchange")
	}
}
