package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/monorail-xyz/envio-stats-indexer/internal/decoder"
	"github.com/monorail-xyz/envio-stats-indexer/internal/routers"
	"github.com/monorail-xyz/envio-stats-indexer/internal/stats"
)

// SwapSink receives every swap after it has been applied. Delivery is best
// effort and must not block the pipeline.
type SwapSink interface {
	PublishSwap(ctx context.Context, ev stats.SwapEvent)
}

// Pipeline attributes aggregator events to venues and feeds the stats engine.
// It is driven by a single goroutine per chain.
type Pipeline struct {
	registry *routers.Registry
	decoder  *decoder.Decoder
	engine   *stats.Engine
	sinks    []SwapSink
	logger   zerolog.Logger
	now      func() time.Time
}

type Option func(*Pipeline)

// WithSink adds a swap sink
func WithSink(sink SwapSink) Option {
	return func(p *Pipeline) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

// WithClock overrides the wall clock used when a block timestamp is missing
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

func New(registry *routers.Registry, dec *decoder.Decoder, engine *stats.Engine, logger zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry: registry,
		decoder:  dec,
		engine:   engine,
		logger:   logger.With().Str("component", "pipeline").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleAggregation processes a calldata-protocol Aggregation event. The
// record and token pair stats are always written; sender-dependent stats and
// sub-call attribution need a known sender. A failing step does not stop the
// ones after it; every failure is returned joined.
func (p *Pipeline) HandleAggregation(ctx context.Context, ev Aggregation) error {
	errs := []error{p.recordAggregation(ctx, ev)}

	if ev.Tx.From == nil {
		p.logger.Warn().
			Str("tx", ev.Tx.Hash.Hex()).
			Msg("Sender not available, skipping swap attribution")
		return errors.Join(errs...)
	}

	errs = append(errs, p.applyTransaction(ctx, ev.Tx))

	swaps := p.Attribute(ev)
	for _, sw := range swaps {
		errs = append(errs, p.applySwap(ctx, sw))
	}

	err := errors.Join(errs...)
	p.logger.Debug().
		Str("tx", ev.Tx.Hash.Hex()).
		Uint("log_index", ev.LogIndex).
		Int("swaps", len(swaps)).
		Bool("failed", err != nil).
		Msg("Processed aggregation")

	return err
}

// HandleAggregated processes the Aggregated event of later protocol versions.
// Per-step swaps arrive separately as AggregatedTrade events.
func (p *Pipeline) HandleAggregated(ctx context.Context, ev Aggregation) error {
	recErr := p.recordAggregation(ctx, ev)

	if ev.Tx.From == nil {
		p.logger.Warn().
			Str("tx", ev.Tx.Hash.Hex()).
			Msg("Sender not available, skipping user stats")
		return recErr
	}

	return errors.Join(recErr, p.applyTransaction(ctx, ev.Tx))
}

// HandleAggregatedTrade applies a swap the contract decoded on-chain. Only
// registry classification is needed; the decoder is bypassed.
func (p *Pipeline) HandleAggregatedTrade(ctx context.Context, tr AggregatedTrade) error {
	info, ok := p.registry.ClassifyAddress(tr.Router)
	if !ok {
		p.logger.Debug().
			Str("router", tr.Router.Hex()).
			Msg("Trade routed through unknown venue")
		return nil
	}

	if tr.Tx.From == nil {
		p.logger.Warn().
			Str("tx", tr.Tx.Hash.Hex()).
			Msg("Sender not available, skipping trade")
		return nil
	}

	tokenOut := tr.TokenOut
	sw := p.swapEvent(tr.Tx, tr.LogIndex, 0, *tr.Tx.From, tr.Router, info.Name, tr.TokenIn, &tokenOut, tr.Amount)
	return p.applySwap(ctx, sw)
}

// Attribute decodes the transaction's aggregate call and returns one swap per
// recognised sub-call. Failures are logged and yield no swaps.
func (p *Pipeline) Attribute(ev Aggregation) []stats.SwapEvent {
	tx := ev.Tx
	logger := p.logger.With().Str("tx", tx.Hash.Hex()).Logger()

	if tx.From == nil {
		logger.Warn().Msg("Sender not available, cannot attribute swaps")
		return nil
	}
	if len(tx.Input) < 4 {
		logger.Warn().Int("input_len", len(tx.Input)).Msg("Transaction input missing or too short")
		return nil
	}

	call, err := p.decoder.DecodeAggregate(tx.Input)
	if err != nil {
		logger.Warn().Err(err).Msg("Could not decode aggregate call")
		return nil
	}

	var swaps []stats.SwapEvent
	for i, target := range call.Targets {
		if i >= len(call.Data) {
			break
		}

		info, ok := p.registry.ClassifyAddress(target)
		if !ok {
			continue
		}
		data := call.Data[i]
		if len(data) < 4 {
			continue
		}

		res := p.decoder.Decode(info.VenueType, data, tx.Value)
		if !res.Success || res.AmountIn == nil || res.AmountIn.Sign() == 0 {
			continue
		}

		swaps = append(swaps, p.swapEvent(tx, ev.LogIndex, i, *tx.From, target, info.Name, res.TokenIn, res.TokenOut, res.AmountIn))
	}

	return swaps
}

func (p *Pipeline) recordAggregation(ctx context.Context, ev Aggregation) error {
	rec := stats.AggregationRecord{
		ID:                stats.AggregationID(ev.ChainID, ev.Tx.BlockNumber, ev.LogIndex),
		TokenAddress:      lower(ev.TokenIn),
		OutTokenAddress:   lower(ev.TokenOut),
		Amount:            ev.AmountIn,
		DestinationAmount: ev.AmountOut,
		FeeAmount:         ev.FeeAmount,
	}
	if err := p.engine.ApplyAggregation(ctx, rec); err != nil {
		return fmt.Errorf("failed to apply aggregation %s: %w", rec.ID, err)
	}
	return nil
}

func (p *Pipeline) applyTransaction(ctx context.Context, tx TxContext) error {
	err := p.engine.ApplyTransaction(ctx, lower(*tx.From), tx.Fee(), tx.GasOrZero(), tx.BlockTime(p.now))
	if err != nil {
		return fmt.Errorf("failed to apply transaction %s: %w", tx.Hash.Hex(), err)
	}
	return nil
}

// applySwap hands sw to the engine and, once every family is written, to the
// sinks. A swap with failed families is not published.
func (p *Pipeline) applySwap(ctx context.Context, sw stats.SwapEvent) error {
	if _, err := p.engine.ApplyTrade(ctx, sw); err != nil {
		return fmt.Errorf("failed to apply swap %s: %w", sw.ID, err)
	}
	for _, sink := range p.sinks {
		sink.PublishSwap(ctx, sw)
	}
	return nil
}

func (p *Pipeline) swapEvent(tx TxContext, logIndex uint, subIndex int, user, router common.Address, name string, tokenIn common.Address, tokenOut *common.Address, amount *big.Int) stats.SwapEvent {
	out := ""
	if tokenOut != nil {
		out = lower(*tokenOut)
	}
	amountIn := new(big.Int)
	if amount != nil {
		amountIn.Set(amount)
	}
	return stats.SwapEvent{
		ID:              stats.SwapEventID(tx.Hash.Hex(), logIndex, subIndex),
		TransactionHash: tx.Hash.Hex(),
		BlockNumber:     tx.BlockNumber,
		Timestamp:       tx.BlockTime(p.now),
		UserAddress:     lower(user),
		ExchangeAddress: lower(router),
		ExchangeName:    name,
		TokenInAddress:  lower(tokenIn),
		TokenOutAddress: out,
		AmountIn:        amountIn,
		AmountOut:       new(big.Int),
		Fee:             tx.Fee(),
		GasPrice:        tx.GasPriceOrZero(),
		GasUsed:         tx.GasOrZero(),
	}
}

func lower(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
