package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/centrifugal/gocent/v3"
	"github.com/rs/zerolog"

	"github.com/monorail-xyz/envio-stats-indexer/internal/stats"
)

const (
	SwapsChannel   = "aggregator.swaps"
	flushInterval  = 250 * time.Millisecond
	maxPending     = 10000
	batchSize      = 100
	publishTimeout = 5 * time.Second
)

// ExchangeChannel is the per-venue channel swaps are also published to
func ExchangeChannel(exchange string) string {
	return fmt.Sprintf("aggregator.exchange.%s", exchange)
}

// Publisher pushes applied swaps to Centrifugo. Swaps are queued by the
// pipeline and sent by a background loop, so a slow or unreachable
// Centrifugo never stalls indexing.
type Publisher struct {
	client *gocent.Client
	logger zerolog.Logger

	mu      sync.Mutex
	pending []stats.SwapEvent
	dropped atomic.Uint64

	wake    chan struct{}
	ctx     context.Context
	stop    context.CancelFunc
	stopped sync.WaitGroup
}

type PublishConfig struct {
	APIURL string
	APIKey string
}

// message is the envelope written to every channel
type message struct {
	Type  string            `json:"type"`
	TS    int64             `json:"ts"`
	Swap  *stats.SwapEvent  `json:"swap,omitempty"`
	Items []stats.SwapEvent `json:"items,omitempty"`
}

func NewPublisher(cfg PublishConfig, logger zerolog.Logger) *Publisher {
	ctx, stop := context.WithCancel(context.Background())
	p := &Publisher{
		client: gocent.New(gocent.Config{Addr: cfg.APIURL, Key: cfg.APIKey}),
		logger: logger.With().Str("component", "realtime").Logger(),
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		stop:   stop,
	}

	p.stopped.Add(1)
	go p.loop()
	return p
}

func (p *Publisher) loop() {
	defer p.stopped.Done()
	tick := time.NewTicker(flushInterval)
	defer tick.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-tick.C:
		case <-p.wake:
		}
		p.flush(p.ctx)
	}
}

// PublishSwap queues a swap. When the queue is full the swap is dropped.
func (p *Publisher) PublishSwap(_ context.Context, ev stats.SwapEvent) {
	p.mu.Lock()
	if len(p.pending) >= maxPending {
		p.mu.Unlock()
		if n := p.dropped.Add(1); n%1000 == 1 {
			p.logger.Warn().Uint64("dropped", n).Msg("Realtime queue full, dropping swaps")
		}
		return
	}
	p.pending = append(p.pending, ev)
	n := len(p.pending)
	p.mu.Unlock()

	if n >= batchSize {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
}

// Dropped returns how many swaps were discarded because the queue was full
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Flush sends everything queued so far
func (p *Publisher) Flush() {
	p.flush(p.ctx)
}

func (p *Publisher) drain() []stats.SwapEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.pending
	p.pending = nil
	return out
}

// flush sends each swap to its exchange channel, then the whole batch to
// SwapsChannel. Failures are logged and the swaps are not retried.
func (p *Publisher) flush(ctx context.Context) {
	swaps := p.drain()
	if len(swaps) == 0 {
		return
	}
	now := time.Now().UTC().Unix()

	for i := range swaps {
		ch := ExchangeChannel(swaps[i].ExchangeAddress)
		err := p.send(ctx, ch, message{Type: "swap", TS: now, Swap: &swaps[i]})
		if ctx.Err() != nil {
			unsent := swaps[i:]
			if err == nil {
				unsent = swaps[i+1:]
			}
			p.requeue(unsent)
			return
		}
		if err != nil {
			p.logger.Warn().Err(err).Str("swap", swaps[i].ID).Str("channel", ch).Msg("Swap not published")
		}
	}

	if err := p.send(ctx, SwapsChannel, message{Type: "swap.batch", TS: now, Items: swaps}); err != nil {
		if ctx.Err() == nil {
			p.logger.Warn().Err(err).Int("count", len(swaps)).Msg("Swap batch not published")
		}
		return
	}
	p.logger.Debug().Int("count", len(swaps)).Msg("Swap batch published")
}

// requeue puts swaps a cancelled flush did not send back in front of the queue
func (p *Publisher) requeue(swaps []stats.SwapEvent) {
	if len(swaps) == 0 {
		return
	}
	p.mu.Lock()
	room := maxPending - len(p.pending)
	if room < 0 {
		room = 0
	}
	kept := min(room, len(swaps))
	p.pending = append(append(make([]stats.SwapEvent, 0, kept+len(p.pending)), swaps[:kept]...), p.pending...)
	p.mu.Unlock()

	if lost := len(swaps) - kept; lost > 0 {
		p.dropped.Add(uint64(lost))
	}
	p.logger.Debug().Int("requeued", kept).Msg("Flush interrupted, swaps kept for the next one")
}

func (p *Publisher) send(ctx context.Context, channel string, msg message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	_, err = p.client.Publish(ctx, channel, data)
	return err
}

// Close stops the loop and publishes whatever is still queued
func (p *Publisher) Close() error {
	p.stop()
	p.stopped.Wait()
	p.flush(context.Background())
	p.logger.Info().Uint64("dropped", p.Dropped()).Msg("Realtime publisher closed")
	return nil
}
