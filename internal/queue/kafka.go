// Package queue forwards applied swaps to Kafka for downstream consumers.
package queue

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/monorail-xyz/envio-stats-indexer/internal/config"
	"github.com/monorail-xyz/envio-stats-indexer/internal/stats"
)

// MessageWriter is the subset of *kafka.Writer the producer uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SwapProducer writes every swap to a topic keyed by exchange address, so
// all swaps for one venue land on the same partition in order.
type SwapProducer struct {
	writer MessageWriter
	logger zerolog.Logger
	failed atomic.Uint64
}

// NewSwapProducer builds an async writer. Delivery errors are reported
// through the completion callback and logged.
func NewSwapProducer(cfg *config.KafkaConfig, logger zerolog.Logger) *SwapProducer {
	p := &SwapProducer{
		logger: logger.With().Str("component", "kafka-producer").Str("topic", cfg.Topic).Logger(),
	}

	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 100 * time.Millisecond,
		Async:        true,
		Completion:   p.completion,
	}
	return p
}

// NewSwapProducerWithWriter wraps an existing writer
func NewSwapProducerWithWriter(writer MessageWriter, logger zerolog.Logger) *SwapProducer {
	return &SwapProducer{
		writer: writer,
		logger: logger.With().Str("component", "kafka-producer").Logger(),
	}
}

func (p *SwapProducer) completion(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	p.failed.Add(uint64(len(messages)))
	p.logger.Warn().
		Err(err).
		Int("messages", len(messages)).
		Msg("Failed to deliver swaps")
}

// PublishSwap sends a swap event to Kafka
func (p *SwapProducer) PublishSwap(ctx context.Context, ev stats.SwapEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn().Err(err).Str("swap", ev.ID).Msg("Failed to marshal swap")
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ExchangeAddress),
		Value: data,
		Time:  time.Unix(int64(ev.Timestamp), 0),
	})
	if err != nil {
		p.failed.Add(1)
		p.logger.Warn().Err(err).Str("swap", ev.ID).Msg("Failed to write swap")
	}
}

// Failed returns the number of swaps that could not be delivered
func (p *SwapProducer) Failed() uint64 {
	return p.failed.Load()
}

// Close flushes pending messages and closes the writer
func (p *SwapProducer) Close() error {
	return p.writer.Close()
}
