package queue

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monorail-xyz/envio-stats-indexer/internal/config"
	"github.com/monorail-xyz/envio-stats-indexer/internal/stats"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishSwapKeysByExchange(t *testing.T) {
	w := &fakeWriter{}
	p := NewSwapProducerWithWriter(w, zerolog.Nop())

	ev := stats.SwapEvent{
		ID:              "0xabc-1-0",
		ExchangeAddress: "0xexchange",
		Timestamp:       1735732800,
		AmountIn:        big.NewInt(1000),
		AmountOut:       new(big.Int),
	}
	p.PublishSwap(context.Background(), ev)

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, []byte("0xexchange"), msg.Key)
	assert.Equal(t, int64(1735732800), msg.Time.Unix())

	var decoded stats.SwapEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ev.ID, decoded.ID)
	assert.Equal(t, int64(1000), decoded.AmountIn.Int64())

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishSwapWriteError(t *testing.T) {
	p := NewSwapProducerWithWriter(&fakeWriter{err: errors.New("broker down")}, zerolog.Nop())

	p.PublishSwap(context.Background(), stats.SwapEvent{ID: "x"})
	assert.Equal(t, uint64(1), p.Failed())
}

func TestCompletionCountsFailures(t *testing.T) {
	p := NewSwapProducer(&config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "aggregator.swaps"}, zerolog.Nop())

	p.completion(make([]kafka.Message, 3), errors.New("timeout"))
	p.completion(make([]kafka.Message, 2), nil)
	assert.Equal(t, uint64(3), p.Failed())

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "aggregator.swaps", w.Topic)
	assert.True(t, w.Async)
}
