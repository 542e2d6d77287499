package core

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monorail-xyz/envio-stats-indexer/internal/pipeline"
)

const transferABI = `[{"type":"event","name":"Transfer","anonymous":false,"inputs":[
	{"name":"from","type":"address","indexed":true},
	{"name":"to","type":"address","indexed":true},
	{"name":"value","type":"uint256","indexed":false}]}]`

func mustABI(t *testing.T, raw string) *abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(raw))
	require.NoError(t, err)
	return &parsed
}

func transferLog(t *testing.T, parsed *abi.ABI, from, to common.Address, value int64) *types.Log {
	t.Helper()
	data, err := parsed.Events["Transfer"].Inputs.NonIndexed().Pack(big.NewInt(value))
	require.NoError(t, err)
	return &types.Log{
		Address: common.HexToAddress("0xcafe"),
		Topics: []common.Hash{
			parsed.Events["Transfer"].ID,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:        data,
		BlockNumber: 10,
		Index:       3,
		TxHash:      common.HexToHash("0xabc"),
	}
}

func TestParseEvent(t *testing.T) {
	parsed := mustABI(t, transferABI)
	p := NewEventParser()
	p.AddABI(parsed)

	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	ev, err := p.ParseEvent(transferLog(t, parsed, from, to, 42))
	require.NoError(t, err)
	assert.Equal(t, "Transfer", ev.EventName)
	assert.Equal(t, uint64(10), ev.BlockNumber)
	assert.Equal(t, uint(3), ev.LogIndex)

	gotFrom, err := ev.AddressArg("from")
	require.NoError(t, err)
	assert.Equal(t, from, gotFrom)

	gotTo, err := ev.AddressArg("to")
	require.NoError(t, err)
	assert.Equal(t, to, gotTo)

	value, err := ev.BigArg("value")
	require.NoError(t, err)
	assert.Equal(t, int64(42), value.Int64())

	_, err = ev.BigArg("from")
	assert.Error(t, err)

	assert.Equal(t, []common.Hash{parsed.Events["Transfer"].ID}, p.Topics())
}

func TestParseEventErrors(t *testing.T) {
	parsed := mustABI(t, transferABI)
	p := NewEventParser()
	p.AddABI(parsed)

	_, err := p.ParseEvent(&types.Log{})
	assert.ErrorAs(t, err, &ErrInvalidEvent{})

	_, err = p.ParseEvent(&types.Log{Topics: []common.Hash{common.HexToHash("0x01")}})
	assert.ErrorAs(t, err, &ErrUnknownEvent{})

	log := transferLog(t, parsed, common.Address{}, common.Address{}, 1)
	log.Topics = log.Topics[:2]
	_, err = p.ParseEvent(log)
	assert.ErrorAs(t, err, &ErrInvalidEvent{})

	log = transferLog(t, parsed, common.Address{}, common.Address{}, 1)
	log.Data = log.Data[:10]
	_, err = p.ParseEvent(log)
	assert.ErrorAs(t, err, &ErrEventParsing{})
}

type recordingModule struct {
	name    string
	filters []EventFilter
	err     error
	seen    []uint
}

func (m *recordingModule) Name() string                { return m.name }
func (m *recordingModule) EventFilters() []EventFilter { return m.filters }

func (m *recordingModule) HandleEvent(_ context.Context, log *types.Log, _ pipeline.TxContext) error {
	m.seen = append(m.seen, log.Index)
	return m.err
}

func TestModuleRegistryRouting(t *testing.T) {
	topic := common.HexToHash("0x01")
	watched := common.HexToAddress("0xaaaa")

	scoped := &recordingModule{name: "scoped", filters: []EventFilter{{Address: watched, Topic0: topic}}}
	wildcard := &recordingModule{name: "any", filters: []EventFilter{{Topic0: topic}}}

	r := NewModuleRegistry(zerolog.Nop())
	require.NoError(t, r.RegisterModule(scoped))
	require.NoError(t, r.RegisterModule(wildcard))
	assert.Error(t, r.RegisterModule(scoped))
	assert.Error(t, r.RegisterModule(&recordingModule{name: "empty"}))

	ctx := context.Background()
	require.NoError(t, r.ProcessEvent(ctx, &types.Log{Address: watched, Topics: []common.Hash{topic}, Index: 1}, pipeline.TxContext{}))
	require.NoError(t, r.ProcessEvent(ctx, &types.Log{Address: common.HexToAddress("0xbbbb"), Topics: []common.Hash{topic}, Index: 2}, pipeline.TxContext{}))
	require.NoError(t, r.ProcessEvent(ctx, &types.Log{Address: watched, Topics: []common.Hash{common.HexToHash("0x02")}, Index: 3}, pipeline.TxContext{}))

	assert.Equal(t, []uint{1}, scoped.seen)
	assert.Equal(t, []uint{1, 2}, wildcard.seen)
	assert.Equal(t, []string{"scoped", "any"}, r.ListModules())
	assert.Nil(t, r.Addresses())
	assert.Equal(t, []common.Hash{topic}, r.Topics())
}

func TestModuleRegistryJoinsErrors(t *testing.T) {
	topic := common.HexToHash("0x01")
	boom := errors.New("boom")

	failing := &recordingModule{name: "failing", filters: []EventFilter{{Topic0: topic}}, err: boom}
	ok := &recordingModule{name: "ok", filters: []EventFilter{{Topic0: topic}}}

	r := NewModuleRegistry(zerolog.Nop())
	require.NoError(t, r.RegisterModule(failing))
	require.NoError(t, r.RegisterModule(ok))

	err := r.ProcessEvent(context.Background(), &types.Log{Topics: []common.Hash{topic}}, pipeline.TxContext{})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, ok.seen, 1)
}

func TestRegistryAddresses(t *testing.T) {
	a := common.HexToAddress("0xaaaa")
	r := NewModuleRegistry(zerolog.Nop())
	require.NoError(t, r.RegisterModule(&recordingModule{name: "m", filters: []EventFilter{
		{Address: a, Topic0: common.HexToHash("0x01")},
		{Address: a, Topic0: common.HexToHash("0x02")},
	}}))
	assert.Equal(t, []common.Address{a}, r.Addresses())
}
