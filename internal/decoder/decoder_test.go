package decoder

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monorail-xyz/envio-stats-indexer/internal/routers"
)

var (
	tokenA  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	tokenC  = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	wrapped = common.HexToAddress("0x760AfE86e5de5fa0Ee542fc7B7B713e1c5425701")
	someone = common.HexToAddress("0x1234567890123456789012345678901234567890")
)

func newTestDecoder(t *testing.T) *Decoder {
	t.Helper()
	d, err := New(zerolog.Nop(), wrapped)
	require.NoError(t, err)
	return d
}

func pack(t *testing.T, abiJSON, method string, args ...interface{}) []byte {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	require.NoError(t, err)
	data, err := parsed.Pack(method, args...)
	require.NoError(t, err)
	return data
}

func TestEveryVenueHasDispatchEntry(t *testing.T) {
	d := newTestDecoder(t)
	for _, venue := range routers.AllVenueTypes() {
		assert.NotEmpty(t, d.Selectors(venue), "venue %s has no decoders", venue)
	}
}

func TestKnownSelectors(t *testing.T) {
	d := newTestDecoder(t)

	tests := []struct {
		venue  routers.VenueType
		sel    string
		method string
	}{
		{routers.VenueAMMV2, "38ed1739", "swapExactTokensForTokens"},
		{routers.VenueAMMV3, "414bf389", "exactInputSingle"},
		{routers.VenueWrapper, "d0e30db0", "deposit"},
		{routers.VenueWrapper, "2e1a7d4d", "withdraw"},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			var sel Selector
			copy(sel[:], common.FromHex(tt.sel))
			assert.Equal(t, tt.method, d.MethodName(tt.venue, sel))
		})
	}
}

func TestDecodeAMMV2(t *testing.T) {
	d := newTestDecoder(t)

	t.Run("multi-hop path", func(t *testing.T) {
		data := pack(t, AMMV2RouterABI, "swapExactTokensForTokens",
			big.NewInt(500), big.NewInt(1), []common.Address{tokenA, tokenB, tokenC}, someone, big.NewInt(1700000000))

		res := d.Decode(routers.VenueAMMV2, data, nil)
		require.True(t, res.Success)
		assert.Equal(t, tokenA, res.TokenIn)
		require.NotNil(t, res.TokenOut)
		assert.Equal(t, tokenC, *res.TokenOut)
		assert.Equal(t, big.NewInt(500), res.AmountIn)
	})

	t.Run("single token path has no output", func(t *testing.T) {
		data := pack(t, AMMV2RouterABI, "swapExactTokensForTokens",
			big.NewInt(42), big.NewInt(0), []common.Address{tokenA}, someone, big.NewInt(0))

		res := d.Decode(routers.VenueAMMV2, data, nil)
		require.True(t, res.Success)
		assert.Equal(t, tokenA, res.TokenIn)
		assert.Nil(t, res.TokenOut)
	})

	t.Run("empty path fails", func(t *testing.T) {
		data := pack(t, AMMV2RouterABI, "swapExactTokensForTokens",
			big.NewInt(42), big.NewInt(0), []common.Address{}, someone, big.NewInt(0))

		res := d.Decode(routers.VenueAMMV2, data, nil)
		assert.False(t, res.Success)
	})

	t.Run("fee on transfer variant", func(t *testing.T) {
		data := pack(t, AMMV2RouterABI, "swapExactTokensForTokensSupportingFeeOnTransferTokens",
			big.NewInt(7), big.NewInt(0), []common.Address{tokenB, tokenA}, someone, big.NewInt(0))

		res := d.Decode(routers.VenueAMMV2, data, nil)
		require.True(t, res.Success)
		assert.Equal(t, tokenB, res.TokenIn)
		assert.Equal(t, tokenA, *res.TokenOut)
		assert.Equal(t, big.NewInt(7), res.AmountIn)
	})
}

func TestDecodeAMMV3(t *testing.T) {
	d := newTestDecoder(t)

	t.Run("exactInputSingle", func(t *testing.T) {
		params := exactInputSingleParams{
			TokenIn:           tokenB,
			TokenOut:          tokenC,
			Fee:               big.NewInt(3000),
			Recipient:         someone,
			Deadline:          big.NewInt(1700000000),
			AmountIn:          big.NewInt(123456789),
			AmountOutMinimum:  big.NewInt(1),
			SqrtPriceLimitX96: big.NewInt(0),
		}
		data := pack(t, AMMV3RouterABI, "exactInputSingle", params)
		assert.Equal(t, "414bf389", common.Bytes2Hex(data[:4]))

		res := d.Decode(routers.VenueAMMV3, data, nil)
		require.True(t, res.Success)
		assert.Equal(t, tokenB, res.TokenIn)
		assert.Equal(t, tokenC, *res.TokenOut)
		assert.Equal(t, big.NewInt(123456789), res.AmountIn)
	})

	t.Run("exactInput packed path", func(t *testing.T) {
		path := append([]byte{}, tokenA.Bytes()...)
		path = append(path, 0x00, 0x0b, 0xb8)
		path = append(path, tokenB.Bytes()...)
		path = append(path, 0x00, 0x01, 0xf4)
		path = append(path, tokenC.Bytes()...)

		params := exactInputParams{
			Path:             path,
			Recipient:        someone,
			Deadline:         big.NewInt(0),
			AmountIn:         big.NewInt(999),
			AmountOutMinimum: big.NewInt(0),
		}
		data := pack(t, AMMV3RouterABI, "exactInput", params)

		res := d.Decode(routers.VenueAMMV3, data, nil)
		require.True(t, res.Success)
		assert.Equal(t, tokenA, res.TokenIn)
		assert.Equal(t, tokenC, *res.TokenOut)
		assert.Equal(t, big.NewInt(999), res.AmountIn)
	})

	t.Run("exactInput with malformed path fails", func(t *testing.T) {
		params := exactInputParams{
			Path:             tokenA.Bytes(),
			Recipient:        someone,
			Deadline:         big.NewInt(0),
			AmountIn:         big.NewInt(1),
			AmountOutMinimum: big.NewInt(0),
		}
		data := pack(t, AMMV3RouterABI, "exactInput", params)

		res := d.Decode(routers.VenueAMMV3, data, nil)
		assert.False(t, res.Success)
	})
}

func TestDecodeOrderbook(t *testing.T) {
	d := newTestDecoder(t)

	data := pack(t, OrderbookRouterABI, "anyToAnySwap",
		[]common.Address{someone}, []bool{true}, []bool{false}, tokenA, tokenB, big.NewInt(10_000), big.NewInt(9_000))

	res := d.Decode(routers.VenueOrderbook, data, nil)
	require.True(t, res.Success)
	assert.Equal(t, tokenA, res.TokenIn)
	assert.Equal(t, tokenB, *res.TokenOut)
	assert.Equal(t, big.NewInt(10_000), res.AmountIn)
}

func TestDecodeWrapper(t *testing.T) {
	d := newTestDecoder(t)

	t.Run("deposit uses attached value", func(t *testing.T) {
		data := pack(t, WrapperABI, "deposit")
		require.Len(t, data, 4)

		res := d.Decode(routers.VenueWrapper, data, big.NewInt(1_000_000))
		require.True(t, res.Success)
		assert.Equal(t, common.Address{}, res.TokenIn)
		assert.Equal(t, wrapped, *res.TokenOut)
		assert.Equal(t, big.NewInt(1_000_000), res.AmountIn)
	})

	t.Run("deposit without value", func(t *testing.T) {
		res := d.Decode(routers.VenueWrapper, pack(t, WrapperABI, "deposit"), nil)
		require.True(t, res.Success)
		assert.Zero(t, res.AmountIn.Sign())
	})

	t.Run("withdraw", func(t *testing.T) {
		data := pack(t, WrapperABI, "withdraw", big.NewInt(5555))

		res := d.Decode(routers.VenueWrapper, data, big.NewInt(1))
		require.True(t, res.Success)
		assert.Equal(t, wrapped, res.TokenIn)
		assert.Equal(t, common.Address{}, *res.TokenOut)
		assert.Equal(t, big.NewInt(5555), res.AmountIn)
	})
}

func TestDecodeAltAMM(t *testing.T) {
	d := newTestDecoder(t)

	path := lbPath{
		PairBinSteps: []*big.Int{big.NewInt(0), big.NewInt(25)},
		Versions:     []uint8{0, 2},
		TokenPath:    []common.Address{tokenC, tokenA, tokenB},
	}
	data := pack(t, AltAMMRouterABI, "swapExactTokensForTokens",
		big.NewInt(31337), big.NewInt(0), path, someone, big.NewInt(0))

	res := d.Decode(routers.VenueAltAMM, data, nil)
	require.True(t, res.Success)
	assert.Equal(t, tokenC, res.TokenIn)
	assert.Equal(t, tokenA, *res.TokenOut)
	assert.Equal(t, big.NewInt(31337), res.AmountIn)

	// the V2 layout does not decode against an alt-AMM router
	v2 := pack(t, AMMV2RouterABI, "swapExactTokensForTokens",
		big.NewInt(1), big.NewInt(0), []common.Address{tokenA, tokenB}, someone, big.NewInt(0))
	assert.False(t, d.Decode(routers.VenueAltAMM, v2, nil).Success)
}

func TestDecodeReferralAMM(t *testing.T) {
	d := newTestDecoder(t)

	data := pack(t, ReferralAMMRouterABI, "swapExactTokensForTokens",
		big.NewInt(500), big.NewInt(0), []common.Address{tokenA, tokenB, tokenC}, someone, big.NewInt(0), someone)

	res := d.Decode(routers.VenueReferralAMM, data, nil)
	require.True(t, res.Success)
	assert.Equal(t, tokenA, res.TokenIn)
	assert.Equal(t, tokenC, *res.TokenOut)
	assert.Equal(t, big.NewInt(500), res.AmountIn)
}

func TestDecodeFailures(t *testing.T) {
	d := newTestDecoder(t)

	valid := pack(t, AMMV2RouterABI, "swapExactTokensForTokens",
		big.NewInt(500), big.NewInt(1), []common.Address{tokenA, tokenB}, someone, big.NewInt(0))

	tests := []struct {
		name     string
		venue    routers.VenueType
		calldata []byte
	}{
		{"nil calldata", routers.VenueAMMV2, nil},
		{"shorter than selector", routers.VenueAMMV2, []byte{0x38, 0xed, 0x17}},
		{"unknown selector", routers.VenueAMMV2, append([]byte{0xde, 0xad, 0xbe, 0xef}, valid[4:]...)},
		{"unknown venue", routers.VenueUnknown, valid},
		{"selector of another venue", routers.VenueOrderbook, valid},
		{"truncated arguments", routers.VenueAMMV2, valid[:40]},
		{"truncated withdraw", routers.VenueWrapper, pack(t, WrapperABI, "withdraw", big.NewInt(1))[:10]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res Result
			require.NotPanics(t, func() {
				res = d.Decode(tt.venue, tt.calldata, big.NewInt(1))
			})
			assert.False(t, res.Success)
		})
	}
}

func TestDecodeAggregate(t *testing.T) {
	d := newTestDecoder(t)

	inner := pack(t, AMMV2RouterABI, "swapExactTokensForTokens",
		big.NewInt(500), big.NewInt(1), []common.Address{tokenA, tokenC}, someone, big.NewInt(0))
	input := pack(t, AggregatorABI, "aggregate",
		tokenA, tokenC, big.NewInt(500),
		[]common.Address{someone, tokenB}, [][]byte{inner, {}},
		someone, big.NewInt(1), big.NewInt(1700000000))

	call, err := d.DecodeAggregate(input)
	require.NoError(t, err)
	assert.Equal(t, tokenA, call.TokenAddress)
	assert.Equal(t, tokenC, call.OutTokenAddress)
	assert.Equal(t, big.NewInt(500), call.Amount)
	assert.Equal(t, []common.Address{someone, tokenB}, call.Targets)
	require.Len(t, call.Data, 2)
	assert.Equal(t, inner, call.Data[0])
	assert.Empty(t, call.Data[1])
	assert.Equal(t, big.NewInt(1700000000), call.Deadline)

	_, err = d.DecodeAggregate(input[:3])
	assert.ErrorAs(t, err, &ErrShortCalldata{})

	_, err = d.DecodeAggregate(inner)
	assert.ErrorAs(t, err, &ErrSelectorMismatch{})

	_, err = d.DecodeAggregate(input[:100])
	assert.Error(t, err)
}
