package decoder

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/monorail-xyz/envio-stats-indexer/internal/routers"
)

// Selector is the 4-byte function discriminator at the head of calldata
type Selector [4]byte

func (s Selector) Hex() string {
	return fmt.Sprintf("0x%x", s[:])
}

// Result is the canonical swap fact extracted from one router call.
// TokenOut is nil when the call does not name an output token.
type Result struct {
	Success  bool
	TokenIn  common.Address
	TokenOut *common.Address
	AmountIn *big.Int
}

func failed() Result {
	return Result{AmountIn: new(big.Int)}
}

type strategy func(args []interface{}, value *big.Int) (Result, error)

type route struct {
	method abi.Method
	decode strategy
}

// Decoder turns router calldata into swap facts. It is safe for concurrent use
// once constructed.
type Decoder struct {
	logger        zerolog.Logger
	wrappedNative common.Address
	dispatch      map[routers.VenueType]map[Selector]route
	aggregate     abi.Method
}

// New builds the dispatch table for every venue type. wrappedNative is the
// token minted by the chain's wrapper contract.
func New(logger zerolog.Logger, wrappedNative common.Address) (*Decoder, error) {
	d := &Decoder{
		logger:        logger.With().Str("component", "decoder").Logger(),
		wrappedNative: wrappedNative,
		dispatch:      make(map[routers.VenueType]map[Selector]route),
	}

	venues := []struct {
		venue   routers.VenueType
		abiJSON string
		methods map[string]strategy
	}{
		{routers.VenueAMMV2, AMMV2RouterABI, map[string]strategy{
			"swapExactTokensForTokens":                              decodeAddressPath,
			"swapExactTokensForETH":                                 decodeAddressPath,
			"swapExactTokensForTokensSupportingFeeOnTransferTokens": decodeAddressPath,
		}},
		{routers.VenueAMMV3, AMMV3RouterABI, map[string]strategy{
			"exactInputSingle": decodeExactInputSingle,
			"exactInput":       decodeExactInput,
		}},
		{routers.VenueOrderbook, OrderbookRouterABI, map[string]strategy{
			"anyToAnySwap": decodeAnyToAnySwap,
		}},
		{routers.VenueWrapper, WrapperABI, map[string]strategy{
			"deposit":  d.decodeDeposit,
			"withdraw": d.decodeWithdraw,
		}},
		{routers.VenueAltAMM, AltAMMRouterABI, map[string]strategy{
			"swapExactTokensForTokens": decodeTokenPathTuple,
		}},
		{routers.VenueReferralAMM, ReferralAMMRouterABI, map[string]strategy{
			"swapExactTokensForTokens": decodeAddressPath,
		}},
	}

	for _, v := range venues {
		parsed, err := abi.JSON(strings.NewReader(v.abiJSON))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s router ABI: %w", v.venue, err)
		}

		table := make(map[Selector]route, len(v.methods))
		for name, fn := range v.methods {
			method, ok := parsed.Methods[name]
			if !ok {
				return nil, fmt.Errorf("method %s missing from %s router ABI", name, v.venue)
			}
			var sel Selector
			copy(sel[:], method.ID)
			table[sel] = route{method: method, decode: fn}
		}
		d.dispatch[v.venue] = table
	}

	aggregatorABI, err := abi.JSON(strings.NewReader(AggregatorABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse aggregator ABI: %w", err)
	}
	d.aggregate = aggregatorABI.Methods["aggregate"]

	return d, nil
}

// Decode extracts the swap fact from a router call. value is the native
// amount attached to the call. Unknown venues and selectors yield a failed
// result without logging; malformed payloads are logged at warn.
func (d *Decoder) Decode(venue routers.VenueType, calldata []byte, value *big.Int) (res Result) {
	if len(calldata) < 4 {
		return failed()
	}

	table, ok := d.dispatch[venue]
	if !ok {
		return failed()
	}

	var sel Selector
	copy(sel[:], calldata[:4])
	r, ok := table[sel]
	if !ok {
		return failed()
	}

	// abi.ConvertType panics on a shape mismatch
	defer func() {
		if p := recover(); p != nil {
			d.logger.Warn().
				Str("venue", venue.String()).
				Str("method", r.method.Name).
				Interface("panic", p).
				Msg("Recovered from panic while decoding calldata")
			res = failed()
		}
	}()

	args, err := r.method.Inputs.Unpack(calldata[4:])
	if err != nil {
		d.logger.Warn().
			Err(err).
			Str("venue", venue.String()).
			Str("method", r.method.Name).
			Msg("Failed to unpack calldata")
		return failed()
	}

	res, err = r.decode(args, value)
	if err != nil {
		d.logger.Warn().
			Err(err).
			Str("venue", venue.String()).
			Str("method", r.method.Name).
			Msg("Failed to decode swap")
		return failed()
	}

	res.Success = true
	return res
}

// Selectors returns the selectors registered for a venue type
func (d *Decoder) Selectors(venue routers.VenueType) []Selector {
	table := d.dispatch[venue]
	out := make([]Selector, 0, len(table))
	for sel := range table {
		out = append(out, sel)
	}
	return out
}

// MethodName returns the method bound to a venue selector, or "" if none
func (d *Decoder) MethodName(venue routers.VenueType, sel Selector) string {
	if r, ok := d.dispatch[venue][sel]; ok {
		return r.method.Name
	}
	return ""
}

// V2-shaped calls: (amountIn, amountOutMin, address[] path, to, deadline, ...)
func decodeAddressPath(args []interface{}, _ *big.Int) (Result, error) {
	amountIn, err := arg[*big.Int](args, 0)
	if err != nil {
		return Result{}, err
	}
	path, err := arg[[]common.Address](args, 2)
	if err != nil {
		return Result{}, err
	}
	if len(path) == 0 {
		return Result{}, ErrInvalidPath{Reason: "empty path"}
	}

	res := Result{TokenIn: path[0], AmountIn: new(big.Int).Set(amountIn)}
	if len(path) > 1 {
		out := path[len(path)-1]
		res.TokenOut = &out
	}
	return res, nil
}

type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

func decodeExactInputSingle(args []interface{}, _ *big.Int) (Result, error) {
	if len(args) != 1 {
		return Result{}, ErrArgument{Index: 0, Reason: "expected a single params tuple"}
	}
	params := *abi.ConvertType(args[0], new(exactInputSingleParams)).(*exactInputSingleParams)

	tokenOut := params.TokenOut
	return Result{
		TokenIn:  params.TokenIn,
		TokenOut: &tokenOut,
		AmountIn: new(big.Int).Set(params.AmountIn),
	}, nil
}

type exactInputParams struct {
	Path             []byte
	Recipient        common.Address
	Deadline         *big.Int
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
}

// V3 packed path: token (20) | fee (3) | token (20) | ...
const (
	pathAddrSize = common.AddressLength
	pathHopSize  = common.AddressLength + 3
)

func decodeExactInput(args []interface{}, _ *big.Int) (Result, error) {
	if len(args) != 1 {
		return Result{}, ErrArgument{Index: 0, Reason: "expected a single params tuple"}
	}
	params := *abi.ConvertType(args[0], new(exactInputParams)).(*exactInputParams)

	path := params.Path
	if len(path) < pathAddrSize+pathHopSize || (len(path)-pathAddrSize)%pathHopSize != 0 {
		return Result{}, ErrInvalidPath{Reason: fmt.Sprintf("packed path has invalid length %d", len(path))}
	}

	tokenOut := common.BytesToAddress(path[len(path)-pathAddrSize:])
	return Result{
		TokenIn:  common.BytesToAddress(path[:pathAddrSize]),
		TokenOut: &tokenOut,
		AmountIn: new(big.Int).Set(params.AmountIn),
	}, nil
}

// anyToAnySwap(pools, isBuy, nativeSend, debitToken, creditToken, amount, minAmountOut)
func decodeAnyToAnySwap(args []interface{}, _ *big.Int) (Result, error) {
	tokenIn, err := arg[common.Address](args, 3)
	if err != nil {
		return Result{}, err
	}
	tokenOut, err := arg[common.Address](args, 4)
	if err != nil {
		return Result{}, err
	}
	amountIn, err := arg[*big.Int](args, 5)
	if err != nil {
		return Result{}, err
	}
	return Result{TokenIn: tokenIn, TokenOut: &tokenOut, AmountIn: new(big.Int).Set(amountIn)}, nil
}

func (d *Decoder) decodeDeposit(_ []interface{}, value *big.Int) (Result, error) {
	amount := new(big.Int)
	if value != nil {
		amount.Set(value)
	}
	tokenOut := d.wrappedNative
	return Result{TokenIn: routers.NativeTokenAddress, TokenOut: &tokenOut, AmountIn: amount}, nil
}

func (d *Decoder) decodeWithdraw(args []interface{}, _ *big.Int) (Result, error) {
	amount, err := arg[*big.Int](args, 0)
	if err != nil {
		return Result{}, err
	}
	tokenOut := routers.NativeTokenAddress
	return Result{TokenIn: d.wrappedNative, TokenOut: &tokenOut, AmountIn: new(big.Int).Set(amount)}, nil
}

type lbPath struct {
	PairBinSteps []*big.Int
	Versions     []uint8
	TokenPath    []common.Address
}

// swapExactTokensForTokens(amountIn, amountOutMin, (binSteps, versions, tokenPath), to, deadline)
func decodeTokenPathTuple(args []interface{}, _ *big.Int) (Result, error) {
	amountIn, err := arg[*big.Int](args, 0)
	if err != nil {
		return Result{}, err
	}
	if len(args) < 3 {
		return Result{}, ErrArgument{Index: 2, Reason: "missing"}
	}
	path := *abi.ConvertType(args[2], new(lbPath)).(*lbPath)

	if len(path.TokenPath) < 2 {
		return Result{}, ErrInvalidPath{Reason: fmt.Sprintf("route has %d tokens", len(path.TokenPath))}
	}
	tokenOut := path.TokenPath[1]
	return Result{TokenIn: path.TokenPath[0], TokenOut: &tokenOut, AmountIn: new(big.Int).Set(amountIn)}, nil
}

func arg[T any](args []interface{}, i int) (T, error) {
	var zero T
	if i >= len(args) {
		return zero, ErrArgument{Index: i, Reason: "missing"}
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, ErrArgument{Index: i, Reason: fmt.Sprintf("unexpected type %T", args[i])}
	}
	return v, nil
}
