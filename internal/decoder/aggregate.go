package decoder

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AggregateCall is the decoded outer batch call sent to the aggregator
type AggregateCall struct {
	TokenAddress    common.Address
	OutTokenAddress common.Address
	Amount          *big.Int
	Targets         []common.Address
	Data            [][]byte
	Destination     common.Address
	MinOutAmount    *big.Int
	Deadline        *big.Int
}

// AggregateSelector returns the selector of the aggregator batch call
func (d *Decoder) AggregateSelector() Selector {
	var sel Selector
	copy(sel[:], d.aggregate.ID)
	return sel
}

// DecodeAggregate decodes a transaction's full input as an aggregator batch call
func (d *Decoder) DecodeAggregate(input []byte) (call *AggregateCall, err error) {
	if len(input) < 4 {
		return nil, ErrShortCalldata{Length: len(input)}
	}
	if !bytes.Equal(input[:4], d.aggregate.ID) {
		var sel Selector
		copy(sel[:], input[:4])
		return nil, ErrSelectorMismatch{Want: d.AggregateSelector().Hex(), Got: sel.Hex()}
	}

	defer func() {
		if p := recover(); p != nil {
			call, err = nil, fmt.Errorf("panic while decoding aggregate call: %v", p)
		}
	}()

	values, err := d.aggregate.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, fmt.Errorf("failed to unpack aggregate call: %w", err)
	}

	var out AggregateCall
	if err := d.aggregate.Inputs.Copy(&out, values); err != nil {
		return nil, fmt.Errorf("failed to copy aggregate call: %w", err)
	}
	return &out, nil
}
