package core

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ParsedEvent is a log decoded against a registered event ABI. Args is keyed
// by ABI input name.
type ParsedEvent struct {
	Log       *types.Log
	EventName string
	Address   common.Address
	Args      map[string]interface{}

	TransactionHash common.Hash
	BlockNumber     uint64
	LogIndex        uint
}

// EventParser decodes logs by topic0
type EventParser struct {
	bySignature map[common.Hash]abi.Event
}

func NewEventParser() *EventParser {
	return &EventParser{bySignature: make(map[common.Hash]abi.Event)}
}

// AddABI makes every event in contractABI decodable
func (p *EventParser) AddABI(contractABI *abi.ABI) {
	for _, ev := range contractABI.Events {
		p.bySignature[ev.ID] = ev
	}
}

// Topics returns the known event signatures
func (p *EventParser) Topics() []common.Hash {
	out := make([]common.Hash, 0, len(p.bySignature))
	for sig := range p.bySignature {
		out = append(out, sig)
	}
	return out
}

// ParseEvent decodes log. Indexed inputs come from topics[1:] and the rest
// from the data field.
func (p *EventParser) ParseEvent(log *types.Log) (*ParsedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, ErrInvalidEvent{Reason: "log has no topics"}
	}

	ev, ok := p.bySignature[log.Topics[0]]
	if !ok {
		return nil, ErrUnknownEvent{Topic: log.Topics[0].Hex()}
	}

	args := make(map[string]interface{}, len(ev.Inputs))
	topics := log.Topics[1:]
	for _, in := range ev.Inputs {
		if !in.Indexed {
			continue
		}
		if len(topics) == 0 {
			return nil, ErrInvalidEvent{Reason: "no topic left for indexed input " + in.Name}
		}
		args[in.Name] = topicValue(topics[0], in.Type)
		topics = topics[1:]
	}

	if data := ev.Inputs.NonIndexed(); len(data) > 0 {
		if err := data.UnpackIntoMap(args, log.Data); err != nil {
			return nil, ErrEventParsing{Event: ev.Name, Err: err}
		}
	}

	return &ParsedEvent{
		Log:             log,
		EventName:       ev.Name,
		Address:         log.Address,
		Args:            args,
		TransactionHash: log.TxHash,
		BlockNumber:     log.BlockNumber,
		LogIndex:        log.Index,
	}, nil
}

// AddressArg returns the named address argument
func (e *ParsedEvent) AddressArg(name string) (common.Address, error) {
	v, ok := e.Args[name].(common.Address)
	if !ok {
		return common.Address{}, ErrEventParsing{Event: e.EventName, Err: argTypeError(name, "address")}
	}
	return v, nil
}

// BigArg returns the named integer argument
func (e *ParsedEvent) BigArg(name string) (*big.Int, error) {
	v, ok := e.Args[name].(*big.Int)
	if !ok {
		return nil, ErrEventParsing{Event: e.EventName, Err: argTypeError(name, "integer")}
	}
	return v, nil
}

// topicValue converts an indexed topic into the Go value its ABI type unpacks to.
// Dynamic types are stored as their keccak hash, so only the hex survives.
func topicValue(topic common.Hash, argType abi.Type) interface{} {
	switch argType.T {
	case abi.AddressTy:
		return common.BytesToAddress(topic.Bytes())
	case abi.IntTy, abi.UintTy:
		return new(big.Int).SetBytes(topic.Bytes())
	case abi.BoolTy:
		return topic.Big().Sign() != 0
	case abi.BytesTy, abi.FixedBytesTy:
		return topic.Bytes()
	default:
		return topic.Hex()
	}
}

// ErrInvalidEvent is returned for logs that cannot match any event shape
type ErrInvalidEvent struct {
	Reason string
}

func (e ErrInvalidEvent) Error() string {
	return "invalid event: " + e.Reason
}

// ErrUnknownEvent is returned when topic0 is not a registered signature
type ErrUnknownEvent struct {
	Topic string
}

func (e ErrUnknownEvent) Error() string {
	return "unknown event topic: " + e.Topic
}

// ErrEventParsing wraps an ABI decoding failure
type ErrEventParsing struct {
	Event string
	Err   error
}

func (e ErrEventParsing) Error() string {
	return "decode " + e.Event + ": " + e.Err.Error()
}

func (e ErrEventParsing) Unwrap() error {
	return e.Err
}

func argTypeError(name, want string) error {
	return fmt.Errorf("argument %q is missing or not an %s", name, want)
}
