package aggregator

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// initializeABIs parses the event ABI and registers it with the parser
func (m *Module) initializeABIs() error {
	eventsABI, err := abi.JSON(strings.NewReader(AggregatorEventsABI))
	if err != nil {
		return fmt.Errorf("failed to parse aggregator events ABI: %w", err)
	}
	m.eventsABI = &eventsABI
	m.parser.AddABI(&eventsABI)
	return nil
}

// AggregatorEventsABI covers every aggregator deployment. Aggregation is
// emitted by the calldata-era contract; Aggregated and AggregatedTrade by
// later versions, which share the Aggregated signature.
const AggregatorEventsABI = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "address", "name": "tokenAddress",      "type": "address"},
      {"indexed": false, "internalType": "address", "name": "outTokenAddress",   "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount",            "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "destinationAmount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "feeAmount",         "type": "uint256"}
    ],
    "name": "Aggregation",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "address", "name": "tokenIn",           "type": "address"},
      {"indexed": false, "internalType": "address", "name": "tokenOut",          "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount",            "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "destinationAmount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "feeAmount",         "type": "uint256"}
    ],
    "name": "Aggregated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "address", "name": "router",   "type": "address"},
      {"indexed": false, "internalType": "address", "name": "tokenIn",  "type": "address"},
      {"indexed": false, "internalType": "address", "name": "tokenOut", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount",   "type": "uint256"}
    ],
    "name": "AggregatedTrade",
    "type": "event"
  }
]`
