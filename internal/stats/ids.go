package stats

import (
	"fmt"
	"strings"
)

// GlobalStatsID is the key of the GlobalStats singleton
const GlobalStatsID = "global"

// AggregationID formats {chainId}_{blockNumber}_{logIndex}
func AggregationID(chainID, blockNumber uint64, logIndex uint) string {
	return fmt.Sprintf("%d_%d_%d", chainID, blockNumber, logIndex)
}

// SwapEventID formats {txHash}-{logIndex}-{subIndex}
func SwapEventID(txHash string, logIndex uint, subIndex int) string {
	return fmt.Sprintf("%s-%d-%d", txHash, logIndex, subIndex)
}

// compositeID joins dimension ids in caller order. Never sorted.
func compositeID(parts ...string) string {
	return strings.Join(parts, "-")
}

// Canonical lowercases an address for use as a key
func Canonical(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
