package stats

import (
	"math/big"
)

// AggregationRecord is written once per aggregator event
type AggregationRecord struct {
	ID                string   `json:"id"`
	TokenAddress      string   `json:"tokenAddress"`
	OutTokenAddress   string   `json:"outTokenAddress"`
	Amount            *big.Int `json:"amount"`
	DestinationAmount *big.Int `json:"destinationAmount"`
	FeeAmount         *big.Int `json:"feeAmount"`
}

// SwapEvent is one attributed router call
type SwapEvent struct {
	ID              string   `json:"id"`
	TransactionHash string   `json:"transactionHash"`
	BlockNumber     uint64   `json:"blockNumber"`
	Timestamp       uint64   `json:"timestamp"`
	UserAddress     string   `json:"userAddress"`
	ExchangeAddress string   `json:"exchangeAddress"`
	ExchangeName    string   `json:"exchangeName"`
	TokenInAddress  string   `json:"tokenInAddress"`
	TokenOutAddress string   `json:"tokenOutAddress"`
	AmountIn        *big.Int `json:"amountIn"`
	AmountOut       *big.Int `json:"amountOut"`
	Fee             *big.Int `json:"fee"`
	GasPrice        *big.Int `json:"gasPrice"`
	GasUsed         *big.Int `json:"gasUsed"`
}

// TokenStat tracks aggregator-level flows for a token
type TokenStat struct {
	ID                string   `json:"id"`
	TradeInAmount     *big.Int `json:"tradeInAmount"`
	TradeOutAmount    *big.Int `json:"tradeOutAmount"`
	TradeInCount      uint64   `json:"tradeInCount"`
	TradeOutCount     uint64   `json:"tradeOutCount"`
	AvgTradeInAmount  *big.Int `json:"avgTradeInAmount"`
	AvgTradeOutAmount *big.Int `json:"avgTradeOutAmount"`
	FeeAmount         *big.Int `json:"feeAmount"`
	TotalAmount       *big.Int `json:"totalAmount"`
}

// Token tracks venue-level volume for a token
type Token struct {
	ID               string   `json:"id"`
	Address          string   `json:"address"`
	VolumeIn         *big.Int `json:"volumeIn"`
	VolumeOut        *big.Int `json:"volumeOut"`
	FeesGenerated    *big.Int `json:"feesGenerated"`
	TransactionCount uint64   `json:"transactionCount"`
}

type Exchange struct {
	ID               string   `json:"id"`
	Address          string   `json:"address"`
	Name             string   `json:"name"`
	TotalVolume      *big.Int `json:"totalVolume"`
	TransactionCount uint64   `json:"transactionCount"`
}

type User struct {
	ID                    string   `json:"id"`
	Address               string   `json:"address"`
	TotalFee              *big.Int `json:"totalFee"`
	TotalGasUsed          *big.Int `json:"totalGasUsed"`
	TotalVolumeTraded     *big.Int `json:"totalVolumeTraded"`
	TotalTransactionCount uint64   `json:"totalTransactionCount"`
}

type ExchangeTokenStat struct {
	ID               string   `json:"id"`
	ExchangeID       string   `json:"exchangeId"`
	TokenID          string   `json:"tokenId"`
	VolumeIn         *big.Int `json:"volumeIn"`
	TransactionCount uint64   `json:"transactionCount"`
}

type UserTokenStat struct {
	ID               string   `json:"id"`
	UserID           string   `json:"userId"`
	TokenID          string   `json:"tokenId"`
	VolumeTraded     *big.Int `json:"volumeTraded"`
	TransactionCount uint64   `json:"transactionCount"`
}

type UserExchangeStat struct {
	ID               string   `json:"id"`
	UserID           string   `json:"userId"`
	ExchangeID       string   `json:"exchangeId"`
	VolumeTraded     *big.Int `json:"volumeTraded"`
	TransactionCount uint64   `json:"transactionCount"`
}

type UserTokenExchangeStat struct {
	ID               string   `json:"id"`
	UserID           string   `json:"userId"`
	TokenID          string   `json:"tokenId"`
	ExchangeID       string   `json:"exchangeId"`
	VolumeTraded     *big.Int `json:"volumeTraded"`
	TransactionCount uint64   `json:"transactionCount"`
}

// GlobalStats is the singleton stored under GlobalStatsID
type GlobalStats struct {
	ID                    string   `json:"id"`
	TotalFee              *big.Int `json:"totalFee"`
	TotalGasUsed          *big.Int `json:"totalGasUsed"`
	TotalTransactionCount uint64   `json:"totalTransactionCount"`
	TotalUniqueUsers      uint64   `json:"totalUniqueUsers"`
	LastUpdatedTimestamp  uint64   `json:"lastUpdatedTimestamp"`
}

type DailyUserData struct {
	ID                string `json:"id"`
	Date              uint64 `json:"date"`
	TotalTransactions uint64 `json:"totalTransactions"`
	UniqueUserCount   uint64 `json:"uniqueUserCount"`
}

type MonthlyUserData struct {
	ID                string `json:"id"`
	MonthStartDate    uint64 `json:"monthStartDate"`
	TotalTransactions uint64 `json:"totalTransactions"`
	UniqueUserCount   uint64 `json:"uniqueUserCount"`
}

// Marker is an existence-only row (UserDay, UserMonth)
type Marker struct {
	ID string `json:"id"`
}

// IndexerState is the per-chain sync cursor kept by the host
type IndexerState struct {
	ID           string `json:"id"`
	ChainID      uint64 `json:"chainId"`
	LastBlock    uint64 `json:"lastBlock"`
	LastLogIndex uint   `json:"lastLogIndex"`
	HasLog       bool   `json:"hasLog"`
	UpdatedAt    int64  `json:"updatedAt"`
}
