package model

import (
	"sort"
	"strings"
	"time"
)

// EventType classifies a bonding-curve transaction.
type EventType string

const (
	// EventCreated is the synthetic token-creation record; it never comes
	// from an on-chain purchase/sale log.
	EventCreated EventType = "Created"
	// EventPurchased is a buy against the bonding curve.
	EventPurchased EventType = "Purchased"
	// EventSold is a sell against the bonding curve.
	EventSold EventType = "Sold"
)

const genesisHashPrefix = "genesis:"

// TransactionRecord is the normalized representation of a bonding-curve
// transaction for storage. Wei-scale integers are carried as decimal strings
// and parsed at use sites.
type TransactionRecord struct {
	EventType       EventType `json:"event_type"`
	TokenAddress    string    `json:"token_address"`
	Counterparty    string    `json:"counterparty"`
	BaseAmount      string    `json:"base_amount"`
	QuoteAmount     string    `json:"quote_amount"`
	PricePerToken   string    `json:"price_per_token"`
	UsdPriceAtTime  *float64  `json:"usd_price_at_time,omitempty"`
	TransactionHash string    `json:"transaction_hash"`
	BlockNumber     uint64    `json:"block_number"`
	LogIndex        uint64    `json:"log_index"`
	Timestamp       time.Time `json:"timestamp"`
}

// GenesisHash returns the sentinel transaction hash used for the synthetic
// creation record of a token. It keeps the upsert key unique per token.
func GenesisHash(tokenAddress string) string {
	return genesisHashPrefix + strings.ToLower(tokenAddress)
}

// IsGenesis reports whether the record is the synthetic creation record.
func (r TransactionRecord) IsGenesis() bool {
	return strings.HasPrefix(r.TransactionHash, genesisHashPrefix)
}

// UsdPriceKnown reports whether a real USD/ETH snapshot was captured for the
// record. A nil value means "unknown" and must never be folded in as zero.
func (r TransactionRecord) UsdPriceKnown() bool {
	return r.UsdPriceAtTime != nil
}

// SortAscending orders records for aggregation: the synthetic Created record
// first regardless of its placeholder timestamp, then block time, then block
// position. The sort is stable so equal keys keep their relative order.
func SortAscending(records []TransactionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.IsGenesis() != b.IsGenesis() {
			return a.IsGenesis()
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber < b.BlockNumber
		}
		return a.LogIndex < b.LogIndex
	})
}

// SortDescending orders records newest first, the display order for
// transaction tables. The synthetic Created record sorts last.
func SortDescending(records []TransactionRecord) {
	SortAscending(records)
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}
