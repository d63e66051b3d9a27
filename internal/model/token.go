package model

import "time"

// DefaultTotalSupplyTokens is the fixed per-token supply minted by the
// launchpad factory, in whole tokens. Overridable via config for factory
// deployments that mint a different amount.
const DefaultTotalSupplyTokens = 1_000_000_000

// Token is the launchpad token descriptor plus the cached stats refreshed by
// reconciliation.
type Token struct {
	Address       string    `json:"address"`
	Creator       string    `json:"creator"`
	Name          string    `json:"name"`
	Symbol        string    `json:"symbol"`
	Description   string    `json:"description,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	TwitterLink   string    `json:"twitter_link,omitempty"`
	TelegramLink  string    `json:"telegram_link,omitempty"`
	WebsiteLink   string    `json:"website_link,omitempty"`
	InitialSupply string    `json:"initial_supply,omitempty"`
	CreatedAt     time.Time `json:"created_at"`

	// CreationPriceUsd is the USD/ETH snapshot captured when the creation
	// event was discovered; nil when the oracle was unavailable at that
	// moment. The synthetic genesis record inherits it.
	CreationPriceUsd *float64 `json:"creation_price_usd,omitempty"`

	TokenStats
}

// TokenStats are the cached aggregates refreshed after each reconciliation
// run. LastPriceUsd and MarketCapUsd are nil until a priced trade exists.
type TokenStats struct {
	LastPriceUsd    *float64 `json:"last_price_usd,omitempty"`
	MarketCapUsd    *float64 `json:"market_cap_usd,omitempty"`
	DayVolume       float64  `json:"day_volume"`
	ProgressPercent float64  `json:"progress_percent"`
	Graduated       bool     `json:"graduated"`
}

// SyncState tracks discovery progress per token so repeat syncs resume from
// the last processed block instead of rescanning the lookback window.
type SyncState struct {
	TokenAddress    string    `json:"token_address"`
	LastSyncedBlock uint64    `json:"last_synced_block"`
	UpdatedAt       time.Time `json:"updated_at"`
}
