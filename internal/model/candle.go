package model

// Candle is a fixed-width OHLCV bucket derived from the transaction log.
// Candles are recomputed from the full transaction set on every call and are
// never persisted.
type Candle struct {
	BucketStart int64   `json:"bucket_start"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
	Trades      int     `json:"trades"`
}

// HolderBalance is a running per-address token balance expressed as a share
// of total supply. Negative balances are preserved: they signal trades seen
// outside the tracked event window, not an error.
type HolderBalance struct {
	Address string  `json:"address"`
	Balance float64 `json:"balance"`
	Percent float64 `json:"percent"`
}
