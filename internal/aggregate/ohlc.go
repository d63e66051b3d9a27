// Package aggregate holds the pure folds over the reconciled transaction
// log: OHLC candles and holder distribution. Both recompute from the full
// input on every call and never touch I/O.
package aggregate

import (
	"fmt"

	"curveScope/internal/model"
	"curveScope/internal/numeric"
)

// BucketWidths is the set of candle widths the API accepts, matching the
// chart timeframe selector (1s, 1m, 5m, 15m, 1h, 4h, 1d).
var BucketWidths = map[int64]struct{}{
	1:     {},
	60:    {},
	300:   {},
	900:   {},
	3600:  {},
	14400: {},
	86400: {},
}

// Candles folds an ascending transaction list into fixed-width OHLCV
// buckets. Only buckets containing at least one priced trade are emitted;
// gaps are not backfilled. A bucket's open equals the previous emitted
// bucket's close, keeping the series continuous across gaps. Transactions
// without a USD price snapshot are skipped entirely: an unknown price must
// never surface as a zero high/low/close.
func Candles(transactions []model.TransactionRecord, bucketWidthSeconds int64) ([]model.Candle, error) {
	if bucketWidthSeconds <= 0 {
		return nil, fmt.Errorf("bucket width must be positive, got %d", bucketWidthSeconds)
	}

	candles := make([]model.Candle, 0)
	var current *model.Candle
	lastTs := int64(0)

	for _, tx := range transactions {
		ts := tx.Timestamp.Unix()
		if ts < lastTs {
			return nil, fmt.Errorf("transactions not sorted ascending at %s", tx.TransactionHash)
		}
		lastTs = ts

		// The synthetic creation record carries no trade price, and a record
		// without a USD snapshot has no price at all. Neither may reach the
		// high/low fold as a zero.
		if tx.EventType == model.EventCreated || !tx.UsdPriceKnown() {
			continue
		}

		pricePerToken, err := numeric.WeiStringToFloat(tx.PricePerToken)
		if err != nil {
			return nil, fmt.Errorf("price of %s: %w", tx.TransactionHash, err)
		}
		volume, err := numeric.WeiStringToFloat(tx.BaseAmount)
		if err != nil {
			return nil, fmt.Errorf("base amount of %s: %w", tx.TransactionHash, err)
		}
		price := pricePerToken * *tx.UsdPriceAtTime

		bucketStart := ts - ts%bucketWidthSeconds
		if current == nil || current.BucketStart != bucketStart {
			open := price
			if current != nil {
				open = current.Close
				candles = append(candles, *current)
			}
			current = &model.Candle{
				BucketStart: bucketStart,
				Open:        open,
				High:        price,
				Low:         price,
				Close:       price,
			}
		}

		if price > current.High {
			current.High = price
		}
		if price < current.Low {
			current.Low = price
		}
		current.Close = price
		current.Volume += volume
		current.Trades++
	}

	if current != nil {
		candles = append(candles, *current)
	}

	return candles, nil
}
