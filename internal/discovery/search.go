package discovery

import (
	"context"
	"fmt"
)

// TimestampReader reads block timestamps for the binary search.
type TimestampReader interface {
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// FindBlockByTime binary-searches [0, latest] for the first block whose
// timestamp is at or after target. Block timestamps are monotonically
// non-decreasing, so the search needs O(log n) header fetches instead of a
// scan over chain history. When the whole chain is younger than target the
// result clamps to latest; when older, to 0.
func FindBlockByTime(ctx context.Context, reader TimestampReader, target, latest uint64) (uint64, error) {
	lo, hi := uint64(0), latest
	for lo < hi {
		mid := lo + (hi-lo)/2
		ts, err := reader.BlockTimestamp(ctx, mid)
		if err != nil {
			return 0, fmt.Errorf("timestamp of block %d: %w", mid, err)
		}
		if ts < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}
