package discovery

import "fmt"

// BlockRange is an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// SplitRange partitions [from, to] into sub-ranges of at most stepBlocks
// blocks, the provider-side limit for a single log query.
func SplitRange(from, to, stepBlocks uint64) ([]BlockRange, error) {
	if stepBlocks == 0 {
		return nil, fmt.Errorf("step must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	ranges := make([]BlockRange, 0, (to-from)/stepBlocks+1)
	start := from
	for start <= to {
		end := to
		if remaining := to - start + 1; remaining > stepBlocks {
			end = start + stepBlocks - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return ranges, nil
}
