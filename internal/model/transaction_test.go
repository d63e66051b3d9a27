package model

import (
	"testing"
	"time"
)

func record(hash string, ts int64, block, logIndex uint64) TransactionRecord {
	return TransactionRecord{
		EventType:       EventPurchased,
		TransactionHash: hash,
		BlockNumber:     block,
		LogIndex:        logIndex,
		Timestamp:       time.Unix(ts, 0).UTC(),
	}
}

func TestSortAscendingGenesisFirst(t *testing.T) {
	genesis := TransactionRecord{
		EventType:       EventCreated,
		TransactionHash: GenesisHash("0xAbC"),
		// Placeholder timestamp far newer than the trades.
		Timestamp: time.Unix(9999, 0).UTC(),
	}
	records := []TransactionRecord{
		record("0x2", 200, 12, 0),
		genesis,
		record("0x1", 100, 10, 0),
	}

	SortAscending(records)

	if !records[0].IsGenesis() {
		t.Fatalf("genesis record should sort first, got %s", records[0].TransactionHash)
	}
	if records[1].TransactionHash != "0x1" || records[2].TransactionHash != "0x2" {
		t.Fatalf("trades out of order: %s, %s", records[1].TransactionHash, records[2].TransactionHash)
	}
}

func TestSortAscendingTieBreaks(t *testing.T) {
	records := []TransactionRecord{
		record("0xb", 100, 10, 3),
		record("0xa", 100, 10, 1),
		record("0xc", 100, 9, 7),
	}

	SortAscending(records)

	want := []string{"0xc", "0xa", "0xb"}
	for i, hash := range want {
		if records[i].TransactionHash != hash {
			t.Fatalf("position %d: got %s, want %s", i, records[i].TransactionHash, hash)
		}
	}
}

func TestSortDescendingReverses(t *testing.T) {
	records := []TransactionRecord{
		record("0x1", 100, 10, 0),
		record("0x2", 200, 12, 0),
		{EventType: EventCreated, TransactionHash: GenesisHash("0xabc")},
	}

	SortDescending(records)

	if records[0].TransactionHash != "0x2" {
		t.Fatalf("newest trade should be first, got %s", records[0].TransactionHash)
	}
	if !records[len(records)-1].IsGenesis() {
		t.Fatalf("genesis should sort last in display order")
	}
}

func TestGenesisHash(t *testing.T) {
	hash := GenesisHash("0xDEADbeef")
	if hash != "genesis:0xdeadbeef" {
		t.Fatalf("unexpected genesis hash: %s", hash)
	}
	if !(TransactionRecord{TransactionHash: hash}).IsGenesis() {
		t.Fatalf("genesis hash not recognized")
	}
}

func TestUsdPriceKnown(t *testing.T) {
	if (TransactionRecord{}).UsdPriceKnown() {
		t.Fatalf("nil snapshot should be unknown")
	}
	price := 0.0
	if !(TransactionRecord{UsdPriceAtTime: &price}).UsdPriceKnown() {
		t.Fatalf("zero snapshot is still a known value")
	}
}
