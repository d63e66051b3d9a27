package memory

import (
	"context"
	"testing"
	"time"

	"curveScope/internal/model"
)

func TestUpsertTransactionsCountsInserts(t *testing.T) {
	st := NewStore()
	ctx := context.Background()

	records := []model.TransactionRecord{
		{TransactionHash: "0x1", TokenAddress: "0xaaa", Timestamp: time.Unix(100, 0)},
		{TransactionHash: "0x2", TokenAddress: "0xaaa", Timestamp: time.Unix(200, 0)},
	}

	inserted, err := st.UpsertTransactions(ctx, records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("insert count mismatch: %d", inserted)
	}

	inserted, err = st.UpsertTransactions(ctx, records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("replay should insert nothing, got %d", inserted)
	}
}

func TestUpsertTransactionsKeepsFirstUsdSnapshot(t *testing.T) {
	st := NewStore()
	ctx := context.Background()

	first := 2000.0
	if _, err := st.UpsertTransactions(ctx, []model.TransactionRecord{
		{TransactionHash: "0x1", TokenAddress: "0xaaa", UsdPriceAtTime: &first},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := 9999.0
	if _, err := st.UpsertTransactions(ctx, []model.TransactionRecord{
		{TransactionHash: "0x1", TokenAddress: "0xaaa", UsdPriceAtTime: &second},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := st.TransactionsByToken(ctx, "0xaaa")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].UsdPriceAtTime == nil || *records[0].UsdPriceAtTime != 2000 {
		t.Fatalf("first snapshot should survive replays: %+v", records)
	}
}

func TestTransactionsByTokenOrdersNewestFirst(t *testing.T) {
	st := NewStore()
	ctx := context.Background()

	if _, err := st.UpsertTransactions(ctx, []model.TransactionRecord{
		{TransactionHash: "0xold", TokenAddress: "0xaaa", Timestamp: time.Unix(100, 0)},
		{TransactionHash: "0xnew", TokenAddress: "0xaaa", Timestamp: time.Unix(300, 0)},
		{TransactionHash: "0xother", TokenAddress: "0xbbb", Timestamp: time.Unix(200, 0)},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := st.TransactionsByToken(ctx, "0xaaa")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("record count mismatch: %d", len(records))
	}
	if records[0].TransactionHash != "0xnew" || records[1].TransactionHash != "0xold" {
		t.Fatalf("display order mismatch: %+v", records)
	}
}

func TestUpsertTokenPreservesStats(t *testing.T) {
	st := NewStore()
	ctx := context.Background()

	token := model.Token{Address: "0xaaa", Name: "Moon", Symbol: "MOON"}
	if err := st.UpsertToken(ctx, token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	price := 0.5
	if err := st.UpdateTokenStats(ctx, "0xaaa", model.TokenStats{LastPriceUsd: &price, ProgressPercent: 40}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token.Description = "updated"
	if err := st.UpsertToken(ctx, token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok, err := st.TokenByAddress(ctx, "0xaaa")
	if err != nil || !ok {
		t.Fatalf("token lookup failed: ok=%v err=%v", ok, err)
	}
	if got.Description != "updated" {
		t.Fatalf("descriptor refresh lost: %+v", got)
	}
	if got.LastPriceUsd == nil || *got.LastPriceUsd != 0.5 || got.ProgressPercent != 40 {
		t.Fatalf("stats should survive descriptor upserts: %+v", got)
	}
}

func TestSyncStateRoundTrip(t *testing.T) {
	st := NewStore()
	ctx := context.Background()

	if _, ok, err := st.LoadSyncState(ctx, "0xaaa"); err != nil || ok {
		t.Fatalf("fresh token should have no sync state: ok=%v err=%v", ok, err)
	}

	if err := st.SaveSyncState(ctx, "0xaaa", 1234); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last, ok, err := st.LoadSyncState(ctx, "0xaaa")
	if err != nil || !ok {
		t.Fatalf("sync state lookup failed: ok=%v err=%v", ok, err)
	}
	if last != 1234 {
		t.Fatalf("sync state mismatch: %d", last)
	}
}
