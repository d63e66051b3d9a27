// Package store defines the persistence contract for the reconciliation
// pipeline. The Postgres implementation backs production; the memory
// implementation backs tests and running the API without a database.
package store

import (
	"context"

	"curveScope/internal/model"
)

// Store persists tokens, the transaction log, and sync progress.
//
// UpsertTransactions must be atomic per transaction hash: concurrent
// discovery runs may race on the same record, and last-write-wins is
// acceptable because the payload derives from immutable chain data.
type Store interface {
	// UpsertTransactions inserts or replaces records keyed by transaction
	// hash and returns how many were newly inserted.
	UpsertTransactions(ctx context.Context, records []model.TransactionRecord) (int, error)

	// TransactionsByToken returns the token's records sorted newest first,
	// the display order. Aggregation consumers re-sort ascending.
	TransactionsByToken(ctx context.Context, tokenAddress string) ([]model.TransactionRecord, error)

	// UpsertToken inserts or refreshes a token descriptor. Cached stats are
	// left untouched; UpdateTokenStats owns those.
	UpsertToken(ctx context.Context, token model.Token) error

	// TokenByAddress fetches a descriptor; ok is false when absent.
	TokenByAddress(ctx context.Context, address string) (model.Token, bool, error)

	// UpdateTokenStats replaces the cached stats of a token.
	UpdateTokenStats(ctx context.Context, address string, stats model.TokenStats) error

	// LoadSyncState returns the last synced block for a token; ok is false
	// when the token has never been synced.
	LoadSyncState(ctx context.Context, tokenAddress string) (uint64, bool, error)

	// SaveSyncState records the last synced block for a token.
	SaveSyncState(ctx context.Context, tokenAddress string, lastBlock uint64) error
}
