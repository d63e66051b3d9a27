// Package memory is an in-memory store used by tests and by serving without
// a database. Semantics mirror the Postgres implementation.
package memory

import (
	"context"
	"sync"

	"curveScope/internal/model"
)

// Store keeps everything in maps guarded by one RWMutex.
type Store struct {
	mu           sync.RWMutex
	tokens       map[string]model.Token
	transactions map[string]model.TransactionRecord
	syncState    map[string]uint64
}

// NewStore builds an empty memory store.
func NewStore() *Store {
	return &Store{
		tokens:       make(map[string]model.Token),
		transactions: make(map[string]model.TransactionRecord),
		syncState:    make(map[string]uint64),
	}
}

// UpsertTransactions inserts or replaces records keyed by transaction hash.
func (s *Store) UpsertTransactions(_ context.Context, records []model.TransactionRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, record := range records {
		if existing, ok := s.transactions[record.TransactionHash]; ok {
			// Keep the USD snapshot observed at first store.
			if existing.UsdPriceAtTime != nil {
				record.UsdPriceAtTime = existing.UsdPriceAtTime
			}
		} else {
			inserted++
		}
		s.transactions[record.TransactionHash] = record
	}
	return inserted, nil
}

// TransactionsByToken returns a token's records newest first.
func (s *Store) TransactionsByToken(_ context.Context, tokenAddress string) ([]model.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.TransactionRecord, 0)
	for _, record := range s.transactions {
		if record.TokenAddress == tokenAddress {
			records = append(records, record)
		}
	}
	model.SortDescending(records)
	return records, nil
}

// UpsertToken inserts or refreshes a descriptor, keeping existing stats.
func (s *Store) UpsertToken(_ context.Context, token model.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.tokens[token.Address]; ok {
		token.TokenStats = existing.TokenStats
		if existing.CreationPriceUsd != nil {
			token.CreationPriceUsd = existing.CreationPriceUsd
		}
	}
	s.tokens[token.Address] = token
	return nil
}

// TokenByAddress fetches a descriptor.
func (s *Store) TokenByAddress(_ context.Context, address string) (model.Token, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[address]
	return token, ok, nil
}

// UpdateTokenStats replaces the cached stats of a token.
func (s *Store) UpdateTokenStats(_ context.Context, address string, stats model.TokenStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[address]
	if !ok {
		return nil
	}
	token.TokenStats = stats
	s.tokens[address] = token
	return nil
}

// LoadSyncState returns the last synced block for a token.
func (s *Store) LoadSyncState(_ context.Context, tokenAddress string) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	last, ok := s.syncState[tokenAddress]
	return last, ok, nil
}

// SaveSyncState records the last synced block for a token.
func (s *Store) SaveSyncState(_ context.Context, tokenAddress string, lastBlock uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.syncState[tokenAddress] = lastBlock
	return nil
}
