// Package discovery locates bonding-curve events on chain: it binary-searches
// the block range covering the lookback window, splits it into provider-sized
// sub-ranges, and fetches logs with bounded concurrency. Discovery is
// read-only; persistence happens in reconcile.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"curveScope/internal/factory"
	"curveScope/internal/model"
)

// Error marks a chain RPC failure during discovery. Discovery does not write
// anything, so callers may retry the whole call.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("discovery %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Retryable reports that the failed call left no partial state behind.
func (e *Error) Retryable() bool { return true }

// IsRetryable reports whether err is a retryable discovery failure.
func IsRetryable(err error) bool {
	var discErr *Error
	return errors.As(err, &discErr) && discErr.Retryable()
}

// ChainReader is the slice of the chain client discovery depends on.
type ChainReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// Config holds discovery settings.
type Config struct {
	Factory      common.Address
	Lookback     time.Duration
	StepBlocks   uint64
	Concurrency  int
	MaxRetries   int
	RetryBackoff time.Duration
	CallTimeout  time.Duration
}

func (c *Config) applyDefaults() {
	if c.Lookback <= 0 {
		c.Lookback = 9 * time.Hour
	}
	if c.StepBlocks == 0 {
		c.StepBlocks = 1000
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 15 * time.Second
	}
}

// Result is one discovery pass over the chain.
type Result struct {
	Transactions []model.TransactionRecord
	Tokens       []model.Token
	FromBlock    uint64
	ToBlock      uint64
	Malformed    int
}

// Service discovers factory events over a lookback window.
type Service struct {
	cfg     Config
	chain   ChainReader
	decoder *factory.Decoder
	logger  *zap.Logger
	now     func() time.Time
}

// NewService builds a discovery Service.
func NewService(cfg Config, chainReader ChainReader, decoder *factory.Decoder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Service{
		cfg:     cfg,
		chain:   chainReader,
		decoder: decoder,
		logger:  logger,
		now:     time.Now,
	}
}

// Discover fetches every factory event in the lookback window. token narrows
// results to a single token when non-nil; fromBlock, when non-zero, overrides
// the binary-searched lower bound so repeat syncs resume where they stopped.
// Any sub-range failure aborts the whole call: no partial silent success.
func (s *Service) Discover(ctx context.Context, token *common.Address, fromBlock uint64) (Result, error) {
	latest, err := s.latestBlock(ctx)
	if err != nil {
		return Result{}, &Error{Op: "latest block", Err: err}
	}

	from := fromBlock
	if from == 0 {
		target := uint64(s.now().Add(-s.cfg.Lookback).UTC().Unix())
		from, err = FindBlockByTime(ctx, s.retryingReader(), target, latest)
		if err != nil {
			return Result{}, &Error{Op: "block search", Err: err}
		}
	}
	if from > latest {
		return Result{FromBlock: from, ToBlock: latest}, nil
	}

	ranges, err := SplitRange(from, latest, s.cfg.StepBlocks)
	if err != nil {
		return Result{}, &Error{Op: "split range", Err: err}
	}

	s.logger.Debug("discover range",
		zap.Uint64("from", from),
		zap.Uint64("to", latest),
		zap.Int("sub_ranges", len(ranges)),
	)

	logsByRange := make([][]types.Log, len(ranges))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.Concurrency)
	for i, blockRange := range ranges {
		group.Go(func() error {
			logs, err := s.filterLogsWithRetry(groupCtx, blockRange.From, blockRange.To)
			if err != nil {
				return fmt.Errorf("range %d-%d: %w", blockRange.From, blockRange.To, err)
			}
			logsByRange[i] = logs
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Result{}, &Error{Op: "filter logs", Err: err}
	}

	result := Result{FromBlock: from, ToBlock: latest}
	var tokenFilter string
	if token != nil {
		tokenFilter = strings.ToLower(token.Hex())
	}

	for _, logs := range logsByRange {
		for _, log := range logs {
			if log.Removed || !s.decoder.CanDecode(log) {
				continue
			}

			ts, err := s.blockTimestampWithRetry(ctx, log.BlockNumber)
			if err != nil {
				return Result{}, &Error{Op: "block timestamp", Err: err}
			}

			decoded, err := s.decoder.Decode(log, ts)
			if err != nil {
				result.Malformed++
				s.logger.Warn("malformed factory log",
					zap.Error(err),
					zap.String("tx_hash", log.TxHash.Hex()),
					zap.Uint64("block_number", log.BlockNumber),
				)
				continue
			}

			switch {
			case decoded.Transaction != nil:
				if tokenFilter != "" && decoded.Transaction.TokenAddress != tokenFilter {
					continue
				}
				result.Transactions = append(result.Transactions, *decoded.Transaction)
			case decoded.Token != nil:
				if tokenFilter != "" && decoded.Token.Address != tokenFilter {
					continue
				}
				result.Tokens = append(result.Tokens, *decoded.Token)
			}
		}
	}

	return result, nil
}

func (s *Service) latestBlock(ctx context.Context) (uint64, error) {
	var latest uint64
	err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, s.cfg.CallTimeout, func(ctx context.Context) error {
		var err error
		latest, err = s.chain.LatestBlockNumber(ctx)
		return err
	})
	return latest, err
}

func (s *Service) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, s.cfg.CallTimeout, func(ctx context.Context) error {
		var err error
		logs, err = s.chain.FilterLogs(ctx, fromBlock, toBlock, []common.Address{s.cfg.Factory}, s.decoder.Topics())
		if err != nil {
			s.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (s *Service) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, s.cfg.CallTimeout, func(ctx context.Context) error {
		var err error
		ts, err = s.chain.BlockTimestamp(ctx, blockNumber)
		return err
	})
	return ts, err
}

// retryingReader wraps the chain reader so binary-search probes get the same
// retry policy as everything else.
func (s *Service) retryingReader() TimestampReader {
	return timestampReaderFunc(func(ctx context.Context, number uint64) (uint64, error) {
		return s.blockTimestampWithRetry(ctx, number)
	})
}

type timestampReaderFunc func(ctx context.Context, number uint64) (uint64, error)

func (f timestampReaderFunc) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	return f(ctx, number)
}
