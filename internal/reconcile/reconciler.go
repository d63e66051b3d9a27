// Package reconcile drives a sync pass: discover events on chain, stamp the
// USD price snapshot, persist through the store, synthesize the genesis
// record, and refresh each token's cached stats.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"curveScope/internal/discovery"
	"curveScope/internal/factory"
	"curveScope/internal/model"
	"curveScope/internal/numeric"
	"curveScope/internal/oracle"
	"curveScope/internal/store"
)

// Discoverer yields factory events over the lookback window.
type Discoverer interface {
	Discover(ctx context.Context, token *common.Address, fromBlock uint64) (discovery.Result, error)
}

// PriceSource yields the current USD/ETH price.
type PriceSource interface {
	UsdPerEth(ctx context.Context) (float64, error)
}

// ProgressReader yields bonding-curve progress for a token.
type ProgressReader interface {
	Progress(ctx context.Context, token common.Address) (factory.CurveProgress, error)
}

// Exporter appends reconciled records to an external sink.
type Exporter interface {
	Append(records []model.TransactionRecord) error
}

// Config holds reconciliation settings.
type Config struct {
	// TotalSupplyTokens is the per-token supply in whole tokens, used for
	// market cap. Zero means the factory default.
	TotalSupplyTokens int64

	// VolumeWindow bounds the rolling volume stat. Zero means 24h.
	VolumeWindow time.Duration
}

func (c *Config) applyDefaults() {
	if c.TotalSupplyTokens <= 0 {
		c.TotalSupplyTokens = model.DefaultTotalSupplyTokens
	}
	if c.VolumeWindow <= 0 {
		c.VolumeWindow = 24 * time.Hour
	}
}

// Outcome summarizes one sync pass.
type Outcome struct {
	NewRecords int
	Tokens     int
	FromBlock  uint64
	ToBlock    uint64
	Malformed  int
}

// Reconciler ties discovery, the price oracle, the curve reader, and the
// store into one idempotent sync operation.
type Reconciler struct {
	cfg        Config
	store      store.Store
	discoverer Discoverer
	prices     PriceSource
	curve      ProgressReader
	exporter   Exporter
	logger     *zap.Logger
	now        func() time.Time
}

// NewReconciler builds a Reconciler. curve and exporter may be nil; stats
// then keep their previous progress and nothing is exported.
func NewReconciler(cfg Config, st store.Store, discoverer Discoverer, prices PriceSource, curve ProgressReader, exporter Exporter, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Reconciler{
		cfg:        cfg,
		store:      st,
		discoverer: discoverer,
		prices:     prices,
		curve:      curve,
		exporter:   exporter,
		logger:     logger,
		now:        time.Now,
	}
}

// SyncToken reconciles a single token, resuming from its saved sync state.
// Running it N times against the same chain state yields the same stored
// records as running it once.
func (r *Reconciler) SyncToken(ctx context.Context, tokenAddress string) (Outcome, error) {
	if !common.IsHexAddress(tokenAddress) {
		return Outcome{}, fmt.Errorf("invalid token address %q", tokenAddress)
	}
	addr := common.HexToAddress(tokenAddress)
	key := strings.ToLower(addr.Hex())

	fromBlock := uint64(0)
	if last, ok, err := r.store.LoadSyncState(ctx, key); err != nil {
		return Outcome{}, fmt.Errorf("load sync state: %w", err)
	} else if ok {
		fromBlock = last + 1
	}

	result, err := r.discoverer.Discover(ctx, &addr, fromBlock)
	if err != nil {
		return Outcome{}, err
	}

	usd := r.usdSnapshot(ctx)
	inserted, err := r.persist(ctx, result, usd)
	if err != nil {
		return Outcome{}, err
	}

	if err := r.finishToken(ctx, key); err != nil {
		return Outcome{}, err
	}
	if err := r.store.SaveSyncState(ctx, key, result.ToBlock); err != nil {
		return Outcome{}, fmt.Errorf("save sync state: %w", err)
	}

	r.logger.Info("token synced",
		zap.String("token", key),
		zap.Int("new_records", inserted),
		zap.Uint64("from_block", result.FromBlock),
		zap.Uint64("to_block", result.ToBlock),
		zap.Int("malformed", result.Malformed),
	)

	return Outcome{
		NewRecords: inserted,
		Tokens:     1,
		FromBlock:  result.FromBlock,
		ToBlock:    result.ToBlock,
		Malformed:  result.Malformed,
	}, nil
}

// SyncAll reconciles every token with factory activity inside the lookback
// window.
func (r *Reconciler) SyncAll(ctx context.Context) (Outcome, error) {
	result, err := r.discoverer.Discover(ctx, nil, 0)
	if err != nil {
		return Outcome{}, err
	}

	usd := r.usdSnapshot(ctx)
	inserted, err := r.persist(ctx, result, usd)
	if err != nil {
		return Outcome{}, err
	}

	seen := make(map[string]struct{})
	for _, token := range result.Tokens {
		seen[token.Address] = struct{}{}
	}
	for _, record := range result.Transactions {
		seen[record.TokenAddress] = struct{}{}
	}

	addresses := make([]string, 0, len(seen))
	for address := range seen {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	for _, address := range addresses {
		if err := r.finishToken(ctx, address); err != nil {
			return Outcome{}, err
		}
		if err := r.store.SaveSyncState(ctx, address, result.ToBlock); err != nil {
			return Outcome{}, fmt.Errorf("save sync state: %w", err)
		}
	}

	r.logger.Info("sync pass complete",
		zap.Int("tokens", len(addresses)),
		zap.Int("new_records", inserted),
		zap.Uint64("from_block", result.FromBlock),
		zap.Uint64("to_block", result.ToBlock),
		zap.Int("malformed", result.Malformed),
	)

	return Outcome{
		NewRecords: inserted,
		Tokens:     len(addresses),
		FromBlock:  result.FromBlock,
		ToBlock:    result.ToBlock,
		Malformed:  result.Malformed,
	}, nil
}

// usdSnapshot fetches the current price, or nil when the oracle chain is
// exhausted. Records stored without a snapshot stay priceless forever; the
// aggregator skips them rather than charting zeros.
func (r *Reconciler) usdSnapshot(ctx context.Context) *float64 {
	usd, err := r.prices.UsdPerEth(ctx)
	if err != nil {
		if errors.Is(err, oracle.ErrUnavailable) {
			r.logger.Warn("usd price unavailable, storing records without snapshot", zap.Error(err))
		} else {
			r.logger.Warn("usd price fetch failed", zap.Error(err))
		}
		return nil
	}
	return &usd
}

func (r *Reconciler) persist(ctx context.Context, result discovery.Result, usd *float64) (int, error) {
	for _, token := range result.Tokens {
		token.CreationPriceUsd = usd
		if err := r.store.UpsertToken(ctx, token); err != nil {
			return 0, fmt.Errorf("upsert token %s: %w", token.Address, err)
		}
	}

	records := make([]model.TransactionRecord, len(result.Transactions))
	for i, record := range result.Transactions {
		record.UsdPriceAtTime = usd
		records[i] = record
	}

	inserted, err := r.store.UpsertTransactions(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("upsert transactions: %w", err)
	}

	if r.exporter != nil && len(records) > 0 {
		if err := r.exporter.Append(records); err != nil {
			r.logger.Warn("export failed", zap.Error(err))
		}
	}
	return inserted, nil
}

// finishToken synthesizes the genesis record and refreshes cached stats.
func (r *Reconciler) finishToken(ctx context.Context, address string) error {
	token, ok, err := r.store.TokenByAddress(ctx, address)
	if err != nil {
		return fmt.Errorf("load token %s: %w", address, err)
	}
	if !ok {
		// Trades for a token whose creation fell outside the window. The
		// records are stored; the descriptor arrives on a deeper sync.
		r.logger.Debug("token descriptor not yet known", zap.String("token", address))
		return nil
	}

	if err := r.ensureGenesis(ctx, token); err != nil {
		return err
	}
	return r.refreshStats(ctx, token)
}

// ensureGenesis upserts the synthetic creation record so every token's
// history starts with a "Created" entry even when the on-chain creation
// event predates the earliest stored trade.
func (r *Reconciler) ensureGenesis(ctx context.Context, token model.Token) error {
	timestamp := token.CreatedAt
	if timestamp.IsZero() {
		timestamp = r.now().UTC()
	}

	supply := token.InitialSupply
	if supply == "" {
		supply = "0"
	}

	genesis := model.TransactionRecord{
		EventType:       model.EventCreated,
		TokenAddress:    token.Address,
		Counterparty:    token.Creator,
		BaseAmount:      supply,
		QuoteAmount:     "0",
		PricePerToken:   "0",
		UsdPriceAtTime:  token.CreationPriceUsd,
		TransactionHash: model.GenesisHash(token.Address),
		Timestamp:       timestamp,
	}
	if _, err := r.store.UpsertTransactions(ctx, []model.TransactionRecord{genesis}); err != nil {
		return fmt.Errorf("upsert genesis for %s: %w", token.Address, err)
	}
	return nil
}

// refreshStats recomputes the cached token stats from the stored log plus
// the live curve state.
func (r *Reconciler) refreshStats(ctx context.Context, token model.Token) error {
	records, err := r.store.TransactionsByToken(ctx, token.Address)
	if err != nil {
		return fmt.Errorf("load transactions for %s: %w", token.Address, err)
	}

	stats := model.TokenStats{
		ProgressPercent: token.ProgressPercent,
		Graduated:       token.Graduated,
	}

	cutoff := r.now().Add(-r.cfg.VolumeWindow)
	for _, record := range records {
		if record.EventType == model.EventCreated || !record.UsdPriceKnown() {
			continue
		}

		price, err := numeric.WeiStringToFloat(record.PricePerToken)
		if err != nil || price <= 0 {
			continue
		}
		priceUsd := price * *record.UsdPriceAtTime

		// Records arrive newest first, so the first priced trade wins.
		if stats.LastPriceUsd == nil {
			lastPrice := priceUsd
			marketCap := priceUsd * float64(r.cfg.TotalSupplyTokens)
			stats.LastPriceUsd = &lastPrice
			stats.MarketCapUsd = &marketCap
		}

		if record.Timestamp.After(cutoff) {
			if quote, err := numeric.WeiStringToFloat(record.QuoteAmount); err == nil {
				stats.DayVolume += quote * *record.UsdPriceAtTime
			}
		}
	}

	if r.curve != nil {
		progress, err := r.curve.Progress(ctx, common.HexToAddress(token.Address))
		if err != nil {
			r.logger.Warn("curve progress read failed, keeping cached value",
				zap.String("token", token.Address),
				zap.Error(err),
			)
		} else {
			stats.ProgressPercent = progress.Percent
			stats.Graduated = progress.Graduated
		}
	}

	if err := r.store.UpdateTokenStats(ctx, token.Address, stats); err != nil {
		return fmt.Errorf("update stats for %s: %w", token.Address, err)
	}
	return nil
}
