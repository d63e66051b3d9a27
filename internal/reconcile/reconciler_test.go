package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"curveScope/internal/discovery"
	"curveScope/internal/factory"
	"curveScope/internal/model"
	"curveScope/internal/numeric"
	"curveScope/internal/oracle"
	"curveScope/internal/store/memory"
)

const (
	tokenAddr  = "0x00000000000000000000000000000000000000aa"
	traderAddr = "0x00000000000000000000000000000000000000bb"
)

type fakeDiscoverer struct {
	result     discovery.Result
	err        error
	fromBlocks []uint64
}

func (f *fakeDiscoverer) Discover(_ context.Context, _ *common.Address, fromBlock uint64) (discovery.Result, error) {
	f.fromBlocks = append(f.fromBlocks, fromBlock)
	if f.err != nil {
		return discovery.Result{}, f.err
	}
	return f.result, nil
}

type fakePrices struct {
	price float64
	err   error
}

func (f *fakePrices) UsdPerEth(context.Context) (float64, error) {
	return f.price, f.err
}

type fakeCurve struct {
	progress factory.CurveProgress
	err      error
}

func (f *fakeCurve) Progress(context.Context, common.Address) (factory.CurveProgress, error) {
	return f.progress, f.err
}

func testTrade(hash string, priceTokens float64, ts time.Time, block uint64) model.TransactionRecord {
	return model.TransactionRecord{
		EventType:       model.EventPurchased,
		TokenAddress:    tokenAddr,
		Counterparty:    traderAddr,
		BaseAmount:      numeric.FloatToWei(100).String(),
		QuoteAmount:     numeric.FloatToWei(0.1).String(),
		PricePerToken:   numeric.FloatToWei(priceTokens).String(),
		TransactionHash: hash,
		BlockNumber:     block,
		Timestamp:       ts,
	}
}

func testResult(now time.Time) discovery.Result {
	return discovery.Result{
		Tokens: []model.Token{{
			Address:   tokenAddr,
			Creator:   traderAddr,
			Name:      "Moon",
			Symbol:    "MOON",
			CreatedAt: now.Add(-3 * time.Hour),
		}},
		Transactions: []model.TransactionRecord{
			testTrade("0x1", 0.000002, now.Add(-2*time.Hour), 90),
			testTrade("0x2", 0.000003, now.Add(-1*time.Hour), 95),
		},
		FromBlock: 80,
		ToBlock:   100,
	}
}

func TestSyncTokenPersistsStampsAndAggregates(t *testing.T) {
	now := time.Now().UTC()
	st := memory.NewStore()
	disc := &fakeDiscoverer{result: testResult(now)}
	curve := &fakeCurve{progress: factory.CurveProgress{Percent: 40}}

	r := NewReconciler(Config{}, st, disc, &fakePrices{price: 2000}, curve, nil, nil)

	outcome, err := r.SyncToken(context.Background(), tokenAddr)
	require.NoError(t, err)
	require.Equal(t, 2, outcome.NewRecords)
	require.Equal(t, uint64(100), outcome.ToBlock)

	records, err := st.TransactionsByToken(context.Background(), tokenAddr)
	require.NoError(t, err)
	// Two trades plus the synthetic genesis record.
	require.Len(t, records, 3)

	var genesis *model.TransactionRecord
	for i := range records {
		if records[i].IsGenesis() {
			genesis = &records[i]
			continue
		}
		require.NotNil(t, records[i].UsdPriceAtTime)
		require.Equal(t, 2000.0, *records[i].UsdPriceAtTime)
	}
	require.NotNil(t, genesis, "genesis record must be synthesized")
	require.Equal(t, model.EventCreated, genesis.EventType)
	require.Equal(t, traderAddr, genesis.Counterparty)
	require.NotNil(t, genesis.UsdPriceAtTime)

	token, ok, err := st.TokenByAddress(context.Background(), tokenAddr)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, token.LastPriceUsd)
	require.InDelta(t, 0.000003*2000, *token.LastPriceUsd, 1e-12)
	require.NotNil(t, token.MarketCapUsd)
	require.InDelta(t, 0.000003*2000*float64(model.DefaultTotalSupplyTokens), *token.MarketCapUsd, 1e-3)
	// Both trades fall inside the 24h window: 2 * 0.1 ETH * 2000 USD.
	require.InDelta(t, 400, token.DayVolume, 1e-9)
	require.Equal(t, 40.0, token.ProgressPercent)
}

func TestSyncTokenIdempotent(t *testing.T) {
	now := time.Now().UTC()
	st := memory.NewStore()
	disc := &fakeDiscoverer{result: testResult(now)}

	r := NewReconciler(Config{}, st, disc, &fakePrices{price: 2000}, nil, nil, nil)

	first, err := r.SyncToken(context.Background(), tokenAddr)
	require.NoError(t, err)
	require.Equal(t, 2, first.NewRecords)

	second, err := r.SyncToken(context.Background(), tokenAddr)
	require.NoError(t, err)
	require.Equal(t, 0, second.NewRecords)

	records, err := st.TransactionsByToken(context.Background(), tokenAddr)
	require.NoError(t, err)
	require.Len(t, records, 3)
}

func TestSyncTokenResumesFromSyncState(t *testing.T) {
	now := time.Now().UTC()
	st := memory.NewStore()
	disc := &fakeDiscoverer{result: testResult(now)}

	r := NewReconciler(Config{}, st, disc, &fakePrices{price: 2000}, nil, nil, nil)

	_, err := r.SyncToken(context.Background(), tokenAddr)
	require.NoError(t, err)
	_, err = r.SyncToken(context.Background(), tokenAddr)
	require.NoError(t, err)

	require.Equal(t, []uint64{0, 101}, disc.fromBlocks)
}

func TestSyncTokenWithoutOracleStoresUnpricedRecords(t *testing.T) {
	now := time.Now().UTC()
	st := memory.NewStore()
	disc := &fakeDiscoverer{result: testResult(now)}
	prices := &fakePrices{err: fmt.Errorf("%w: all rungs failed", oracle.ErrUnavailable)}

	r := NewReconciler(Config{}, st, disc, prices, nil, nil, nil)

	outcome, err := r.SyncToken(context.Background(), tokenAddr)
	require.NoError(t, err, "oracle outage must not block reconciliation")
	require.Equal(t, 2, outcome.NewRecords)

	records, err := st.TransactionsByToken(context.Background(), tokenAddr)
	require.NoError(t, err)
	for _, record := range records {
		require.Nil(t, record.UsdPriceAtTime)
	}

	token, ok, err := st.TokenByAddress(context.Background(), tokenAddr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Nil(t, token.LastPriceUsd, "no priced trade means no last price")
	require.Zero(t, token.DayVolume)
}

func TestSyncTokenDiscoveryFailurePropagates(t *testing.T) {
	st := memory.NewStore()
	disc := &fakeDiscoverer{err: &discovery.Error{Op: "filter logs", Err: errors.New("rpc down")}}

	r := NewReconciler(Config{}, st, disc, &fakePrices{price: 2000}, nil, nil, nil)

	_, err := r.SyncToken(context.Background(), tokenAddr)
	require.Error(t, err)
	require.True(t, discovery.IsRetryable(err))

	records, err := st.TransactionsByToken(context.Background(), tokenAddr)
	require.NoError(t, err)
	require.Empty(t, records, "failed discovery must not leave partial state")
}

func TestSyncTokenRejectsInvalidAddress(t *testing.T) {
	r := NewReconciler(Config{}, memory.NewStore(), &fakeDiscoverer{}, &fakePrices{}, nil, nil, nil)
	_, err := r.SyncToken(context.Background(), "not-an-address")
	require.Error(t, err)
}

func TestSyncTokenCurveFailureKeepsCachedProgress(t *testing.T) {
	now := time.Now().UTC()
	st := memory.NewStore()
	disc := &fakeDiscoverer{result: testResult(now)}
	curve := &fakeCurve{err: errors.New("rpc down")}

	r := NewReconciler(Config{}, st, disc, &fakePrices{price: 2000}, curve, nil, nil)

	_, err := r.SyncToken(context.Background(), tokenAddr)
	require.NoError(t, err, "curve outage must not block reconciliation")

	token, _, err := st.TokenByAddress(context.Background(), tokenAddr)
	require.NoError(t, err)
	require.Zero(t, token.ProgressPercent)
	require.False(t, token.Graduated)
}

func TestSyncAllCoversEveryToken(t *testing.T) {
	now := time.Now().UTC()
	other := "0x00000000000000000000000000000000000000cc"

	result := testResult(now)
	otherTrade := testTrade("0x3", 0.000001, now.Add(-30*time.Minute), 99)
	otherTrade.TokenAddress = other
	result.Transactions = append(result.Transactions, otherTrade)

	st := memory.NewStore()
	disc := &fakeDiscoverer{result: result}
	r := NewReconciler(Config{}, st, disc, &fakePrices{price: 2000}, nil, nil, nil)

	outcome, err := r.SyncAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, outcome.NewRecords)
	require.Equal(t, 2, outcome.Tokens)

	// Both tokens resume from the same pass.
	for _, addr := range []string{tokenAddr, other} {
		last, ok, err := st.LoadSyncState(context.Background(), addr)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(100), last)
	}

	// The second token has no descriptor yet, so no genesis is synthesized.
	records, err := st.TransactionsByToken(context.Background(), other)
	require.NoError(t, err)
	require.Len(t, records, 1)
}
