// Package oracle resolves the USD/ETH conversion rate with a fallback chain:
// on-chain price feed, then HTTP price API, then the last value either
// backend returned. When every rung fails the caller gets ErrUnavailable,
// never a zero masquerading as a price.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ErrUnavailable means both price backends failed and no usable cached value
// exists. Callers must propagate "unknown", not coerce to zero.
var ErrUnavailable = errors.New("eth/usd price unavailable")

// DefaultPriceURL is the CoinGecko simple-price endpoint the HTTP fallback
// queries.
const DefaultPriceURL = "https://api.coingecko.com/api/v3/simple/price?ids=ethereum&vs_currencies=usd"

// feedDecimals is the fixed scale of Chainlink-style aggregator answers.
const feedDecimals = 1e8

const aggregatorABIJSON = `[
  {
    "inputs": [],
    "name": "latestRoundData",
    "outputs": [
      {"internalType": "uint80", "name": "roundId", "type": "uint80"},
      {"internalType": "int256", "name": "answer", "type": "int256"},
      {"internalType": "uint256", "name": "startedAt", "type": "uint256"},
      {"internalType": "uint256", "name": "updatedAt", "type": "uint256"},
      {"internalType": "uint80", "name": "answeredInRound", "type": "uint80"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	aggregatorABI     abi.ABI
	aggregatorABIOnce sync.Once
	aggregatorABIErr  error
)

func getAggregatorABI() (abi.ABI, error) {
	aggregatorABIOnce.Do(func() {
		aggregatorABI, aggregatorABIErr = abi.JSON(strings.NewReader(aggregatorABIJSON))
	})
	return aggregatorABI, aggregatorABIErr
}

// ContractCaller is the slice of the chain client the feed read needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Config holds oracle settings.
type Config struct {
	// Feed is the on-chain aggregator address; the zero address disables the
	// on-chain rung.
	Feed common.Address
	// PriceURL overrides the HTTP endpoint; empty means DefaultPriceURL.
	PriceURL string
	// HTTPTimeout bounds the fallback request.
	HTTPTimeout time.Duration
	// MaxStale bounds how old a cached value may be before it stops counting
	// as a fallback.
	MaxStale time.Duration
}

// Oracle fetches the current USD/ETH rate.
type Oracle struct {
	cfg        Config
	caller     ContractCaller
	httpClient *http.Client
	logger     *zap.Logger

	mu     sync.Mutex
	last   float64
	lastAt time.Time
}

// New builds an Oracle. caller may be nil when no feed address is configured.
func New(cfg Config, caller ContractCaller, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PriceURL == "" {
		cfg.PriceURL = DefaultPriceURL
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.MaxStale <= 0 {
		cfg.MaxStale = 15 * time.Minute
	}
	return &Oracle{
		cfg:        cfg,
		caller:     caller,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		logger:     logger,
	}
}

// UsdPerEth returns the current USD price of one ETH, trying the on-chain
// feed first, the HTTP API second, and the cached last-good value third.
func (o *Oracle) UsdPerEth(ctx context.Context) (float64, error) {
	price, feedErr := o.fromFeed(ctx)
	if feedErr == nil {
		o.remember(price)
		return price, nil
	}
	o.logger.Warn("price feed read failed", zap.Error(feedErr))

	price, httpErr := o.fromHTTP(ctx)
	if httpErr == nil {
		o.remember(price)
		return price, nil
	}
	o.logger.Warn("price api request failed", zap.Error(httpErr))

	if cached, ok := o.cached(); ok {
		return cached, nil
	}

	return 0, fmt.Errorf("%w: feed: %v; http: %v", ErrUnavailable, feedErr, httpErr)
}

func (o *Oracle) fromFeed(ctx context.Context) (float64, error) {
	if o.caller == nil || o.cfg.Feed == (common.Address{}) {
		return 0, errors.New("no feed configured")
	}

	feedABI, err := getAggregatorABI()
	if err != nil {
		return 0, err
	}
	data, err := feedABI.Pack("latestRoundData")
	if err != nil {
		return 0, fmt.Errorf("pack latestRoundData: %w", err)
	}

	to := o.cfg.Feed
	resp, err := o.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("call latestRoundData: %w", err)
	}

	values, err := feedABI.Unpack("latestRoundData", resp)
	if err != nil {
		return 0, fmt.Errorf("unpack latestRoundData: %w", err)
	}
	if len(values) != 5 {
		return 0, fmt.Errorf("latestRoundData return size %d", len(values))
	}
	answer, ok := values[1].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("latestRoundData answer type %T", values[1])
	}
	if answer.Sign() <= 0 {
		// A non-positive answer is a feed malfunction, not a market price.
		return 0, fmt.Errorf("feed answer not positive: %s", answer)
	}

	price, _ := new(big.Rat).SetFrac(answer, big.NewInt(feedDecimals)).Float64()
	return price, nil
}

func (o *Oracle) fromHTTP(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.cfg.PriceURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price api status %d", resp.StatusCode)
	}

	var payload struct {
		Ethereum struct {
			Usd float64 `json:"usd"`
		} `json:"ethereum"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode price response: %w", err)
	}
	if payload.Ethereum.Usd <= 0 {
		return 0, fmt.Errorf("price api returned %f", payload.Ethereum.Usd)
	}

	return payload.Ethereum.Usd, nil
}

func (o *Oracle) remember(price float64) {
	o.mu.Lock()
	o.last = price
	o.lastAt = time.Now()
	o.mu.Unlock()
}

func (o *Oracle) cached() (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last <= 0 || time.Since(o.lastAt) > o.cfg.MaxStale {
		return 0, false
	}
	return o.last, true
}
