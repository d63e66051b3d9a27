package factory

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// ContractCaller is the slice of the chain client the curve reader needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// CurveProgress is the bonding-curve state used for "progress toward
// listing" display.
type CurveProgress struct {
	Surplus   string  `json:"surplus"`
	Cap       string  `json:"cap"`
	Percent   float64 `json:"percent"`
	Graduated bool    `json:"graduated"`
}

// CurveReader reads the bonding-curve scalars from the factory contract.
// The ETH cap is immutable on chain, so it is fetched once and cached.
type CurveReader struct {
	caller  ContractCaller
	factory common.Address

	mu  sync.Mutex
	cap *big.Int
}

// NewCurveReader builds a CurveReader against the factory address.
func NewCurveReader(caller ContractCaller, factory common.Address) *CurveReader {
	return &CurveReader{caller: caller, factory: factory}
}

// Surplus returns the accumulated ETH surplus for a token, wei scale.
func (r *CurveReader) Surplus(ctx context.Context, token common.Address) (*big.Int, error) {
	return r.callUint(ctx, "tokenEthSurplus", token)
}

// Cap returns the factory-wide ETH cap, wei scale.
func (r *CurveReader) Cap(ctx context.Context) (*big.Int, error) {
	r.mu.Lock()
	cached := r.cap
	r.mu.Unlock()
	if cached != nil {
		return new(big.Int).Set(cached), nil
	}

	cap, err := r.callUint(ctx, "ethCap")
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cap = new(big.Int).Set(cap)
	r.mu.Unlock()
	return cap, nil
}

// Progress computes surplus/cap as a percentage, clamped at 100 with the
// graduated flag set once the curve has filled.
func (r *CurveReader) Progress(ctx context.Context, token common.Address) (CurveProgress, error) {
	surplus, err := r.Surplus(ctx, token)
	if err != nil {
		return CurveProgress{}, fmt.Errorf("read surplus: %w", err)
	}
	cap, err := r.Cap(ctx)
	if err != nil {
		return CurveProgress{}, fmt.Errorf("read cap: %w", err)
	}
	return ComputeProgress(surplus, cap), nil
}

// RecentTokens returns the factory's recently created token addresses.
func (r *CurveReader) RecentTokens(ctx context.Context) ([]common.Address, error) {
	factoryABI, err := ABI()
	if err != nil {
		return nil, err
	}

	data, err := factoryABI.Pack("getRecentTokens")
	if err != nil {
		return nil, fmt.Errorf("pack getRecentTokens: %w", err)
	}

	to := r.factory
	resp, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call getRecentTokens: %w", err)
	}

	values, err := factoryABI.Unpack("getRecentTokens", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack getRecentTokens: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("getRecentTokens return size %d", len(values))
	}
	out, ok := values[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("getRecentTokens unexpected type %T", values[0])
	}
	return out, nil
}

// ComputeProgress is the pure percentage computation, split out for tests.
func ComputeProgress(surplus, cap *big.Int) CurveProgress {
	progress := CurveProgress{
		Surplus: surplus.String(),
		Cap:     cap.String(),
	}
	if cap.Sign() == 0 {
		return progress
	}

	if surplus.Cmp(cap) >= 0 {
		progress.Percent = 100
		progress.Graduated = true
		return progress
	}

	ratio := new(big.Rat).SetFrac(surplus, cap)
	ratio.Mul(ratio, big.NewRat(100, 1))
	progress.Percent, _ = ratio.Float64()
	return progress
}

func (r *CurveReader) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	factoryABI, err := ABI()
	if err != nil {
		return nil, err
	}

	data, err := factoryABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	to := r.factory
	resp, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	values, err := factoryABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s return size %d", method, len(values))
	}
	out, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s unexpected type %T", method, values[0])
	}
	return out, nil
}
