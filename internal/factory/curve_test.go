package factory

import (
	"context"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

func TestComputeProgressPartial(t *testing.T) {
	surplus := big.NewInt(25)
	cap := big.NewInt(100)

	progress := ComputeProgress(surplus, cap)
	if progress.Percent != 25 {
		t.Fatalf("percent mismatch: %v", progress.Percent)
	}
	if progress.Graduated {
		t.Fatalf("partial curve should not be graduated")
	}
	if progress.Surplus != "25" || progress.Cap != "100" {
		t.Fatalf("scalar echo mismatch: %+v", progress)
	}
}

func TestComputeProgressWeiScale(t *testing.T) {
	// 7.5 ETH of a 10 ETH cap.
	surplus, _ := new(big.Int).SetString("7500000000000000000", 10)
	cap, _ := new(big.Int).SetString("10000000000000000000", 10)

	progress := ComputeProgress(surplus, cap)
	if math.Abs(progress.Percent-75) > 1e-9 {
		t.Fatalf("percent mismatch: %v", progress.Percent)
	}
}

func TestComputeProgressGraduated(t *testing.T) {
	progress := ComputeProgress(big.NewInt(100), big.NewInt(100))
	if progress.Percent != 100 || !progress.Graduated {
		t.Fatalf("full curve should graduate: %+v", progress)
	}

	over := ComputeProgress(big.NewInt(150), big.NewInt(100))
	if over.Percent != 100 || !over.Graduated {
		t.Fatalf("overfilled curve should clamp to 100: %+v", over)
	}
}

func TestComputeProgressZeroCap(t *testing.T) {
	progress := ComputeProgress(big.NewInt(50), big.NewInt(0))
	if progress.Percent != 0 || progress.Graduated {
		t.Fatalf("zero cap should yield zero progress: %+v", progress)
	}
}

type recentTokensCaller struct {
	addresses []common.Address
}

func (c *recentTokensCaller) CallContract(_ context.Context, _ ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	factoryABI, err := ABI()
	if err != nil {
		return nil, err
	}
	return factoryABI.Methods["getRecentTokens"].Outputs.Pack(c.addresses)
}

func TestRecentTokens(t *testing.T) {
	want := []common.Address{testToken, testCreator}
	reader := NewCurveReader(&recentTokensCaller{addresses: want}, common.Address{})

	got, err := reader.RecentTokens(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("address count mismatch: %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("address %d mismatch: %s != %s", i, got[i], want[i])
		}
	}
}
