package aggregate

import (
	"fmt"
	"math/big"
	"sort"

	"curveScope/internal/model"
	"curveScope/internal/numeric"
)

// HolderDistribution replays purchase and sale events into per-address
// balances and converts them to supply percentages, sorted descending.
// Balances accumulate at wei precision; the float conversion happens once at
// the end. Negative balances are kept as-is: a sell exceeding tracked buys
// means the address acquired tokens outside the tracked window, which is
// information, not an error. Equal percentages tie-break by address so the
// ordering is reproducible.
func HolderDistribution(transactions []model.TransactionRecord, totalSupplyTokens int64) ([]model.HolderBalance, error) {
	if totalSupplyTokens <= 0 {
		return nil, fmt.Errorf("total supply must be positive, got %d", totalSupplyTokens)
	}

	balances := make(map[string]*big.Int)
	for _, tx := range transactions {
		var sign int
		switch tx.EventType {
		case model.EventPurchased:
			sign = 1
		case model.EventSold:
			sign = -1
		default:
			// Created carries the initial allocation, which lives outside
			// the traded supply.
			continue
		}

		amount, err := numeric.ParseWei(tx.BaseAmount)
		if err != nil {
			return nil, fmt.Errorf("base amount of %s: %w", tx.TransactionHash, err)
		}
		balance, ok := balances[tx.Counterparty]
		if !ok {
			balance = big.NewInt(0)
			balances[tx.Counterparty] = balance
		}
		if sign > 0 {
			balance.Add(balance, amount)
		} else {
			balance.Sub(balance, amount)
		}
	}

	supplyWei := numeric.TokensToWei(totalSupplyTokens)
	holders := make([]model.HolderBalance, 0, len(balances))
	for address, balance := range balances {
		percent, _ := new(big.Rat).Mul(
			new(big.Rat).SetFrac(balance, supplyWei),
			big.NewRat(100, 1),
		).Float64()
		holders = append(holders, model.HolderBalance{
			Address: address,
			Balance: numeric.WeiToFloat(balance),
			Percent: percent,
		})
	}

	sort.Slice(holders, func(i, j int) bool {
		if holders[i].Percent != holders[j].Percent {
			return holders[i].Percent > holders[j].Percent
		}
		return holders[i].Address < holders[j].Address
	})

	return holders, nil
}
