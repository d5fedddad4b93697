// Package numbers implements the exact integer arithmetic used to split a
// distribution's token budget. All math is big.Int with floor rounding; no
// floating point is allowed anywhere in the allocation path.
package numbers

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PercDenom is the basis-point denominator: 10000 bips = 100%.
var PercDenom = big.NewInt(10000)

// WeightMode selects how a balance maps to a pool weight. Linear is the only
// mode used in production; it weights each address by its raw balance.
type WeightMode string

const (
	WeightMode_Linear WeightMode = "linear"
)

// PercentageWithBips returns floor(amount * bips / 10000). Floor rounding
// means the result never over-allocates the source amount.
func PercentageWithBips(amount *big.Int, bips *big.Int) *big.Int {
	out := new(big.Int).Mul(amount, bips)
	return out.Div(out, PercDenom)
}

// AddressBalance is one qualifying address and its token balance at the
// snapshot block.
type AddressBalance struct {
	UserId  uuid.UUID
	Address string
	Balance *big.Int
}

// WeightedShare is one address's proportional slice of a pool.
type WeightedShare struct {
	UserId  uuid.UUID
	Address string
	Amount  *big.Int
}

// WeightResult holds the outcome of a proportional split.
type WeightResult struct {
	// TotalWeight is the sum of all address weights
	TotalWeight *big.Int
	// PerUnitWeight is the pool amount paid per unit of weight (floored),
	// informational only
	PerUnitWeight *big.Int
	// Shares are per-address amounts in the same order as the input balances
	Shares []*WeightedShare
}

// ComputeWeights splits poolAvailable across the given balances in proportion
// to each balance, using exact integer fractions with floor rounding:
//
//	amount_i = floor(balance_i * poolAvailable / totalWeight)
//
// Floor rounding leaves a shortfall of at most len(balances)-1 base units
// unallocated; that dust is intentionally not distributed. A shortfall of
// len(balances) or more indicates broken arithmetic and returns an error.
func ComputeWeights(balances []*AddressBalance, poolAvailable *big.Int, mode WeightMode) (*WeightResult, error) {
	if mode != WeightMode_Linear {
		return nil, fmt.Errorf("unsupported weight mode '%s'", mode)
	}

	totalWeight := big.NewInt(0)
	for _, b := range balances {
		totalWeight.Add(totalWeight, b.Balance)
	}

	result := &WeightResult{
		TotalWeight:   totalWeight,
		PerUnitWeight: big.NewInt(0),
		Shares:        make([]*WeightedShare, 0, len(balances)),
	}
	if totalWeight.Sign() == 0 {
		return result, nil
	}
	result.PerUnitWeight = new(big.Int).Div(poolAvailable, totalWeight)

	allocated := big.NewInt(0)
	for _, b := range balances {
		amount := new(big.Int).Mul(b.Balance, poolAvailable)
		amount.Div(amount, totalWeight)
		allocated.Add(allocated, amount)
		result.Shares = append(result.Shares, &WeightedShare{
			UserId:  b.UserId,
			Address: b.Address,
			Amount:  amount,
		})
	}

	shortfall := new(big.Int).Sub(poolAvailable, allocated)
	if shortfall.Sign() < 0 || shortfall.Cmp(big.NewInt(int64(len(balances)))) >= 0 {
		return nil, fmt.Errorf("weight shortfall %s out of bounds for %d addresses", shortfall.String(), len(balances))
	}

	return result, nil
}

// FormatUnits renders a smallest-unit amount as a human readable decimal
// string for the given token decimals. Used only for logging.
func FormatUnits(amount *big.Int, decimals int32) string {
	return decimal.NewFromBigInt(amount, -decimals).String()
}
