package allocator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// Share is one liquid holding a redemption can be paid out of
type Share struct {
	Asset domain.AssetID
	Units domain.Balance
	Price decimal.Decimal
}

// Allocation is the number of units owed in one asset
type Allocation struct {
	Asset domain.AssetID
	Units domain.Balance
}

// CalculateAllocation spreads a redemption value across liquid holdings in
// proportion to the units the basket holds of each
// Logic:
//  1. Sort shares by asset so the result is deterministic
//  2. L = sum of units_i x price_i over the shares
//  3. owed_i = floor(value x units_i / L), which pays the same fraction of every holding
//
// Safety: floor rounding means the paid value never exceeds the requested value
func CalculateAllocation(value decimal.Decimal, shares []Share) ([]Allocation, error) {
	if value.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("redemption value must be positive")
	}

	// Create a copy of shares to avoid mutating the caller's slice
	sorted := make([]Share, len(shares))
	copy(sorted, shares)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Asset < sorted[j].Asset
	})

	liquid := decimal.Zero
	for _, s := range sorted {
		if s.Price.Sign() <= 0 {
			return nil, fmt.Errorf("%s: %w", s.Asset, domain.ErrInvalidPrice)
		}
		liquid = liquid.Add(s.Units.Decimal().Mul(s.Price))
	}
	if liquid.IsZero() || value.GreaterThan(liquid) {
		return nil, domain.ErrInsufficientLiquidity
	}

	allocation := make([]Allocation, 0, len(sorted))
	paid := decimal.Zero
	for _, s := range sorted {
		owed := domain.BalanceFromDecimal(value.Mul(s.Units.Decimal()).Div(liquid))
		if owed > s.Units {
			return nil, domain.ErrInsufficientLiquidity
		}
		if owed.IsZero() {
			continue
		}
		allocation = append(allocation, Allocation{Asset: s.Asset, Units: owed})
		paid = paid.Add(owed.Decimal().Mul(s.Price))
	}

	// Safety check: never pay out more than the redeemed value
	if paid.GreaterThan(value) {
		return nil, errors.New("allocated value exceeds redemption value")
	}
	if len(allocation) == 0 {
		return nil, domain.ErrBelowMinimumRedemption
	}

	return allocation, nil
}
