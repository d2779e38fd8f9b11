package domain

import (
	"github.com/shopspring/decimal"
)

// Price is the value of one unit of an asset expressed in the fund's base
// currency.
type Price = decimal.Decimal

// TimestampedValue is a single price observation
type TimestampedValue struct {
	Value  decimal.Decimal
	Moment uint64 // Reporter timestamp; newer observations replace older ones
}

// Supersedes reports whether v may replace the stored observation.
// Equal moments are accepted so a reporter can correct itself.
func (v TimestampedValue) Supersedes(stored TimestampedValue) bool {
	return v.Moment >= stored.Moment
}

// AssetPricePair relates the prices of two assets
type AssetPricePair struct {
	Base       AssetID
	Quote      AssetID
	BasePrice  Price
	QuotePrice Price
}

// Ratio returns how many units of Quote one unit of Base is worth
func (p AssetPricePair) Ratio() decimal.Decimal {
	return p.BasePrice.Div(p.QuotePrice)
}

// Volume converts units of Base into the equivalent amount of Quote
func (p AssetPricePair) Volume(units Balance) decimal.Decimal {
	return decimal.NewFromUint64(uint64(units)).Mul(p.Ratio())
}

// ReciprocalVolume converts units of Quote into whole units of Base,
// rounding down and saturating at MaxBalance
func (p AssetPricePair) ReciprocalVolume(units Balance) Balance {
	return BalanceFromDecimal(decimal.NewFromUint64(uint64(units)).Div(p.Ratio()))
}

// Invert swaps base and quote
func (p AssetPricePair) Invert() AssetPricePair {
	return AssetPricePair{
		Base:       p.Quote,
		Quote:      p.Base,
		BasePrice:  p.QuotePrice,
		QuotePrice: p.BasePrice,
	}
}

// InvolvesAsset reports whether the asset is either side of the pair
func (p AssetPricePair) InvolvesAsset(asset AssetID) bool {
	return p.Base == asset || p.Quote == asset
}

var maxBalanceDecimal = decimal.NewFromUint64(uint64(MaxBalance))

// BalanceFromDecimal floors a non-negative decimal into a Balance.
// Negative values become zero, values above MaxBalance saturate.
func BalanceFromDecimal(d decimal.Decimal) Balance {
	if d.Sign() <= 0 {
		return 0
	}
	d = d.Floor()
	if d.GreaterThanOrEqual(maxBalanceDecimal) {
		return MaxBalance
	}
	return Balance(d.BigInt().Uint64())
}

// Decimal converts a Balance into a decimal
func (b Balance) Decimal() decimal.Decimal {
	return decimal.NewFromUint64(uint64(b))
}
