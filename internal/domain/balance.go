package domain

import (
	"math"
	"math/bits"
	"strconv"
)

// AssetID identifies a fungible asset tracked by the fund (e.g. "DOT", "KSM")
type AssetID string

// AccountID identifies an account on the host ledger
type AccountID string

// Balance is an unsigned, fixed-width amount of an asset in its smallest unit.
// Totals saturate at MaxBalance; mutations use the checked helpers and fail
// instead of wrapping.
type Balance uint64

// MaxBalance is the largest representable Balance
const MaxBalance = Balance(math.MaxUint64)

// SaturatingAdd returns b+o capped at MaxBalance
func (b Balance) SaturatingAdd(o Balance) Balance {
	sum, carry := bits.Add64(uint64(b), uint64(o), 0)
	if carry != 0 {
		return MaxBalance
	}
	return Balance(sum)
}

// SaturatingSub returns b-o floored at zero
func (b Balance) SaturatingSub(o Balance) Balance {
	if o > b {
		return 0
	}
	return b - o
}

// CheckedAdd returns b+o and false if the sum does not fit
func (b Balance) CheckedAdd(o Balance) (Balance, bool) {
	sum, carry := bits.Add64(uint64(b), uint64(o), 0)
	return Balance(sum), carry == 0
}

// CheckedSub returns b-o and false if o is larger than b
func (b Balance) CheckedSub(o Balance) (Balance, bool) {
	diff, borrow := bits.Sub64(uint64(b), uint64(o), 0)
	return Balance(diff), borrow == 0
}

// IsZero reports whether the balance is zero
func (b Balance) IsZero() bool {
	return b == 0
}

func (b Balance) String() string {
	return strconv.FormatUint(uint64(b), 10)
}

// ParseBalance parses a base-10 unsigned amount
func ParseBalance(s string) (Balance, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return Balance(v), nil
}

// AccountBalance is the per (asset, account) split between spendable and
// reserved funds.
type AccountBalance struct {
	Available Balance
	Reserved  Balance
}

// Total returns Available + Reserved, saturating at MaxBalance
func (a AccountBalance) Total() Balance {
	return a.Available.SaturatingAdd(a.Reserved)
}
