package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RedemptionState is the settlement stage of one asset withdrawal.
// States only move forward: Initiated -> Unbonding -> Transferred.
type RedemptionState string

const (
	RedemptionInitiated   RedemptionState = "INITIATED"
	RedemptionUnbonding   RedemptionState = "UNBONDING"
	RedemptionTransferred RedemptionState = "TRANSFERRED"
)

// Next returns the successor state; ok is false for the terminal state
func (s RedemptionState) Next() (RedemptionState, bool) {
	switch s {
	case RedemptionInitiated:
		return RedemptionUnbonding, true
	case RedemptionUnbonding:
		return RedemptionTransferred, true
	default:
		return s, false
	}
}

// AssetWithdrawal is the part of a redemption paid out in one asset
type AssetWithdrawal struct {
	Asset    AssetID
	Units    Balance
	State    RedemptionState
	Local    bool     // Held on the local chain; settles without cross-chain messages
	Location Location // Where the asset lived when the redemption started
}

// PendingRedemption is an in-flight redemption request
type PendingRedemption struct {
	ID         uuid.UUID
	Account    AccountID
	Initiated  uint64 // Block height
	IndexUnits Balance
	NAV        decimal.Decimal
	Assets     []AssetWithdrawal
}

// Withdrawal returns the index of the withdrawal for the asset, or -1
func (r *PendingRedemption) Withdrawal(asset AssetID) int {
	for i := range r.Assets {
		if r.Assets[i].Asset == asset {
			return i
		}
	}
	return -1
}

// Completed reports whether every withdrawal reached the terminal state
func (r *PendingRedemption) Completed() bool {
	for _, w := range r.Assets {
		if w.State != RedemptionTransferred {
			return false
		}
	}
	return true
}

// Clone returns a deep copy
func (r *PendingRedemption) Clone() *PendingRedemption {
	c := *r
	c.Assets = append([]AssetWithdrawal(nil), r.Assets...)
	return &c
}

// WithdrawalRef addresses one asset withdrawal of a pending redemption; it is
// what inbound confirmations carry.
type WithdrawalRef struct {
	RedemptionID uuid.UUID
	Asset        AssetID
}
