package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every concrete error below wraps exactly one of them so
// callers can match either the precise failure or its class with errors.Is.
var (
	ErrOverflow          = errors.New("arithmetic overflow")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrCrossChain        = errors.New("cross-chain addressing failure")
	ErrGovernance        = errors.New("governance sequencing")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// Ledger
var (
	ErrTotalBalanceOverflow = fmt.Errorf("total balance overflow: %w", ErrOverflow)
	ErrBalanceOverflow      = fmt.Errorf("account balance overflow: %w", ErrOverflow)
	ErrNotEnoughBalance     = fmt.Errorf("not enough balance: %w", ErrInsufficientFunds)
)

// Price feed
var (
	ErrPriceUnavailable = fmt.Errorf("price unavailable: %w", ErrNotFound)
	ErrAssetNotTracked  = fmt.Errorf("asset not tracked: %w", ErrNotFound)
	ErrInvalidPrice     = fmt.Errorf("price must be positive: %w", ErrInvalidArgument)
)

// Index registry
var (
	ErrAssetAlreadyPresent     = fmt.Errorf("asset already present in index: %w", ErrInvalidArgument)
	ErrAssetNotFound           = fmt.Errorf("asset not found in index: %w", ErrNotFound)
	ErrAssetUnitsOverflow      = fmt.Errorf("asset units overflow: %w", ErrOverflow)
	ErrIndexIssuanceOverflow   = fmt.Errorf("index token issuance overflow: %w", ErrOverflow)
	ErrNoIndexIssuance         = fmt.Errorf("no index tokens issued: %w", ErrNotFound)
	ErrZeroNAV                 = fmt.Errorf("index tokens are issued but the basket is worth nothing: %w", ErrInvalidArgument)
	ErrInsufficientIndexTokens = fmt.Errorf("insufficient index tokens: %w", ErrInsufficientFunds)
	ErrSaftNotFound            = fmt.Errorf("saft not found: %w", ErrNotFound)
	ErrExpectedSaft            = fmt.Errorf("asset is not an illiquid commitment: %w", ErrInvalidArgument)
)

// Remote settlement
var (
	ErrBadLocation                    = fmt.Errorf("bad location: %w", ErrCrossChain)
	ErrNotCrossChainTransferableAsset = fmt.Errorf("asset is not cross-chain transferable: %w", ErrCrossChain)
	ErrNoCrossChainTransfer           = fmt.Errorf("destination is the local chain: %w", ErrCrossChain)
	ErrInvalidDestination             = fmt.Errorf("invalid destination: %w", ErrCrossChain)
	ErrNotBonded                      = fmt.Errorf("asset not bonded: %w", ErrNotFound)
	ErrInsufficientBond               = fmt.Errorf("insufficient bond: %w", ErrInsufficientFunds)
	ErrInsufficientStash              = fmt.Errorf("insufficient stash: %w", ErrInsufficientFunds)
	ErrNoMoreUnbondingChunks          = fmt.Errorf("no more unbonding chunks: %w", ErrOverflow)
	ErrNothingToWithdraw              = fmt.Errorf("nothing to withdraw: %w", ErrInsufficientFunds)
	ErrTransferNotFound               = fmt.Errorf("pending transfer not found: %w", ErrNotFound)
	ErrSendFailed                     = fmt.Errorf("failed to send cross-consensus message: %w", ErrCrossChain)
)

// Redemption
var (
	ErrRedemptionNotFound     = fmt.Errorf("redemption not found: %w", ErrNotFound)
	ErrWithdrawalNotFound     = fmt.Errorf("asset withdrawal not found: %w", ErrNotFound)
	ErrUnbondNotConfirmed     = fmt.Errorf("unbonding not yet confirmed: %w", ErrGovernance)
	ErrBelowMinimumRedemption = fmt.Errorf("redemption below minimum: %w", ErrInvalidArgument)
	ErrInsufficientLiquidity  = fmt.Errorf("insufficient liquid assets: %w", ErrInsufficientFunds)
)

// Governance
var (
	ErrBadOrigin         = fmt.Errorf("bad origin: %w", ErrUnauthorized)
	ErrDuplicateProposal = fmt.Errorf("duplicate proposal: %w", ErrGovernance)
	ErrDuplicateVote     = fmt.Errorf("duplicate vote: %w", ErrGovernance)
	ErrVotingStillOpen   = fmt.Errorf("voting still open: %w", ErrGovernance)
	ErrProposalNotFound  = fmt.Errorf("proposal not found: %w", ErrNotFound)
	ErrUnknownAction     = fmt.Errorf("unknown proposal action: %w", ErrInvalidArgument)
	ErrAlreadyMember     = fmt.Errorf("already a committee member: %w", ErrInvalidArgument)
	ErrNotMember         = fmt.Errorf("not a committee member: %w", ErrNotFound)
)
