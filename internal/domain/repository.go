package domain

import (
	"context"

	"github.com/google/uuid"
)

// Repositories return a nil pointer and no error when a record is absent.
// Errors are reserved for storage failures.

// LedgerRepository defines the interface for per-asset balance persistence operations
type LedgerRepository interface {
	// GetAccount retrieves the balance of an account; absent accounts are zero
	GetAccount(ctx context.Context, asset AssetID, account AccountID) (AccountBalance, error)

	// SaveAccount stores the balance of an account, removing it when it is zero
	SaveAccount(ctx context.Context, asset AssetID, account AccountID, balance AccountBalance) error

	// GetAggregate retrieves the sum of all account totals for an asset
	GetAggregate(ctx context.Context, asset AssetID) (Balance, error)

	// SaveAggregate stores the aggregate balance of an asset
	SaveAggregate(ctx context.Context, asset AssetID, total Balance) error
}

// PriceRepository defines the interface for oracle persistence operations
type PriceRepository interface {
	// IsTracked reports whether prices are accepted for the asset
	IsTracked(ctx context.Context, asset AssetID) (bool, error)

	// Track marks the asset as tracked
	Track(ctx context.Context, asset AssetID) error

	// Untrack removes the asset and its stored observation
	Untrack(ctx context.Context, asset AssetID) error

	// ListTracked returns all tracked assets ordered by id
	ListTracked(ctx context.Context) ([]AssetID, error)

	// GetLatest retrieves the stored observation for an asset
	GetLatest(ctx context.Context, asset AssetID) (*TimestampedValue, error)

	// SaveLatest replaces the stored observation for an asset
	SaveLatest(ctx context.Context, asset AssetID, value TimestampedValue) error
}

// HoldingRepository defines the interface for basket persistence operations
type HoldingRepository interface {
	// Get retrieves a basket entry by asset
	Get(ctx context.Context, asset AssetID) (*IndexAssetData, error)

	// Save creates or replaces a basket entry
	Save(ctx context.Context, holding *IndexAssetData) error

	// Delete removes a basket entry
	Delete(ctx context.Context, asset AssetID) error

	// List returns every basket entry ordered by asset
	List(ctx context.Context) ([]*IndexAssetData, error)
}

// IssuanceRepository defines the interface for index token persistence operations
type IssuanceRepository interface {
	// GetBalance retrieves the index token balance of a holder
	GetBalance(ctx context.Context, account AccountID) (Balance, error)

	// SaveBalance stores the index token balance of a holder
	SaveBalance(ctx context.Context, account AccountID, balance Balance) error

	// GetIssuance retrieves the total index token supply
	GetIssuance(ctx context.Context) (Balance, error)

	// SaveIssuance stores the total index token supply
	SaveIssuance(ctx context.Context, issuance Balance) error
}

// SaftRepository defines the interface for SAFT record persistence operations
type SaftRepository interface {
	// NextID returns the next free record id for the asset and advances the counter
	NextID(ctx context.Context, asset AssetID) (uint32, error)

	// Get retrieves a single record
	Get(ctx context.Context, asset AssetID, id uint32) (*SaftRecord, error)

	// Save creates or replaces a record
	Save(ctx context.Context, record *SaftRecord) error

	// Delete removes a single record
	Delete(ctx context.Context, asset AssetID, id uint32) error

	// List returns the records of an asset ordered by id
	List(ctx context.Context, asset AssetID) ([]*SaftRecord, error)

	// DeleteAll removes every record of an asset
	DeleteAll(ctx context.Context, asset AssetID) error
}

// StakingRepository defines the interface for remote staking persistence operations
type StakingRepository interface {
	// GetConfig retrieves the staking configuration of an asset
	GetConfig(ctx context.Context, asset AssetID) (*StakingConfig, error)

	// SaveConfig creates or replaces the staking configuration of an asset
	SaveConfig(ctx context.Context, cfg *StakingConfig) error

	// GetLedger retrieves the staking ledger of an asset
	GetLedger(ctx context.Context, asset AssetID) (*StakingLedger, error)

	// SaveLedger creates or replaces the staking ledger of an asset
	SaveLedger(ctx context.Context, ledger *StakingLedger) error
}

// TransferRepository defines the interface for pending transfer persistence operations
type TransferRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*PendingTransfer, error)
	Save(ctx context.Context, transfer *PendingTransfer) error
}

// RedemptionRepository defines the interface for pending redemption persistence operations
type RedemptionRepository interface {
	// Get retrieves a pending redemption by its ID
	Get(ctx context.Context, id uuid.UUID) (*PendingRedemption, error)

	// Save creates or replaces a pending redemption including its withdrawals
	Save(ctx context.Context, redemption *PendingRedemption) error

	// Delete removes a completed redemption
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns pending redemptions ordered by initiation height.
	// If account is empty, returns all of them.
	List(ctx context.Context, account AccountID) ([]*PendingRedemption, error)
}

// CommitteeRepository defines the interface for governance persistence operations
type CommitteeRepository interface {
	GetMember(ctx context.Context, account AccountID) (*CommitteeMember, error)
	SaveMember(ctx context.Context, member *CommitteeMember) error
	DeleteMember(ctx context.Context, account AccountID) error
	ListMembers(ctx context.Context) ([]*CommitteeMember, error)

	// NextNonce returns the next proposal nonce and advances the counter
	NextNonce(ctx context.Context) (uint64, error)

	GetProposal(ctx context.Context, hash ProposalHash) (*Proposal, error)
	SaveProposal(ctx context.Context, proposal *Proposal) error

	// DeleteProposal removes a proposal together with its votes
	DeleteProposal(ctx context.Context, hash ProposalHash) error

	// ListProposals returns open proposals ordered by nonce
	ListProposals(ctx context.Context) ([]*Proposal, error)

	// GetVotes retrieves the tally of a proposal; never nil for an existing proposal
	GetVotes(ctx context.Context, hash ProposalHash) (*VoteTally, error)

	// SaveVote records or replaces one member's vote
	SaveVote(ctx context.Context, hash ProposalHash, vote MemberVote) error
}

// TxManager runs a unit of work atomically. Calls nested inside fn run in
// the already open transaction as a savepoint: a failing nested call undoes
// only its own writes.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Clock supplies the current block height
type Clock interface {
	BlockNumber() uint64
}

// MessageSender hands a cross-consensus message to the transport. A nil error
// means the message was accepted for delivery, not that it was executed.
type MessageSender interface {
	Send(ctx context.Context, dest Location, instruction RemoteInstruction) error
}
