package domain

import (
	"github.com/google/uuid"
)

// InstructionKind is the operation a cross-consensus message asks the foreign
// ledger to perform
type InstructionKind string

const (
	InstructionBond             InstructionKind = "BOND"
	InstructionBondExtra        InstructionKind = "BOND_EXTRA"
	InstructionUnbond           InstructionKind = "UNBOND"
	InstructionWithdrawUnbonded InstructionKind = "WITHDRAW_UNBONDED"
	InstructionTransfer         InstructionKind = "TRANSFER"
)

// Staking call indices of the remote staking pallet
var stakingCallIndex = map[InstructionKind]uint8{
	InstructionBond:             0,
	InstructionBondExtra:        1,
	InstructionUnbond:           2,
	InstructionWithdrawUnbonded: 3,
}

// CallIndex returns the remote call index for staking instructions
func (k InstructionKind) CallIndex() (uint8, bool) {
	idx, ok := stakingCallIndex[k]
	return idx, ok
}

// RemoteInstruction is an outbound cross-consensus message.
// EncodedAmount carries the destination-specific balance encoding.
type RemoteInstruction struct {
	ID            uuid.UUID
	Kind          InstructionKind
	Asset         AssetID
	Amount        Balance
	EncodedAmount []byte
	PalletIndex   uint8
	CallIndex     uint8
	Controller    AccountID
	Beneficiary   Location
}

// StakingConfig describes how an asset is staked on its home chain
type StakingConfig struct {
	Asset              AssetID
	PalletIndex        uint8
	MaxUnlockingChunks uint32
	MinimumBalance     Balance // Bond that must stay active after an unbond
	MinimumStash       Balance // Local stash that must remain after bonding
}

// StakingLedger is the fund's view of its bond on a foreign chain
type StakingLedger struct {
	Asset          AssetID
	Controller     AccountID
	Active         Balance
	Unbonded       Balance
	UnlockedChunks uint32
}

// AddBond records additional bonded funds
func (l *StakingLedger) AddBond(amount Balance) {
	l.Active = l.Active.SaturatingAdd(amount)
}

// Unbond moves funds from active to unbonding and uses one chunk
func (l *StakingLedger) Unbond(amount Balance) {
	l.Active = l.Active.SaturatingSub(amount)
	l.Unbonded = l.Unbonded.SaturatingAdd(amount)
	l.UnlockedChunks++
}

// Total returns the bonded plus unbonding funds
func (l StakingLedger) Total() Balance {
	return l.Active.SaturatingAdd(l.Unbonded)
}

// TransferStatus tracks a reserve-withdraw-deposit operation
type TransferStatus string

const (
	TransferPending   TransferStatus = "PENDING"
	TransferCompleted TransferStatus = "COMPLETED"
	TransferFailed    TransferStatus = "FAILED"
)

// PendingTransfer is a remote transfer whose local funds are held in reserve
// until the foreign ledger reports the outcome
type PendingTransfer struct {
	ID      uuid.UUID
	Account AccountID
	Asset   AssetID
	Amount  Balance
	Status  TransferStatus
}
