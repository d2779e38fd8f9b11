package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MultiAssetDepository is the ledger capability other services depend on
type MultiAssetDepository interface {
	AggregatedBalance(ctx context.Context, asset AssetID) (Balance, error)
	TotalBalance(ctx context.Context, asset AssetID, account AccountID) (Balance, error)
	AvailableBalance(ctx context.Context, asset AssetID, account AccountID) (Balance, error)
	ReservedBalance(ctx context.Context, asset AssetID, account AccountID) (Balance, error)
	Deposit(ctx context.Context, asset AssetID, account AccountID, amount Balance) error
	Withdraw(ctx context.Context, asset AssetID, account AccountID, amount Balance) error
	Reserve(ctx context.Context, asset AssetID, account AccountID, amount Balance) error
	Unreserve(ctx context.Context, asset AssetID, account AccountID, amount Balance) error
	RepatriateReserved(ctx context.Context, asset AssetID, from, to AccountID, amount Balance) error
	SlashReserved(ctx context.Context, asset AssetID, account AccountID, amount Balance) error
}

// PriceFeed values assets in the fund's base currency
type PriceFeed interface {
	GetPrice(ctx context.Context, asset AssetID) (Price, error)
	GetRelativePricePair(ctx context.Context, base, quote AssetID) (AssetPricePair, error)
}

// AssetRecorder is the index registry capability used by redemption and
// remote settlement
type AssetRecorder interface {
	Holdings(ctx context.Context) ([]*IndexAssetData, error)
	Location(ctx context.Context, asset AssetID) (Location, error)
	NAV(ctx context.Context) (decimal.Decimal, error)
	IndexTokenBalance(ctx context.Context, account AccountID) (Balance, error)
	BurnIndexTokens(ctx context.Context, account AccountID, units Balance) error
	ReleaseUnits(ctx context.Context, asset AssetID, units Balance) error
}

// RemoteAssetManager issues staking and transfer operations on foreign ledgers.
// Every call only initiates the operation.
type RemoteAssetManager interface {
	Bond(ctx context.Context, asset AssetID, amount Balance) error
	Unbond(ctx context.Context, asset AssetID, amount Balance) error
	WithdrawUnbonded(ctx context.Context, caller AccountID, asset AssetID, amount Balance) error
	// WithdrawUnbondedFrom withdraws from a location resolved earlier, so it
	// works after the asset has left the basket
	WithdrawUnbondedFrom(ctx context.Context, caller AccountID, asset AssetID, location Location, amount Balance) error
	ReserveWithdrawAndDeposit(ctx context.Context, who AccountID, asset AssetID, amount Balance) (uuid.UUID, error)
}

// BalanceEncoder converts a balance into the destination ledger's wire encoding.
// ok is false when the asset cannot be transferred cross-chain.
type BalanceEncoder interface {
	EncodeBalance(asset AssetID, balance Balance) ([]byte, bool)
}
