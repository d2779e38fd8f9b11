package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// Locator resolves where an asset lives
type Locator interface {
	Location(ctx context.Context, asset domain.AssetID) (domain.Location, error)
}

// RemoteService issues staking and transfer instructions to foreign ledgers
// and reconciles their outcomes. It implements domain.RemoteAssetManager.
type RemoteService struct {
	StakingRepo  domain.StakingRepository
	TransferRepo domain.TransferRepository
	Locator      Locator
	Ledger       domain.MultiAssetDepository
	Encoder      domain.BalanceEncoder
	Sender       domain.MessageSender
	Tx           domain.TxManager

	// SelfLocation is this chain as seen from the relay chain
	SelfLocation domain.Location
	// Treasury is the local stash account whose balance backs bonds
	Treasury domain.AccountID
	// Controller controls the fund's bond on foreign chains
	Controller domain.AccountID
}

// NewRemoteService creates a new RemoteService instance
func NewRemoteService(
	stakingRepo domain.StakingRepository,
	transferRepo domain.TransferRepository,
	locator Locator,
	ledger domain.MultiAssetDepository,
	encoder domain.BalanceEncoder,
	sender domain.MessageSender,
	tx domain.TxManager,
	selfLocation domain.Location,
	treasury, controller domain.AccountID,
) *RemoteService {
	return &RemoteService{
		StakingRepo:  stakingRepo,
		TransferRepo: transferRepo,
		Locator:      locator,
		Ledger:       ledger,
		Encoder:      encoder,
		Sender:       sender,
		Tx:           tx,
		SelfLocation: selfLocation,
		Treasury:     treasury,
		Controller:   controller,
	}
}

var _ domain.RemoteAssetManager = (*RemoteService)(nil)

// target is a resolved cross-chain destination for one asset
type target struct {
	location domain.Location
	chain    domain.Location
	encoded  []byte
}

// resolve looks up the asset's basket location; an asset without one fails
// with ErrBadLocation
func (s *RemoteService) resolve(ctx context.Context, asset domain.AssetID, amount domain.Balance) (*target, error) {
	loc, err := s.Locator.Location(ctx, asset)
	if err != nil {
		return nil, err
	}
	return s.resolveAt(asset, loc, amount)
}

// resolveAt validates a location and encodes the amount
// Logic:
//   - Location without a chain part or recipient -> ErrInvalidDestination
//   - Destination chain is this chain -> ErrNoCrossChainTransfer
//   - No balance encoding for the asset -> ErrNotCrossChainTransferableAsset
func (s *RemoteService) resolveAt(asset domain.AssetID, loc domain.Location, amount domain.Balance) (*target, error) {
	if amount.IsZero() {
		return nil, fmt.Errorf("amount must be positive: %w", domain.ErrInvalidArgument)
	}
	if loc.IsHere() {
		return nil, domain.ErrNoCrossChainTransfer
	}
	chain, ok := loc.Chain()
	if !ok {
		return nil, fmt.Errorf("%s: %w", loc, domain.ErrInvalidDestination)
	}
	if chain.Equal(s.SelfLocation) {
		return nil, domain.ErrNoCrossChainTransfer
	}

	encoded, ok := s.Encoder.EncodeBalance(asset, amount)
	if !ok {
		return nil, domain.ErrNotCrossChainTransferableAsset
	}
	return &target{location: loc, chain: chain, encoded: encoded}, nil
}

func (s *RemoteService) stakingConfig(ctx context.Context, asset domain.AssetID) (*domain.StakingConfig, error) {
	cfg, err := s.StakingRepo.GetConfig(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("failed to get staking config: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%s has no staking config: %w", asset, domain.ErrNotCrossChainTransferableAsset)
	}
	return cfg, nil
}

func (s *RemoteService) send(ctx context.Context, t *target, instr domain.RemoteInstruction) error {
	instr.ID = uuid.New()
	instr.EncodedAmount = t.encoded
	if idx, ok := instr.Kind.CallIndex(); ok {
		instr.CallIndex = idx
	}

	if err := s.Sender.Send(ctx, t.chain, instr); err != nil {
		return fmt.Errorf("%s %s: %w", instr.Kind, instr.Asset, errors.Join(domain.ErrSendFailed, err))
	}

	log.Info().Str("instruction", string(instr.Kind)).Str("asset", string(instr.Asset)).
		Stringer("amount", instr.Amount).Stringer("destination", t.chain).
		Str("id", instr.ID.String()).Msg("cross-consensus message sent")
	return nil
}

// Bond locks amount of asset on its home chain. The first bond creates the
// staking ledger, later ones bond extra.
// Logic:
//   - stash = treasury available - (active + unbonding) already committed remotely
//   - the stash left after bonding must stay strictly above MinimumStash
func (s *RemoteService) Bond(ctx context.Context, asset domain.AssetID, amount domain.Balance) error {
	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.resolve(ctx, asset, amount)
		if err != nil {
			return err
		}
		cfg, err := s.stakingConfig(ctx, asset)
		if err != nil {
			return err
		}

		ledger, err := s.StakingRepo.GetLedger(ctx, asset)
		if err != nil {
			return fmt.Errorf("failed to get staking ledger: %w", err)
		}
		stash, err := s.stash(ctx, asset, ledger)
		if err != nil {
			return err
		}
		left, ok := stash.CheckedSub(amount)
		if !ok || left <= cfg.MinimumStash {
			return domain.ErrInsufficientStash
		}

		kind := domain.InstructionBondExtra
		if ledger == nil {
			kind = domain.InstructionBond
			ledger = &domain.StakingLedger{Asset: asset, Controller: s.Controller}
		}
		if _, ok := ledger.Active.CheckedAdd(amount); !ok {
			return domain.ErrBalanceOverflow
		}
		ledger.AddBond(amount)
		if err := s.StakingRepo.SaveLedger(ctx, ledger); err != nil {
			return fmt.Errorf("failed to save staking ledger: %w", err)
		}

		return s.send(ctx, t, domain.RemoteInstruction{
			Kind:        kind,
			Asset:       asset,
			Amount:      amount,
			PalletIndex: cfg.PalletIndex,
			Controller:  ledger.Controller,
			Beneficiary: t.location,
		})
	})
}

// stash is the part of the treasury balance not yet bonded or unbonding
func (s *RemoteService) stash(ctx context.Context, asset domain.AssetID, ledger *domain.StakingLedger) (domain.Balance, error) {
	available, err := s.Ledger.AvailableBalance(ctx, asset, s.Treasury)
	if err != nil {
		return 0, err
	}
	if ledger == nil {
		return available, nil
	}
	return available.SaturatingSub(ledger.Total()), nil
}

// Unbond starts releasing bonded funds. The amount must be strictly less than
// the active bond minus MinimumBalance.
func (s *RemoteService) Unbond(ctx context.Context, asset domain.AssetID, amount domain.Balance) error {
	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.resolve(ctx, asset, amount)
		if err != nil {
			return err
		}
		cfg, err := s.stakingConfig(ctx, asset)
		if err != nil {
			return err
		}

		ledger, err := s.StakingRepo.GetLedger(ctx, asset)
		if err != nil {
			return fmt.Errorf("failed to get staking ledger: %w", err)
		}
		if ledger == nil {
			return domain.ErrNotBonded
		}
		if ledger.UnlockedChunks >= cfg.MaxUnlockingChunks {
			return domain.ErrNoMoreUnbondingChunks
		}
		remaining, ok := ledger.Active.CheckedSub(amount)
		if !ok || remaining <= cfg.MinimumBalance {
			return domain.ErrInsufficientBond
		}

		ledger.Unbond(amount)
		if err := s.StakingRepo.SaveLedger(ctx, ledger); err != nil {
			return fmt.Errorf("failed to save staking ledger: %w", err)
		}

		return s.send(ctx, t, domain.RemoteInstruction{
			Kind:        domain.InstructionUnbond,
			Asset:       asset,
			Amount:      amount,
			PalletIndex: cfg.PalletIndex,
			Controller:  ledger.Controller,
			Beneficiary: t.location,
		})
	})
}

// WithdrawUnbonded moves unbonded funds to the caller's account on the
// asset's home chain
func (s *RemoteService) WithdrawUnbonded(ctx context.Context, caller domain.AccountID, asset domain.AssetID, amount domain.Balance) error {
	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.resolve(ctx, asset, amount)
		if err != nil {
			return err
		}
		return s.withdrawUnbonded(ctx, caller, asset, t, amount)
	})
}

// WithdrawUnbondedFrom is WithdrawUnbonded for a location recorded earlier
func (s *RemoteService) WithdrawUnbondedFrom(ctx context.Context, caller domain.AccountID, asset domain.AssetID, location domain.Location, amount domain.Balance) error {
	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.resolveAt(asset, location, amount)
		if err != nil {
			return err
		}
		return s.withdrawUnbonded(ctx, caller, asset, t, amount)
	})
}

func (s *RemoteService) withdrawUnbonded(ctx context.Context, caller domain.AccountID, asset domain.AssetID, t *target, amount domain.Balance) error {
	cfg, err := s.stakingConfig(ctx, asset)
	if err != nil {
		return err
	}

	ledger, err := s.StakingRepo.GetLedger(ctx, asset)
	if err != nil {
		return fmt.Errorf("failed to get staking ledger: %w", err)
	}
	if ledger == nil {
		return domain.ErrNotBonded
	}
	unbonded, ok := ledger.Unbonded.CheckedSub(amount)
	if !ok {
		return domain.ErrNothingToWithdraw
	}

	ledger.Unbonded = unbonded
	if unbonded.IsZero() {
		ledger.UnlockedChunks = 0
	}
	if err := s.StakingRepo.SaveLedger(ctx, ledger); err != nil {
		return fmt.Errorf("failed to save staking ledger: %w", err)
	}

	return s.send(ctx, t, domain.RemoteInstruction{
		Kind:        domain.InstructionWithdrawUnbonded,
		Asset:       asset,
		Amount:      amount,
		PalletIndex: cfg.PalletIndex,
		Controller:  ledger.Controller,
		Beneficiary: t.chain.Append(domain.Junction{Kind: domain.JunctionAccount, Value: string(caller)}),
	})
}

// ReserveWithdrawAndDeposit reserves amount of who's local balance and asks
// the asset's home chain to deposit it into who's account there. The reserve
// is settled by OnTransferOutcome.
func (s *RemoteService) ReserveWithdrawAndDeposit(ctx context.Context, who domain.AccountID, asset domain.AssetID, amount domain.Balance) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.resolve(ctx, asset, amount)
		if err != nil {
			return err
		}
		if err := s.Ledger.Reserve(ctx, asset, who, amount); err != nil {
			return err
		}

		transfer := &domain.PendingTransfer{
			ID:      uuid.New(),
			Account: who,
			Asset:   asset,
			Amount:  amount,
			Status:  domain.TransferPending,
		}
		if err := s.TransferRepo.Save(ctx, transfer); err != nil {
			return fmt.Errorf("failed to save pending transfer: %w", err)
		}
		id = transfer.ID

		return s.send(ctx, t, domain.RemoteInstruction{
			Kind:        domain.InstructionTransfer,
			Asset:       asset,
			Amount:      amount,
			Controller:  who,
			Beneficiary: t.chain.Append(domain.Junction{Kind: domain.JunctionAccount, Value: string(who)}),
		})
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// OnTransferOutcome settles a pending transfer. Success burns the reserve,
// failure returns it to the account. Repeated outcomes are ignored.
func (s *RemoteService) OnTransferOutcome(ctx context.Context, id uuid.UUID, success bool) error {
	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		transfer, err := s.TransferRepo.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get pending transfer: %w", err)
		}
		if transfer == nil {
			return domain.ErrTransferNotFound
		}
		if transfer.Status != domain.TransferPending {
			return nil
		}

		if success {
			if err := s.Ledger.SlashReserved(ctx, transfer.Asset, transfer.Account, transfer.Amount); err != nil {
				return err
			}
			transfer.Status = domain.TransferCompleted
		} else {
			if err := s.Ledger.Unreserve(ctx, transfer.Asset, transfer.Account, transfer.Amount); err != nil {
				return err
			}
			transfer.Status = domain.TransferFailed
		}
		if err := s.TransferRepo.Save(ctx, transfer); err != nil {
			return fmt.Errorf("failed to save pending transfer: %w", err)
		}

		log.Info().Str("transfer_id", id.String()).Str("status", string(transfer.Status)).Msg("remote transfer settled")
		return nil
	})
}

// SetStakingConfig registers how an asset is staked on its home chain
func (s *RemoteService) SetStakingConfig(ctx context.Context, origin domain.Origin, cfg domain.StakingConfig) error {
	if err := origin.EnsureRoot(); err != nil {
		return err
	}
	if cfg.Asset == "" || cfg.MaxUnlockingChunks == 0 {
		return fmt.Errorf("staking config needs an asset and unlocking chunks: %w", domain.ErrInvalidArgument)
	}
	if err := s.StakingRepo.SaveConfig(ctx, &cfg); err != nil {
		return fmt.Errorf("failed to save staking config: %w", err)
	}
	return nil
}

// StakingLedger returns the fund's bond for an asset, or nil if never bonded
func (s *RemoteService) StakingLedger(ctx context.Context, asset domain.AssetID) (*domain.StakingLedger, error) {
	ledger, err := s.StakingRepo.GetLedger(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("failed to get staking ledger: %w", err)
	}
	return ledger, nil
}

// Transfer returns a reserve-withdraw-deposit operation
func (s *RemoteService) Transfer(ctx context.Context, id uuid.UUID) (*domain.PendingTransfer, error) {
	transfer, err := s.TransferRepo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending transfer: %w", err)
	}
	if transfer == nil {
		return nil, domain.ErrTransferNotFound
	}
	return transfer, nil
}
