package redemption

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/simaogato/indexfund-backend/internal/domain"
	"github.com/simaogato/indexfund-backend/internal/usecase/allocator"
)

// RedemptionService turns index units back into underlying assets and drives
// each asset withdrawal through Initiated -> Unbonding -> Transferred
type RedemptionService struct {
	RedemptionRepo domain.RedemptionRepository
	Index          domain.AssetRecorder
	Prices         domain.PriceFeed
	Ledger         domain.MultiAssetDepository
	Remote         domain.RemoteAssetManager
	Clock          domain.Clock
	Tx             domain.TxManager

	// Treasury holds the basket assets that redemptions pay out of
	Treasury domain.AccountID
	// MinimumRedemption is the smallest number of index units accepted
	MinimumRedemption domain.Balance
}

// NewRedemptionService creates a new RedemptionService instance
func NewRedemptionService(
	redemptionRepo domain.RedemptionRepository,
	index domain.AssetRecorder,
	prices domain.PriceFeed,
	ledger domain.MultiAssetDepository,
	remote domain.RemoteAssetManager,
	clock domain.Clock,
	tx domain.TxManager,
	treasury domain.AccountID,
	minimumRedemption domain.Balance,
) *RedemptionService {
	return &RedemptionService{
		RedemptionRepo:    redemptionRepo,
		Index:             index,
		Prices:            prices,
		Ledger:            ledger,
		Remote:            remote,
		Clock:             clock,
		Tx:                tx,
		Treasury:          treasury,
		MinimumRedemption: minimumRedemption,
	}
}

// InitiateRedemption burns index units of the caller and starts paying out
// their value in basket assets
// Logic:
//  1. Value the units at the current NAV (fails as a whole if any price is missing)
//  2. Allocate the value across liquid holdings in proportion to their units
//  3. Burn the index units, release the holding units and reserve them in the treasury
//  4. Local assets are transferred immediately; remote assets get an unbond issued
//
// A redemption that settles entirely locally is returned but never stored
func (s *RedemptionService) InitiateRedemption(ctx context.Context, origin domain.Origin, indexUnits domain.Balance) (*domain.PendingRedemption, error) {
	account, err := origin.EnsureSigned()
	if err != nil {
		return nil, err
	}
	if indexUnits.IsZero() || indexUnits < s.MinimumRedemption {
		return nil, domain.ErrBelowMinimumRedemption
	}

	var result *domain.PendingRedemption
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		balance, err := s.Index.IndexTokenBalance(ctx, account)
		if err != nil {
			return fmt.Errorf("failed to get index token balance: %w", err)
		}
		if balance < indexUnits {
			return domain.ErrInsufficientIndexTokens
		}

		nav, err := s.Index.NAV(ctx)
		if err != nil {
			return err
		}
		allocation, locations, err := s.allocate(ctx, indexUnits.Decimal().Mul(nav))
		if err != nil {
			return err
		}

		redemption := &domain.PendingRedemption{
			ID:         uuid.New(),
			Account:    account,
			Initiated:  s.Clock.BlockNumber(),
			IndexUnits: indexUnits,
			NAV:        nav,
		}

		if err := s.Index.BurnIndexTokens(ctx, account, indexUnits); err != nil {
			return err
		}
		for _, a := range allocation {
			w := domain.AssetWithdrawal{
				Asset:    a.Asset,
				Units:    a.Units,
				State:    domain.RedemptionInitiated,
				Local:    locations[a.Asset].IsHere(),
				Location: locations[a.Asset],
			}
			if err := s.Index.ReleaseUnits(ctx, a.Asset, a.Units); err != nil {
				return err
			}
			if err := s.Ledger.Reserve(ctx, a.Asset, s.Treasury, a.Units); err != nil {
				return fmt.Errorf("reserve %s: %w", a.Asset, err)
			}

			if w.Local {
				if err := s.Ledger.RepatriateReserved(ctx, a.Asset, s.Treasury, account, a.Units); err != nil {
					return err
				}
				w.State = domain.RedemptionTransferred
			} else if err := s.Remote.Unbond(ctx, a.Asset, a.Units); err != nil {
				return fmt.Errorf("unbond %s: %w", a.Asset, err)
			}
			redemption.Assets = append(redemption.Assets, w)
		}

		log.Info().Str("redemption_id", redemption.ID.String()).Str("account", string(account)).
			Stringer("index_units", indexUnits).Str("nav", nav.String()).
			Int("assets", len(redemption.Assets)).Msg("redemption initiated")

		result = redemption
		if redemption.Completed() {
			return nil
		}
		if err := s.RedemptionRepo.Save(ctx, redemption); err != nil {
			return fmt.Errorf("failed to save redemption: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// allocate prices every liquid holding and splits value across them
func (s *RedemptionService) allocate(ctx context.Context, value decimal.Decimal) ([]allocator.Allocation, map[domain.AssetID]domain.Location, error) {
	holdings, err := s.Index.Holdings(ctx)
	if err != nil {
		return nil, nil, err
	}

	shares := make([]allocator.Share, 0, len(holdings))
	locations := make(map[domain.AssetID]domain.Location, len(holdings))
	for _, h := range holdings {
		if !h.IsLiquid() || h.Units.IsZero() {
			continue
		}
		price, err := s.Prices.GetPrice(ctx, h.Asset)
		if err != nil {
			return nil, nil, err
		}
		shares = append(shares, allocator.Share{Asset: h.Asset, Units: h.Units, Price: price})
		locations[h.Asset] = h.Location
	}

	allocation, err := allocator.CalculateAllocation(value, shares)
	if err != nil {
		return nil, nil, err
	}
	return allocation, locations, nil
}

// OnUnbondConfirmed moves a withdrawal from Initiated to Unbonding.
// Withdrawals already past Initiated are left unchanged.
func (s *RedemptionService) OnUnbondConfirmed(ctx context.Context, ref domain.WithdrawalRef) error {
	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		redemption, i, err := s.withdrawal(ctx, ref)
		if err != nil {
			return err
		}

		w := &redemption.Assets[i]
		if w.State != domain.RedemptionInitiated {
			log.Debug().Str("redemption_id", ref.RedemptionID.String()).Str("asset", string(ref.Asset)).
				Str("state", string(w.State)).Msg("duplicate unbond confirmation ignored")
			return nil
		}
		w.State = domain.RedemptionUnbonding

		if err := s.RedemptionRepo.Save(ctx, redemption); err != nil {
			return fmt.Errorf("failed to save redemption: %w", err)
		}
		log.Info().Str("redemption_id", ref.RedemptionID.String()).Str("asset", string(ref.Asset)).Msg("unbonding confirmed")
		return nil
	})
}

// OnUnbondedAvailable withdraws the unbonded funds remotely, pays the reserved
// units to the redeeming account and marks the withdrawal Transferred.
// The withdrawal settles from the location recorded at initiation, so it
// completes even if the asset has since been removed from the basket.
// The redemption is removed once every withdrawal is Transferred.
func (s *RedemptionService) OnUnbondedAvailable(ctx context.Context, ref domain.WithdrawalRef) error {
	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		redemption, i, err := s.withdrawal(ctx, ref)
		if err != nil {
			return err
		}

		w := &redemption.Assets[i]
		switch w.State {
		case domain.RedemptionInitiated:
			return domain.ErrUnbondNotConfirmed
		case domain.RedemptionTransferred:
			return nil
		}

		if err := s.Remote.WithdrawUnbondedFrom(ctx, redemption.Account, w.Asset, w.Location, w.Units); err != nil {
			return err
		}
		if err := s.Ledger.RepatriateReserved(ctx, w.Asset, s.Treasury, redemption.Account, w.Units); err != nil {
			return err
		}
		w.State = domain.RedemptionTransferred

		log.Info().Str("redemption_id", ref.RedemptionID.String()).Str("asset", string(ref.Asset)).
			Stringer("units", w.Units).Msg("redeemed asset transferred")

		if redemption.Completed() {
			if err := s.RedemptionRepo.Delete(ctx, redemption.ID); err != nil {
				return fmt.Errorf("failed to delete redemption: %w", err)
			}
			log.Info().Str("redemption_id", ref.RedemptionID.String()).Msg("redemption completed")
			return nil
		}
		if err := s.RedemptionRepo.Save(ctx, redemption); err != nil {
			return fmt.Errorf("failed to save redemption: %w", err)
		}
		return nil
	})
}

// Get returns a pending redemption
func (s *RedemptionService) Get(ctx context.Context, id uuid.UUID) (*domain.PendingRedemption, error) {
	redemption, err := s.RedemptionRepo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get redemption: %w", err)
	}
	if redemption == nil {
		return nil, domain.ErrRedemptionNotFound
	}
	return redemption, nil
}

// ListPending returns the pending redemptions of an account, or all of them
// when account is empty
func (s *RedemptionService) ListPending(ctx context.Context, account domain.AccountID) ([]*domain.PendingRedemption, error) {
	redemptions, err := s.RedemptionRepo.List(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}
	return redemptions, nil
}

func (s *RedemptionService) withdrawal(ctx context.Context, ref domain.WithdrawalRef) (*domain.PendingRedemption, int, error) {
	redemption, err := s.Get(ctx, ref.RedemptionID)
	if err != nil {
		return nil, 0, err
	}
	i := redemption.Withdrawal(ref.Asset)
	if i < 0 {
		return nil, 0, fmt.Errorf("%s: %w", ref.Asset, domain.ErrWithdrawalNotFound)
	}
	return redemption, i, nil
}
