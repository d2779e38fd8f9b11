package index

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// IndexService owns the basket and the index token supply.
// It implements domain.AssetRecorder.
type IndexService struct {
	HoldingRepo  domain.HoldingRepository
	IssuanceRepo domain.IssuanceRepository
	Ledger       domain.MultiAssetDepository
	Prices       domain.PriceFeed
	Tx           domain.TxManager

	// Treasury is the ledger account holding the basket's underlying assets
	Treasury domain.AccountID
}

// NewIndexService creates a new IndexService instance
func NewIndexService(
	holdingRepo domain.HoldingRepository,
	issuanceRepo domain.IssuanceRepository,
	ledger domain.MultiAssetDepository,
	prices domain.PriceFeed,
	tx domain.TxManager,
	treasury domain.AccountID,
) *IndexService {
	return &IndexService{
		HoldingRepo:  holdingRepo,
		IssuanceRepo: issuanceRepo,
		Ledger:       ledger,
		Prices:       prices,
		Tx:           tx,
		Treasury:     treasury,
	}
}

var _ domain.AssetRecorder = (*IndexService)(nil)

// AddAssetInput represents the input for adding an asset to the basket
type AddAssetInput struct {
	Asset        domain.AssetID
	Units        domain.Balance
	Availability domain.AssetAvailability
	Location     domain.Location
	// ReportedValue is the value of Units in base currency. For liquid assets
	// it may be left zero to value the units at the current price.
	ReportedValue domain.Balance
}

// AddAsset inserts a new basket entry and mints index tokens to the caller
// Logic:
//  1. Value the contribution (reported value, or units x price for liquid assets)
//  2. Mint value / NAV index units, or value 1:1 when nothing has been issued yet
//  3. Deposit the units into the treasury account on the ledger
//
// Returns the number of index units minted
func (s *IndexService) AddAsset(ctx context.Context, origin domain.Origin, input AddAssetInput) (domain.Balance, error) {
	if err := origin.EnsureAdmin(); err != nil {
		return 0, err
	}
	caller, err := origin.EnsureSigned()
	if err != nil {
		return 0, err
	}
	if input.Asset == "" {
		return 0, fmt.Errorf("asset is required: %w", domain.ErrInvalidArgument)
	}
	if !input.Availability.Valid() {
		return 0, fmt.Errorf("unknown availability %q: %w", input.Availability, domain.ErrInvalidArgument)
	}
	if input.Units.IsZero() {
		return 0, fmt.Errorf("units must be positive: %w", domain.ErrInvalidArgument)
	}

	var minted domain.Balance
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.HoldingRepo.Get(ctx, input.Asset)
		if err != nil {
			return fmt.Errorf("failed to get holding: %w", err)
		}
		if existing != nil {
			return domain.ErrAssetAlreadyPresent
		}

		holding := &domain.IndexAssetData{
			Asset:         input.Asset,
			Units:         input.Units,
			Availability:  input.Availability,
			Location:      input.Location,
			ReportedValue: input.ReportedValue,
		}

		value, err := s.contributionValue(ctx, holding, input.Units, input.ReportedValue)
		if err != nil {
			return err
		}
		minted, err = s.mintFor(ctx, caller, value)
		if err != nil {
			return err
		}

		if err := s.HoldingRepo.Save(ctx, holding); err != nil {
			return fmt.Errorf("failed to save holding: %w", err)
		}
		if err := s.Ledger.Deposit(ctx, input.Asset, s.Treasury, input.Units); err != nil {
			return err
		}

		log.Info().Str("asset", string(input.Asset)).Stringer("units", input.Units).
			Str("availability", string(input.Availability)).Stringer("minted", minted).
			Str("recipient", string(caller)).Msg("asset added to index")
		return nil
	})
	if err != nil {
		return 0, err
	}
	return minted, nil
}

// AddUnits increases the units of an existing basket entry and mints index
// tokens for the added value. Zero units is a no-op.
func (s *IndexService) AddUnits(ctx context.Context, origin domain.Origin, asset domain.AssetID, units, value domain.Balance) (domain.Balance, error) {
	if err := origin.EnsureAdmin(); err != nil {
		return 0, err
	}
	caller, err := origin.EnsureSigned()
	if err != nil {
		return 0, err
	}
	if units.IsZero() {
		return 0, nil
	}

	var minted domain.Balance
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		holding, err := s.Holding(ctx, asset)
		if err != nil {
			return err
		}

		newUnits, ok := holding.Units.CheckedAdd(units)
		if !ok {
			return domain.ErrAssetUnitsOverflow
		}

		contribution, err := s.contributionValue(ctx, holding, units, value)
		if err != nil {
			return err
		}
		minted, err = s.mintFor(ctx, caller, contribution)
		if err != nil {
			return err
		}

		holding.Units = newUnits
		if !holding.IsLiquid() {
			holding.ReportedValue = holding.ReportedValue.SaturatingAdd(value)
		}
		if err := s.HoldingRepo.Save(ctx, holding); err != nil {
			return fmt.Errorf("failed to save holding: %w", err)
		}
		return s.Ledger.Deposit(ctx, asset, s.Treasury, units)
	})
	if err != nil {
		return 0, err
	}
	return minted, nil
}

// RemoveAsset deletes a basket entry. Underlying funds are not moved.
func (s *IndexService) RemoveAsset(ctx context.Context, origin domain.Origin, asset domain.AssetID) error {
	if err := origin.EnsureAdmin(); err != nil {
		return err
	}

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.Holding(ctx, asset); err != nil {
			return err
		}
		if err := s.HoldingRepo.Delete(ctx, asset); err != nil {
			return fmt.Errorf("failed to delete holding: %w", err)
		}
		log.Info().Str("asset", string(asset)).Msg("asset removed from index")
		return nil
	})
}

// SetReportedValue replaces the attested value of a basket entry
func (s *IndexService) SetReportedValue(ctx context.Context, asset domain.AssetID, value domain.Balance) error {
	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		holding, err := s.Holding(ctx, asset)
		if err != nil {
			return err
		}
		holding.ReportedValue = value
		if err := s.HoldingRepo.Save(ctx, holding); err != nil {
			return fmt.Errorf("failed to save holding: %w", err)
		}
		return nil
	})
}

// SetAvailability switches how a basket entry is valued and where it lives
func (s *IndexService) SetAvailability(ctx context.Context, asset domain.AssetID, availability domain.AssetAvailability, location domain.Location) error {
	if !availability.Valid() {
		return fmt.Errorf("unknown availability %q: %w", availability, domain.ErrInvalidArgument)
	}

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		holding, err := s.Holding(ctx, asset)
		if err != nil {
			return err
		}
		holding.Availability = availability
		holding.Location = location
		if err := s.HoldingRepo.Save(ctx, holding); err != nil {
			return fmt.Errorf("failed to save holding: %w", err)
		}
		return nil
	})
}

// ReleaseUnits lowers the units of a basket entry when they are paid out
func (s *IndexService) ReleaseUnits(ctx context.Context, asset domain.AssetID, units domain.Balance) error {
	if units.IsZero() {
		return nil
	}

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		holding, err := s.Holding(ctx, asset)
		if err != nil {
			return err
		}
		remaining, ok := holding.Units.CheckedSub(units)
		if !ok {
			return fmt.Errorf("release %s of %s: %w", units, asset, domain.ErrNotEnoughBalance)
		}
		holding.Units = remaining
		if err := s.HoldingRepo.Save(ctx, holding); err != nil {
			return fmt.Errorf("failed to save holding: %w", err)
		}
		return nil
	})
}

// BurnIndexTokens removes index units from a holder and from the total supply
func (s *IndexService) BurnIndexTokens(ctx context.Context, account domain.AccountID, units domain.Balance) error {
	if units.IsZero() {
		return nil
	}

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		balance, err := s.IssuanceRepo.GetBalance(ctx, account)
		if err != nil {
			return fmt.Errorf("failed to get index token balance: %w", err)
		}
		remaining, ok := balance.CheckedSub(units)
		if !ok {
			return domain.ErrInsufficientIndexTokens
		}
		issuance, err := s.IssuanceRepo.GetIssuance(ctx)
		if err != nil {
			return fmt.Errorf("failed to get index token issuance: %w", err)
		}

		if err := s.IssuanceRepo.SaveBalance(ctx, account, remaining); err != nil {
			return fmt.Errorf("failed to save index token balance: %w", err)
		}
		if err := s.IssuanceRepo.SaveIssuance(ctx, issuance.SaturatingSub(units)); err != nil {
			return fmt.Errorf("failed to save index token issuance: %w", err)
		}
		return nil
	})
}

// Holding returns a basket entry or ErrAssetNotFound
func (s *IndexService) Holding(ctx context.Context, asset domain.AssetID) (*domain.IndexAssetData, error) {
	holding, err := s.HoldingRepo.Get(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	if holding == nil {
		return nil, fmt.Errorf("%s: %w", asset, domain.ErrAssetNotFound)
	}
	return holding, nil
}

// Holdings lists every basket entry ordered by asset
func (s *IndexService) Holdings(ctx context.Context) ([]*domain.IndexAssetData, error) {
	holdings, err := s.HoldingRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	return holdings, nil
}

// Location returns where the asset of a basket entry lives
func (s *IndexService) Location(ctx context.Context, asset domain.AssetID) (domain.Location, error) {
	holding, err := s.HoldingRepo.Get(ctx, asset)
	if err != nil {
		return domain.Location{}, fmt.Errorf("failed to get holding: %w", err)
	}
	if holding == nil {
		return domain.Location{}, fmt.Errorf("%s has no location: %w", asset, domain.ErrBadLocation)
	}
	return holding.Location, nil
}

// IndexTokenBalance returns the index units held by an account
func (s *IndexService) IndexTokenBalance(ctx context.Context, account domain.AccountID) (domain.Balance, error) {
	return s.IssuanceRepo.GetBalance(ctx, account)
}

// IndexTokenIssuance returns the total index units outstanding
func (s *IndexService) IndexTokenIssuance(ctx context.Context) (domain.Balance, error) {
	return s.IssuanceRepo.GetIssuance(ctx)
}

// Valuations values every basket entry. Liquid entries use the price feed,
// illiquid ones their reported value. Any missing price fails the whole call.
func (s *IndexService) Valuations(ctx context.Context) ([]domain.HoldingValuation, decimal.Decimal, error) {
	holdings, err := s.Holdings(ctx)
	if err != nil {
		return nil, decimal.Zero, err
	}

	total := decimal.Zero
	out := make([]domain.HoldingValuation, 0, len(holdings))
	for _, h := range holdings {
		v := domain.HoldingValuation{Holding: *h, Price: decimal.Zero}
		if h.IsLiquid() {
			price, err := s.Prices.GetPrice(ctx, h.Asset)
			if err != nil {
				return nil, decimal.Zero, err
			}
			v.Price = price
			v.Value = h.Units.Decimal().Mul(price)
		} else {
			v.Value = h.ReportedValue.Decimal()
		}
		total = total.Add(v.Value)
		out = append(out, v)
	}
	return out, total, nil
}

// NAV returns the basket value per outstanding index unit
func (s *IndexService) NAV(ctx context.Context) (decimal.Decimal, error) {
	issuance, err := s.IssuanceRepo.GetIssuance(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get index token issuance: %w", err)
	}
	if issuance.IsZero() {
		return decimal.Zero, domain.ErrNoIndexIssuance
	}

	_, total, err := s.Valuations(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Div(issuance.Decimal()), nil
}

// contributionValue values units being added to a holding in base currency
func (s *IndexService) contributionValue(ctx context.Context, holding *domain.IndexAssetData, units, reported domain.Balance) (decimal.Decimal, error) {
	if !reported.IsZero() || !holding.IsLiquid() {
		return reported.Decimal(), nil
	}
	price, err := s.Prices.GetPrice(ctx, holding.Asset)
	if err != nil {
		return decimal.Zero, err
	}
	return units.Decimal().Mul(price), nil
}

// mintFor credits value / NAV index units to the recipient, 1:1 when nothing
// has been issued yet. A zero NAV with outstanding issuance is refused: there
// is no price at which new units would not dilute existing holders.
func (s *IndexService) mintFor(ctx context.Context, recipient domain.AccountID, value decimal.Decimal) (domain.Balance, error) {
	issuance, err := s.IssuanceRepo.GetIssuance(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get index token issuance: %w", err)
	}

	amount := domain.BalanceFromDecimal(value)
	if !issuance.IsZero() {
		nav, err := s.NAV(ctx)
		if err != nil {
			return 0, err
		}
		if nav.Sign() <= 0 {
			return 0, domain.ErrZeroNAV
		}
		amount = domain.BalanceFromDecimal(value.Div(nav))
	}
	if amount.IsZero() {
		return 0, nil
	}

	newIssuance, ok := issuance.CheckedAdd(amount)
	if !ok {
		return 0, domain.ErrIndexIssuanceOverflow
	}
	balance, err := s.IssuanceRepo.GetBalance(ctx, recipient)
	if err != nil {
		return 0, fmt.Errorf("failed to get index token balance: %w", err)
	}
	newBalance, ok := balance.CheckedAdd(amount)
	if !ok {
		return 0, domain.ErrIndexIssuanceOverflow
	}

	if err := s.IssuanceRepo.SaveBalance(ctx, recipient, newBalance); err != nil {
		return 0, fmt.Errorf("failed to save index token balance: %w", err)
	}
	if err := s.IssuanceRepo.SaveIssuance(ctx, newIssuance); err != nil {
		return 0, fmt.Errorf("failed to save index token issuance: %w", err)
	}
	return amount, nil
}
