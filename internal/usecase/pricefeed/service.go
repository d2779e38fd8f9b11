package pricefeed

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// PriceFeedService keeps the latest price observation of every tracked asset.
// It implements domain.PriceFeed.
type PriceFeedService struct {
	PriceRepo domain.PriceRepository
	Tx        domain.TxManager

	// Reporters may submit observations besides root. Empty means any signed caller.
	Reporters map[domain.AccountID]bool
}

// NewPriceFeedService creates a new PriceFeedService instance
func NewPriceFeedService(priceRepo domain.PriceRepository, tx domain.TxManager, reporters []domain.AccountID) *PriceFeedService {
	allowed := make(map[domain.AccountID]bool, len(reporters))
	for _, r := range reporters {
		allowed[r] = true
	}
	return &PriceFeedService{
		PriceRepo: priceRepo,
		Tx:        tx,
		Reporters: allowed,
	}
}

var _ domain.PriceFeed = (*PriceFeedService)(nil)

// GetPrice returns the latest observed price of a tracked asset
func (s *PriceFeedService) GetPrice(ctx context.Context, asset domain.AssetID) (domain.Price, error) {
	tracked, err := s.PriceRepo.IsTracked(ctx, asset)
	if err != nil {
		return domain.Price{}, fmt.Errorf("failed to check tracked asset: %w", err)
	}
	if !tracked {
		return domain.Price{}, fmt.Errorf("%s: %w", asset, domain.ErrPriceUnavailable)
	}

	latest, err := s.PriceRepo.GetLatest(ctx, asset)
	if err != nil {
		return domain.Price{}, fmt.Errorf("failed to get latest price: %w", err)
	}
	if latest == nil {
		return domain.Price{}, fmt.Errorf("%s: %w", asset, domain.ErrPriceUnavailable)
	}
	return latest.Value, nil
}

// GetRelativePricePair returns the prices of base and quote as a pair.
// Fails if either leg is missing.
func (s *PriceFeedService) GetRelativePricePair(ctx context.Context, base, quote domain.AssetID) (domain.AssetPricePair, error) {
	basePrice, err := s.GetPrice(ctx, base)
	if err != nil {
		return domain.AssetPricePair{}, err
	}
	quotePrice, err := s.GetPrice(ctx, quote)
	if err != nil {
		return domain.AssetPricePair{}, err
	}
	return domain.AssetPricePair{
		Base:       base,
		Quote:      quote,
		BasePrice:  basePrice,
		QuotePrice: quotePrice,
	}, nil
}

// Track starts accepting observations for an asset. Tracking twice is a no-op.
func (s *PriceFeedService) Track(ctx context.Context, origin domain.Origin, asset domain.AssetID) error {
	if err := origin.EnsureAdmin(); err != nil {
		return err
	}
	if asset == "" {
		return fmt.Errorf("asset is required: %w", domain.ErrInvalidArgument)
	}

	if err := s.PriceRepo.Track(ctx, asset); err != nil {
		return fmt.Errorf("failed to track asset: %w", err)
	}
	log.Info().Str("asset", string(asset)).Msg("price tracking started")
	return nil
}

// Untrack stops tracking an asset and drops its stored observation
func (s *PriceFeedService) Untrack(ctx context.Context, origin domain.Origin, asset domain.AssetID) error {
	if err := origin.EnsureAdmin(); err != nil {
		return err
	}

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		tracked, err := s.PriceRepo.IsTracked(ctx, asset)
		if err != nil {
			return fmt.Errorf("failed to check tracked asset: %w", err)
		}
		if !tracked {
			return domain.ErrAssetNotTracked
		}
		if err := s.PriceRepo.Untrack(ctx, asset); err != nil {
			return fmt.Errorf("failed to untrack asset: %w", err)
		}
		log.Info().Str("asset", string(asset)).Msg("price tracking stopped")
		return nil
	})
}

// Report submits a new observation. It returns false without error when the
// observation is older than the stored one.
// Logic:
//   - Caller must be root or an allowed reporter
//   - Asset must be tracked and the price positive
//   - Stale moments are dropped silently
func (s *PriceFeedService) Report(ctx context.Context, origin domain.Origin, asset domain.AssetID, value domain.TimestampedValue) (bool, error) {
	caller, err := origin.EnsureSigned()
	if err != nil {
		return false, err
	}
	if origin.Kind != domain.OriginRoot && len(s.Reporters) > 0 && !s.Reporters[caller] {
		return false, domain.ErrBadOrigin
	}
	if value.Value.Sign() <= 0 {
		return false, domain.ErrInvalidPrice
	}

	accepted := false
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		tracked, err := s.PriceRepo.IsTracked(ctx, asset)
		if err != nil {
			return fmt.Errorf("failed to check tracked asset: %w", err)
		}
		if !tracked {
			return domain.ErrAssetNotTracked
		}

		stored, err := s.PriceRepo.GetLatest(ctx, asset)
		if err != nil {
			return fmt.Errorf("failed to get latest price: %w", err)
		}
		if stored != nil && !value.Supersedes(*stored) {
			log.Debug().Str("asset", string(asset)).Uint64("moment", value.Moment).
				Uint64("stored_moment", stored.Moment).Msg("dropped stale price report")
			return nil
		}

		if err := s.PriceRepo.SaveLatest(ctx, asset, value); err != nil {
			return fmt.Errorf("failed to save price: %w", err)
		}
		accepted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return accepted, nil
}

// TrackedAssets lists every tracked asset
func (s *PriceFeedService) TrackedAssets(ctx context.Context) ([]domain.AssetID, error) {
	assets, err := s.PriceRepo.ListTracked(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked assets: %w", err)
	}
	return assets, nil
}
