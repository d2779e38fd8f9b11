package saft

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/simaogato/indexfund-backend/internal/domain"
	"github.com/simaogato/indexfund-backend/internal/usecase/index"
)

// Recorder is the part of the index registry SAFT bookkeeping drives
type Recorder interface {
	Holding(ctx context.Context, asset domain.AssetID) (*domain.IndexAssetData, error)
	AddAsset(ctx context.Context, origin domain.Origin, input index.AddAssetInput) (domain.Balance, error)
	AddUnits(ctx context.Context, origin domain.Origin, asset domain.AssetID, units, value domain.Balance) (domain.Balance, error)
	ReleaseUnits(ctx context.Context, asset domain.AssetID, units domain.Balance) error
	SetReportedValue(ctx context.Context, asset domain.AssetID, value domain.Balance) error
	SetAvailability(ctx context.Context, asset domain.AssetID, availability domain.AssetAvailability, location domain.Location) error
}

// SaftService records Simple Agreements for Future Tokens and keeps the
// illiquid basket entries they back valued at the sum of their NAVs
type SaftService struct {
	SaftRepo domain.SaftRepository
	Index    Recorder
	Tx       domain.TxManager
}

// NewSaftService creates a new SaftService instance
func NewSaftService(saftRepo domain.SaftRepository, recorder Recorder, tx domain.TxManager) *SaftService {
	return &SaftService{
		SaftRepo: saftRepo,
		Index:    recorder,
		Tx:       tx,
	}
}

// AddSaft records a new SAFT and adds its units to the illiquid basket entry,
// creating the entry if needed. Zero units is a no-op and returns nil.
func (s *SaftService) AddSaft(ctx context.Context, origin domain.Origin, asset domain.AssetID, nav, units domain.Balance) (*domain.SaftRecord, error) {
	if err := origin.EnsureAdmin(); err != nil {
		return nil, err
	}
	if units.IsZero() {
		return nil, nil
	}

	var record *domain.SaftRecord
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		holding, err := s.Index.Holding(ctx, asset)
		switch {
		case err == nil && holding.IsLiquid():
			return domain.ErrExpectedSaft
		case err == nil:
			if _, err := s.Index.AddUnits(ctx, origin, asset, units, nav); err != nil {
				return err
			}
		case isNotFound(err):
			_, err := s.Index.AddAsset(ctx, origin, index.AddAssetInput{
				Asset:         asset,
				Units:         units,
				Availability:  domain.AvailabilityIlliquidCommitment,
				Location:      domain.Here,
				ReportedValue: nav,
			})
			if err != nil {
				return err
			}
		default:
			return err
		}

		id, err := s.SaftRepo.NextID(ctx, asset)
		if err != nil {
			return fmt.Errorf("failed to allocate saft id: %w", err)
		}
		record = &domain.SaftRecord{ID: id, Asset: asset, NAV: nav, Units: units}
		if err := s.SaftRepo.Save(ctx, record); err != nil {
			return fmt.Errorf("failed to save saft: %w", err)
		}

		log.Info().Str("asset", string(asset)).Uint32("saft_id", id).
			Stringer("nav", nav).Stringer("units", units).Msg("saft added")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// RemoveSaft deletes a SAFT and takes its units and value out of the basket entry
func (s *SaftService) RemoveSaft(ctx context.Context, origin domain.Origin, asset domain.AssetID, id uint32) error {
	if err := origin.EnsureAdmin(); err != nil {
		return err
	}

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		record, holding, err := s.load(ctx, asset, id)
		if err != nil {
			return err
		}

		if err := s.Index.ReleaseUnits(ctx, asset, record.Units); err != nil {
			return err
		}
		if err := s.Index.SetReportedValue(ctx, asset, holding.ReportedValue.SaturatingSub(record.NAV)); err != nil {
			return err
		}
		if err := s.SaftRepo.Delete(ctx, asset, id); err != nil {
			return fmt.Errorf("failed to delete saft: %w", err)
		}

		log.Info().Str("asset", string(asset)).Uint32("saft_id", id).Msg("saft removed")
		return nil
	})
}

// ReportNAV replaces the attested NAV of one SAFT
func (s *SaftService) ReportNAV(ctx context.Context, origin domain.Origin, asset domain.AssetID, id uint32, nav domain.Balance) error {
	if err := origin.EnsureAdmin(); err != nil {
		return err
	}

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		record, holding, err := s.load(ctx, asset, id)
		if err != nil {
			return err
		}

		value, ok := holding.ReportedValue.SaturatingSub(record.NAV).CheckedAdd(nav)
		if !ok {
			return domain.ErrAssetUnitsOverflow
		}
		if err := s.Index.SetReportedValue(ctx, asset, value); err != nil {
			return err
		}

		record.NAV = nav
		if err := s.SaftRepo.Save(ctx, record); err != nil {
			return fmt.Errorf("failed to save saft: %w", err)
		}
		return nil
	})
}

// ConvertToLiquid turns an illiquid basket entry into a liquid one living at
// location and discards its SAFT records
func (s *SaftService) ConvertToLiquid(ctx context.Context, origin domain.Origin, asset domain.AssetID, location domain.Location) error {
	if err := origin.EnsureAdmin(); err != nil {
		return err
	}

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		holding, err := s.Index.Holding(ctx, asset)
		if err != nil {
			return err
		}
		if holding.IsLiquid() {
			return domain.ErrExpectedSaft
		}

		if err := s.Index.SetAvailability(ctx, asset, domain.AvailabilityLiquid, location); err != nil {
			return err
		}
		if err := s.SaftRepo.DeleteAll(ctx, asset); err != nil {
			return fmt.Errorf("failed to delete safts: %w", err)
		}

		log.Info().Str("asset", string(asset)).Stringer("location", location).Msg("saft converted to liquid asset")
		return nil
	})
}

// Safts lists the SAFT records of an asset
func (s *SaftService) Safts(ctx context.Context, asset domain.AssetID) ([]*domain.SaftRecord, error) {
	records, err := s.SaftRepo.List(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("failed to list safts: %w", err)
	}
	return records, nil
}

func (s *SaftService) load(ctx context.Context, asset domain.AssetID, id uint32) (*domain.SaftRecord, *domain.IndexAssetData, error) {
	record, err := s.SaftRepo.Get(ctx, asset, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get saft: %w", err)
	}
	if record == nil {
		return nil, nil, domain.ErrSaftNotFound
	}
	holding, err := s.Index.Holding(ctx, asset)
	if err != nil {
		return nil, nil, err
	}
	return record, holding, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrAssetNotFound)
}
