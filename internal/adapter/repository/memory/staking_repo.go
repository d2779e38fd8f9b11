package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// stakingRepository implements domain.StakingRepository
type stakingRepository struct {
	s *Store
}

// NewStakingRepository creates a new staking repository
func NewStakingRepository(s *Store) domain.StakingRepository {
	return &stakingRepository{s: s}
}

func (r *stakingRepository) GetConfig(_ context.Context, asset domain.AssetID) (*domain.StakingConfig, error) {
	var out *domain.StakingConfig
	r.s.locked(func(st *state) {
		if cfg, ok := st.stakingConfigs[asset]; ok {
			out = &cfg
		}
	})
	return out, nil
}

func (r *stakingRepository) SaveConfig(_ context.Context, cfg *domain.StakingConfig) error {
	r.s.locked(func(st *state) {
		st.stakingConfigs[cfg.Asset] = *cfg
	})
	return nil
}

func (r *stakingRepository) GetLedger(_ context.Context, asset domain.AssetID) (*domain.StakingLedger, error) {
	var out *domain.StakingLedger
	r.s.locked(func(st *state) {
		if l, ok := st.stakingLedgers[asset]; ok {
			out = &l
		}
	})
	return out, nil
}

func (r *stakingRepository) SaveLedger(_ context.Context, ledger *domain.StakingLedger) error {
	r.s.locked(func(st *state) {
		st.stakingLedgers[ledger.Asset] = *ledger
	})
	return nil
}

// transferRepository implements domain.TransferRepository
type transferRepository struct {
	s *Store
}

// NewTransferRepository creates a new pending transfer repository
func NewTransferRepository(s *Store) domain.TransferRepository {
	return &transferRepository{s: s}
}

func (r *transferRepository) Get(_ context.Context, id uuid.UUID) (*domain.PendingTransfer, error) {
	var out *domain.PendingTransfer
	r.s.locked(func(st *state) {
		if t, ok := st.transfers[id]; ok {
			out = &t
		}
	})
	return out, nil
}

func (r *transferRepository) Save(_ context.Context, transfer *domain.PendingTransfer) error {
	r.s.locked(func(st *state) {
		st.transfers[transfer.ID] = *transfer
	})
	return nil
}
