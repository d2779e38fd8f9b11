package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// stakingRepository implements domain.StakingRepository
type stakingRepository struct {
	db *DB
}

// NewStakingRepository creates a new staking repository
func NewStakingRepository(db *DB) domain.StakingRepository {
	return &stakingRepository{db: db}
}

// GetConfig retrieves the staking configuration of an asset
func (r *stakingRepository) GetConfig(ctx context.Context, asset domain.AssetID) (*domain.StakingConfig, error) {
	query := `
		SELECT pallet_index, max_unlocking_chunks, minimum_balance::TEXT, minimum_stash::TEXT
		FROM staking_configs
		WHERE asset = $1
	`

	var palletIndex int16
	var chunks int64
	var minBalanceStr, minStashStr string
	err := r.db.conn(ctx).QueryRowContext(ctx, query, string(asset)).Scan(&palletIndex, &chunks, &minBalanceStr, &minStashStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get staking config: %w", err)
	}

	cfg := &domain.StakingConfig{
		Asset:              asset,
		PalletIndex:        uint8(palletIndex),
		MaxUnlockingChunks: uint32(chunks),
	}
	if cfg.MinimumBalance, err = parseBalance("minimum_balance", minBalanceStr); err != nil {
		return nil, err
	}
	if cfg.MinimumStash, err = parseBalance("minimum_stash", minStashStr); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig creates or replaces the staking configuration of an asset
func (r *stakingRepository) SaveConfig(ctx context.Context, cfg *domain.StakingConfig) error {
	query := `
		INSERT INTO staking_configs (asset, pallet_index, max_unlocking_chunks, minimum_balance, minimum_stash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (asset) DO UPDATE
		SET pallet_index = EXCLUDED.pallet_index,
			max_unlocking_chunks = EXCLUDED.max_unlocking_chunks,
			minimum_balance = EXCLUDED.minimum_balance,
			minimum_stash = EXCLUDED.minimum_stash
	`
	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		string(cfg.Asset),
		int16(cfg.PalletIndex),
		int64(cfg.MaxUnlockingChunks),
		cfg.MinimumBalance.String(),
		cfg.MinimumStash.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save staking config: %w", err)
	}
	return nil
}

// GetLedger retrieves the staking ledger of an asset
func (r *stakingRepository) GetLedger(ctx context.Context, asset domain.AssetID) (*domain.StakingLedger, error) {
	query := `
		SELECT controller, active::TEXT, unbonded::TEXT, unlocked_chunks
		FROM staking_ledgers
		WHERE asset = $1
	`

	var controller, activeStr, unbondedStr string
	var chunks int64
	err := r.db.conn(ctx).QueryRowContext(ctx, query, string(asset)).Scan(&controller, &activeStr, &unbondedStr, &chunks)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get staking ledger: %w", err)
	}

	l := &domain.StakingLedger{
		Asset:          asset,
		Controller:     domain.AccountID(controller),
		UnlockedChunks: uint32(chunks),
	}
	if l.Active, err = parseBalance("active", activeStr); err != nil {
		return nil, err
	}
	if l.Unbonded, err = parseBalance("unbonded", unbondedStr); err != nil {
		return nil, err
	}
	return l, nil
}

// SaveLedger creates or replaces the staking ledger of an asset
func (r *stakingRepository) SaveLedger(ctx context.Context, ledger *domain.StakingLedger) error {
	query := `
		INSERT INTO staking_ledgers (asset, controller, active, unbonded, unlocked_chunks)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (asset) DO UPDATE
		SET controller = EXCLUDED.controller,
			active = EXCLUDED.active,
			unbonded = EXCLUDED.unbonded,
			unlocked_chunks = EXCLUDED.unlocked_chunks
	`
	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		string(ledger.Asset),
		string(ledger.Controller),
		ledger.Active.String(),
		ledger.Unbonded.String(),
		int64(ledger.UnlockedChunks),
	)
	if err != nil {
		return fmt.Errorf("failed to save staking ledger: %w", err)
	}
	return nil
}

// transferRepository implements domain.TransferRepository
type transferRepository struct {
	db *DB
}

// NewTransferRepository creates a new pending transfer repository
func NewTransferRepository(db *DB) domain.TransferRepository {
	return &transferRepository{db: db}
}

// Get retrieves a pending transfer by its ID
func (r *transferRepository) Get(ctx context.Context, id uuid.UUID) (*domain.PendingTransfer, error) {
	query := `
		SELECT id, account, asset, amount::TEXT, status
		FROM pending_transfers
		WHERE id = $1
	`

	var t domain.PendingTransfer
	var account, asset, amountStr, status string
	err := r.db.conn(ctx).QueryRowContext(ctx, query, id).Scan(&t.ID, &account, &asset, &amountStr, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending transfer: %w", err)
	}

	t.Account = domain.AccountID(account)
	t.Asset = domain.AssetID(asset)
	t.Status = domain.TransferStatus(status)
	if t.Amount, err = parseBalance("amount", amountStr); err != nil {
		return nil, err
	}
	return &t, nil
}

// Save creates or replaces a pending transfer
func (r *transferRepository) Save(ctx context.Context, transfer *domain.PendingTransfer) error {
	query := `
		INSERT INTO pending_transfers (id, account, asset, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status
	`
	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		transfer.ID,
		string(transfer.Account),
		string(transfer.Asset),
		transfer.Amount.String(),
		string(transfer.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to save pending transfer: %w", err)
	}
	return nil
}
