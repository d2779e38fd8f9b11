package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// ledgerRepository implements domain.LedgerRepository
type ledgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *DB) domain.LedgerRepository {
	return &ledgerRepository{db: db}
}

// GetAccount retrieves the balance of an account; absent accounts are zero
func (r *ledgerRepository) GetAccount(ctx context.Context, asset domain.AssetID, account domain.AccountID) (domain.AccountBalance, error) {
	query := `
		SELECT available::TEXT, reserved::TEXT
		FROM account_balances
		WHERE asset = $1 AND account = $2
	`

	var availableStr, reservedStr string
	err := r.db.conn(ctx).QueryRowContext(ctx, query, string(asset), string(account)).Scan(&availableStr, &reservedStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AccountBalance{}, nil
		}
		return domain.AccountBalance{}, fmt.Errorf("failed to get account balance: %w", err)
	}

	var bal domain.AccountBalance
	if bal.Available, err = parseBalance("available", availableStr); err != nil {
		return domain.AccountBalance{}, err
	}
	if bal.Reserved, err = parseBalance("reserved", reservedStr); err != nil {
		return domain.AccountBalance{}, err
	}
	return bal, nil
}

// SaveAccount stores the balance of an account, removing it when it is zero
func (r *ledgerRepository) SaveAccount(ctx context.Context, asset domain.AssetID, account domain.AccountID, balance domain.AccountBalance) error {
	if balance.Available.IsZero() && balance.Reserved.IsZero() {
		_, err := r.db.conn(ctx).ExecContext(ctx,
			`DELETE FROM account_balances WHERE asset = $1 AND account = $2`,
			string(asset), string(account))
		if err != nil {
			return fmt.Errorf("failed to delete account balance: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO account_balances (asset, account, available, reserved)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (asset, account) DO UPDATE
		SET available = EXCLUDED.available, reserved = EXCLUDED.reserved
	`
	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		string(asset),
		string(account),
		balance.Available.String(),
		balance.Reserved.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save account balance: %w", err)
	}
	return nil
}

// GetAggregate retrieves the sum of all account totals for an asset
func (r *ledgerRepository) GetAggregate(ctx context.Context, asset domain.AssetID) (domain.Balance, error) {
	var totalStr string
	err := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT total::TEXT FROM aggregate_balances WHERE asset = $1`, string(asset)).Scan(&totalStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get aggregate balance: %w", err)
	}
	return parseBalance("total", totalStr)
}

// SaveAggregate stores the aggregate balance of an asset
func (r *ledgerRepository) SaveAggregate(ctx context.Context, asset domain.AssetID, total domain.Balance) error {
	query := `
		INSERT INTO aggregate_balances (asset, total)
		VALUES ($1, $2)
		ON CONFLICT (asset) DO UPDATE SET total = EXCLUDED.total
	`
	if _, err := r.db.conn(ctx).ExecContext(ctx, query, string(asset), total.String()); err != nil {
		return fmt.Errorf("failed to save aggregate balance: %w", err)
	}
	return nil
}
