package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// holdingRepository implements domain.HoldingRepository
type holdingRepository struct {
	db *DB
}

// NewHoldingRepository creates a new basket holding repository
func NewHoldingRepository(db *DB) domain.HoldingRepository {
	return &holdingRepository{db: db}
}

const holdingColumns = `asset, units::TEXT, availability, location, reported_value::TEXT`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHolding(row rowScanner) (*domain.IndexAssetData, error) {
	var h domain.IndexAssetData
	var asset, availability, location, unitsStr, reportedStr string
	if err := row.Scan(&asset, &unitsStr, &availability, &location, &reportedStr); err != nil {
		return nil, err
	}

	var err error
	h.Asset = domain.AssetID(asset)
	h.Availability = domain.AssetAvailability(availability)
	if h.Units, err = parseBalance("units", unitsStr); err != nil {
		return nil, err
	}
	if h.ReportedValue, err = parseBalance("reported_value", reportedStr); err != nil {
		return nil, err
	}
	if h.Location, err = domain.ParseLocation(location); err != nil {
		return nil, fmt.Errorf("failed to parse location: %w", err)
	}
	return &h, nil
}

// Get retrieves a basket entry by asset
func (r *holdingRepository) Get(ctx context.Context, asset domain.AssetID) (*domain.IndexAssetData, error) {
	row := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT `+holdingColumns+` FROM index_holdings WHERE asset = $1`, string(asset))
	h, err := scanHolding(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	return h, nil
}

// Save creates or replaces a basket entry
func (r *holdingRepository) Save(ctx context.Context, holding *domain.IndexAssetData) error {
	query := `
		INSERT INTO index_holdings (asset, units, availability, location, reported_value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (asset) DO UPDATE
		SET units = EXCLUDED.units,
			availability = EXCLUDED.availability,
			location = EXCLUDED.location,
			reported_value = EXCLUDED.reported_value
	`
	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		string(holding.Asset),
		holding.Units.String(),
		string(holding.Availability),
		holding.Location.String(),
		holding.ReportedValue.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save holding: %w", err)
	}
	return nil
}

// Delete removes a basket entry
func (r *holdingRepository) Delete(ctx context.Context, asset domain.AssetID) error {
	if _, err := r.db.conn(ctx).ExecContext(ctx, `DELETE FROM index_holdings WHERE asset = $1`, string(asset)); err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	return nil
}

// List returns every basket entry ordered by asset
func (r *holdingRepository) List(ctx context.Context) ([]*domain.IndexAssetData, error) {
	rows, err := r.db.conn(ctx).QueryContext(ctx, `SELECT `+holdingColumns+` FROM index_holdings ORDER BY asset`)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	defer rows.Close()

	var holdings []*domain.IndexAssetData
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return holdings, nil
}

// issuanceRepository implements domain.IssuanceRepository
type issuanceRepository struct {
	db *DB
}

// NewIssuanceRepository creates a new index token repository
func NewIssuanceRepository(db *DB) domain.IssuanceRepository {
	return &issuanceRepository{db: db}
}

// GetBalance retrieves the index token balance of a holder
func (r *issuanceRepository) GetBalance(ctx context.Context, account domain.AccountID) (domain.Balance, error) {
	var s string
	err := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT balance::TEXT FROM index_token_balances WHERE account = $1`, string(account)).Scan(&s)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get index token balance: %w", err)
	}
	return parseBalance("balance", s)
}

// SaveBalance stores the index token balance of a holder
func (r *issuanceRepository) SaveBalance(ctx context.Context, account domain.AccountID, balance domain.Balance) error {
	if balance.IsZero() {
		_, err := r.db.conn(ctx).ExecContext(ctx, `DELETE FROM index_token_balances WHERE account = $1`, string(account))
		if err != nil {
			return fmt.Errorf("failed to delete index token balance: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO index_token_balances (account, balance)
		VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET balance = EXCLUDED.balance
	`
	if _, err := r.db.conn(ctx).ExecContext(ctx, query, string(account), balance.String()); err != nil {
		return fmt.Errorf("failed to save index token balance: %w", err)
	}
	return nil
}

// GetIssuance retrieves the total index token supply
func (r *issuanceRepository) GetIssuance(ctx context.Context) (domain.Balance, error) {
	var s string
	err := r.db.conn(ctx).QueryRowContext(ctx, `SELECT total::TEXT FROM index_token_issuance WHERE id = 1`).Scan(&s)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get index token issuance: %w", err)
	}
	return parseBalance("total", s)
}

// SaveIssuance stores the total index token supply
func (r *issuanceRepository) SaveIssuance(ctx context.Context, issuance domain.Balance) error {
	query := `
		INSERT INTO index_token_issuance (id, total)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET total = EXCLUDED.total
	`
	if _, err := r.db.conn(ctx).ExecContext(ctx, query, issuance.String()); err != nil {
		return fmt.Errorf("failed to save index token issuance: %w", err)
	}
	return nil
}
