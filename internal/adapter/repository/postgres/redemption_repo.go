package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// redemptionRepository implements domain.RedemptionRepository
type redemptionRepository struct {
	db *DB
}

// NewRedemptionRepository creates a new pending redemption repository
func NewRedemptionRepository(db *DB) domain.RedemptionRepository {
	return &redemptionRepository{db: db}
}

const redemptionColumns = `id, account, initiated::TEXT, index_units::TEXT, nav::TEXT`

func scanRedemption(row rowScanner) (*domain.PendingRedemption, error) {
	var r domain.PendingRedemption
	var account, initiatedStr, unitsStr, navStr string
	if err := row.Scan(&r.ID, &account, &initiatedStr, &unitsStr, &navStr); err != nil {
		return nil, err
	}

	r.Account = domain.AccountID(account)
	initiated, err := parseBalance("initiated", initiatedStr)
	if err != nil {
		return nil, err
	}
	r.Initiated = uint64(initiated)
	if r.IndexUnits, err = parseBalance("index_units", unitsStr); err != nil {
		return nil, err
	}
	if r.NAV, err = decimal.NewFromString(navStr); err != nil {
		return nil, fmt.Errorf("failed to parse nav: %w", err)
	}
	return &r, nil
}

// withdrawals loads the asset withdrawals of a redemption in their original order
func (r *redemptionRepository) withdrawals(ctx context.Context, id uuid.UUID) ([]domain.AssetWithdrawal, error) {
	query := `
		SELECT asset, units::TEXT, state, local, location
		FROM asset_withdrawals
		WHERE redemption_id = $1
		ORDER BY position
	`
	rows, err := r.db.conn(ctx).QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list asset withdrawals: %w", err)
	}
	defer rows.Close()

	var out []domain.AssetWithdrawal
	for rows.Next() {
		var w domain.AssetWithdrawal
		var asset, unitsStr, state, location string
		if err := rows.Scan(&asset, &unitsStr, &state, &w.Local, &location); err != nil {
			return nil, fmt.Errorf("failed to scan asset withdrawal: %w", err)
		}
		w.Asset = domain.AssetID(asset)
		w.State = domain.RedemptionState(state)
		if w.Units, err = parseBalance("units", unitsStr); err != nil {
			return nil, err
		}
		if w.Location, err = domain.ParseLocation(location); err != nil {
			return nil, fmt.Errorf("failed to parse withdrawal location: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset withdrawals: %w", err)
	}
	return out, nil
}

// Get retrieves a pending redemption by its ID
func (r *redemptionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.PendingRedemption, error) {
	row := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT `+redemptionColumns+` FROM pending_redemptions WHERE id = $1`, id)
	redemption, err := scanRedemption(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get redemption: %w", err)
	}

	if redemption.Assets, err = r.withdrawals(ctx, id); err != nil {
		return nil, err
	}
	return redemption, nil
}

// Save creates or replaces a pending redemption including its withdrawals
func (r *redemptionRepository) Save(ctx context.Context, redemption *domain.PendingRedemption) error {
	return r.db.WithinTx(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO pending_redemptions (id, account, initiated, index_units, nav)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET account = EXCLUDED.account,
				initiated = EXCLUDED.initiated,
				index_units = EXCLUDED.index_units,
				nav = EXCLUDED.nav
		`
		_, err := r.db.conn(ctx).ExecContext(ctx, query,
			redemption.ID,
			string(redemption.Account),
			domain.Balance(redemption.Initiated).String(),
			redemption.IndexUnits.String(),
			redemption.NAV.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to save redemption: %w", err)
		}

		if _, err := r.db.conn(ctx).ExecContext(ctx,
			`DELETE FROM asset_withdrawals WHERE redemption_id = $1`, redemption.ID); err != nil {
			return fmt.Errorf("failed to clear asset withdrawals: %w", err)
		}

		insert := `
			INSERT INTO asset_withdrawals (redemption_id, position, asset, units, state, local, location)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		for i, w := range redemption.Assets {
			_, err := r.db.conn(ctx).ExecContext(ctx, insert,
				redemption.ID,
				i,
				string(w.Asset),
				w.Units.String(),
				string(w.State),
				w.Local,
				w.Location.String(),
			)
			if err != nil {
				return fmt.Errorf("failed to save asset withdrawal %s: %w", w.Asset, err)
			}
		}
		return nil
	})
}

// Delete removes a completed redemption; withdrawals go with it by cascade
func (r *redemptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.conn(ctx).ExecContext(ctx, `DELETE FROM pending_redemptions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete redemption: %w", err)
	}
	return nil
}

// List returns pending redemptions ordered by initiation height.
// If account is empty, returns all of them.
func (r *redemptionRepository) List(ctx context.Context, account domain.AccountID) ([]*domain.PendingRedemption, error) {
	query := `SELECT ` + redemptionColumns + ` FROM pending_redemptions`
	args := []any{}
	if account != "" {
		query += ` WHERE account = $1`
		args = append(args, string(account))
	}
	query += ` ORDER BY initiated, id`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}

	var redemptions []*domain.PendingRedemption
	for rows.Next() {
		redemption, err := scanRedemption(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		redemptions = append(redemptions, redemption)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating redemptions: %w", err)
	}
	rows.Close()

	// withdrawals are loaded after the cursor is closed so the same
	// transaction connection can be reused
	for _, redemption := range redemptions {
		if redemption.Assets, err = r.withdrawals(ctx, redemption.ID); err != nil {
			return nil, err
		}
	}
	return redemptions, nil
}
