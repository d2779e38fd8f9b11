package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// priceRepository implements domain.PriceRepository
type priceRepository struct {
	db *DB
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *DB) domain.PriceRepository {
	return &priceRepository{db: db}
}

// IsTracked reports whether prices are accepted for the asset
func (r *priceRepository) IsTracked(ctx context.Context, asset domain.AssetID) (bool, error) {
	var exists bool
	err := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tracked_assets WHERE asset = $1)`, string(asset)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check tracked asset: %w", err)
	}
	return exists, nil
}

// Track marks the asset as tracked
func (r *priceRepository) Track(ctx context.Context, asset domain.AssetID) error {
	_, err := r.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO tracked_assets (asset) VALUES ($1) ON CONFLICT DO NOTHING`, string(asset))
	if err != nil {
		return fmt.Errorf("failed to track asset: %w", err)
	}
	return nil
}

// Untrack removes the asset; its observation is removed by the foreign key cascade
func (r *priceRepository) Untrack(ctx context.Context, asset domain.AssetID) error {
	_, err := r.db.conn(ctx).ExecContext(ctx, `DELETE FROM tracked_assets WHERE asset = $1`, string(asset))
	if err != nil {
		return fmt.Errorf("failed to untrack asset: %w", err)
	}
	return nil
}

// ListTracked returns all tracked assets ordered by id
func (r *priceRepository) ListTracked(ctx context.Context) ([]domain.AssetID, error) {
	rows, err := r.db.conn(ctx).QueryContext(ctx, `SELECT asset FROM tracked_assets ORDER BY asset`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.AssetID
	for rows.Next() {
		var asset string
		if err := rows.Scan(&asset); err != nil {
			return nil, fmt.Errorf("failed to scan tracked asset: %w", err)
		}
		assets = append(assets, domain.AssetID(asset))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracked assets: %w", err)
	}
	return assets, nil
}

// GetLatest retrieves the stored observation for an asset
func (r *priceRepository) GetLatest(ctx context.Context, asset domain.AssetID) (*domain.TimestampedValue, error) {
	query := `
		SELECT value::TEXT, moment::TEXT
		FROM price_observations
		WHERE asset = $1
	`

	var valueStr, momentStr string
	err := r.db.conn(ctx).QueryRowContext(ctx, query, string(asset)).Scan(&valueStr, &momentStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get price observation: %w", err)
	}

	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price value: %w", err)
	}
	moment, err := parseBalance("moment", momentStr)
	if err != nil {
		return nil, err
	}
	return &domain.TimestampedValue{Value: value, Moment: uint64(moment)}, nil
}

// SaveLatest replaces the stored observation for an asset
func (r *priceRepository) SaveLatest(ctx context.Context, asset domain.AssetID, value domain.TimestampedValue) error {
	query := `
		INSERT INTO price_observations (asset, value, moment)
		VALUES ($1, $2, $3)
		ON CONFLICT (asset) DO UPDATE SET value = EXCLUDED.value, moment = EXCLUDED.moment
	`
	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		string(asset),
		value.Value.String(),
		domain.Balance(value.Moment).String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save price observation: %w", err)
	}
	return nil
}
