package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// saftRepository implements domain.SaftRepository
type saftRepository struct {
	db *DB
}

// NewSaftRepository creates a new SAFT record repository
func NewSaftRepository(db *DB) domain.SaftRepository {
	return &saftRepository{db: db}
}

// NextID returns the next free record id for the asset and advances the counter
func (r *saftRepository) NextID(ctx context.Context, asset domain.AssetID) (uint32, error) {
	id, err := r.db.nextCounter(ctx, "saft:"+string(asset))
	if err != nil {
		return 0, err
	}
	if id > uint64(^uint32(0)) {
		return 0, fmt.Errorf("saft ids exhausted for %s: %w", asset, domain.ErrOverflow)
	}
	return uint32(id), nil
}

func scanSaft(row rowScanner) (*domain.SaftRecord, error) {
	var rec domain.SaftRecord
	var asset, navStr, unitsStr string
	var id int64
	if err := row.Scan(&asset, &id, &navStr, &unitsStr); err != nil {
		return nil, err
	}

	var err error
	rec.Asset = domain.AssetID(asset)
	rec.ID = uint32(id)
	if rec.NAV, err = parseBalance("nav", navStr); err != nil {
		return nil, err
	}
	if rec.Units, err = parseBalance("units", unitsStr); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Get retrieves a single record
func (r *saftRepository) Get(ctx context.Context, asset domain.AssetID, id uint32) (*domain.SaftRecord, error) {
	row := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT asset, id, nav::TEXT, units::TEXT FROM safts WHERE asset = $1 AND id = $2`,
		string(asset), int64(id))
	rec, err := scanSaft(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get saft: %w", err)
	}
	return rec, nil
}

// Save creates or replaces a record
func (r *saftRepository) Save(ctx context.Context, record *domain.SaftRecord) error {
	query := `
		INSERT INTO safts (asset, id, nav, units)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (asset, id) DO UPDATE SET nav = EXCLUDED.nav, units = EXCLUDED.units
	`
	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		string(record.Asset),
		int64(record.ID),
		record.NAV.String(),
		record.Units.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save saft: %w", err)
	}
	return nil
}

// Delete removes a single record
func (r *saftRepository) Delete(ctx context.Context, asset domain.AssetID, id uint32) error {
	_, err := r.db.conn(ctx).ExecContext(ctx, `DELETE FROM safts WHERE asset = $1 AND id = $2`, string(asset), int64(id))
	if err != nil {
		return fmt.Errorf("failed to delete saft: %w", err)
	}
	return nil
}

// List returns the records of an asset ordered by id
func (r *saftRepository) List(ctx context.Context, asset domain.AssetID) ([]*domain.SaftRecord, error) {
	rows, err := r.db.conn(ctx).QueryContext(ctx,
		`SELECT asset, id, nav::TEXT, units::TEXT FROM safts WHERE asset = $1 ORDER BY id`, string(asset))
	if err != nil {
		return nil, fmt.Errorf("failed to list safts: %w", err)
	}
	defer rows.Close()

	var records []*domain.SaftRecord
	for rows.Next() {
		rec, err := scanSaft(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan saft: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating safts: %w", err)
	}
	return records, nil
}

// DeleteAll removes every record of an asset
func (r *saftRepository) DeleteAll(ctx context.Context, asset domain.AssetID) error {
	if _, err := r.db.conn(ctx).ExecContext(ctx, `DELETE FROM safts WHERE asset = $1`, string(asset)); err != nil {
		return fmt.Errorf("failed to delete safts: %w", err)
	}
	return nil
}
