package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/simaogato/kipubank-backend/internal/domain"
)

// priceBindingRepository implements domain.PriceBindingRepository
type priceBindingRepository struct {
	db *DB
}

// NewPriceBindingRepository creates a new price binding repository
func NewPriceBindingRepository(db *DB) domain.PriceBindingRepository {
	return &priceBindingRepository{db: db}
}

// Save creates or replaces a binding and tracks its asset in one transaction
func (r *priceBindingRepository) Save(ctx context.Context, record *domain.PriceBindingRecord) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	query := `
		INSERT INTO price_bindings (asset, source_ref, scaled, decimals, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (asset) DO UPDATE
		SET source_ref = EXCLUDED.source_ref,
		    scaled = EXCLUDED.scaled,
		    decimals = EXCLUDED.decimals,
		    updated_at = EXCLUDED.updated_at
	`
	_, err = dbTx.ExecContext(ctx, query,
		record.Asset.String(),
		record.Ref,
		record.Scaled,
		record.Decimals,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save price binding: %w", err)
	}

	if err := trackAsset(ctx, dbTx, record.Asset); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetByAsset retrieves the binding of an asset
func (r *priceBindingRepository) GetByAsset(ctx context.Context, asset domain.Address) (*domain.PriceBindingRecord, error) {
	query := `
		SELECT asset, source_ref, scaled, decimals, updated_at
		FROM price_bindings
		WHERE asset = $1
	`

	record, err := scanBinding(r.db.QueryRowContext(ctx, query, asset.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("price binding for %s: %w", asset, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get price binding: %w", err)
	}
	return record, nil
}

// List retrieves all bindings
func (r *priceBindingRepository) List(ctx context.Context) ([]*domain.PriceBindingRecord, error) {
	query := `
		SELECT asset, source_ref, scaled, decimals, updated_at
		FROM price_bindings
		ORDER BY asset
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list price bindings: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.PriceBindingRecord, 0)
	for rows.Next() {
		record, err := scanBinding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price binding: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price bindings: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBinding(row rowScanner) (*domain.PriceBindingRecord, error) {
	var record domain.PriceBindingRecord
	var assetStr string

	if err := row.Scan(&assetStr, &record.Ref, &record.Scaled, &record.Decimals, &record.UpdatedAt); err != nil {
		return nil, err
	}
	asset, err := domain.ParseAddress(assetStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse binding asset: %w", err)
	}
	record.Asset = asset
	return &record, nil
}
