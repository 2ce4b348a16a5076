package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/simaogato/kipubank-backend/internal/domain"
)

// recoveryRecordRepository implements domain.RecoveryRecordRepository
type recoveryRecordRepository struct {
	db *DB
}

// NewRecoveryRecordRepository creates a new recovery record repository
func NewRecoveryRecordRepository(db *DB) domain.RecoveryRecordRepository {
	return &recoveryRecordRepository{db: db}
}

// Add stores a new recovery record
func (r *recoveryRecordRepository) Add(ctx context.Context, record *domain.RecoveryRecord) error {
	query := `
		INSERT INTO recovery_records (id, asset, account, old_balance, new_balance, operator, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.Asset.String(),
		record.Account.String(),
		record.OldBalance.String(),
		record.NewBalance.String(),
		record.Operator.String(),
		record.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert recovery record: %w", err)
	}
	return nil
}

// ListByAccount retrieves the most recent records of an account, newest first
func (r *recoveryRecordRepository) ListByAccount(ctx context.Context, account domain.Address, limit int) ([]*domain.RecoveryRecord, error) {
	query := `
		SELECT id, asset, account, old_balance, new_balance, operator, recorded_at
		FROM recovery_records
		WHERE account = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, account.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recovery records: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.RecoveryRecord, 0)
	for rows.Next() {
		var record domain.RecoveryRecord
		var assetStr, accountStr, oldStr, newStr, operatorStr string

		if err := rows.Scan(&record.ID, &assetStr, &accountStr, &oldStr, &newStr, &operatorStr, &record.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recovery record: %w", err)
		}
		if record.Asset, record.Account, err = parseKey(assetStr, accountStr); err != nil {
			return nil, err
		}
		if record.Operator, err = domain.ParseAddress(operatorStr); err != nil {
			return nil, fmt.Errorf("failed to parse operator: %w", err)
		}
		if record.OldBalance, err = decimal.NewFromString(oldStr); err != nil {
			return nil, fmt.Errorf("failed to parse old_balance: %w", err)
		}
		if record.NewBalance, err = decimal.NewFromString(newStr); err != nil {
			return nil, fmt.Errorf("failed to parse new_balance: %w", err)
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recovery records: %w", err)
	}
	return records, nil
}
