package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/kipubank-backend/internal/domain"
)

// payoutOutboxRepository implements domain.PayoutOutboxRepository
type payoutOutboxRepository struct {
	db *DB
}

// NewPayoutOutboxRepository creates a new payout outbox repository
func NewPayoutOutboxRepository(db *DB) domain.PayoutOutboxRepository {
	return &payoutOutboxRepository{db: db}
}

// Pending lists undelivered payouts created before the cutoff, oldest first
func (r *payoutOutboxRepository) Pending(ctx context.Context, before time.Time, limit int) ([]domain.Payout, error) {
	query := `
		SELECT id, asset, account, amount, created_at
		FROM payout_outbox
		WHERE sent_at IS NULL AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending payouts: %w", err)
	}
	defer rows.Close()

	var payouts []domain.Payout
	for rows.Next() {
		var payout domain.Payout
		var assetStr, accountStr, amountStr string

		if err := rows.Scan(&payout.ID, &assetStr, &accountStr, &amountStr, &payout.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		if payout.Asset, payout.Account, err = parseKey(assetStr, accountStr); err != nil {
			return nil, err
		}
		if payout.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse payout amount: %w", err)
		}
		payouts = append(payouts, payout)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payouts: %w", err)
	}
	return payouts, nil
}

// MarkSent stamps the payout as delivered. Marking it twice keeps the first stamp.
func (r *payoutOutboxRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE payout_outbox SET sent_at = COALESCE(sent_at, now()) WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark payout sent: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("payout %s not found", id)
	}
	return nil
}
