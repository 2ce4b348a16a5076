package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/simaogato/kipubank-backend/internal/domain"
)

// ledgerRepository implements domain.LedgerRepository
type ledgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *DB) domain.LedgerRepository {
	return &ledgerRepository{db: db}
}

// Load reads balances, totals and tracked assets
func (r *ledgerRepository) Load(ctx context.Context) (*domain.LedgerSnapshot, error) {
	snapshot := &domain.LedgerSnapshot{}

	rows, err := r.db.QueryContext(ctx, `SELECT asset, account, amount FROM ledger_balances`)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var assetStr, accountStr, amountStr string
		if err := rows.Scan(&assetStr, &accountStr, &amountStr); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		asset, account, err := parseKey(assetStr, accountStr)
		if err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance amount: %w", err)
		}
		snapshot.Balances = append(snapshot.Balances, domain.BalanceEntry{Asset: asset, Account: account, Amount: amount})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balances: %w", err)
	}

	totals, err := r.loadTotals(ctx)
	if err != nil {
		return nil, err
	}
	snapshot.Totals = totals

	tracked, err := r.loadTracked(ctx)
	if err != nil {
		return nil, err
	}
	snapshot.Tracked = tracked

	return snapshot, nil
}

func (r *ledgerRepository) loadTotals(ctx context.Context) ([]domain.AssetTotal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT asset, amount FROM ledger_totals`)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	var totals []domain.AssetTotal
	for rows.Next() {
		var assetStr, amountStr string
		if err := rows.Scan(&assetStr, &amountStr); err != nil {
			return nil, fmt.Errorf("failed to scan total: %w", err)
		}
		asset, err := domain.ParseAddress(assetStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse total asset: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse total amount: %w", err)
		}
		totals = append(totals, domain.AssetTotal{Asset: asset, Amount: amount})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate totals: %w", err)
	}
	return totals, nil
}

func (r *ledgerRepository) loadTracked(ctx context.Context) ([]domain.Address, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT asset FROM tracked_assets ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked assets: %w", err)
	}
	defer rows.Close()

	var tracked []domain.Address
	for rows.Next() {
		var assetStr string
		if err := rows.Scan(&assetStr); err != nil {
			return nil, fmt.Errorf("failed to scan tracked asset: %w", err)
		}
		asset, err := domain.ParseAddress(assetStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse tracked asset: %w", err)
		}
		tracked = append(tracked, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tracked assets: %w", err)
	}
	return tracked, nil
}

// Begin starts a database transaction for one ledger unit of work
func (r *ledgerRepository) Begin(ctx context.Context) (domain.LedgerTx, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &ledgerTx{tx: tx}, nil
}

// ledgerTx implements domain.LedgerTx
type ledgerTx struct {
	tx *sql.Tx
}

// Apply upserts absolute balance and total rows, appends tracked assets and
// queues payouts in the outbox
func (t *ledgerTx) Apply(ctx context.Context, changes domain.LedgerChanges) error {
	upsertBalance := `
		INSERT INTO ledger_balances (asset, account, amount, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (asset, account) DO UPDATE SET amount = EXCLUDED.amount, updated_at = now()
	`
	for _, entry := range changes.Balances {
		_, err := t.tx.ExecContext(ctx, upsertBalance,
			entry.Asset.String(),
			entry.Account.String(),
			entry.Amount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert balance: %w", err)
		}
	}

	upsertTotal := `
		INSERT INTO ledger_totals (asset, amount, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (asset) DO UPDATE SET amount = EXCLUDED.amount, updated_at = now()
	`
	for _, total := range changes.Totals {
		if _, err := t.tx.ExecContext(ctx, upsertTotal, total.Asset.String(), total.Amount.String()); err != nil {
			return fmt.Errorf("failed to upsert total: %w", err)
		}
	}

	for _, asset := range changes.Tracked {
		if err := trackAsset(ctx, t.tx, asset); err != nil {
			return err
		}
	}

	insertPayout := `
		INSERT INTO payout_outbox (id, asset, account, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, payout := range changes.Payouts {
		_, err := t.tx.ExecContext(ctx, insertPayout,
			payout.ID,
			payout.Asset.String(),
			payout.Account.String(),
			payout.Amount.String(),
			payout.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert payout: %w", err)
		}
	}
	return nil
}

func (t *ledgerTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *ledgerTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func trackAsset(ctx context.Context, db execer, asset domain.Address) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO tracked_assets (asset) VALUES ($1) ON CONFLICT (asset) DO NOTHING`,
		asset.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to track asset: %w", err)
	}
	return nil
}

func parseKey(assetStr, accountStr string) (domain.Address, domain.Address, error) {
	asset, err := domain.ParseAddress(assetStr)
	if err != nil {
		return domain.Address{}, domain.Address{}, fmt.Errorf("failed to parse balance asset: %w", err)
	}
	account, err := domain.ParseAddress(accountStr)
	if err != nil {
		return domain.Address{}, domain.Address{}, fmt.Errorf("failed to parse balance account: %w", err)
	}
	return asset, account, nil
}
