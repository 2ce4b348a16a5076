//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/kipubank-backend/internal/domain"
)

var (
	alice = domain.Address{0x03}
	bob   = domain.Address{0x04}
	token = domain.Address{0x0a}
)

// openTestDB connects to the database named by DB_CONN_STR (or the DB_* variables)
// and empties every custody table.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	db, err := NewDB(getDBConnectionString())
	require.NoError(t, err, "Failed to connect to database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.EnsureSchema(ctx))
	_, err = db.ExecContext(ctx, `TRUNCATE ledger_balances, ledger_totals, tracked_assets, price_bindings, recovery_records, payout_outbox`)
	require.NoError(t, err)
	return db
}

func TestLedgerRepository_ApplyAndLoad(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(openTestDB(t))

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Apply(ctx, domain.LedgerChanges{
		Balances: []domain.BalanceEntry{
			{Asset: domain.NativeAsset, Account: alice, Amount: decimal.RequireFromString("1000000000000000000")},
			{Asset: token, Account: bob, Amount: decimal.NewFromInt(400)},
		},
		Totals: []domain.AssetTotal{
			{Asset: domain.NativeAsset, Amount: decimal.RequireFromString("1000000000000000000")},
			{Asset: token, Amount: decimal.NewFromInt(400)},
		},
		Tracked: []domain.Address{domain.NativeAsset, token},
	}))
	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback())

	snapshot, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Address{domain.NativeAsset, token}, snapshot.Tracked)
	require.Len(t, snapshot.Balances, 2)
	require.Len(t, snapshot.Totals, 2)

	// Values are absolute: applying again overwrites rather than adds
	tx, err = repo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Apply(ctx, domain.LedgerChanges{
		Balances: []domain.BalanceEntry{{Asset: token, Account: bob, Amount: decimal.NewFromInt(40)}},
		Totals:   []domain.AssetTotal{{Asset: token, Amount: decimal.NewFromInt(40)}},
		Tracked:  []domain.Address{token},
	}))
	require.NoError(t, tx.Commit())

	snapshot, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Address{domain.NativeAsset, token}, snapshot.Tracked)
	for _, total := range snapshot.Totals {
		if total.Asset == token {
			assert.Equal(t, "40", total.Amount.String())
		}
	}
}

func TestLedgerRepository_Rollback(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(openTestDB(t))

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Apply(ctx, domain.LedgerChanges{
		Balances: []domain.BalanceEntry{{Asset: token, Account: alice, Amount: decimal.NewFromInt(5)}},
		Totals:   []domain.AssetTotal{{Asset: token, Amount: decimal.NewFromInt(5)}},
		Tracked:  []domain.Address{token},
	}))
	require.NoError(t, tx.Rollback())

	snapshot, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Balances)
	assert.Empty(t, snapshot.Totals)
	assert.Empty(t, snapshot.Tracked)
}

func TestPayoutOutboxRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	ledgerRepo := NewLedgerRepository(db)
	outbox := NewPayoutOutboxRepository(db)
	created := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	committed := domain.Payout{ID: uuid.New(), Asset: token, Account: alice, Amount: decimal.NewFromInt(40), CreatedAt: created}
	tx, err := ledgerRepo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Apply(ctx, domain.LedgerChanges{
		Balances: []domain.BalanceEntry{{Asset: token, Account: alice, Amount: decimal.NewFromInt(60)}},
		Payouts:  []domain.Payout{committed},
	}))
	require.NoError(t, tx.Commit())

	discarded := domain.Payout{ID: uuid.New(), Asset: token, Account: bob, Amount: decimal.NewFromInt(7), CreatedAt: created}
	tx, err = ledgerRepo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Apply(ctx, domain.LedgerChanges{Payouts: []domain.Payout{discarded}}))
	require.NoError(t, tx.Rollback())

	pending, err := outbox.Pending(ctx, created.Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, committed.ID, pending[0].ID)
	assert.Equal(t, alice, pending[0].Account)
	assert.Equal(t, "40", pending[0].Amount.String())

	// Younger than the cutoff
	pending, err = outbox.Pending(ctx, created, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, outbox.MarkSent(ctx, committed.ID))
	require.NoError(t, outbox.MarkSent(ctx, committed.ID))
	pending, err = outbox.Pending(ctx, created.Add(time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Error(t, outbox.MarkSent(ctx, discarded.ID))
}

func TestPriceBindingRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewPriceBindingRepository(db)

	_, err := repo.GetByAsset(ctx, token)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.Save(ctx, &domain.PriceBindingRecord{Asset: token, Ref: "static:100000000", Decimals: 6, UpdatedAt: now}))
	require.NoError(t, repo.Save(ctx, &domain.PriceBindingRecord{Asset: token, Ref: "static:99990000", Decimals: 6, UpdatedAt: now}))

	got, err := repo.GetByAsset(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "static:99990000", got.Ref)
	assert.Equal(t, int32(6), got.Decimals)
	assert.True(t, now.Equal(got.UpdatedAt))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	snapshot, err := NewLedgerRepository(db).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Address{token}, snapshot.Tracked)
}

func TestRecoveryRecordRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRecoveryRecordRepository(openTestDB(t))

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := range 3 {
		require.NoError(t, repo.Add(ctx, &domain.RecoveryRecord{
			ID:         uuid.New(),
			Asset:      token,
			Account:    alice,
			OldBalance: decimal.NewFromInt(int64(100 + i)),
			NewBalance: decimal.NewFromInt(int64(40 + i)),
			Operator:   bob,
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	records, err := repo.ListByAccount(ctx, alice, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "42", records[0].NewBalance.String())
	assert.Equal(t, "41", records[1].NewBalance.String())
	assert.Equal(t, bob, records[0].Operator)

	records, err = repo.ListByAccount(ctx, bob, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func getDBConnectionString() string {
	if connStr := os.Getenv("DB_CONN_STR"); connStr != "" {
		return connStr
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		envOr("DB_HOST", "localhost"),
		envOr("DB_PORT", "5432"),
		envOr("DB_USER", "postgres"),
		envOr("DB_PASSWORD", "postgres"),
		envOr("DB_NAME", "kipubank_test"),
	)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
