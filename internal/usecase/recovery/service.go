package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/kipubank-backend/internal/domain"
	"github.com/simaogato/kipubank-backend/internal/metrics"
	"github.com/simaogato/kipubank-backend/internal/usecase/ledger"
	"github.com/simaogato/kipubank-backend/internal/usecase/oracle"
)

const maxHistory = 100

// CapChecker validates the global cap against holdings that include a pending change
type CapChecker interface {
	CheckCap(ctx context.Context, holdings oracle.Holdings) error
}

// RecoverBalanceInput represents the input for a balance recovery
type RecoverBalanceInput struct {
	Caller     domain.Address
	Asset      domain.Address
	Account    domain.Address
	NewBalance decimal.Decimal
}

// RecoveryService rewrites recorded balances to correct errors
type RecoveryService struct {
	Ledger     *ledger.Ledger
	Limiter    CapChecker
	Access     domain.AccessController
	RecordRepo domain.RecoveryRecordRepository
	Publisher  domain.EventPublisher

	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRecoveryService creates a new RecoveryService instance.
// recordRepo and publisher are optional.
func NewRecoveryService(
	l *ledger.Ledger,
	limiter CapChecker,
	access domain.AccessController,
	recordRepo domain.RecoveryRecordRepository,
	publisher domain.EventPublisher,
	logger *slog.Logger,
	m *metrics.Metrics,
) *RecoveryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoveryService{
		Ledger:     l,
		Limiter:    limiter,
		Access:     access,
		RecordRepo: recordRepo,
		Publisher:  publisher,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// RecoverBalance sets account's balance of asset to input.NewBalance.
// Logic:
//  1. Caller must hold the recovery permission
//  2. Rewrite the balance and move the asset total by the signed delta
//     (no per-transaction limit applies)
//  3. Re-run the global cap check on the resulting state; a violation undoes the rewrite
//  4. Store the audit record before the unit commits, so no rewrite goes unrecorded, then publish it
//
// Returns (nil, nil) when the balance already equals NewBalance.
func (s *RecoveryService) RecoverBalance(ctx context.Context, input RecoverBalanceInput) (*domain.RecoveryRecord, error) {
	record, err := s.recoverBalance(ctx, input)
	s.metrics.IncRecovery(metrics.StatusOf(err))
	if err != nil {
		s.logger.Warn("recovery rejected",
			"asset", input.Asset.String(),
			"account", input.Account.String(),
			"new_balance", input.NewBalance.String(),
			"caller", input.Caller.String(),
			"error", err,
		)
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	s.logger.Info("balance recovered",
		"record_id", record.ID.String(),
		"asset", record.Asset.String(),
		"account", record.Account.String(),
		"old_balance", record.OldBalance.String(),
		"new_balance", record.NewBalance.String(),
		"operator", record.Operator.String(),
	)

	if s.Publisher != nil {
		if err := s.Publisher.PublishRecovery(ctx, record); err != nil {
			// The rewrite is committed and the record stored; the event is best effort.
			s.logger.Error("recovery event publish failed", "record_id", record.ID.String(), "error", err)
		}
	}
	return record, nil
}

func (s *RecoveryService) recoverBalance(ctx context.Context, input RecoverBalanceInput) (*domain.RecoveryRecord, error) {
	if !s.Access.HasRecoveryPermission(ctx, input.Caller) {
		return nil, fmt.Errorf("%w: %s cannot recover balances", domain.ErrUnauthorized, input.Caller)
	}
	if err := domain.ValidateBalance(input.NewBalance); err != nil {
		return nil, err
	}

	var record *domain.RecoveryRecord
	err := s.Ledger.Execute(ctx, func(ctx context.Context, u *ledger.Unit) error {
		old, err := u.SetBalance(input.Asset, input.Account, input.NewBalance)
		if err != nil {
			return err
		}
		if old.Equal(input.NewBalance) {
			return nil
		}

		if err := s.Limiter.CheckCap(ctx, u); err != nil {
			return err
		}

		record = &domain.RecoveryRecord{
			ID:         uuid.New(),
			Asset:      input.Asset,
			Account:    input.Account,
			OldBalance: old,
			NewBalance: input.NewBalance,
			Operator:   input.Caller,
			RecordedAt: s.now().UTC(),
		}
		if err := record.Validate(); err != nil {
			return err
		}
		if s.RecordRepo != nil {
			if err := s.RecordRepo.Add(ctx, record); err != nil {
				return fmt.Errorf("failed to store recovery record: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// History returns the most recent recovery records of account, newest first.
// Readable by recovery operators only.
func (s *RecoveryService) History(ctx context.Context, caller, account domain.Address, limit int) ([]*domain.RecoveryRecord, error) {
	if !s.Access.HasRecoveryPermission(ctx, caller) {
		return nil, fmt.Errorf("%w: %s cannot read recovery history", domain.ErrUnauthorized, caller)
	}
	if limit <= 0 || limit > maxHistory {
		limit = maxHistory
	}
	if s.RecordRepo == nil {
		return nil, nil
	}
	records, err := s.RecordRepo.ListByAccount(ctx, account, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recovery records: %w", err)
	}
	return records, nil
}
