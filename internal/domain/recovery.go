package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecoveryRecord is the audit trail of a privileged balance rewrite
type RecoveryRecord struct {
	ID         uuid.UUID
	Asset      Address
	Account    Address
	OldBalance decimal.Decimal
	NewBalance decimal.Decimal
	Operator   Address
	RecordedAt time.Time
}

// Delta returns the signed change applied to the balance
func (r *RecoveryRecord) Delta() decimal.Decimal {
	return r.NewBalance.Sub(r.OldBalance)
}

// Validate ensures the record describes an actual, non-negative rewrite
func (r *RecoveryRecord) Validate() error {
	if r.ID == uuid.Nil {
		return errors.New("recovery record must have an ID")
	}
	if r.OldBalance.IsNegative() || r.NewBalance.IsNegative() {
		return errors.New("recovery record balances cannot be negative")
	}
	if r.OldBalance.Equal(r.NewBalance) {
		return errors.New("recovery record must change the balance")
	}
	return nil
}
