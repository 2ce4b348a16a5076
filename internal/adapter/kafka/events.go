package kafka

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeWithdrawalRequested = "custody.withdrawal.requested"
	EventTypeBalanceRecovered    = "custody.balance.recovered"
)

type Envelope struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	EventVersion int       `json:"event_version"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewEnvelope(eventType string, version int) (Envelope, error) {
	if eventType == "" {
		return Envelope{}, fmt.Errorf("event_type is required")
	}
	if version <= 0 {
		return Envelope{}, fmt.Errorf("event_version must be positive")
	}

	return Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: version,
		Timestamp:    time.Now().UTC(),
	}, nil
}

// WithdrawalRequested instructs the payout rail to deliver value to an account
type WithdrawalRequested struct {
	Envelope
	PayoutID    string    `json:"payout_id"`
	Asset       string    `json:"asset"`
	Account     string    `json:"account"`
	Amount      string    `json:"amount"`
	RequestedAt time.Time `json:"requested_at"`
}

// BalanceRecovered is the audit event of a privileged balance rewrite
type BalanceRecovered struct {
	Envelope
	RecordID   string    `json:"record_id"`
	Asset      string    `json:"asset"`
	Account    string    `json:"account"`
	OldBalance string    `json:"old_balance"`
	NewBalance string    `json:"new_balance"`
	Operator   string    `json:"operator"`
	RecordedAt time.Time `json:"recorded_at"`
}
