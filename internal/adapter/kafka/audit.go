package kafka

import (
	"context"

	"github.com/simaogato/kipubank-backend/internal/domain"
)

// AuditPublisher publishes recovery records
type AuditPublisher struct {
	publisher Publisher
	topic     string
}

func NewAuditPublisher(publisher Publisher, topic string) *AuditPublisher {
	return &AuditPublisher{publisher: publisher, topic: topic}
}

func (a *AuditPublisher) PublishRecovery(ctx context.Context, record *domain.RecoveryRecord) error {
	envelope, err := NewEnvelope(EventTypeBalanceRecovered, 1)
	if err != nil {
		return err
	}
	event := BalanceRecovered{
		Envelope:   envelope,
		RecordID:   record.ID.String(),
		Asset:      record.Asset.String(),
		Account:    record.Account.String(),
		OldBalance: record.OldBalance.String(),
		NewBalance: record.NewBalance.String(),
		Operator:   record.Operator.String(),
		RecordedAt: record.RecordedAt,
	}
	_, _, err = a.publisher.PublishJSON(ctx, a.topic, record.Account.String(), event)
	return err
}
