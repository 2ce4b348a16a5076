package kafka

import (
	"context"
	"fmt"

	"github.com/simaogato/kipubank-backend/internal/domain"
)

// PayoutPublisher hands committed payouts to the payout rail through a Kafka topic.
// Messages are keyed by account so one account's payouts stay ordered; the
// payout ID travels in the event for consumers to drop redeliveries.
type PayoutPublisher struct {
	publisher Publisher
	topic     string
}

func NewPayoutPublisher(publisher Publisher, topic string) *PayoutPublisher {
	return &PayoutPublisher{publisher: publisher, topic: topic}
}

func (p *PayoutPublisher) PublishPayout(ctx context.Context, payout domain.Payout) error {
	envelope, err := NewEnvelope(EventTypeWithdrawalRequested, 1)
	if err != nil {
		return err
	}
	event := WithdrawalRequested{
		Envelope:    envelope,
		PayoutID:    payout.ID.String(),
		Asset:       payout.Asset.String(),
		Account:     payout.Account.String(),
		Amount:      payout.Amount.String(),
		RequestedAt: payout.CreatedAt,
	}
	if _, _, err := p.publisher.PublishJSON(ctx, p.topic, payout.Account.String(), event); err != nil {
		return fmt.Errorf("publish payout %s: %w", payout.ID, err)
	}
	return nil
}
