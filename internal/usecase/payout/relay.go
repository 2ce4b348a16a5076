package payout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/simaogato/kipubank-backend/internal/domain"
	"github.com/simaogato/kipubank-backend/internal/metrics"
)

const defaultBatch = 100

// Publisher delivers one payout to the payout rail
type Publisher interface {
	PublishPayout(ctx context.Context, payout domain.Payout) error
}

// Relay moves committed payouts from the outbox to the payout rail.
// Dispatch delivers the payouts of a withdrawal right after its commit; Run
// retries whatever is still pending, so delivery is at least once.
type Relay struct {
	Repo      domain.PayoutOutboxRepository
	Publisher Publisher

	// Payouts younger than Interval are left to Dispatch
	Interval time.Duration
	Batch    int

	mu      sync.Mutex
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRelay creates a Relay. repo may be nil, in which case payouts are
// published once and never retried.
func NewRelay(repo domain.PayoutOutboxRepository, publisher Publisher, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		Repo:      repo,
		Publisher: publisher,
		Interval:  interval,
		Batch:     defaultBatch,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// Dispatch publishes freshly committed payouts.
// A payout that fails stays pending in the outbox for Run to pick up.
func (r *Relay) Dispatch(ctx context.Context, payouts []domain.Payout) {
	for _, payout := range payouts {
		if err := r.deliver(ctx, payout); err != nil {
			r.logger.Warn("payout left pending",
				"payout_id", payout.ID.String(),
				"account", payout.Account.String(),
				"error", err,
			)
		}
	}
}

// Drain delivers pending payouts oldest first and returns how many were sent.
// It stops at the first failure so one account's payouts are not reordered.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	if r.Repo == nil {
		return 0, nil
	}
	pending, err := r.Repo.Pending(ctx, r.now().Add(-r.Interval), r.Batch)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending payouts: %w", err)
	}

	sent := 0
	for _, payout := range pending {
		if err := r.deliver(ctx, payout); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// Run drains the outbox immediately and then every Interval until ctx is done
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		if sent, err := r.Drain(ctx); err != nil {
			r.logger.Error("payout relay failed", "sent", sent, "error", err)
		} else if sent > 0 {
			r.logger.Info("pending payouts delivered", "sent", sent)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Relay) deliver(ctx context.Context, payout domain.Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.Publisher.PublishPayout(ctx, payout); err != nil {
		r.metrics.IncPayout("publish_failed")
		return err
	}
	if r.Repo != nil {
		if err := r.Repo.MarkSent(ctx, payout.ID); err != nil {
			r.metrics.IncPayout("mark_failed")
			return fmt.Errorf("payout %s published but not marked sent: %w", payout.ID, err)
		}
	}
	r.metrics.IncPayout("sent")
	return nil
}
