package payout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/kipubank-backend/internal/domain"
)

// MockOutboxRepository is a mock implementation of PayoutOutboxRepository
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Pending(ctx context.Context, before time.Time, limit int) ([]domain.Payout, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Payout), args.Error(1)
}

func (m *MockOutboxRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

// MockPublisher is a mock implementation of Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishPayout(ctx context.Context, payout domain.Payout) error {
	return m.Called(ctx, payout).Error(0)
}

var now = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

func newPayout(amount int64) domain.Payout {
	return domain.Payout{
		ID:        uuid.New(),
		Asset:     domain.NativeAsset,
		Account:   domain.Address{0x03},
		Amount:    decimal.NewFromInt(amount),
		CreatedAt: now.Add(-time.Minute),
	}
}

func newTestRelay(repo domain.PayoutOutboxRepository, pub Publisher) *Relay {
	r := NewRelay(repo, pub, 5*time.Second, nil, nil)
	r.now = func() time.Time { return now }
	return r
}

func TestRelay_Dispatch(t *testing.T) {
	ctx := context.Background()
	first, second := newPayout(1), newPayout(2)

	tests := []struct {
		name       string
		setupMocks func(*MockOutboxRepository, *MockPublisher)
	}{
		{
			name: "Publishes And Marks Each",
			setupMocks: func(repo *MockOutboxRepository, pub *MockPublisher) {
				pub.On("PublishPayout", ctx, first).Return(nil).Once()
				pub.On("PublishPayout", ctx, second).Return(nil).Once()
				repo.On("MarkSent", ctx, first.ID).Return(nil).Once()
				repo.On("MarkSent", ctx, second.ID).Return(nil).Once()
			},
		},
		{
			name: "Failure Leaves Payout Pending",
			setupMocks: func(repo *MockOutboxRepository, pub *MockPublisher) {
				pub.On("PublishPayout", ctx, first).Return(errors.New("broker down")).Once()
				pub.On("PublishPayout", ctx, second).Return(nil).Once()
				repo.On("MarkSent", ctx, second.ID).Return(nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockOutboxRepository)
			pub := new(MockPublisher)
			tt.setupMocks(repo, pub)

			newTestRelay(repo, pub).Dispatch(ctx, []domain.Payout{first, second})

			pub.AssertExpectations(t)
			repo.AssertExpectations(t)
		})
	}
}

func TestRelay_Drain(t *testing.T) {
	ctx := context.Background()
	first, second := newPayout(1), newPayout(2)
	cutoff := now.Add(-5 * time.Second)

	tests := []struct {
		name       string
		setupMocks func(*MockOutboxRepository, *MockPublisher)
		wantSent   int
		wantErr    string
	}{
		{
			name: "Delivers All Pending",
			setupMocks: func(repo *MockOutboxRepository, pub *MockPublisher) {
				repo.On("Pending", ctx, cutoff, defaultBatch).Return([]domain.Payout{first, second}, nil).Once()
				pub.On("PublishPayout", ctx, mock.Anything).Return(nil).Twice()
				repo.On("MarkSent", ctx, mock.Anything).Return(nil).Twice()
			},
			wantSent: 2,
		},
		{
			name: "Stops At First Failure",
			setupMocks: func(repo *MockOutboxRepository, pub *MockPublisher) {
				repo.On("Pending", ctx, cutoff, defaultBatch).Return([]domain.Payout{first, second}, nil).Once()
				pub.On("PublishPayout", ctx, first).Return(errors.New("broker down")).Once()
			},
			wantSent: 0,
			wantErr:  "broker down",
		},
		{
			name: "Mark Failure",
			setupMocks: func(repo *MockOutboxRepository, pub *MockPublisher) {
				repo.On("Pending", ctx, cutoff, defaultBatch).Return([]domain.Payout{first}, nil).Once()
				pub.On("PublishPayout", ctx, first).Return(nil).Once()
				repo.On("MarkSent", ctx, first.ID).Return(errors.New("connection reset")).Once()
			},
			wantSent: 0,
			wantErr:  "published but not marked sent",
		},
		{
			name: "List Failure",
			setupMocks: func(repo *MockOutboxRepository, pub *MockPublisher) {
				repo.On("Pending", ctx, cutoff, defaultBatch).Return(nil, errors.New("connection refused")).Once()
			},
			wantErr: "failed to list pending payouts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockOutboxRepository)
			pub := new(MockPublisher)
			tt.setupMocks(repo, pub)

			sent, err := newTestRelay(repo, pub).Drain(ctx)

			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantSent, sent)
			pub.AssertExpectations(t)
			repo.AssertExpectations(t)
		})
	}
}

func TestRelay_DrainWithoutRepository(t *testing.T) {
	sent, err := newTestRelay(nil, new(MockPublisher)).Drain(context.Background())

	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestRelay_RunDrainsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := new(MockOutboxRepository)
	pending := newPayout(3)

	repo.On("Pending", mock.Anything, mock.Anything, defaultBatch).Return([]domain.Payout{pending}, nil).Once()
	repo.On("MarkSent", mock.Anything, pending.ID).Return(nil).Once().Run(func(mock.Arguments) {
		cancel()
	})
	pub := new(MockPublisher)
	pub.On("PublishPayout", mock.Anything, pending).Return(nil).Once()

	done := make(chan struct{})
	go func() {
		newTestRelay(repo, pub).Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after cancel")
	}
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}
