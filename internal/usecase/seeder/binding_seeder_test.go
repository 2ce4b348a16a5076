package seeder

import (
	"context"
	"errors"
	"testing"

	"github.com/simaogato/kipubank-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockBindingRepository is a mock implementation of PriceBindingRepository
type MockBindingRepository struct {
	mock.Mock
}

func (m *MockBindingRepository) Save(ctx context.Context, record *domain.PriceBindingRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockBindingRepository) GetByAsset(ctx context.Context, asset domain.Address) (*domain.PriceBindingRecord, error) {
	args := m.Called(ctx, asset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PriceBindingRecord), args.Error(1)
}

func (m *MockBindingRepository) List(ctx context.Context) ([]*domain.PriceBindingRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PriceBindingRecord), args.Error(1)
}

// MockBindingSetter is a mock implementation of BindingSetter
type MockBindingSetter struct {
	mock.Mock
}

func (m *MockBindingSetter) SetBinding(ctx context.Context, caller, asset domain.Address, ref string, scaled bool) (*domain.PriceBinding, error) {
	args := m.Called(ctx, caller, asset, ref, scaled)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PriceBinding), args.Error(1)
}

func (m *MockBindingSetter) Binding(asset domain.Address) (domain.PriceBinding, bool) {
	args := m.Called(asset)
	return args.Get(0).(domain.PriceBinding), args.Bool(1)
}

var (
	operator = domain.Address{0xa1}
	tokenA   = domain.Address{0x0a}
)

func seedBindings() []SeedBinding {
	return []SeedBinding{
		{Asset: domain.NativeAsset, Ref: "static:200000000000"},
		{Asset: tokenA, Ref: "https://feed.example/a#price", Scaled: true},
	}
}

func TestBindingSeeder_Seed_AllMissing(t *testing.T) {
	ctx := context.Background()
	repo := new(MockBindingRepository)
	setter := new(MockBindingSetter)
	seeder := NewBindingSeeder(repo, setter, operator, nil)

	repo.On("GetByAsset", ctx, domain.NativeAsset).Return(nil, domain.ErrNotFound)
	repo.On("GetByAsset", ctx, tokenA).Return(nil, domain.ErrNotFound)
	setter.On("SetBinding", ctx, operator, domain.NativeAsset, "static:200000000000", false).
		Return(&domain.PriceBinding{Asset: domain.NativeAsset}, nil)
	setter.On("SetBinding", ctx, operator, tokenA, "https://feed.example/a#price", true).
		Return(&domain.PriceBinding{Asset: tokenA}, nil)

	n, err := seeder.Seed(ctx, seedBindings())

	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	repo.AssertExpectations(t)
	setter.AssertExpectations(t)
}

func TestBindingSeeder_Seed_ExistingBindingKept(t *testing.T) {
	ctx := context.Background()
	repo := new(MockBindingRepository)
	setter := new(MockBindingSetter)
	seeder := NewBindingSeeder(repo, setter, operator, nil)

	repo.On("GetByAsset", ctx, domain.NativeAsset).Return(&domain.PriceBindingRecord{Asset: domain.NativeAsset, Ref: "static:1"}, nil)
	repo.On("GetByAsset", ctx, tokenA).Return(nil, domain.ErrNotFound)
	setter.On("SetBinding", ctx, operator, tokenA, "https://feed.example/a#price", true).
		Return(&domain.PriceBinding{Asset: tokenA}, nil)

	n, err := seeder.Seed(ctx, seedBindings())

	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	setter.AssertNumberOfCalls(t, "SetBinding", 1)
}

func TestBindingSeeder_Seed_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("repository failure", func(t *testing.T) {
		repo := new(MockBindingRepository)
		setter := new(MockBindingSetter)
		seeder := NewBindingSeeder(repo, setter, operator, nil)

		repo.On("GetByAsset", ctx, domain.NativeAsset).Return(nil, errors.New("connection refused"))

		n, err := seeder.Seed(ctx, seedBindings())

		assert.Error(t, err)
		assert.Equal(t, 0, n)
		setter.AssertNotCalled(t, "SetBinding")
	})

	t.Run("setter failure", func(t *testing.T) {
		repo := new(MockBindingRepository)
		setter := new(MockBindingSetter)
		seeder := NewBindingSeeder(repo, setter, operator, nil)

		repo.On("GetByAsset", ctx, domain.NativeAsset).Return(nil, domain.ErrNotFound)
		setter.On("SetBinding", ctx, operator, domain.NativeAsset, "static:200000000000", false).
			Return(nil, domain.ErrUnauthorized)

		_, err := seeder.Seed(ctx, seedBindings())

		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestBindingSeeder_Seed_WithoutRepository(t *testing.T) {
	ctx := context.Background()
	setter := new(MockBindingSetter)
	seeder := NewBindingSeeder(nil, setter, operator, nil)

	setter.On("Binding", domain.NativeAsset).Return(domain.PriceBinding{Asset: domain.NativeAsset}, true)
	setter.On("Binding", tokenA).Return(domain.PriceBinding{}, false)
	setter.On("SetBinding", ctx, operator, tokenA, "https://feed.example/a#price", true).
		Return(&domain.PriceBinding{Asset: tokenA}, nil)

	n, err := seeder.Seed(ctx, seedBindings())

	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	setter.AssertExpectations(t)
}
