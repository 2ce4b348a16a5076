package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/simaogato/kipubank-backend/internal/domain"
)

// SeedBinding is a price binding declared in configuration
type SeedBinding struct {
	Asset  domain.Address
	Ref    string
	Scaled bool
}

// BindingSetter installs price bindings on behalf of an operator
type BindingSetter interface {
	SetBinding(ctx context.Context, caller, asset domain.Address, ref string, scaled bool) (*domain.PriceBinding, error)
	Binding(asset domain.Address) (domain.PriceBinding, bool)
}

// BindingSeeder ensures every configured price binding exists.
// Bindings changed at runtime through SetPriceBinding are never overwritten.
type BindingSeeder struct {
	repo     domain.PriceBindingRepository
	setter   BindingSetter
	operator domain.Address
	logger   *slog.Logger
}

// NewBindingSeeder creates a new BindingSeeder instance.
// operator must hold the owner permission; repo may be nil.
func NewBindingSeeder(repo domain.PriceBindingRepository, setter BindingSetter, operator domain.Address, logger *slog.Logger) *BindingSeeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &BindingSeeder{
		repo:     repo,
		setter:   setter,
		operator: operator,
		logger:   logger,
	}
}

// Seed installs each binding that is not already present and returns how many it installed
func (s *BindingSeeder) Seed(ctx context.Context, bindings []SeedBinding) (int, error) {
	seeded := 0
	for _, b := range bindings {
		exists, err := s.exists(ctx, b.Asset)
		if err != nil {
			return seeded, err
		}
		if exists {
			continue
		}

		if _, err := s.setter.SetBinding(ctx, s.operator, b.Asset, b.Ref, b.Scaled); err != nil {
			return seeded, fmt.Errorf("seed price binding for %s: %w", b.Asset, err)
		}
		seeded++
	}

	if seeded > 0 {
		s.logger.Info("price bindings seeded", "count", seeded)
	}
	return seeded, nil
}

func (s *BindingSeeder) exists(ctx context.Context, asset domain.Address) (bool, error) {
	if s.repo == nil {
		_, ok := s.setter.Binding(asset)
		return ok, nil
	}

	_, err := s.repo.GetByAsset(ctx, asset)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("look up price binding for %s: %w", asset, err)
	}
}
