package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/simaogato/kipubank-backend/internal/domain"
	"github.com/simaogato/kipubank-backend/internal/metrics"
	"github.com/simaogato/kipubank-backend/internal/usecase/registry"
)

// maxTokenDecimals is the largest precision a token contract can declare (uint8)
const maxTokenDecimals = 255

// Holdings exposes the per-asset totals a valuation runs against
type Holdings interface {
	TotalOf(asset domain.Address) decimal.Decimal
}

// SourceResolver builds a price source from its configured reference
type SourceResolver interface {
	Resolve(ref string, scaled bool) (domain.PriceSource, error)
}

// Serializer runs fn while no ledger operation is in progress
type Serializer interface {
	Exclusive(ctx context.Context, fn func(ctx context.Context) error) error
}

// PriceOracle binds assets to price sources and values amounts in normalized USD
type PriceOracle struct {
	Registry    *registry.AssetRegistry
	Access      domain.AccessController
	Metadata    domain.TokenMetadata
	BindingRepo domain.PriceBindingRepository
	Resolver    SourceResolver

	// Serial, when set, orders binding installs with ledger units so that
	// tracking a bound asset never interleaves with a unit's rollback.
	Serial Serializer

	mu       sync.RWMutex
	bindings map[domain.Address]domain.PriceBinding
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewPriceOracle creates a new PriceOracle instance.
// bindingRepo may be nil, in which case bindings live in memory only.
func NewPriceOracle(
	assets *registry.AssetRegistry,
	access domain.AccessController,
	metadata domain.TokenMetadata,
	bindingRepo domain.PriceBindingRepository,
	resolver SourceResolver,
	logger *slog.Logger,
	m *metrics.Metrics,
) *PriceOracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceOracle{
		Registry:    assets,
		Access:      access,
		Metadata:    metadata,
		BindingRepo: bindingRepo,
		Resolver:    resolver,
		bindings:    make(map[domain.Address]domain.PriceBinding),
		logger:      logger,
		metrics:     m,
	}
}

// SetBinding registers or replaces the price source of asset.
// Only callers holding the owner permission may do this. The source is not
// queried; a dead feed surfaces as PriceUnavailable on first valuation.
func (o *PriceOracle) SetBinding(ctx context.Context, caller, asset domain.Address, ref string, scaled bool) (*domain.PriceBinding, error) {
	if !o.Access.CanManagePermissions(ctx, caller) {
		return nil, fmt.Errorf("%w: %s cannot set price bindings", domain.ErrUnauthorized, caller)
	}

	binding, err := o.buildBinding(ctx, asset, ref, scaled)
	if err != nil {
		return nil, err
	}

	err = o.exclusive(ctx, func(ctx context.Context) error {
		if !o.Registry.CanTrack(asset) {
			return fmt.Errorf("%w: cannot bind %s", domain.ErrTooManyAssets, asset)
		}

		if o.BindingRepo != nil {
			record := &domain.PriceBindingRecord{
				Asset:     asset,
				Ref:       ref,
				Scaled:    scaled,
				Decimals:  binding.Decimals,
				UpdatedAt: time.Now().UTC(),
			}
			if err := o.BindingRepo.Save(ctx, record); err != nil {
				return fmt.Errorf("failed to save price binding: %w", err)
			}
		}
		return o.install(binding)
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("price binding set",
		"asset", asset.String(),
		"source", ref,
		"decimals", binding.Decimals,
		"caller", caller.String(),
	)
	return binding, nil
}

// LoadBindings installs every persisted binding without a permission check.
// Used once at startup.
func (o *PriceOracle) LoadBindings(ctx context.Context) error {
	if o.BindingRepo == nil {
		return nil
	}
	records, err := o.BindingRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list price bindings: %w", err)
	}

	bindings := make([]*domain.PriceBinding, 0, len(records))
	for _, record := range records {
		source, err := o.Resolver.Resolve(record.Ref, record.Scaled)
		if err != nil {
			return fmt.Errorf("failed to resolve price source for %s: %w", record.Asset, err)
		}
		bindings = append(bindings, &domain.PriceBinding{
			Asset:    record.Asset,
			Source:   source,
			Ref:      record.Ref,
			Scaled:   record.Scaled,
			Decimals: record.Decimals,
		})
	}

	err = o.exclusive(ctx, func(context.Context) error {
		for _, binding := range bindings {
			if err := o.install(binding); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.logger.Info("price bindings loaded", "count", len(records))
	return nil
}

// Binding returns the binding of asset, if any
func (o *PriceOracle) Binding(asset domain.Address) (domain.PriceBinding, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	b, ok := o.bindings[asset]
	return b, ok
}

// ValueInUSD converts amount smallest units of asset to normalized USD:
// usd = price * amount / 10^decimals, truncated toward zero.
func (o *PriceOracle) ValueInUSD(ctx context.Context, asset domain.Address, amount decimal.Decimal) (domain.USD, error) {
	binding, ok := o.Binding(asset)
	if !ok {
		o.metrics.IncPriceLookup("unbound")
		return domain.USD{}, &domain.PriceUnavailableError{Asset: asset, Reason: "no price binding"}
	}

	price, err := binding.Source.LatestPrice(ctx)
	if err != nil {
		o.metrics.IncPriceLookup("error")
		o.logger.Warn("price source failed", "asset", asset.String(), "source", binding.Ref, "error", err)
		return domain.USD{}, &domain.PriceUnavailableError{Asset: asset, Reason: "price source failed", Err: err}
	}

	price = price.Truncate(0)
	if price.Sign() <= 0 {
		o.metrics.IncPriceLookup("invalid")
		o.logger.Warn("price source returned non-positive price", "asset", asset.String(), "price", price.String())
		return domain.USD{}, &domain.PriceUnavailableError{Asset: asset, Reason: "non-positive price " + price.String()}
	}

	o.metrics.IncPriceLookup("success")
	return domain.USDFromUnits(price.Mul(amount).Shift(-binding.Decimals)), nil
}

// CurrentTotalUSD values every tracked asset's total.
// Assets with a zero total are skipped without querying their source.
func (o *PriceOracle) CurrentTotalUSD(ctx context.Context, holdings Holdings) (domain.USD, error) {
	total := domain.USD{}
	for asset := range o.Registry.All() {
		amount := holdings.TotalOf(asset)
		if amount.IsZero() {
			continue
		}
		value, err := o.ValueInUSD(ctx, asset, amount)
		if err != nil {
			return domain.USD{}, err
		}
		total = total.Add(value)
	}
	return total, nil
}

func (o *PriceOracle) buildBinding(ctx context.Context, asset domain.Address, ref string, scaled bool) (*domain.PriceBinding, error) {
	source, err := o.Resolver.Resolve(ref, scaled)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidValue, err)
	}

	decimals, err := o.resolveDecimals(ctx, asset)
	if err != nil {
		return nil, err
	}

	return &domain.PriceBinding{
		Asset:    asset,
		Source:   source,
		Ref:      ref,
		Scaled:   scaled,
		Decimals: decimals,
	}, nil
}

// resolveDecimals fails closed: an asset whose precision cannot be read is
// never priced with an assumed precision.
func (o *PriceOracle) resolveDecimals(ctx context.Context, asset domain.Address) (int32, error) {
	if asset.IsNative() {
		return domain.NativeDecimals, nil
	}
	if o.Metadata == nil {
		return 0, &domain.PriceUnavailableError{Asset: asset, Reason: "no token metadata provider"}
	}

	decimals, err := o.Metadata.Decimals(ctx, asset)
	if err != nil {
		return 0, &domain.PriceUnavailableError{Asset: asset, Reason: "token decimals unreadable", Err: err}
	}
	if decimals < 0 || decimals > maxTokenDecimals {
		return 0, &domain.PriceUnavailableError{Asset: asset, Reason: fmt.Sprintf("token decimals %d out of range", decimals)}
	}
	return decimals, nil
}

func (o *PriceOracle) exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	if o.Serial == nil {
		return fn(ctx)
	}
	return o.Serial.Exclusive(ctx, fn)
}

func (o *PriceOracle) install(binding *domain.PriceBinding) error {
	if _, err := o.Registry.Track(binding.Asset); err != nil {
		return err
	}

	o.mu.Lock()
	o.bindings[binding.Asset] = *binding
	o.mu.Unlock()

	o.metrics.SetTrackedAssets(o.Registry.Len())
	return nil
}
