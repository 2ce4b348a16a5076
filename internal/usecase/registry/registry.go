package registry

import (
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/simaogato/kipubank-backend/internal/domain"
)

// AssetRegistry tracks every asset the ledger has observed, in first-seen order.
// The set only grows; Retract exists solely to undo a track made by an
// operation that was rolled back.
type AssetRegistry struct {
	mu     sync.RWMutex
	order  []domain.Address
	index  map[domain.Address]struct{}
	maxLen int
}

// NewAssetRegistry creates a registry holding at most maxAssets entries (0 = unbounded)
func NewAssetRegistry(maxAssets int) *AssetRegistry {
	return &AssetRegistry{
		index:  make(map[domain.Address]struct{}),
		maxLen: maxAssets,
	}
}

// Track adds asset if it is not tracked yet.
// Returns true when the asset was appended by this call.
func (r *AssetRegistry) Track(asset domain.Address) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[asset]; ok {
		return false, nil
	}
	if r.maxLen > 0 && len(r.order) >= r.maxLen {
		return false, fmt.Errorf("%w: cannot track %s beyond %d assets", domain.ErrTooManyAssets, asset, r.maxLen)
	}

	r.index[asset] = struct{}{}
	r.order = append(r.order, asset)
	return true, nil
}

// CanTrack reports whether Track(asset) would succeed
func (r *AssetRegistry) CanTrack(asset domain.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.index[asset]; ok {
		return true
	}
	return r.maxLen <= 0 || len(r.order) < r.maxLen
}

// Retract removes asset, keeping the order of the remaining entries.
// Assets tracked after it by other callers are unaffected.
func (r *AssetRegistry) Retract(asset domain.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[asset]; !ok {
		return
	}
	r.order = slices.DeleteFunc(r.order, func(a domain.Address) bool { return a == asset })
	delete(r.index, asset)
}

// Contains reports whether asset is tracked
func (r *AssetRegistry) Contains(asset domain.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[asset]
	return ok
}

// Len returns the number of tracked assets
func (r *AssetRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// All yields the tracked assets in first-seen order.
// Each iteration reads the set as it is at that moment.
func (r *AssetRegistry) All() iter.Seq[domain.Address] {
	return func(yield func(domain.Address) bool) {
		for _, asset := range r.Snapshot() {
			if !yield(asset) {
				return
			}
		}
	}
}

// Snapshot returns a copy of the tracked assets
func (r *AssetRegistry) Snapshot() []domain.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}
