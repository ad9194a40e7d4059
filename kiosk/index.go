// Package kiosk holds the pieces owned by a kiosk session: the lookup
// index the screens read from and the repeating estimate task for the
// active-rental view.
package kiosk

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/pedalpoint/kiosk-backend/accessory"
	"github.com/pedalpoint/kiosk-backend/cycle"
	"github.com/pedalpoint/kiosk-backend/rental"
)

// recentRentalLimit bounds how much rental history the index keeps around
// for last-rental lookups.
const recentRentalLimit = 500

// Index is a read-through cache of cycles, accessories and recent rentals.
// It has no eviction: every mutating action invalidates it wholesale and
// the next read reloads everything. Reads between a mutation elsewhere and
// the next refresh may be stale; callers tolerate that.
type Index struct {
	cycles      *cycle.Repository
	accessories *accessory.Repository
	rentals     *rental.Repository

	mu            sync.RWMutex
	loaded        bool
	cachedCycles  []cycle.CycleDetail
	cachedAccs    []accessory.Accessory
	cachedRentals []rental.Rental
}

func NewIndex(cycles *cycle.Repository, accessories *accessory.Repository, rentals *rental.Repository) *Index {
	return &Index{
		cycles:      cycles,
		accessories: accessories,
		rentals:     rentals,
	}
}

// Refresh reloads the whole index from storage.
func (ix *Index) Refresh(ctx context.Context) error {
	cycles, err := ix.cycles.GetCycles(ctx)
	if err != nil {
		return err
	}
	accs, err := ix.accessories.GetAccessories(ctx)
	if err != nil {
		return err
	}
	rentals, err := ix.rentals.ListRecent(ctx, recentRentalLimit)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	ix.cachedCycles = cycles
	ix.cachedAccs = accs
	ix.cachedRentals = rentals
	ix.loaded = true
	ix.mu.Unlock()
	return nil
}

// Invalidate marks the index stale. The next read reloads.
func (ix *Index) Invalidate() {
	ix.mu.Lock()
	ix.loaded = false
	ix.mu.Unlock()
}

func (ix *Index) ensure(ctx context.Context) error {
	ix.mu.RLock()
	loaded := ix.loaded
	ix.mu.RUnlock()
	if loaded {
		return nil
	}
	return ix.Refresh(ctx)
}

func (ix *Index) Cycles(ctx context.Context) ([]cycle.CycleDetail, error) {
	if err := ix.ensure(ctx); err != nil {
		return nil, err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]cycle.CycleDetail, len(ix.cachedCycles))
	copy(out, ix.cachedCycles)
	return out, nil
}

func (ix *Index) Accessories(ctx context.Context) ([]accessory.Accessory, error) {
	if err := ix.ensure(ctx); err != nil {
		return nil, err
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]accessory.Accessory, len(ix.cachedAccs))
	copy(out, ix.cachedAccs)
	return out, nil
}

// LatestRentalForCycle finds the most recent rental for a cycle from the
// cached window, falling back to a live query when the cycle has no rental
// in the window. Returns found=false when the cycle has never been rented.
func (ix *Index) LatestRentalForCycle(ctx context.Context, cycleID uuid.UUID) (rental.Rental, bool, error) {
	if err := ix.ensure(ctx); err != nil {
		return rental.Rental{}, false, err
	}

	ix.mu.RLock()
	for _, r := range ix.cachedRentals {
		if r.CycleID == cycleID {
			ix.mu.RUnlock()
			return r, true, nil
		}
	}
	ix.mu.RUnlock()

	r, err := ix.rentals.LatestForCycle(ctx, cycleID)
	if errors.Is(err, rental.ErrNotFound) {
		return rental.Rental{}, false, nil
	}
	if err != nil {
		return rental.Rental{}, false, err
	}
	return r, true, nil
}
