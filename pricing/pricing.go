// Package pricing computes slab-based rental charges. Elapsed time is
// divided into fixed-size minute blocks and partial minutes and partial
// blocks both round up, so any started unit bills as a whole one.
package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pedalpoint/kiosk-backend/accessory"
)

// DefaultBlockMinutes is the block length used when no slab matches the
// cycle type and location. The per-block price falls back to zero, so only
// accessories bill in that case.
const DefaultBlockMinutes = 15

// Quote is an estimated charge for a rental at a point in time.
type Quote struct {
	Amount  decimal.Decimal `json:"amount"`
	Minutes int             `json:"minutes"`
}

type Calculator struct {
	slabs       *Repository
	accessories *accessory.Repository
	now         func() time.Time
}

func NewCalculator(slabs *Repository, accessories *accessory.Repository) *Calculator {
	return &Calculator{
		slabs:       slabs,
		accessories: accessories,
		now:         time.Now,
	}
}

// Estimate quotes the charge owed for a rental running from start until now.
func (c *Calculator) Estimate(ctx context.Context, start time.Time, accessoryIDs []uuid.UUID, cycleTypeID, locationID *uuid.UUID) (Quote, error) {
	return c.EstimateAt(ctx, c.now(), start, accessoryIDs, cycleTypeID, locationID)
}

// EstimateAt is Estimate with an explicit "now". Calling it twice with the
// same arguments returns identical quotes.
func (c *Calculator) EstimateAt(ctx context.Context, now, start time.Time, accessoryIDs []uuid.UUID, cycleTypeID, locationID *uuid.UUID) (Quote, error) {
	minutes := elapsedMinutes(start, now)

	blockPrice := decimal.Zero
	blockMinutes := DefaultBlockMinutes
	if cycleTypeID != nil && locationID != nil {
		slab, err := c.slabs.GetSlab(ctx, *cycleTypeID, *locationID)
		switch {
		case err == nil:
			blockPrice = slab.Price
			if slab.BlockMinutes > 0 {
				blockMinutes = slab.BlockMinutes
			}
		case errors.Is(err, ErrNoSlab):
			// fall through to defaults; only accessories bill
		default:
			return Quote{}, err
		}
	}

	blocks := (minutes + blockMinutes - 1) / blockMinutes
	amount := blockPrice.Mul(decimal.NewFromInt(int64(blocks)))

	if len(accessoryIDs) > 0 {
		items, err := c.accessories.GetByIDs(ctx, accessoryIDs)
		if err != nil {
			return Quote{}, err
		}
		for _, item := range items {
			amount = amount.Add(item.RentalPrice)
		}
	}

	return Quote{Amount: amount.Round(2), Minutes: minutes}, nil
}

// elapsedMinutes is the ceiling of the elapsed wall time in minutes,
// clamped at zero.
func elapsedMinutes(start, now time.Time) int {
	ms := now.Sub(start).Milliseconds()
	if ms <= 0 {
		return 0
	}
	return int((ms + 59999) / 60000)
}
