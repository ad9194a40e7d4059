package kiosk

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pedalpoint/kiosk-backend/pricing"
)

// DefaultWatchInterval is how often the active-rental view refreshes its
// estimate.
const DefaultWatchInterval = 15 * time.Second

// Estimator quotes a running rental. *pricing.Calculator satisfies it.
type Estimator interface {
	EstimateAt(ctx context.Context, now, start time.Time, accessoryIDs []uuid.UUID, cycleTypeID, locationID *uuid.UUID) (pricing.Quote, error)
}

// RentalView is the slice of an active rental the watcher needs to keep
// its estimate current.
type RentalView struct {
	RentalID     uuid.UUID
	Start        time.Time
	AccessoryIDs []uuid.UUID
	CycleTypeID  *uuid.UUID
	LocationID   *uuid.UUID
}

// Watcher re-estimates the charge for the rental shown on the active view.
// Entering the view starts it, leaving cancels it; Watch always cancels any
// previous run first, so re-entering never leaves two tickers running.
type Watcher struct {
	estimator Estimator
	interval  time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	rentalID uuid.UUID
	latest   pricing.Quote
	hasQuote bool
}

func NewWatcher(estimator Estimator, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		estimator: estimator,
		interval:  interval,
		logger:    logger,
	}
}

// Watch starts estimating for the given rental until Stop or ctx
// cancellation. An estimate runs immediately, then on every tick.
func (w *Watcher) Watch(ctx context.Context, view RentalView) {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.rentalID = view.RentalID
	w.hasQuote = false
	w.mu.Unlock()

	w.refresh(runCtx, view)

	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				w.refresh(runCtx, view)
			}
		}
	}()
}

// Stop cancels the current run, if any. Safe to call repeatedly.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

// StopWatching cancels the run only if it is watching the given rental.
// Ending a rental calls this so a watch started for another cycle in the
// meantime is left alone.
func (w *Watcher) StopWatching(rentalID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil && w.rentalID == rentalID {
		w.cancel()
		w.cancel = nil
		w.hasQuote = false
	}
}

// Latest returns the most recent quote for the watched rental.
func (w *Watcher) Latest(rentalID uuid.UUID) (pricing.Quote, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.hasQuote || w.rentalID != rentalID {
		return pricing.Quote{}, false
	}
	return w.latest, true
}

func (w *Watcher) refresh(ctx context.Context, view RentalView) {
	quote, err := w.estimator.EstimateAt(ctx, time.Now(), view.Start, view.AccessoryIDs, view.CycleTypeID, view.LocationID)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("estimate refresh failed", "rentalId", view.RentalID, "error", err)
		}
		return
	}

	w.mu.Lock()
	if w.rentalID == view.RentalID {
		w.latest = quote
		w.hasQuote = true
	}
	w.mu.Unlock()
}
