package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pedalpoint/kiosk-backend/cycle"
	"github.com/pedalpoint/kiosk-backend/internal/middleware"
	"github.com/pedalpoint/kiosk-backend/kiosk"
	"github.com/pedalpoint/kiosk-backend/rental"
)

type scanRequest struct {
	TagID string `json:"tagId" binding:"required"`
}

type scanResponse struct {
	Cycle  cycleResponse `json:"cycle"`
	Action string        `json:"action"`

	// Populated when the scanned cycle has a rental in progress.
	ActiveRental *rentalResponse `json:"activeRental,omitempty"`
	Accessories  []lineResponse  `json:"accessories,omitempty"`
	Estimate     *estimateBody   `json:"estimate,omitempty"`

	// Populated when the cycle is idle and has rented before.
	LastRental *rentalResponse `json:"lastRental,omitempty"`
}

type estimateBody struct {
	Amount  string `json:"amount"`
	Minutes int    `json:"minutes"`
}

// scanHandler resolves an RFID tag to a cycle and tells the kiosk which
// screen to show next: start a rental, return the active one, or a blocked
// notice for cycles out of service.
func (a *API) scanHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	detail, err := a.repos.Cycles.GetCycleByTag(c, req.TagID)
	if err != nil {
		if errors.Is(err, cycle.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "CYCLE_NOT_FOUND", "message": "No cycle registered for this tag"})
			return
		}
		logger.ErrorContext(c, "failed to look up tag", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	resp := scanResponse{Cycle: toCycleResponse(detail)}

	switch detail.Status {
	case cycle.StatusInUse:
		active, err := a.repos.Rentals.ActiveForCycle(c, detail.ID)
		if err != nil {
			if errors.Is(err, rental.ErrNoActiveRental) {
				// Status says in use but no rental row backs it up. Surface
				// the cycle as blocked rather than inventing a return flow.
				logger.WarnContext(c, "cycle marked in_use with no active rental", "cycleId", detail.ID)
				resp.Action = "blocked"
				break
			}
			logger.ErrorContext(c, "failed to get active rental", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		rr := toRentalResponse(active)
		resp.Action = "return"
		resp.ActiveRental = &rr

		lines, err := a.repos.Rentals.Lines(c, active.ID)
		if err != nil {
			logger.ErrorContext(c, "failed to get rental lines", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		resp.Accessories = toLineResponses(lines)

		quote, err := a.quoteRental(c, active)
		if err != nil {
			logger.ErrorContext(c, "failed to estimate rental", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		resp.Estimate = &estimateBody{Amount: quote.Amount.StringFixed(2), Minutes: quote.Minutes}

		// Keep the estimate ticking while the return screen is up. The
		// watcher outlives this request, so it runs off the base context.
		start := time.Now()
		if active.OutTime.Valid {
			start = active.OutTime.Time
		}
		view := kiosk.RentalView{
			RentalID:    active.ID,
			Start:       start,
			CycleTypeID: detail.CycleTypeID,
			LocationID:  active.LocationID,
		}
		for _, l := range lines {
			view.AccessoryIDs = append(view.AccessoryIDs, l.AccessoryID)
		}
		a.watcher.Watch(context.Background(), view)

	case cycle.StatusAvailable:
		resp.Action = "start"
		last, found, err := a.index.LatestRentalForCycle(c, detail.ID)
		if err != nil {
			logger.ErrorContext(c, "failed to get last rental", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if found {
			lr := toRentalResponse(last)
			resp.LastRental = &lr
		}

	default:
		resp.Action = "blocked"
	}

	c.JSON(http.StatusOK, resp)
}
