package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pedalpoint/kiosk-backend/internal/dbtime"
	"github.com/pedalpoint/kiosk-backend/internal/middleware"
	"github.com/pedalpoint/kiosk-backend/pricing"
	"github.com/pedalpoint/kiosk-backend/rental"
)

type rentalResponse struct {
	ID               uuid.UUID        `json:"id"`
	CycleID          uuid.UUID        `json:"cycleId"`
	CustomerID       *uuid.UUID       `json:"customerId,omitempty"`
	LocationID       *uuid.UUID       `json:"locationId,omitempty"`
	OutTime          dbtime.Instant   `json:"outTime"`
	OutTimeDisplay   string           `json:"outTimeDisplay"`
	InTime           dbtime.Instant   `json:"inTime"`
	InTimeDisplay    string           `json:"inTimeDisplay"`
	DurationMinutes  *int32           `json:"durationMinutes,omitempty"`
	CalculatedAmount *decimal.Decimal `json:"calculatedAmount,omitempty"`
	FinalAmount      *decimal.Decimal `json:"finalAmount,omitempty"`
	PaymentMode      string           `json:"paymentMode,omitempty"`
	Remarks          string           `json:"remarks,omitempty"`
	Status           rental.Status    `json:"status"`
}

func toRentalResponse(r rental.Rental) rentalResponse {
	resp := rentalResponse{
		ID:             r.ID,
		CycleID:        r.CycleID,
		CustomerID:     r.CustomerID,
		LocationID:     r.LocationID,
		OutTime:        r.OutTime,
		OutTimeDisplay: r.OutTime.Display(),
		InTime:         r.InTime,
		InTimeDisplay:  r.InTime.Display(),
		PaymentMode:    r.PaymentMode.String,
		Remarks:        r.Remarks.String,
		Status:         r.Status,
	}
	if r.DurationMinutes.Valid {
		resp.DurationMinutes = &r.DurationMinutes.Int32
	}
	if r.CalculatedAmount.Valid {
		resp.CalculatedAmount = &r.CalculatedAmount.Decimal
	}
	if r.FinalAmount.Valid {
		resp.FinalAmount = &r.FinalAmount.Decimal
	}
	return resp
}

type lineResponse struct {
	AccessoryID  uuid.UUID       `json:"accessoryId"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"pricePerUnit"`
}

func toLineResponses(lines []rental.Line) []lineResponse {
	out := make([]lineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, lineResponse{
			AccessoryID:  l.AccessoryID,
			Name:         l.Name,
			Quantity:     l.Quantity,
			PricePerUnit: l.PricePerUnit,
		})
	}
	return out
}

type startRentalRequest struct {
	CycleID       string   `json:"cycleId" binding:"required"`
	CustomerName  string   `json:"customerName"`
	CustomerPhone string   `json:"customerPhone"`
	LocationID    string   `json:"locationId"`
	AccessoryIDs  []string `json:"accessoryIds"`
}

func (a *API) startRentalHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	var req startRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	// No anonymous rentals: the desk always takes a name, even without a
	// phone number to register the customer under.
	if strings.TrimSpace(req.CustomerName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Customer name is required"})
		return
	}

	cycleID, err := uuid.Parse(req.CycleID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid cycleId"})
		return
	}

	accessoryIDs, err := parseUUIDs(req.AccessoryIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid accessoryIds"})
		return
	}

	st, ok := a.currentStaff(c)
	if !ok {
		return
	}

	var customerID *uuid.UUID
	if req.CustomerPhone != "" {
		cust, err := a.repos.Customers.ResolveByPhone(c, req.CustomerName, req.CustomerPhone)
		if err != nil {
			logger.ErrorContext(c, "failed to resolve customer", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		customerID = &cust.ID
	}

	var locationID *uuid.UUID
	if req.LocationID != "" {
		id, err := uuid.Parse(req.LocationID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid locationId"})
			return
		}
		locationID = &id
	}

	r, err := a.repos.Rentals.Start(c, rental.StartParams{
		CycleID:      cycleID,
		CustomerID:   customerID,
		StaffID:      st.ID,
		LocationID:   locationID,
		AccessoryIDs: accessoryIDs,
	})
	if err != nil {
		if _, ok := rental.CycleFromRentalInProgressError(err); ok {
			c.JSON(http.StatusConflict, gin.H{"code": "RENTAL_IN_PROGRESS", "message": "Cycle already has an active rental"})
			return
		}
		if errors.Is(err, rental.ErrCycleUnavailable) {
			c.JSON(http.StatusConflict, gin.H{"code": "CYCLE_UNAVAILABLE", "message": "Cycle is not available"})
			return
		}
		logger.ErrorContext(c, "failed to start rental", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	a.index.Invalidate()
	rentalsStartedTotal.Inc()
	c.JSON(http.StatusCreated, toRentalResponse(r))
}

func (a *API) getRentalHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid rental id"})
		return
	}

	r, err := a.repos.Rentals.GetRental(c, id)
	if err != nil {
		if errors.Is(err, rental.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "RENTAL_NOT_FOUND", "message": "Rental not found"})
			return
		}
		logger.ErrorContext(c, "failed to get rental", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	lines, err := a.repos.Rentals.Lines(c, r.ID)
	if err != nil {
		logger.ErrorContext(c, "failed to get rental lines", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rental":      toRentalResponse(r),
		"accessories": toLineResponses(lines),
	})
}

// estimateHandler quotes the charge if the rental ended right now. The
// kiosk's active-rental view polls it while the rental runs.
func (a *API) estimateHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid rental id"})
		return
	}

	r, err := a.repos.Rentals.GetRental(c, id)
	if err != nil {
		if errors.Is(err, rental.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "RENTAL_NOT_FOUND", "message": "Rental not found"})
			return
		}
		logger.ErrorContext(c, "failed to get rental", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if r.Status != rental.StatusActive {
		c.JSON(http.StatusConflict, gin.H{"code": "RENTAL_NOT_ACTIVE", "message": "Rental is not active"})
		return
	}

	// The watcher keeps a fresh quote for the rental on the active view;
	// fall through to an on-demand estimate for any other rental.
	if quote, ok := a.watcher.Latest(r.ID); ok {
		c.JSON(http.StatusOK, quote)
		return
	}

	quote, err := a.quoteRental(c, r)
	if err != nil {
		logger.ErrorContext(c, "failed to estimate rental", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, quote)
}

func (a *API) endRentalHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid rental id"})
		return
	}

	r, err := a.repos.Rentals.GetRental(c, id)
	if err != nil {
		if errors.Is(err, rental.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "RENTAL_NOT_FOUND", "message": "Rental not found"})
			return
		}
		logger.ErrorContext(c, "failed to get rental", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	now := time.Now()
	quote, err := a.quoteRentalAt(c, r, now)
	if err != nil {
		logger.ErrorContext(c, "failed to price rental", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	completed, err := a.repos.Rentals.Complete(c, r.ID, now, quote.Minutes, quote.Amount)
	if err != nil {
		if errors.Is(err, rental.ErrNotActive) {
			c.JSON(http.StatusConflict, gin.H{"code": "RENTAL_NOT_ACTIVE", "message": "Rental is not active"})
			return
		}
		logger.ErrorContext(c, "failed to complete rental", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	a.watcher.StopWatching(r.ID)
	a.index.Invalidate()
	rentalsCompletedTotal.Inc()
	c.JSON(http.StatusOK, toRentalResponse(completed))
}

type overrideRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// overrideHandler lets staff adjust the charge on the summary screen. The
// system-calculated amount stays on the row for the audit trail.
func (a *API) overrideHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid rental id"})
		return
	}

	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	r, err := a.repos.Rentals.OverrideAmount(c, id, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, rental.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"code": "RENTAL_NOT_FOUND", "message": "Rental not found"})
		case errors.Is(err, rental.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_AMOUNT", "message": "Override amount must be positive"})
		case errors.Is(err, rental.ErrNotCompleted):
			c.JSON(http.StatusConflict, gin.H{"code": "RENTAL_NOT_COMPLETED", "message": "Rental is not completed"})
		case errors.Is(err, rental.ErrAlreadyPaid):
			c.JSON(http.StatusConflict, gin.H{"code": "RENTAL_ALREADY_PAID", "message": "Payment already recorded"})
		default:
			logger.ErrorContext(c, "failed to override amount", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	a.index.Invalidate()
	c.JSON(http.StatusOK, toRentalResponse(r))
}

type paymentRequest struct {
	Mode    string `json:"mode" binding:"required"`
	Remarks string `json:"remarks"`
}

func (a *API) paymentHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid rental id"})
		return
	}

	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	mode := rental.PaymentMode(req.Mode)
	if !mode.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_PAYMENT_MODE", "message": "Unknown payment mode"})
		return
	}

	r, err := a.repos.Rentals.RecordPayment(c, id, mode, req.Remarks)
	if err != nil {
		switch {
		case errors.Is(err, rental.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"code": "RENTAL_NOT_FOUND", "message": "Rental not found"})
		case errors.Is(err, rental.ErrNotCompleted):
			c.JSON(http.StatusConflict, gin.H{"code": "RENTAL_NOT_COMPLETED", "message": "Rental is not completed"})
		case errors.Is(err, rental.ErrAlreadyPaid):
			c.JSON(http.StatusConflict, gin.H{"code": "RENTAL_ALREADY_PAID", "message": "Payment already recorded"})
		default:
			logger.ErrorContext(c, "failed to record payment", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	a.index.Invalidate()
	paymentsRecordedTotal.WithLabelValues(string(mode)).Inc()
	c.JSON(http.StatusOK, toRentalResponse(r))
}

type rentalDetailResponse struct {
	rentalResponse
	CycleCode    string `json:"cycleCode"`
	CustomerName string `json:"customerName"`
}

func (a *API) listRentalsHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	var (
		details []rental.Detail
		err     error
	)
	switch c.Query("status") {
	case "", "active":
		details, err = a.repos.Rentals.ListActive(c)
	case "completed":
		from, to, perr := parseRange(c.Query("from"), c.Query("to"))
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_DATE", "message": perr.Error()})
			return
		}
		details, err = a.repos.Rentals.ListCompletedBetween(c, from, to)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Unknown status filter"})
		return
	}
	if err != nil {
		logger.ErrorContext(c, "failed to list rentals", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	responses := make([]rentalDetailResponse, 0, len(details))
	for _, d := range details {
		responses = append(responses, rentalDetailResponse{
			rentalResponse: toRentalResponse(d.Rental),
			CycleCode:      d.CycleCode,
			CustomerName:   d.CustomerName,
		})
	}
	c.JSON(http.StatusOK, responses)
}

func (a *API) quoteRental(c *gin.Context, r rental.Rental) (pricing.Quote, error) {
	return a.quoteRentalAt(c, r, time.Now())
}

func (a *API) quoteRentalAt(c *gin.Context, r rental.Rental, now time.Time) (pricing.Quote, error) {
	var accessoryIDs []uuid.UUID
	lines, err := a.repos.Rentals.Lines(c, r.ID)
	if err != nil {
		return pricing.Quote{}, err
	}
	for _, l := range lines {
		accessoryIDs = append(accessoryIDs, l.AccessoryID)
	}

	var cycleTypeID *uuid.UUID
	cyc, err := a.repos.Cycles.GetCycle(c, r.CycleID)
	if err == nil {
		cycleTypeID = cyc.CycleTypeID
	}

	start := now
	if r.OutTime.Valid {
		start = r.OutTime.Time
	}

	return a.calc.EstimateAt(c, now, start, accessoryIDs, cycleTypeID, r.LocationID)
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseRange(fromStr, toStr string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if fromStr != "" {
		t, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return nil, nil, errors.New("invalid from format")
		}
		from = &t
	}
	if toStr != "" {
		t, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return nil, nil, errors.New("invalid to format")
		}
		to = &t
	}
	return from, to, nil
}
