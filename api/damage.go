package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pedalpoint/kiosk-backend/damage"
	"github.com/pedalpoint/kiosk-backend/internal/dbtime"
	"github.com/pedalpoint/kiosk-backend/internal/middleware"
)

type createDamageRequest struct {
	CycleID        string `json:"cycleId"`
	AccessoryID    string `json:"accessoryId"`
	DamageType     string `json:"damageType" binding:"required"`
	Description    string `json:"description"`
	PhotoURL       string `json:"photoUrl"`
	EstimatedCost  string `json:"estimatedCost"`
	LinkLastRental bool   `json:"linkLastRental"`
}

type damageResponse struct {
	ID                uuid.UUID        `json:"id"`
	CycleID           *uuid.UUID       `json:"cycleId,omitempty"`
	RentalID          *uuid.UUID       `json:"rentalId,omitempty"`
	DamageType        string           `json:"damageType"`
	Description       string           `json:"description,omitempty"`
	PhotoURL          string           `json:"photoUrl,omitempty"`
	EstimatedCost     *decimal.Decimal `json:"estimatedCost,omitempty"`
	Status            damage.Status    `json:"status"`
	ReportedOn        dbtime.Instant   `json:"reportedOn"`
	ReportedOnDisplay string           `json:"reportedOnDisplay"`
	ResolvedOn        dbtime.Instant   `json:"resolvedOn"`
	ResolvedOnDisplay string           `json:"resolvedOnDisplay"`
}

func toDamageResponse(r damage.Report) damageResponse {
	resp := damageResponse{
		ID:                r.ID,
		CycleID:           r.CycleID,
		RentalID:          r.RentalID,
		DamageType:        r.DamageType,
		Description:       r.Description.String,
		PhotoURL:          r.PhotoURL.String,
		Status:            r.Status,
		ReportedOn:        r.ReportedOn,
		ReportedOnDisplay: r.ReportedOn.Display(),
		ResolvedOn:        r.ResolvedOn,
		ResolvedOnDisplay: r.ResolvedOn.Display(),
	}
	if r.EstimatedCost.Valid {
		resp.EstimatedCost = &r.EstimatedCost.Decimal
	}
	return resp
}

func (a *API) createDamageHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	var req createDamageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	if req.CycleID == "" && req.AccessoryID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "A cycle or accessory is required"})
		return
	}

	params := damage.CreateParams{
		DamageType:  req.DamageType,
		Description: req.Description,
		PhotoURL:    req.PhotoURL,
	}

	if req.CycleID != "" {
		id, err := uuid.Parse(req.CycleID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid cycleId"})
			return
		}
		params.CycleID = &id
	}
	if req.AccessoryID != "" {
		id, err := uuid.Parse(req.AccessoryID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid accessoryId"})
			return
		}
		params.AccessoryID = &id
	}
	if req.EstimatedCost != "" {
		cost, err := decimal.NewFromString(req.EstimatedCost)
		if err != nil || cost.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid estimatedCost"})
			return
		}
		params.EstimatedCost = &cost
	}

	if st, ok := a.currentStaff(c); ok {
		params.ReportedBy = &st.ID
	} else {
		return
	}

	// Tie the report to the rental running when it was raised, if asked to.
	if req.LinkLastRental && params.CycleID != nil {
		if last, found, err := a.index.LatestRentalForCycle(c, *params.CycleID); err == nil && found {
			params.RentalID = &last.ID
		}
	}

	report, err := a.repos.Damages.Create(c, params)
	if err != nil {
		if errors.Is(err, damage.ErrMissingType) {
			c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "damageType is required"})
			return
		}
		logger.ErrorContext(c, "failed to create damage report", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	damageReportsTotal.Inc()
	c.JSON(http.StatusCreated, toDamageResponse(report))
}

type damageStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (a *API) damageStatusHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid damage id"})
		return
	}

	var req damageStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	next := damage.Status(req.Status)
	if !next.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_STATUS", "message": "Unknown damage status"})
		return
	}

	report, err := a.repos.Damages.ChangeStatus(c, id, next)
	if err != nil {
		switch {
		case errors.Is(err, damage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"code": "DAMAGE_NOT_FOUND", "message": "Damage report not found"})
		case errors.Is(err, damage.ErrBadTransition):
			c.JSON(http.StatusConflict, gin.H{"code": "INVALID_TRANSITION", "message": err.Error()})
		default:
			logger.ErrorContext(c, "failed to change damage status", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, toDamageResponse(report))
}

func (a *API) deleteDamageHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid damage id"})
		return
	}

	if err := a.repos.Damages.Delete(c, id); err != nil {
		if errors.Is(err, damage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "DAMAGE_NOT_FOUND", "message": "Damage report not found"})
			return
		}
		logger.ErrorContext(c, "failed to delete damage report", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.Status(http.StatusNoContent)
}

type damageDetailResponse struct {
	damageResponse
	CycleCode     string     `json:"cycleCode,omitempty"`
	ReporterName  string     `json:"reporterName,omitempty"`
	AccessoryID   *uuid.UUID `json:"accessoryId,omitempty"`
	AccessoryName string     `json:"accessoryName,omitempty"`
}

func (a *API) listDamagesHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	var (
		details []damage.Detail
		err     error
	)
	switch scope := c.Query("scope"); scope {
	case "", "active":
		details, err = a.repos.Damages.ListActive(c)
	case "history":
		var statusPtr *damage.Status
		if s := c.Query("status"); s != "" {
			status := damage.Status(s)
			if !status.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_STATUS", "message": "Unknown damage status"})
				return
			}
			statusPtr = &status
		}
		details, err = a.repos.Damages.ListHistory(c, statusPtr)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Unknown scope"})
		return
	}
	if err != nil {
		logger.ErrorContext(c, "failed to list damage reports", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	responses := make([]damageDetailResponse, 0, len(details))
	for _, d := range details {
		responses = append(responses, damageDetailResponse{
			damageResponse: toDamageResponse(d.Report),
			CycleCode:      d.CycleCode.String,
			ReporterName:   d.ReporterName.String,
			AccessoryID:    d.AccessoryID,
			AccessoryName:  d.AccessoryName.String,
		})
	}
	c.JSON(http.StatusOK, responses)
}
