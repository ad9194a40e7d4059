package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pedalpoint/kiosk-backend/accessory"
	"github.com/pedalpoint/kiosk-backend/cycle"
	"github.com/pedalpoint/kiosk-backend/internal/middleware"
)

type cycleResponse struct {
	ID           uuid.UUID    `json:"id"`
	Code         string       `json:"code"`
	TagID        string       `json:"tagId"`
	Status       cycle.Status `json:"status"`
	TypeName     string       `json:"typeName,omitempty"`
	LocationName string       `json:"locationName,omitempty"`
}

func toCycleResponse(d cycle.CycleDetail) cycleResponse {
	return cycleResponse{
		ID:           d.ID,
		Code:         d.Code,
		TagID:        d.TagID,
		Status:       d.Status,
		TypeName:     d.TypeName,
		LocationName: d.LocationName,
	}
}

func (a *API) cyclesHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	cycles, err := a.index.Cycles(c)
	if err != nil {
		logger.ErrorContext(c, "failed to list cycles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	responses := make([]cycleResponse, 0, len(cycles))
	for _, d := range cycles {
		responses = append(responses, toCycleResponse(d))
	}
	c.JSON(http.StatusOK, responses)
}

func (a *API) toggleMaintenanceHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid cycle id"})
		return
	}

	status, err := a.repos.Cycles.ToggleMaintenance(c, id)
	if err != nil {
		if errors.Is(err, cycle.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "CYCLE_NOT_FOUND", "message": "Cycle not found"})
			return
		}
		logger.ErrorContext(c, "failed to toggle maintenance", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	a.index.Invalidate()
	c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
}

type accessoryResponse struct {
	ID           uuid.UUID              `json:"id"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description,omitempty"`
	RentalPrice  decimal.Decimal        `json:"rentalPrice"`
	Availability accessory.Availability `json:"availability"`
}

func (a *API) accessoriesHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	accs, err := a.index.Accessories(c)
	if err != nil {
		logger.ErrorContext(c, "failed to list accessories", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	responses := make([]accessoryResponse, 0, len(accs))
	for _, acc := range accs {
		responses = append(responses, accessoryResponse{
			ID:           acc.ID,
			Name:         acc.Name,
			Description:  acc.Description.String,
			RentalPrice:  acc.RentalPrice,
			Availability: acc.Availability,
		})
	}
	c.JSON(http.StatusOK, responses)
}

func (a *API) locationsHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	locations, err := a.repos.Locations.GetLocations(c)
	if err != nil {
		logger.ErrorContext(c, "failed to list locations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, locations)
}
