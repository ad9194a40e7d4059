package api

import (
	"encoding/csv"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/pedalpoint/kiosk-backend/internal/middleware"
)

type dashboardStats struct {
	Cycles        map[string]int `json:"cycles"`
	ActiveRentals int            `json:"activeRentals"`
	OpenDamages   int            `json:"openDamages"`
	ActiveStaff   int            `json:"activeStaff"`
}

func (a *API) dashboardStatsHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	counts, err := a.repos.Cycles.StatusCounts(c)
	if err != nil {
		logger.ErrorContext(c, "failed to count cycles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	cycles := make(map[string]int, len(counts))
	for status, n := range counts {
		cycles[string(status)] = n
	}

	activeRentals, err := a.repos.Rentals.CountActive(c)
	if err != nil {
		logger.ErrorContext(c, "failed to count rentals", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	openDamages, err := a.repos.Damages.CountActive(c)
	if err != nil {
		logger.ErrorContext(c, "failed to count damage reports", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	activeStaff, err := a.repos.Staff.CountActive(c)
	if err != nil {
		logger.ErrorContext(c, "failed to count staff", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, dashboardStats{
		Cycles:        cycles,
		ActiveRentals: activeRentals,
		OpenDamages:   openDamages,
		ActiveStaff:   activeStaff,
	})
}

// rentalsReportCSVHandler is the download alias for the rentals report.
func (a *API) rentalsReportCSVHandler(c *gin.Context) {
	q := c.Request.URL.Query()
	q.Set("format", "csv")
	c.Request.URL.RawQuery = q.Encode()
	a.rentalsReportHandler(c)
}

// rentalsReportHandler lists completed rentals in a window, as JSON or as a
// CSV download when format=csv.
func (a *API) rentalsReportHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	from, to, err := parseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_DATE", "message": err.Error()})
		return
	}

	details, err := a.repos.Rentals.ListCompletedBetween(c, from, to)
	if err != nil {
		logger.ErrorContext(c, "failed to list completed rentals", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if c.Query("format") != "csv" {
		responses := make([]rentalDetailResponse, 0, len(details))
		for _, d := range details {
			responses = append(responses, rentalDetailResponse{
				rentalResponse: toRentalResponse(d.Rental),
				CycleCode:      d.CycleCode,
				CustomerName:   d.CustomerName,
			})
		}
		c.JSON(http.StatusOK, responses)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="rentals.csv"`)

	w := csv.NewWriter(c.Writer)
	w.Write([]string{"cycle", "customer", "out_time", "in_time", "minutes", "calculated", "final", "payment_mode", "status"})
	for _, d := range details {
		var minutes, calculated, final string
		if d.DurationMinutes.Valid {
			minutes = decimal.NewFromInt32(d.DurationMinutes.Int32).String()
		}
		if d.CalculatedAmount.Valid {
			calculated = d.CalculatedAmount.Decimal.StringFixed(2)
		}
		if d.FinalAmount.Valid {
			final = d.FinalAmount.Decimal.StringFixed(2)
		}
		w.Write([]string{
			d.CycleCode,
			d.CustomerName,
			d.OutTime.Display(),
			d.InTime.Display(),
			minutes,
			calculated,
			final,
			d.PaymentMode.String,
			string(d.Status),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		logger.ErrorContext(c, "failed to write csv", "error", err)
	}
}

type summaryReport struct {
	From         time.Time    `json:"from"`
	To           time.Time    `json:"to"`
	TotalRentals int          `json:"totalRentals"`
	TotalRevenue string       `json:"totalRevenue"`
	Days         []dayRow     `json:"days"`
	TopCustomers []topCustRow `json:"topCustomers"`
}

type dayRow struct {
	Day     string `json:"day"`
	Rentals int    `json:"rentals"`
	Revenue string `json:"revenue"`
}

type topCustRow struct {
	Name    string `json:"name"`
	Rentals int    `json:"rentals"`
	Total   string `json:"total"`
}

func (a *API) summaryReportHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	from, to, err := parseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_DATE", "message": err.Error()})
		return
	}

	// Default to the trailing 30 days.
	now := time.Now()
	if to == nil {
		to = &now
	}
	if from == nil {
		start := to.AddDate(0, 0, -30)
		from = &start
	}

	days, err := a.repos.Rentals.RevenueByDay(c, *from, *to)
	if err != nil {
		logger.ErrorContext(c, "failed to aggregate revenue", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	top, err := a.repos.Rentals.TopCustomers(c, 10)
	if err != nil {
		logger.ErrorContext(c, "failed to rank customers", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	report := summaryReport{
		From:         *from,
		To:           *to,
		Days:         make([]dayRow, 0, len(days)),
		TopCustomers: make([]topCustRow, 0, len(top)),
	}
	revenue := decimal.Zero
	for _, d := range days {
		report.TotalRentals += d.Rentals
		revenue = revenue.Add(d.Revenue)
		report.Days = append(report.Days, dayRow{
			Day:     d.Day.Format("2006-01-02"),
			Rentals: d.Rentals,
			Revenue: d.Revenue.StringFixed(2),
		})
	}
	report.TotalRevenue = revenue.StringFixed(2)
	for _, t := range top {
		report.TopCustomers = append(report.TopCustomers, topCustRow{
			Name:    t.CustomerName,
			Rentals: t.Rentals,
			Total:   t.Total.StringFixed(2),
		})
	}

	c.JSON(http.StatusOK, report)
}
