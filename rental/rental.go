package rental

import (
	"database/sql"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pedalpoint/kiosk-backend/internal/dbtime"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// PaymentMode is recorded as a label; no payment is processed.
type PaymentMode string

const (
	PayCash  PaymentMode = "Cash"
	PayUPI   PaymentMode = "UPI"
	PayCard  PaymentMode = "Card"
	PayOther PaymentMode = "Other"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case PayCash, PayUPI, PayCard, PayOther:
		return true
	}
	return false
}

// Rental is one rental session for a cycle. OutTime is set at start; the
// remaining mutable fields fill in at completion and during the summary
// step. CalculatedAmount is never rewritten after completion so an override
// of FinalAmount leaves an audit trail.
type Rental struct {
	ID               uuid.UUID
	CycleID          uuid.UUID           `db:"cycle_id"`
	CustomerID       *uuid.UUID          `db:"customer_id"`
	StaffID          *uuid.UUID          `db:"staff_id"`
	LocationID       *uuid.UUID          `db:"location_id"`
	OutTime          dbtime.Instant      `db:"out_time"`
	InTime           dbtime.Instant      `db:"in_time"`
	DurationMinutes  sql.NullInt32       `db:"duration_minutes"`
	CalculatedAmount decimal.NullDecimal `db:"calculated_amount"`
	FinalAmount      decimal.NullDecimal `db:"final_amount"`
	PaymentMode      sql.NullString      `db:"payment_mode"`
	Remarks          sql.NullString      `db:"remarks"`
	Status           Status
}

// Paid reports whether the payment step has run. Payment mode presence is
// the de-facto paid signal; there is no separate flag.
func (r Rental) Paid() bool {
	return r.PaymentMode.Valid
}

// Line is one attached accessory with the price captured at attach time.
type Line struct {
	RentalID     uuid.UUID       `db:"rental_id"`
	AccessoryID  uuid.UUID       `db:"accessory_id"`
	Name         string          `db:"name"`
	Quantity     int             `db:"quantity"`
	PricePerUnit decimal.Decimal `db:"price_per_unit"`
}

// Detail is a rental joined with cycle and customer names for logs and
// reports.
type Detail struct {
	Rental
	CycleCode    string `db:"cycle_code"`
	CustomerName string `db:"customer_name"`
}
