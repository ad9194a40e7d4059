// Package damage tracks damage reports on cycles and accessories through a
// forward-only lifecycle that runs parallel to rentals.
package damage

import (
	"database/sql"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pedalpoint/kiosk-backend/internal/dbtime"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusUnderRepair Status = "under_repair"
	StatusRepaired    Status = "repaired"
	StatusScrapped    Status = "scrapped"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusUnderRepair, StatusRepaired, StatusScrapped:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusRepaired || s == StatusScrapped
}

// CanAdvance reports whether s may move forward to next. Pending may jump
// straight to a terminal state; terminal states never move.
func (s Status) CanAdvance(next Status) bool {
	if !next.Valid() || s.Terminal() || next == s {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusUnderRepair || next == StatusRepaired || next == StatusScrapped
	case StatusUnderRepair:
		return next == StatusRepaired || next == StatusScrapped
	}
	return false
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// Report is a damage record against a cycle, an accessory (linked via a
// join row), or both. RentalID points at the rental active for the cycle
// when the damage was reported, when the reporter chose to link it.
// ResolvedOn is stamped only when a report transitions into repaired.
type Report struct {
	ID            uuid.UUID
	CycleID       *uuid.UUID          `db:"cycle_id"`
	RentalID      *uuid.UUID          `db:"rental_id"`
	ReportedBy    *uuid.UUID          `db:"reported_by"`
	DamageType    string              `db:"damage_type"`
	Description   sql.NullString      `db:"description"`
	PhotoURL      sql.NullString      `db:"photo_url"`
	EstimatedCost decimal.NullDecimal `db:"estimated_cost"`
	Status        Status
	ReportedOn    dbtime.Instant `db:"reported_on"`
	ResolvedOn    dbtime.Instant `db:"resolved_on"`
	Remarks       sql.NullString `db:"remarks"`
}

// Detail joins in the cycle code, reporter name and linked accessory for
// display.
type Detail struct {
	Report
	CycleCode     sql.NullString `db:"cycle_code"`
	ReporterName  sql.NullString `db:"reporter_name"`
	AccessoryID   *uuid.UUID     `db:"accessory_id"`
	AccessoryName sql.NullString `db:"accessory_name"`
}
