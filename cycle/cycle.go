// Package cycle manages the rental fleet: every tagged cycle the kiosk can
// issue, with its type, home location and service status.
package cycle

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type Status string

const (
	StatusAvailable   Status = "available"
	StatusInUse       Status = "in_use"
	StatusMaintenance Status = "maintenance"
	StatusInactive    Status = "inactive"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusInUse, StatusMaintenance, StatusInactive:
		return true
	}
	return false
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// Cycle represents a rentable cycle identified at the kiosk by its RFID tag.
type Cycle struct {
	// ID is the internal identifier for a cycle.
	ID uuid.UUID
	// Code is the physical label painted on the frame (e.g. "C101").
	Code string `db:"cycle_code"`
	// TagID is the RFID tag scanned at the kiosk.
	TagID string `db:"rfid_tag_id"`

	CycleTypeID *uuid.UUID `db:"cycle_type_id"`
	LocationID  *uuid.UUID `db:"location_id"`

	Status    Status
	CreatedAt time.Time `db:"created_at"`
}

// CycleDetail is a cycle joined with its type and location names for
// kiosk display.
type CycleDetail struct {
	Cycle
	TypeName     string `db:"type_name"`
	LocationName string `db:"location_name"`
}
