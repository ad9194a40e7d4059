package accessory

import (
	"database/sql"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Availability string

const (
	Available Availability = "available"
	InUse     Availability = "in_use"
	Damaged   Availability = "damaged"
	Lost      Availability = "lost"
)

func (a Availability) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(a))
}

// Accessory is an add-on item (helmet, basket, lock) rented alongside a
// cycle at a flat per-rental price.
type Accessory struct {
	ID           uuid.UUID
	Name         string
	Description  sql.NullString
	RentalPrice  decimal.Decimal `db:"rental_price"`
	Availability Availability    `db:"availability_status"`
}
