package customer

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Customer is a walk-up renter, keyed by phone number when one is given.
type Customer struct {
	ID        uuid.UUID
	FullName  string         `db:"full_name"`
	Phone     sql.NullString `db:"phone"`
	CreatedAt time.Time      `db:"created_at"`
}
