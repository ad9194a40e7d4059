package location

import (
	"database/sql"

	"github.com/google/uuid"
)

// Location is a kiosk site. Pricing slabs are scoped to a location, so the
// same cycle type can bill differently across sites.
type Location struct {
	ID      uuid.UUID
	Name    string
	Address sql.NullString
}
