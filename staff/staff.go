package staff

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Staff is a kiosk operator. AuthID ties the row to the identity provider
// subject; rows are auto-provisioned on first authenticated request.
type Staff struct {
	ID        uuid.UUID
	AuthID    string         `db:"auth_id"`
	Name      sql.NullString `db:"name"`
	Email     sql.NullString `db:"email"`
	Phone     sql.NullString `db:"phone"`
	Role      string         `db:"role"`
	IsActive  bool           `db:"is_active"`
	CreatedAt time.Time      `db:"created_at"`
}
