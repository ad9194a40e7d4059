package pricing

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ErrNoSlab means no pricing row exists for the cycle-type/location pair.
var ErrNoSlab = errors.New("no pricing slab for cycle type and location")

// Slab is one pricing row scoped to an exact (cycle type, location) pair.
type Slab struct {
	ID           uuid.UUID
	CycleTypeID  uuid.UUID       `db:"cycle_type_id"`
	LocationID   uuid.UUID       `db:"region_id"`
	BlockMinutes int             `db:"duration_minutes"`
	Price        decimal.Decimal `db:"price"`
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// GetSlab fetches the single best-match slab for the pair. The scheme
// assumes at most one row per scope; if more exist the first wins.
func (r *Repository) GetSlab(ctx context.Context, cycleTypeID, locationID uuid.UUID) (Slab, error) {
	var slab Slab
	err := r.db.GetContext(ctx, &slab, getSlab, cycleTypeID, locationID)
	if errors.Is(err, sql.ErrNoRows) {
		return slab, ErrNoSlab
	}
	return slab, err
}

const getSlab = `
SELECT * FROM pricing
WHERE cycle_type_id = $1 AND region_id = $2
LIMIT 1
`

func (r *Repository) GetSlabs(ctx context.Context) ([]Slab, error) {
	var slabs []Slab
	err := r.db.SelectContext(ctx, &slabs, getSlabs)
	return slabs, err
}

const getSlabs = `SELECT * FROM pricing`
