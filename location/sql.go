package location

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("location not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetLocations(ctx context.Context) ([]Location, error) {
	var locations []Location
	err := r.db.SelectContext(ctx, &locations, getLocations)
	return locations, err
}

const getLocations = `SELECT * FROM locations ORDER BY name`

func (r *Repository) GetLocation(ctx context.Context, id uuid.UUID) (Location, error) {
	var l Location
	err := r.db.GetContext(ctx, &l, getLocation, id)
	if errors.Is(err, sql.ErrNoRows) {
		return l, ErrNotFound
	}
	return l, err
}

const getLocation = `SELECT * FROM locations WHERE id = $1`
