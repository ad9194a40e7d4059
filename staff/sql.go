package staff

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("staff not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetStaffByAuthID(ctx context.Context, authID string) (*Staff, error) {
	var s Staff
	err := r.db.GetContext(ctx, &s, getStaffByAuthIDQuery, authID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

const getStaffByAuthIDQuery = "SELECT * FROM staff WHERE auth_id = $1"

func (r *Repository) CreateStaff(ctx context.Context, authID, name, email string) (*Staff, error) {
	var s Staff
	err := r.db.GetContext(ctx, &s, createStaffQuery, uuid.New(), authID, name, email)
	return &s, err
}

const createStaffQuery = `
INSERT INTO staff (id, auth_id, name, email, role, is_active)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), 'staff', true)
RETURNING *
`

func (r *Repository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, countActiveQuery)
	return n, err
}

const countActiveQuery = `SELECT count(*) FROM staff WHERE is_active`
