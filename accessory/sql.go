package accessory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("accessory not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetAccessories(ctx context.Context) ([]Accessory, error) {
	var accessories []Accessory
	err := r.db.SelectContext(ctx, &accessories, getAccessories)
	return accessories, err
}

const getAccessories = `SELECT * FROM accessories ORDER BY name`

func (r *Repository) GetAvailable(ctx context.Context) ([]Accessory, error) {
	var accessories []Accessory
	err := r.db.SelectContext(ctx, &accessories, getAvailable)
	return accessories, err
}

const getAvailable = `SELECT * FROM accessories WHERE availability_status = 'available' ORDER BY name`

func (r *Repository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Accessory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(getByIDs, ids)
	if err != nil {
		return nil, err
	}
	var accessories []Accessory
	err = r.db.SelectContext(ctx, &accessories, r.db.Rebind(query), args...)
	return accessories, err
}

const getByIDs = `SELECT * FROM accessories WHERE id IN (?)`

func (r *Repository) SetAvailability(ctx context.Context, ids []uuid.UUID, status Availability) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(setAvailability, status, ids)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	return err
}

const setAvailability = `UPDATE accessories SET availability_status = ? WHERE id IN (?)`
