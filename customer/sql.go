package customer

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

var ErrNotFound = errors.New("customer not found")

func (r *Repository) GetCustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	var customer Customer
	err := r.db.GetContext(ctx, &customer, getCustomerByPhoneQuery, phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, err
	}
	return &customer, nil
}

const getCustomerByPhoneQuery = "SELECT * FROM customers WHERE phone = $1"

func (r *Repository) CreateCustomer(ctx context.Context, name, phone string) (*Customer, error) {
	var customer Customer
	err := r.db.GetContext(ctx, &customer, createCustomerQuery, uuid.New(), name, phone)
	return &customer, err
}

const createCustomerQuery = `
INSERT INTO customers (id, full_name, phone)
VALUES ($1, $2, NULLIF($3, ''))
RETURNING *
`

// ResolveByPhone finds the customer for a phone number, creating one when
// none exists. Rentals with no phone carry no customer linkage at all, so
// callers must not invoke this with an empty phone.
func (r *Repository) ResolveByPhone(ctx context.Context, name, phone string) (*Customer, error) {
	customer, err := r.GetCustomerByPhone(ctx, phone)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return r.CreateCustomer(ctx, name, phone)
}

func (r *Repository) GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error) {
	var customer Customer
	err := r.db.GetContext(ctx, &customer, getCustomerQuery, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

const getCustomerQuery = "SELECT * FROM customers WHERE id = $1"
