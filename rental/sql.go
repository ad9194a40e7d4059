package rental

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound         = errors.New("rental not found")
	ErrNoActiveRental   = errors.New("no active rental for cycle")
	ErrNotActive        = errors.New("rental is not active")
	ErrNotCompleted     = errors.New("rental is not completed")
	ErrAlreadyPaid      = errors.New("payment already recorded")
	ErrInvalidAmount    = errors.New("override amount must be positive")
	ErrCycleUnavailable = errors.New("cycle is not available")
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

type rentalInProgressError struct {
	cycleID uuid.UUID
}

func (e *rentalInProgressError) Error() string {
	return "rental in progress for cycle " + e.cycleID.String()
}

// CycleFromRentalInProgressError unpacks the cycle carried by a
// rental-in-progress error, if err is one.
func CycleFromRentalInProgressError(err error) (uuid.UUID, bool) {
	var ripErr *rentalInProgressError
	if errors.As(err, &ripErr) {
		return ripErr.cycleID, true
	}
	return uuid.UUID{}, false
}

type StartParams struct {
	CycleID      uuid.UUID
	CustomerID   *uuid.UUID
	StaffID      uuid.UUID
	LocationID   *uuid.UUID
	AccessoryIDs []uuid.UUID
}

// Start opens a rental: the cycle row is locked and must be available, no
// other active rental may exist for it, then the rental row, accessory
// attachments with captured prices, accessory availability and cycle status
// all commit in one transaction. Failure anywhere leaves no partial state.
// A rental without an explicit location inherits the cycle's, so slab
// pricing always has a region to match against.
func (r *Repository) Start(ctx context.Context, p StartParams) (Rental, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Rental{}, err
	}
	defer tx.Rollback()

	var cyc struct {
		Status     string     `db:"status"`
		LocationID *uuid.UUID `db:"location_id"`
	}
	err = tx.GetContext(ctx, &cyc, startLockCycle, p.CycleID)
	if errors.Is(err, sql.ErrNoRows) {
		return Rental{}, ErrNotFound
	}
	if err != nil {
		return Rental{}, err
	}

	var active uuid.UUID
	err = tx.GetContext(ctx, &active, startVerifyNoActive, p.CycleID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Rental{}, err
	}
	if active != uuid.Nil {
		return Rental{}, &rentalInProgressError{cycleID: p.CycleID}
	}

	if cyc.Status != "available" {
		return Rental{}, ErrCycleUnavailable
	}

	if p.LocationID == nil {
		p.LocationID = cyc.LocationID
	}

	var rental Rental
	err = tx.GetContext(ctx, &rental, startInsertRental,
		uuid.New(), p.CycleID, p.CustomerID, p.StaffID, p.LocationID)
	if err != nil {
		return Rental{}, err
	}

	if len(p.AccessoryIDs) > 0 {
		query, args, err := sqlx.In(startInsertLines, rental.ID, p.AccessoryIDs)
		if err != nil {
			return Rental{}, err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return Rental{}, err
		}

		query, args, err = sqlx.In(startMarkAccessories, p.AccessoryIDs)
		if err != nil {
			return Rental{}, err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return Rental{}, err
		}
	}

	if _, err := tx.ExecContext(ctx, startMarkCycle, p.CycleID); err != nil {
		return Rental{}, err
	}

	return rental, tx.Commit()
}

const startLockCycle = `SELECT status, location_id FROM cycles WHERE id = $1 FOR UPDATE`

const startVerifyNoActive = `SELECT id FROM rentals WHERE cycle_id = $1 AND status = 'active'`

const startInsertRental = `
INSERT INTO rentals (id, cycle_id, customer_id, staff_id, location_id, out_time, status)
VALUES ($1, $2, $3, $4, $5, now(), 'active')
RETURNING *
`

// Captures the accessory's current rental price on the attachment row.
const startInsertLines = `
INSERT INTO rental_accessories (rental_id, accessory_id, quantity, price_per_unit)
SELECT ?, id, 1, rental_price FROM accessories WHERE id IN (?)
`

const startMarkAccessories = `UPDATE accessories SET availability_status = 'in_use' WHERE id IN (?)`

const startMarkCycle = `UPDATE cycles SET status = 'in_use' WHERE id = $1`

// Complete closes an active rental with the amount already computed by the
// pricing calculator. The cycle returns to available only if it is still
// in_use, so an independent maintenance flag survives; attached accessories
// are released unconditionally, even ones separately marked damaged.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, endedAt time.Time, minutes int, amount decimal.Decimal) (Rental, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Rental{}, err
	}
	defer tx.Rollback()

	var current Rental
	err = tx.GetContext(ctx, &current, getRentalForUpdate, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Rental{}, ErrNotFound
	}
	if err != nil {
		return Rental{}, err
	}
	if current.Status != StatusActive {
		return Rental{}, ErrNotActive
	}

	var updated Rental
	err = tx.GetContext(ctx, &updated, completeUpdateRental, id, endedAt.UTC(), minutes, amount)
	if err != nil {
		return Rental{}, err
	}

	if _, err := tx.ExecContext(ctx, completeReleaseCycle, current.CycleID); err != nil {
		return Rental{}, err
	}

	if _, err := tx.ExecContext(ctx, completeReleaseAccessories, id); err != nil {
		return Rental{}, err
	}

	return updated, tx.Commit()
}

const getRentalForUpdate = `SELECT * FROM rentals WHERE id = $1 FOR UPDATE`

const completeUpdateRental = `
UPDATE rentals
SET in_time = $2, duration_minutes = $3, calculated_amount = $4, final_amount = $4, status = 'completed'
WHERE id = $1
RETURNING *
`

const completeReleaseCycle = `UPDATE cycles SET status = 'available' WHERE id = $1 AND status = 'in_use'`

const completeReleaseAccessories = `
UPDATE accessories SET availability_status = 'available'
WHERE id IN (SELECT accessory_id FROM rental_accessories WHERE rental_id = $1)
`

// OverrideAmount replaces the final amount on a completed, unpaid rental.
// CalculatedAmount is left untouched for audit.
func (r *Repository) OverrideAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (Rental, error) {
	if !amount.IsPositive() {
		return Rental{}, ErrInvalidAmount
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Rental{}, err
	}
	defer tx.Rollback()

	var current Rental
	err = tx.GetContext(ctx, &current, getRentalForUpdate, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Rental{}, ErrNotFound
	}
	if err != nil {
		return Rental{}, err
	}
	if current.Status != StatusCompleted {
		return Rental{}, ErrNotCompleted
	}
	if current.Paid() {
		return Rental{}, ErrAlreadyPaid
	}

	var updated Rental
	err = tx.GetContext(ctx, &updated, overrideAmountQuery, id, amount)
	if err != nil {
		return Rental{}, err
	}

	return updated, tx.Commit()
}

const overrideAmountQuery = `UPDATE rentals SET final_amount = $2 WHERE id = $1 RETURNING *`

// RecordPayment stamps the payment mode and remarks on a completed rental.
// This is the last expected write; a second call fails with ErrAlreadyPaid.
func (r *Repository) RecordPayment(ctx context.Context, id uuid.UUID, mode PaymentMode, remarks string) (Rental, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Rental{}, err
	}
	defer tx.Rollback()

	var current Rental
	err = tx.GetContext(ctx, &current, getRentalForUpdate, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Rental{}, ErrNotFound
	}
	if err != nil {
		return Rental{}, err
	}
	if current.Status != StatusCompleted {
		return Rental{}, ErrNotCompleted
	}
	if current.Paid() {
		return Rental{}, ErrAlreadyPaid
	}

	var updated Rental
	err = tx.GetContext(ctx, &updated, recordPaymentQuery, id, string(mode), remarks)
	if err != nil {
		return Rental{}, err
	}

	return updated, tx.Commit()
}

const recordPaymentQuery = `
UPDATE rentals SET payment_mode = $2, remarks = NULLIF($3, '')
WHERE id = $1
RETURNING *
`

func (r *Repository) GetRental(ctx context.Context, id uuid.UUID) (Rental, error) {
	var rental Rental
	err := r.db.GetContext(ctx, &rental, getRental, id)
	if errors.Is(err, sql.ErrNoRows) {
		return rental, ErrNotFound
	}
	return rental, err
}

const getRental = `SELECT * FROM rentals WHERE id = $1`

func (r *Repository) ActiveForCycle(ctx context.Context, cycleID uuid.UUID) (Rental, error) {
	var rental Rental
	err := r.db.GetContext(ctx, &rental, activeForCycle, cycleID)
	if errors.Is(err, sql.ErrNoRows) {
		return rental, ErrNoActiveRental
	}
	return rental, err
}

const activeForCycle = `
SELECT * FROM rentals
WHERE cycle_id = $1 AND status = 'active'
ORDER BY out_time DESC
LIMIT 1
`

// LatestForCycle is the most recently started rental for a cycle, used when
// linking a damage report to the rental active at report time.
func (r *Repository) LatestForCycle(ctx context.Context, cycleID uuid.UUID) (Rental, error) {
	var rental Rental
	err := r.db.GetContext(ctx, &rental, latestForCycle, cycleID)
	if errors.Is(err, sql.ErrNoRows) {
		return rental, ErrNotFound
	}
	return rental, err
}

const latestForCycle = `
SELECT * FROM rentals
WHERE cycle_id = $1
ORDER BY out_time DESC
LIMIT 1
`

func (r *Repository) Lines(ctx context.Context, rentalID uuid.UUID) ([]Line, error) {
	var lines []Line
	err := r.db.SelectContext(ctx, &lines, getLines, rentalID)
	return lines, err
}

const getLines = `
SELECT ra.rental_id, ra.accessory_id, a.name, ra.quantity, ra.price_per_unit
FROM rental_accessories ra
JOIN accessories a ON ra.accessory_id = a.id
WHERE ra.rental_id = $1
ORDER BY a.name
`

func (r *Repository) ListActive(ctx context.Context) ([]Detail, error) {
	var rentals []Detail
	err := r.db.SelectContext(ctx, &rentals, listActive)
	return rentals, err
}

const listActive = `
SELECT r.*, c.cycle_code, COALESCE(cu.full_name, 'Unknown') AS customer_name
FROM rentals r
JOIN cycles c ON r.cycle_id = c.id
LEFT JOIN customers cu ON r.customer_id = cu.id
WHERE r.status = 'active'
ORDER BY r.out_time DESC
`

// ListRecent feeds the kiosk lookup index.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Rental, error) {
	var rentals []Rental
	err := r.db.SelectContext(ctx, &rentals, listRecent, limit)
	return rentals, err
}

const listRecent = `SELECT * FROM rentals ORDER BY out_time DESC LIMIT $1`

func (r *Repository) ListCompletedBetween(ctx context.Context, from, to *time.Time) ([]Detail, error) {
	var rentals []Detail
	var err error
	switch {
	case from != nil && to != nil:
		err = r.db.SelectContext(ctx, &rentals, listCompletedRange, *from, *to)
	case from != nil:
		err = r.db.SelectContext(ctx, &rentals, listCompletedFrom, *from)
	case to != nil:
		err = r.db.SelectContext(ctx, &rentals, listCompletedTo, *to)
	default:
		err = r.db.SelectContext(ctx, &rentals, listCompleted)
	}
	return rentals, err
}

const listCompleted = `
SELECT r.*, c.cycle_code, COALESCE(cu.full_name, 'Unknown') AS customer_name
FROM rentals r
JOIN cycles c ON r.cycle_id = c.id
LEFT JOIN customers cu ON r.customer_id = cu.id
WHERE r.status = 'completed'
ORDER BY r.in_time DESC
`

const listCompletedRange = `
SELECT r.*, c.cycle_code, COALESCE(cu.full_name, 'Unknown') AS customer_name
FROM rentals r
JOIN cycles c ON r.cycle_id = c.id
LEFT JOIN customers cu ON r.customer_id = cu.id
WHERE r.status = 'completed' AND r.in_time >= $1 AND r.in_time < $2
ORDER BY r.in_time DESC
`

const listCompletedFrom = `
SELECT r.*, c.cycle_code, COALESCE(cu.full_name, 'Unknown') AS customer_name
FROM rentals r
JOIN cycles c ON r.cycle_id = c.id
LEFT JOIN customers cu ON r.customer_id = cu.id
WHERE r.status = 'completed' AND r.in_time >= $1
ORDER BY r.in_time DESC
`

const listCompletedTo = `
SELECT r.*, c.cycle_code, COALESCE(cu.full_name, 'Unknown') AS customer_name
FROM rentals r
JOIN cycles c ON r.cycle_id = c.id
LEFT JOIN customers cu ON r.customer_id = cu.id
WHERE r.status = 'completed' AND r.in_time < $1
ORDER BY r.in_time DESC
`

func (r *Repository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, countActive)
	return n, err
}

const countActive = `SELECT count(*) FROM rentals WHERE status = 'active'`

// DayRevenue is one day's completed-rental totals for the reports screen.
type DayRevenue struct {
	Day     time.Time       `db:"day"`
	Rentals int             `db:"rentals"`
	Revenue decimal.Decimal `db:"revenue"`
}

func (r *Repository) RevenueByDay(ctx context.Context, from, to time.Time) ([]DayRevenue, error) {
	var days []DayRevenue
	err := r.db.SelectContext(ctx, &days, revenueByDay, from, to)
	return days, err
}

const revenueByDay = `
SELECT date_trunc('day', in_time) AS day,
       count(*) AS rentals,
       COALESCE(sum(final_amount), 0) AS revenue
FROM rentals
WHERE status = 'completed' AND in_time >= $1 AND in_time < $2
GROUP BY 1
ORDER BY 1
`

// CustomerTotal ranks customers by spend for the reports screen.
type CustomerTotal struct {
	CustomerName string          `db:"customer_name"`
	Rentals      int             `db:"rentals"`
	Total        decimal.Decimal `db:"total"`
}

func (r *Repository) TopCustomers(ctx context.Context, limit int) ([]CustomerTotal, error) {
	var totals []CustomerTotal
	err := r.db.SelectContext(ctx, &totals, topCustomers, limit)
	return totals, err
}

const topCustomers = `
SELECT COALESCE(cu.full_name, 'Unknown') AS customer_name,
       count(*) AS rentals,
       COALESCE(sum(r.final_amount), 0) AS total
FROM rentals r
LEFT JOIN customers cu ON r.customer_id = cu.id
WHERE r.status = 'completed'
GROUP BY 1
ORDER BY total DESC
LIMIT $1
`
