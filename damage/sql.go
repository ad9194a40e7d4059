package damage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("damage report not found")
	ErrMissingType   = errors.New("damage type required")
	ErrBadTransition = errors.New("invalid damage status transition")
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

type CreateParams struct {
	CycleID       *uuid.UUID
	AccessoryID   *uuid.UUID
	RentalID      *uuid.UUID
	ReportedBy    *uuid.UUID
	DamageType    string
	Description   string
	PhotoURL      string
	EstimatedCost *decimal.Decimal
}

// Create inserts a report and, when an accessory is named, its join row, in
// one transaction.
func (r *Repository) Create(ctx context.Context, p CreateParams) (Report, error) {
	if p.DamageType == "" {
		return Report{}, ErrMissingType
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Report{}, err
	}
	defer tx.Rollback()

	var report Report
	err = tx.GetContext(ctx, &report, createReport,
		uuid.New(), p.CycleID, p.RentalID, p.ReportedBy, p.DamageType,
		p.Description, p.PhotoURL, p.EstimatedCost)
	if err != nil {
		return Report{}, err
	}

	if p.AccessoryID != nil {
		if _, err := tx.ExecContext(ctx, createAccessoryLink, report.ID, *p.AccessoryID); err != nil {
			return Report{}, err
		}
	}

	return report, tx.Commit()
}

const createReport = `
INSERT INTO damages (id, cycle_id, rental_id, reported_by, damage_type, description, photo_url, estimated_cost, status, reported_on)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, 'pending', now())
RETURNING *
`

const createAccessoryLink = `INSERT INTO damage_accessories (damage_id, accessory_id) VALUES ($1, $2)`

func (r *Repository) GetReport(ctx context.Context, id uuid.UUID) (Report, error) {
	var report Report
	err := r.db.GetContext(ctx, &report, getReport, id)
	if errors.Is(err, sql.ErrNoRows) {
		return report, ErrNotFound
	}
	return report, err
}

const getReport = `SELECT * FROM damages WHERE id = $1`

// ChangeStatus advances a report. Transitions are forward only; resolved_on
// is stamped only on entry into repaired, matching long-standing system
// behavior, so scrapped reports carry no resolution instant.
func (r *Repository) ChangeStatus(ctx context.Context, id uuid.UUID, next Status) (Report, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Report{}, err
	}
	defer tx.Rollback()

	var current Report
	err = tx.GetContext(ctx, &current, getReportForUpdate, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	if err != nil {
		return Report{}, err
	}

	if !current.Status.CanAdvance(next) {
		return Report{}, fmt.Errorf("%w: %s -> %s", ErrBadTransition, current.Status, next)
	}

	var updated Report
	if next == StatusRepaired {
		err = tx.GetContext(ctx, &updated, changeStatusResolved, id, next)
	} else {
		err = tx.GetContext(ctx, &updated, changeStatus, id, next)
	}
	if err != nil {
		return Report{}, err
	}

	return updated, tx.Commit()
}

const getReportForUpdate = `SELECT * FROM damages WHERE id = $1 FOR UPDATE`

const changeStatus = `UPDATE damages SET status = $2 WHERE id = $1 RETURNING *`

const changeStatusResolved = `UPDATE damages SET status = $2, resolved_on = now() WHERE id = $1 RETURNING *`

// Delete removes the report and its accessory links. Hard delete.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteAccessoryLinks, id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, deleteReport, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

const deleteAccessoryLinks = `DELETE FROM damage_accessories WHERE damage_id = $1`
const deleteReport = `DELETE FROM damages WHERE id = $1`

// ListActive returns pending and under-repair reports, newest first.
func (r *Repository) ListActive(ctx context.Context) ([]Detail, error) {
	var reports []Detail
	err := r.db.SelectContext(ctx, &reports, listActive)
	return reports, err
}

const listActive = `
SELECT d.*, c.cycle_code, s.name AS reporter_name, da.accessory_id, a.name AS accessory_name
FROM damages d
LEFT JOIN cycles c ON d.cycle_id = c.id
LEFT JOIN staff s ON d.reported_by = s.id
LEFT JOIN damage_accessories da ON da.damage_id = d.id
LEFT JOIN accessories a ON da.accessory_id = a.id
WHERE d.status IN ('pending', 'under_repair')
ORDER BY d.reported_on DESC
`

// ListHistory returns resolved reports, optionally filtered to one terminal
// status, newest resolution first.
func (r *Repository) ListHistory(ctx context.Context, status *Status) ([]Detail, error) {
	var reports []Detail
	if status != nil {
		err := r.db.SelectContext(ctx, &reports, listHistoryFiltered, *status)
		return reports, err
	}
	err := r.db.SelectContext(ctx, &reports, listHistory)
	return reports, err
}

const listHistory = `
SELECT d.*, c.cycle_code, s.name AS reporter_name, da.accessory_id, a.name AS accessory_name
FROM damages d
LEFT JOIN cycles c ON d.cycle_id = c.id
LEFT JOIN staff s ON d.reported_by = s.id
LEFT JOIN damage_accessories da ON da.damage_id = d.id
LEFT JOIN accessories a ON da.accessory_id = a.id
WHERE d.status IN ('repaired', 'scrapped')
ORDER BY d.resolved_on DESC NULLS LAST, d.reported_on DESC
`

const listHistoryFiltered = `
SELECT d.*, c.cycle_code, s.name AS reporter_name, da.accessory_id, a.name AS accessory_name
FROM damages d
LEFT JOIN cycles c ON d.cycle_id = c.id
LEFT JOIN staff s ON d.reported_by = s.id
LEFT JOIN damage_accessories da ON da.damage_id = d.id
LEFT JOIN accessories a ON da.accessory_id = a.id
WHERE d.status = $1
ORDER BY d.resolved_on DESC NULLS LAST, d.reported_on DESC
`

func (r *Repository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, countActive)
	return n, err
}

const countActive = `SELECT count(*) FROM damages WHERE status IN ('pending', 'under_repair')`
