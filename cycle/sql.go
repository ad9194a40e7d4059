package cycle

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound     = errors.New("cycle not found")
	ErrNotAvailable = errors.New("cycle not available")
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetCycles(ctx context.Context) ([]CycleDetail, error) {
	var cycles []CycleDetail
	err := r.db.SelectContext(ctx, &cycles, getCycles)
	return cycles, err
}

const getCycles = `
SELECT c.*, COALESCE(ct.name, '') AS type_name, COALESCE(l.name, '') AS location_name
FROM cycles c
LEFT JOIN cycle_types ct ON c.cycle_type_id = ct.id
LEFT JOIN locations l ON c.location_id = l.id
ORDER BY c.cycle_code
`

func (r *Repository) GetCycleByTag(ctx context.Context, tagID string) (CycleDetail, error) {
	var c CycleDetail
	err := r.db.GetContext(ctx, &c, getCycleByTag, tagID)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

const getCycleByTag = `
SELECT c.*, COALESCE(ct.name, '') AS type_name, COALESCE(l.name, '') AS location_name
FROM cycles c
LEFT JOIN cycle_types ct ON c.cycle_type_id = ct.id
LEFT JOIN locations l ON c.location_id = l.id
WHERE c.rfid_tag_id = $1
`

func (r *Repository) GetCycle(ctx context.Context, id uuid.UUID) (Cycle, error) {
	var c Cycle
	err := r.db.GetContext(ctx, &c, getCycle, id)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

const getCycle = `SELECT * FROM cycles WHERE id = $1`

func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	res, err := r.db.ExecContext(ctx, setStatus, status, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const setStatus = `UPDATE cycles SET status = $1 WHERE id = $2`

// ToggleMaintenance flips a cycle between maintenance and available. A cycle
// in any non-maintenance state goes to maintenance; only a maintenance cycle
// comes back to available.
func (r *Repository) ToggleMaintenance(ctx context.Context, id uuid.UUID) (Status, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var current Status
	err = tx.GetContext(ctx, &current, toggleMaintenance_lock, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	next := StatusMaintenance
	if current == StatusMaintenance {
		next = StatusAvailable
	}

	_, err = tx.ExecContext(ctx, toggleMaintenance_update, next, id)
	if err != nil {
		return "", err
	}

	return next, tx.Commit()
}

const toggleMaintenance_lock = `SELECT status FROM cycles WHERE id = $1 FOR UPDATE`
const toggleMaintenance_update = `UPDATE cycles SET status = $1 WHERE id = $2`

// StatusCounts maps status to the number of cycles in it.
func (r *Repository) StatusCounts(ctx context.Context) (map[Status]int, error) {
	var rows []struct {
		Status Status `db:"status"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, statusCounts); err != nil {
		return nil, err
	}
	counts := make(map[Status]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

const statusCounts = `SELECT status, count(*) AS count FROM cycles GROUP BY status`
