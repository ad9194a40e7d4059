package damage

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPending, StatusUnderRepair, true},
		{StatusPending, StatusRepaired, true},
		{StatusPending, StatusScrapped, true},
		{StatusUnderRepair, StatusRepaired, true},
		{StatusUnderRepair, StatusScrapped, true},
		{StatusUnderRepair, StatusPending, false},
		{StatusRepaired, StatusScrapped, false},
		{StatusScrapped, StatusRepaired, false},
		{StatusRepaired, StatusPending, false},
		{StatusPending, StatusPending, false},
		{StatusPending, Status("broken"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanAdvance(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func newTestRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewRepository(sqlx.NewDb(mockDB, "sqlmock")), mock
}

var reportColumns = []string{
	"id", "cycle_id", "rental_id", "reported_by", "damage_type",
	"description", "photo_url", "estimated_cost", "status",
	"reported_on", "resolved_on", "remarks",
}

func reportRow(id uuid.UUID, status Status, resolvedOn any) *sqlmock.Rows {
	reportedOn := time.Date(2025, 11, 2, 10, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(reportColumns).
		AddRow(id.String(), nil, nil, nil, "Flat tyre", nil, nil, nil, string(status), reportedOn, resolvedOn, nil)
}

func TestCreateRequiresDamageType(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Create(context.Background(), CreateParams{})
	assert.ErrorIs(t, err, ErrMissingType)
}

func TestCreateAccessoryOnlyReport(t *testing.T) {
	repo, mock := newTestRepo(t)

	reportID, basketID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO damages").
		WillReturnRows(reportRow(reportID, StatusPending, nil))
	mock.ExpectExec(regexp.QuoteMeta(createAccessoryLink)).
		WithArgs(reportID.String(), basketID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := repo.Create(context.Background(), CreateParams{
		AccessoryID: &basketID,
		DamageType:  "Accessory damage",
		Description: "Reported via quick action",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Nil(t, got.CycleID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeStatusStampsResolvedOnlyForRepaired(t *testing.T) {
	repo, mock := newTestRepo(t)
	reportID := uuid.New()

	// Repaired stamps resolved_on.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(getReportForUpdate)).
		WillReturnRows(reportRow(reportID, StatusUnderRepair, nil))
	mock.ExpectQuery(regexp.QuoteMeta(changeStatusResolved)).
		WillReturnRows(reportRow(reportID, StatusRepaired, time.Now().UTC()))
	mock.ExpectCommit()

	got, err := repo.ChangeStatus(context.Background(), reportID, StatusRepaired)
	require.NoError(t, err)
	assert.True(t, got.ResolvedOn.Valid)

	// Scrapped straight from pending leaves resolved_on unset.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(getReportForUpdate)).
		WillReturnRows(reportRow(reportID, StatusPending, nil))
	mock.ExpectQuery(regexp.QuoteMeta(changeStatus)).
		WillReturnRows(reportRow(reportID, StatusScrapped, nil))
	mock.ExpectCommit()

	got, err = repo.ChangeStatus(context.Background(), reportID, StatusScrapped)
	require.NoError(t, err)
	assert.Equal(t, StatusScrapped, got.Status)
	assert.False(t, got.ResolvedOn.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeStatusRejectsBackward(t *testing.T) {
	repo, mock := newTestRepo(t)
	reportID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(getReportForUpdate)).
		WillReturnRows(reportRow(reportID, StatusRepaired, time.Now().UTC()))
	mock.ExpectRollback()

	_, err := repo.ChangeStatus(context.Background(), reportID, StatusUnderRepair)
	assert.ErrorIs(t, err, ErrBadTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRemovesLinksAndReport(t *testing.T) {
	repo, mock := newTestRepo(t)
	reportID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(deleteAccessoryLinks)).WithArgs(reportID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(deleteReport)).WithArgs(reportID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), reportID))

	// Unknown id reports not found.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(deleteAccessoryLinks)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(deleteReport)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	assert.ErrorIs(t, repo.Delete(context.Background(), uuid.New()), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
