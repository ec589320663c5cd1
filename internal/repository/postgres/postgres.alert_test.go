// FilePath: internal/repository/postgres/postgres.alert_test.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "github.com/aeroguard/sentinel/internal/errors"
	"github.com/aeroguard/sentinel/internal/models"
	"github.com/aeroguard/sentinel/internal/repository"
)

type mockDB struct {
	db *sqlx.DB
}

func (m *mockDB) Close() error                 { return m.db.Close() }
func (m *mockDB) Ping(ctx context.Context) error { return m.db.PingContext(ctx) }
func (m *mockDB) GetDB() *sqlx.DB              { return m.db }

func setupMockAlertRepo(t *testing.T) (sqlmock.Sqlmock, *AlertRepo, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	wrapped := &mockDB{db: sqlx.NewDb(db, "sqlmock")}
	repo := NewAlertRepository(wrapped)

	return mock, repo, func() { db.Close() }
}

func alertColumns() []string {
	return []string{
		"id", "sensor_db_id", "sensor_id", "type", "message",
		"confidence", "detected_at", "status", "decision", "decided_at",
		"created_at", "updated_at",
	}
}

func testAlert() *models.Alert {
	now := time.Now().UTC()
	return &models.Alert{
		ID:         "alr_test1",
		SensorDbID: "sns_db1",
		SensorID:   "sensor-001",
		Type:       "Person",
		Message:    "Person detected",
		Confidence: 87,
		DetectedAt: now,
		Status:     models.AlertActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestCreateActive_Success(t *testing.T) {
	mock, repo, cleanup := setupMockAlertRepo(t)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO alerts`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateActive(context.Background(), testAlert())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateActive_DuplicateActiveIsConflict(t *testing.T) {
	mock, repo, cleanup := setupMockAlertRepo(t)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO alerts`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.CreateActive(context.Background(), testAlert())
	require.Error(t, err)
	assert.True(t, apierrors.IsConflict(err))
	assert.ErrorIs(t, err, repository.ErrDuplicateActiveAlert)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	mock, repo, cleanup := setupMockAlertRepo(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT \* FROM alerts WHERE id`).
		WithArgs("alr_missing").
		WillReturnError(sql.ErrNoRows)

	alert, err := repo.Get(context.Background(), "alr_missing")
	assert.Nil(t, alert)
	assert.True(t, apierrors.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActiveBySensor_Found(t *testing.T) {
	mock, repo, cleanup := setupMockAlertRepo(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(alertColumns()).AddRow(
		"alr_test1", "sns_db1", "sensor-001", "Person", "Person detected",
		87.0, now, "ACTIVE", nil, nil, now, now,
	)
	mock.ExpectQuery(`SELECT \* FROM alerts WHERE sensor_db_id`).
		WithArgs("sns_db1").
		WillReturnRows(rows)

	alert, err := repo.GetActiveBySensor(context.Background(), "sns_db1")
	require.NoError(t, err)
	assert.Equal(t, "alr_test1", alert.ID)
	assert.Equal(t, models.AlertActive, alert.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionFromActive_Winner(t *testing.T) {
	mock, repo, cleanup := setupMockAlertRepo(t)
	defer cleanup()

	now := time.Now().UTC()
	decision := "send_drone:drn_db1"
	rows := sqlmock.NewRows(alertColumns()).AddRow(
		"alr_test1", "sns_db1", "sensor-001", "Person", "Person detected",
		87.0, now, "SENT", decision, now, now, now,
	)
	mock.ExpectQuery(`UPDATE alerts SET`).
		WithArgs(models.AlertSent, decision, now, "alr_test1").
		WillReturnRows(rows)

	alert, err := repo.TransitionFromActive(context.Background(), "alr_test1", models.AlertSent, decision, now)
	require.NoError(t, err)
	assert.Equal(t, models.AlertSent, alert.Status)
	require.NotNil(t, alert.Decision)
	assert.Equal(t, decision, *alert.Decision)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionFromActive_LoserGetsConflict(t *testing.T) {
	mock, repo, cleanup := setupMockAlertRepo(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery(`UPDATE alerts SET`).
		WithArgs(models.AlertNeutralised, "neutralised", now, "alr_test1").
		WillReturnError(sql.ErrNoRows)

	alert, err := repo.TransitionFromActive(context.Background(), "alr_test1", models.AlertNeutralised, "neutralised", now)
	assert.Nil(t, alert)
	assert.True(t, apierrors.IsConflict(err))
	assert.ErrorIs(t, err, repository.ErrNotActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNeutraliseAllActive_ReturnsAffectedIDs(t *testing.T) {
	mock, repo, cleanup := setupMockAlertRepo(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id"}).
		AddRow("alr_1").
		AddRow("alr_2").
		AddRow("alr_3")
	mock.ExpectQuery(`UPDATE alerts SET`).
		WithArgs("neutralised_all", now).
		WillReturnRows(rows)

	ids, err := repo.NeutraliseAllActive(context.Background(), "neutralised_all", now)
	require.NoError(t, err)
	assert.Equal(t, []string{"alr_1", "alr_2", "alr_3"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNeutraliseAllActive_NoActiveAlerts(t *testing.T) {
	mock, repo, cleanup := setupMockAlertRepo(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery(`UPDATE alerts SET`).
		WithArgs("neutralised_all", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	ids, err := repo.NeutraliseAllActive(context.Background(), "neutralised_all", now)
	require.NoError(t, err)
	assert.Empty(t, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_NotFound(t *testing.T) {
	mock, repo, cleanup := setupMockAlertRepo(t)
	defer cleanup()

	mock.ExpectExec(`DELETE FROM alerts`).
		WithArgs("alr_missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "alr_missing")
	assert.True(t, apierrors.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_StatusFilterAndPagination(t *testing.T) {
	mock, repo, cleanup := setupMockAlertRepo(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM alerts WHERE status`).
		WithArgs("ACTIVE").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	rows := sqlmock.NewRows(alertColumns()).AddRow(
		"alr_test1", "sns_db1", "sensor-001", "Person", "Person detected",
		87.0, now, "ACTIVE", nil, nil, now, now,
	)
	mock.ExpectQuery(`SELECT \* FROM alerts WHERE status .+ ORDER BY created_at DESC LIMIT`).
		WithArgs("ACTIVE", 10, 5).
		WillReturnRows(rows)

	total, alerts, err := repo.List(context.Background(), models.AlertFilters{
		Status: "ACTIVE",
		Limit:  10,
		Skip:   5,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	assert.Len(t, alerts, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_DatabaseErrorWrapped(t *testing.T) {
	mock, repo, cleanup := setupMockAlertRepo(t)
	defer cleanup()

	boom := errors.New("connection reset")
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM alerts`).
		WillReturnError(boom)

	_, _, err := repo.List(context.Background(), models.AlertFilters{Limit: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}
