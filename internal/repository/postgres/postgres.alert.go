// FilePath: internal/repository/postgres/postgres.alert.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aeroguard/sentinel/internal/database"
	"github.com/aeroguard/sentinel/internal/errors"
	"github.com/aeroguard/sentinel/internal/models"
	"github.com/aeroguard/sentinel/internal/repository"
	"github.com/lib/pq"
)

type AlertRepo struct {
	PostgresBaseRepo
}

func NewAlertRepository(db database.DB) *AlertRepo {
	repo := &PostgresBaseRepo{db: db}
	return &AlertRepo{PostgresBaseRepo: *repo}
}

// CreateActive inserts a new ACTIVE alert. The alerts table carries a
// partial unique index over (sensor_db_id) WHERE status = 'ACTIVE', so a
// concurrent duplicate detection loses here with a unique violation rather
// than slipping past an application-level check.
func (r *AlertRepo) CreateActive(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (
			id, sensor_db_id, sensor_id, type, message,
			confidence, detected_at, status, created_at, updated_at
		) VALUES (
			:id, :sensor_db_id, :sensor_id, :type, :message,
			:confidence, :detected_at, :status, :created_at, :updated_at
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, alert)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewConflictError("sensor already has an active alert", repository.ErrDuplicateActiveAlert)
		}
		return errors.NewDatabaseError("failed to create alert", err)
	}
	return nil
}

func (r *AlertRepo) Get(ctx context.Context, id string) (*models.Alert, error) {
	alert := &models.Alert{}
	query := `SELECT * FROM alerts WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, alert, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("alert not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get alert", err)
	}
	return alert, nil
}

func (r *AlertRepo) GetActiveBySensor(ctx context.Context, sensorDbID string) (*models.Alert, error) {
	alert := &models.Alert{}
	query := `SELECT * FROM alerts WHERE sensor_db_id = $1 AND status = 'ACTIVE'`

	err := r.db.GetDB().GetContext(ctx, alert, query, sensorDbID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("no active alert for sensor", err)
		}
		return nil, errors.NewDatabaseError("failed to get active alert", err)
	}
	return alert, nil
}

// TransitionFromActive moves one alert out of ACTIVE with a single
// conditional update. Two racing attempts produce exactly one winner; the
// loser matches zero rows and gets a conflict carrying ErrNotActive.
func (r *AlertRepo) TransitionFromActive(ctx context.Context, id string, target models.AlertStatus, decision string, decidedAt time.Time) (*models.Alert, error) {
	alert := &models.Alert{}
	query := `
		UPDATE alerts SET
			status = $1,
			decision = $2,
			decided_at = $3,
			updated_at = NOW()
		WHERE id = $4 AND status = 'ACTIVE'
		RETURNING *`

	err := r.db.GetDB().GetContext(ctx, alert, query, target, decision, decidedAt, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewConflictError("alert not found or not active", repository.ErrNotActive)
		}
		return nil, errors.NewDatabaseError("failed to transition alert", err)
	}
	return alert, nil
}

// NeutraliseAllActive bulk-transitions every ACTIVE alert in one statement.
// A read-then-loop-write would act on a stale snapshot; the single filtered
// update cannot.
func (r *AlertRepo) NeutraliseAllActive(ctx context.Context, decision string, decidedAt time.Time) ([]string, error) {
	ids := []string{}
	query := `
		UPDATE alerts SET
			status = 'NEUTRALISED',
			decision = $1,
			decided_at = $2,
			updated_at = NOW()
		WHERE status = 'ACTIVE'
		RETURNING id`

	err := r.db.GetDB().SelectContext(ctx, &ids, query, decision, decidedAt)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to neutralise active alerts", err)
	}
	return ids, nil
}

func (r *AlertRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM alerts WHERE id = $1`

	result, err := r.db.GetDB().ExecContext(ctx, query, id)
	if err != nil {
		return errors.NewDatabaseError("failed to delete alert", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("alert not found", nil)
	}

	return nil
}

func (r *AlertRepo) List(ctx context.Context, filters models.AlertFilters) (int64, []*models.Alert, error) {
	where := ""
	args := []interface{}{}
	if filters.Status != "" {
		where = " WHERE status = $1"
		args = append(args, filters.Status)
	}

	var total int64
	if err := r.db.GetDB().GetContext(ctx, &total, `SELECT COUNT(*) FROM alerts`+where, args...); err != nil {
		return 0, nil, errors.NewDatabaseError("failed to count alerts", err)
	}

	sortField := "created_at"
	if filters.SortBy == "decidedAt" {
		sortField = "decided_at"
	}
	sortDir := "DESC"
	if filters.SortOrder == "asc" {
		sortDir = "ASC"
	}

	query := `SELECT * FROM alerts` + where +
		` ORDER BY ` + sortField + ` ` + sortDir +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filters.Limit, filters.Skip)

	alerts := []*models.Alert{}
	if err := r.db.GetDB().SelectContext(ctx, &alerts, query, args...); err != nil {
		return 0, nil, errors.NewDatabaseError("failed to list alerts", err)
	}

	return total, alerts, nil
}

func (r *AlertRepo) ListActive(ctx context.Context) ([]*models.Alert, error) {
	alerts := []*models.Alert{}
	query := `SELECT * FROM alerts WHERE status = 'ACTIVE' ORDER BY created_at ASC`

	if err := r.db.GetDB().SelectContext(ctx, &alerts, query); err != nil {
		return nil, errors.NewDatabaseError("failed to list active alerts", err)
	}
	return alerts, nil
}

func (r *AlertRepo) ListBySensor(ctx context.Context, sensorDbID string) ([]*models.Alert, error) {
	alerts := []*models.Alert{}
	query := `SELECT * FROM alerts WHERE sensor_db_id = $1 ORDER BY created_at DESC`

	if err := r.db.GetDB().SelectContext(ctx, &alerts, query, sensorDbID); err != nil {
		return nil, errors.NewDatabaseError("failed to list alerts by sensor", err)
	}
	return alerts, nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
