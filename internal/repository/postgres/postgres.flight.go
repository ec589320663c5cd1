// FilePath: internal/repository/postgres/postgres.flight.go
package postgres

import (
	"context"

	"github.com/aeroguard/sentinel/internal/database"
	"github.com/aeroguard/sentinel/internal/errors"
	"github.com/aeroguard/sentinel/internal/models"
)

type FlightHistoryRepo struct {
	PostgresBaseRepo
}

func NewFlightHistoryRepository(db database.DB) *FlightHistoryRepo {
	repo := &PostgresBaseRepo{db: db}
	return &FlightHistoryRepo{PostgresBaseRepo: *repo}
}

func (r *FlightHistoryRepo) Create(ctx context.Context, flight *models.FlightHistory) error {
	query := `
		INSERT INTO flight_history (
			id, drone_db_id, sensor_id, alert_id, dispatched_at
		) VALUES (
			:id, :drone_db_id, :sensor_id, :alert_id, :dispatched_at
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, flight)
	if err != nil {
		return errors.NewDatabaseError("failed to create flight history", err)
	}
	return nil
}

func (r *FlightHistoryRepo) ListByDrone(ctx context.Context, droneDbID string, offset, limit int) ([]*models.FlightHistory, error) {
	flights := []*models.FlightHistory{}
	query := `SELECT * FROM flight_history WHERE drone_db_id = $1 ORDER BY dispatched_at DESC LIMIT $2 OFFSET $3`

	if err := r.db.GetDB().SelectContext(ctx, &flights, query, droneDbID, limit, offset); err != nil {
		return nil, errors.NewDatabaseError("failed to list flight history", err)
	}
	return flights, nil
}
