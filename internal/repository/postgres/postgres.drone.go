// FilePath: internal/repository/postgres/postgres.drone.go
package postgres

import (
	"context"
	"database/sql"

	"github.com/aeroguard/sentinel/internal/database"
	"github.com/aeroguard/sentinel/internal/errors"
	"github.com/aeroguard/sentinel/internal/models"
)

type DroneRepo struct {
	PostgresBaseRepo
}

func NewDroneRepository(db database.DB) *DroneRepo {
	repo := &PostgresBaseRepo{db: db}
	return &DroneRepo{PostgresBaseRepo: *repo}
}

func (r *DroneRepo) Get(ctx context.Context, id string) (*models.Drone, error) {
	drone := &models.Drone{}
	query := `SELECT * FROM drones WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, drone, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("drone not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get drone", err)
	}
	return drone, nil
}

func (r *DroneRepo) GetByBusinessID(ctx context.Context, droneID string) (*models.Drone, error) {
	drone := &models.Drone{}
	query := `SELECT * FROM drones WHERE drone_id = $1`

	err := r.db.GetDB().GetContext(ctx, drone, query, droneID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("drone not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get drone", err)
	}
	return drone, nil
}

// GetByArea resolves the single drone assigned to an area. The area_db_id
// column carries a unique constraint, so the lookup is deterministic.
func (r *DroneRepo) GetByArea(ctx context.Context, areaDbID string) (*models.Drone, error) {
	drone := &models.Drone{}
	query := `SELECT * FROM drones WHERE area_db_id = $1`

	err := r.db.GetDB().GetContext(ctx, drone, query, areaDbID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("no drone assigned to area", err)
		}
		return nil, errors.NewDatabaseError("failed to get drone by area", err)
	}
	return drone, nil
}

// UpdateLastState persists a drone's last-known telemetry snapshot. The
// telemetry ingestor is the only caller.
func (r *DroneRepo) UpdateLastState(ctx context.Context, id string, state models.DroneStateUpdate) error {
	query := `
		UPDATE drones SET
			last_latitude = COALESCE($1, last_latitude),
			last_longitude = COALESCE($2, last_longitude),
			last_altitude = COALESCE($3, last_altitude),
			battery = COALESCE($4, battery),
			mode = COALESCE($5, mode),
			updated_at = NOW()
		WHERE id = $6`

	result, err := r.db.GetDB().ExecContext(ctx, query,
		state.Latitude, state.Longitude, state.Altitude, state.Battery, state.Mode, id)
	if err != nil {
		return errors.NewDatabaseError("failed to update drone state", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("drone not found", nil)
	}

	return nil
}
