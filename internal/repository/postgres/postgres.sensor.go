// FilePath: internal/repository/postgres/postgres.sensor.go
package postgres

import (
	"context"
	"database/sql"

	"github.com/aeroguard/sentinel/internal/database"
	"github.com/aeroguard/sentinel/internal/errors"
	"github.com/aeroguard/sentinel/internal/models"
)

type SensorRepo struct {
	PostgresBaseRepo
}

func NewSensorRepository(db database.DB) *SensorRepo {
	repo := &PostgresBaseRepo{db: db}
	return &SensorRepo{PostgresBaseRepo: *repo}
}

func (r *SensorRepo) Get(ctx context.Context, id string) (*models.Sensor, error) {
	sensor := &models.Sensor{}
	query := `SELECT * FROM sensors WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, sensor, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("sensor not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get sensor", err)
	}
	return sensor, nil
}

func (r *SensorRepo) GetByBusinessID(ctx context.Context, sensorID string) (*models.Sensor, error) {
	sensor := &models.Sensor{}
	query := `SELECT * FROM sensors WHERE sensor_id = $1`

	err := r.db.GetDB().GetContext(ctx, sensor, query, sensorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("sensor not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get sensor", err)
	}
	return sensor, nil
}
