// FilePath: internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/aeroguard/sentinel/internal/database"
	"github.com/aeroguard/sentinel/internal/models"
)

var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicateActiveAlert indicates the store rejected an insert because
	// the sensor already has an ACTIVE alert. Callers treat this identically
	// to "already active": idempotent success, no new row.
	ErrDuplicateActiveAlert = errors.New("sensor already has an active alert")
	// ErrNotActive indicates a conditional transition matched zero rows:
	// the alert is missing or no longer ACTIVE. The caller lost the race
	// and must not apply side effects.
	ErrNotActive = errors.New("alert not found or not active")
)

// SensorRepository defines read access to sensors
type SensorRepository interface {
	database.Repository
	Get(ctx context.Context, id string) (*models.Sensor, error)
	GetByBusinessID(ctx context.Context, sensorID string) (*models.Sensor, error)
}

// AreaRepository defines read access to areas
type AreaRepository interface {
	database.Repository
	Get(ctx context.Context, id string) (*models.Area, error)
}

// DroneRepository defines drone lookups plus the single last-known-state
// writer used by the telemetry ingestor
type DroneRepository interface {
	database.Repository
	Get(ctx context.Context, id string) (*models.Drone, error)
	GetByBusinessID(ctx context.Context, droneID string) (*models.Drone, error)
	GetByArea(ctx context.Context, areaDbID string) (*models.Drone, error)
	UpdateLastState(ctx context.Context, id string, state models.DroneStateUpdate) error
}

// AlertRepository owns all alert rows. CreateActive and the transition
// methods are the only mutation paths; both rely on store-level atomicity
// (partial unique index, conditional updates) instead of app-level locks.
type AlertRepository interface {
	database.Repository
	CreateActive(ctx context.Context, alert *models.Alert) error
	Get(ctx context.Context, id string) (*models.Alert, error)
	GetActiveBySensor(ctx context.Context, sensorDbID string) (*models.Alert, error)
	TransitionFromActive(ctx context.Context, id string, target models.AlertStatus, decision string, decidedAt time.Time) (*models.Alert, error)
	NeutraliseAllActive(ctx context.Context, decision string, decidedAt time.Time) ([]string, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters models.AlertFilters) (int64, []*models.Alert, error)
	ListActive(ctx context.Context) ([]*models.Alert, error)
	ListBySensor(ctx context.Context, sensorDbID string) ([]*models.Alert, error)
}

// FlightHistoryRepository is append-only; the dispatch coordinator is its
// only writer
type FlightHistoryRepository interface {
	database.Repository
	Create(ctx context.Context, flight *models.FlightHistory) error
	ListByDrone(ctx context.Context, droneDbID string, offset, limit int) ([]*models.FlightHistory, error)
}
