// FilePath: internal/models/models.sensor.go
package models

import "time"

// Sensor is a fixed intrusion sensor installed in the field. Created and
// edited by admin flows; the orchestrator only reads it.
type Sensor struct {
	ID           string    `json:"id" db:"id"`
	SensorID     string    `json:"sensor_id" db:"sensor_id"` // business id, unique
	Name         string    `json:"name" db:"name"`
	Latitude     float64   `json:"latitude" db:"latitude"`
	Longitude    float64   `json:"longitude" db:"longitude"`
	AreaDbID     *string   `json:"area_db_id,omitempty" db:"area_db_id"`
	AutoDispatch bool      `json:"auto_dispatch" db:"auto_dispatch"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Area groups sensors and owns at most one drone.
type Area struct {
	ID        string    `json:"id" db:"id"`
	AreaID    string    `json:"area_id" db:"area_id"` // business id, unique
	Name      string    `json:"name" db:"name"`
	Latitude  float64   `json:"latitude" db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SensorSummary is the denormalized sensor view embedded in fan-out payloads.
type SensorSummary struct {
	ID        string      `json:"id"`
	SensorID  string      `json:"sensor_id"`
	Name      string      `json:"name"`
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	Area      AreaSummary `json:"area"`
}

type AreaSummary struct {
	AreaID string `json:"area_id"`
	Name   string `json:"name"`
}
