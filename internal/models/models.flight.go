// FilePath: internal/models/models.flight.go
package models

import "time"

// FlightHistory is the append-only audit record of one dispatch event.
// Exactly one row is created per successful dispatch, in the same logical
// operation as the alert's ACTIVE to SENT transition.
type FlightHistory struct {
	ID           string    `json:"id" db:"id"`
	DroneDbID    string    `json:"drone_db_id" db:"drone_db_id"`
	SensorID     *string   `json:"sensor_id,omitempty" db:"sensor_id"` // business id
	AlertID      *string   `json:"alert_id,omitempty" db:"alert_id"`
	DispatchedAt time.Time `json:"dispatched_at" db:"dispatched_at"`
}
