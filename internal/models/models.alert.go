// FilePath: internal/models/models.alert.go
package models

import "time"

// AlertStatus is the lifecycle state of an alert. ACTIVE is the only
// non-terminal state; SENT and NEUTRALISED are never mutated again.
type AlertStatus string

const (
	AlertActive      AlertStatus = "ACTIVE"
	AlertSent        AlertStatus = "SENT"
	AlertNeutralised AlertStatus = "NEUTRALISED"
)

// ValidAlertStatus reports whether s is one of the known lifecycle states.
func ValidAlertStatus(s string) bool {
	switch AlertStatus(s) {
	case AlertActive, AlertSent, AlertNeutralised:
		return true
	}
	return false
}

// Alert records a single detection event and its resolution lifecycle for
// one sensor. At most one Alert per sensor may be ACTIVE at any instant;
// the store enforces this with a partial unique index over
// (sensor_db_id) WHERE status = 'ACTIVE'.
type Alert struct {
	ID         string      `json:"id" db:"id"`
	SensorDbID string      `json:"sensor_db_id" db:"sensor_db_id"`
	SensorID   string      `json:"sensor_id" db:"sensor_id"` // denormalized business id, kept for audit
	Type       string      `json:"type" db:"type"`
	Message    string      `json:"message" db:"message"`
	Confidence float64     `json:"confidence" db:"confidence"`
	DetectedAt time.Time   `json:"detected_at" db:"detected_at"`
	Status     AlertStatus `json:"status" db:"status"`
	Decision   *string     `json:"decision,omitempty" db:"decision"`
	DecidedAt  *time.Time  `json:"decided_at,omitempty" db:"decided_at"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"`
}

// AlertWithSensor is the read-path projection joining an alert with its
// sensor and area summaries for dashboards.
type AlertWithSensor struct {
	Alert
	Sensor SensorSummary `json:"sensor"`
}
