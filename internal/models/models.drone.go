// FilePath: internal/models/models.drone.go
package models

import "time"

// Drone holds a drone's operational envelope plus its last-known telemetry
// snapshot. The envelope is copied verbatim into dispatch commands; the
// last-known fields are written only by the telemetry ingestor.
type Drone struct {
	ID        string `json:"id" db:"id"`
	DroneID   string `json:"drone_id" db:"drone_id"` // business id, unique
	Name      string `json:"name" db:"name"`
	DroneType string `json:"drone_type" db:"drone_type"`

	// Operational envelope
	GPSFix          int     `json:"gps_fix" db:"gps_fix"`
	MinHDOP         float64 `json:"min_hdop" db:"min_hdop"`
	MinSatCount     int     `json:"min_sat_count" db:"min_sat_count"`
	MaxWindSpeed    float64 `json:"max_wind_speed" db:"max_wind_speed"`
	DroneSpeed      float64 `json:"drone_speed" db:"drone_speed"`
	TargetAltitude  float64 `json:"target_altitude" db:"target_altitude"`
	MaxAltitude     float64 `json:"max_altitude" db:"max_altitude"`
	GPSLost         string  `json:"gps_lost" db:"gps_lost"`
	TelemetryLost   string  `json:"telemetry_lost" db:"telemetry_lost"`
	MinBatteryLevel float64 `json:"min_battery_level" db:"min_battery_level"`
	BatteryFailsafe string  `json:"battery_failsafe" db:"battery_failsafe"`
	USBAddress      string  `json:"usb_address" db:"usb_address"`
	GPSName         string  `json:"gps_name" db:"gps_name"`

	AreaDbID *string `json:"area_db_id,omitempty" db:"area_db_id"` // unique, 1:1 drone per area

	// Last-known telemetry snapshot
	LastLatitude  *float64 `json:"last_latitude,omitempty" db:"last_latitude"`
	LastLongitude *float64 `json:"last_longitude,omitempty" db:"last_longitude"`
	LastAltitude  *float64 `json:"last_altitude,omitempty" db:"last_altitude"`
	Battery       *float64 `json:"battery,omitempty" db:"battery"`
	Mode          *string  `json:"mode,omitempty" db:"mode"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DroneStateUpdate carries the last-known-state fields persisted from a
// full telemetry snapshot.
type DroneStateUpdate struct {
	Latitude  *float64
	Longitude *float64
	Altitude  *float64
	Battery   *float64
	Mode      *string
}

// Telemetry is one normalized device-telemetry message. Numeric fields are
// pointers: a nil value means the device reported nothing usable, which is
// forwarded as "unknown" rather than dropped.
type Telemetry struct {
	DroneDbID      string   `json:"drone_db_id"`
	DroneID        string   `json:"drone_id"`
	Latitude       float64  `json:"lat"`
	Longitude      float64  `json:"lng"`
	Altitude       *float64 `json:"alt,omitempty"`
	Speed          *float64 `json:"speed,omitempty"`
	Battery        *float64 `json:"battery,omitempty"`
	Mode           *string  `json:"mode,omitempty"`
	GPSFix         *int     `json:"gps_fix,omitempty"`
	Satellites     *int     `json:"satellites,omitempty"`
	WindSpeed      *float64 `json:"wind_speed,omitempty"`
	TargetDistance *float64 `json:"target_distance,omitempty"`
	Event          *string  `json:"event,omitempty"`
	Status         *string  `json:"status,omitempty"`
	Command        *string  `json:"command,omitempty"`
	ReceivedAt     int64    `json:"ts"` // unix milliseconds
}
