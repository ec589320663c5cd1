// FilePath: internal/hubservice/hubservice.telemetry.go
package hubservice

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/aeroguard/sentinel/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

const telemetryTimeout = 5 * time.Second

// Telemetry messages classified with this command are full state snapshots
// and get persisted as the drone's last-known state; everything else is a
// transient event forwarded to observers only.
const snapshotCommand = "altitudeData"

// HandleTelemetry consumes one device-telemetry bus message. Field names
// vary across firmware generations (droneid/droneId, lat/currentLatitude)
// and numeric values arrive as numbers or strings; coercion is defensive
// and an unparseable value becomes unknown rather than an error. Messages
// for unknown drones are logged and dropped: device fleets get
// reconfigured independently of the backend.
func (s *HubService) HandleTelemetry(topic string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryTimeout)
	defer cancel()

	fields, err := decodeTelemetry(payload)
	if err != nil {
		nuts.L.Warnf("[Telemetry] Unparseable payload on %s: %v", topic, err)
		return
	}

	droneID := fields.pickString("droneid", "droneId")
	lat := fields.pickFloat("currentLatitude", "lat")
	lng := fields.pickFloat("currentLongitude", "lng")
	if droneID == "" || lat == nil || lng == nil {
		nuts.L.Warnf("[Telemetry] Invalid telemetry payload on %s (missing drone id or position)", topic)
		return
	}

	drone, err := s.Drones.GetByBusinessID(ctx, droneID)
	if err != nil {
		nuts.L.Warnf("[Telemetry] Unknown droneId %s, dropping message", droneID)
		return
	}

	telemetry := models.Telemetry{
		DroneDbID:      drone.ID,
		DroneID:        droneID,
		Latitude:       *lat,
		Longitude:      *lng,
		Altitude:       fields.pickFloat("currentAltitude", "alt"),
		Speed:          fields.pickFloat("droneSpeed"),
		Battery:        fields.pickFloat("batteryVoltage"),
		Mode:           fields.pickStringPtr("droneMode"),
		GPSFix:         fields.pickInt("GPSFix"),
		Satellites:     fields.pickInt("satelliteCount"),
		WindSpeed:      fields.pickFloat("windSpeed"),
		TargetDistance: fields.pickFloat("targetDistance"),
		Event:          fields.pickStringPtr("event"),
		Status:         fields.pickStringPtr("status"),
		Command:        fields.pickStringPtr("command"),
		ReceivedAt:     time.Now().UnixMilli(),
	}

	// observers always get the message, snapshot or not
	s.fanout.Publish(EventDroneTelemetry, telemetry)

	if telemetry.Command != nil && *telemetry.Command == snapshotCommand {
		update := models.DroneStateUpdate{
			Latitude:  lat,
			Longitude: lng,
			Altitude:  telemetry.Altitude,
			Battery:   telemetry.Battery,
			Mode:      telemetry.Mode,
		}
		if err := s.Drones.UpdateLastState(ctx, drone.ID, update); err != nil {
			nuts.L.Warnf("[Telemetry] Failed to persist state for drone %s: %v", droneID, err)
		}
	}

	nuts.L.Debugf("[Telemetry] Processed message for drone %s", droneID)
}

// telemetryFields is a decoded telemetry message with variant-tolerant
// accessors. Unrecognized fields are simply never picked.
type telemetryFields map[string]any

func decodeTelemetry(payload []byte) (telemetryFields, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var fields telemetryFields
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// pickString returns the first non-empty string among the given keys.
func (f telemetryFields) pickString(keys ...string) string {
	for _, key := range keys {
		if v, ok := f[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func (f telemetryFields) pickStringPtr(keys ...string) *string {
	if v := f.pickString(keys...); v != "" {
		return &v
	}
	return nil
}

// pickFloat coerces the first present key to a float. Numbers and numeric
// strings both count; anything else is unknown (nil).
func (f telemetryFields) pickFloat(keys ...string) *float64 {
	for _, key := range keys {
		v, ok := f[key]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case json.Number:
			if parsed, err := n.Float64(); err == nil {
				return &parsed
			}
		case string:
			if parsed, err := strconv.ParseFloat(n, 64); err == nil {
				return &parsed
			}
		}
	}
	return nil
}

// pickInt coerces the first present key to an int, same rules as pickFloat.
func (f telemetryFields) pickInt(keys ...string) *int {
	for _, key := range keys {
		v, ok := f[key]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case json.Number:
			if parsed, err := strconv.Atoi(n.String()); err == nil {
				return &parsed
			}
		case string:
			if parsed, err := strconv.Atoi(n); err == nil {
				return &parsed
			}
		}
	}
	return nil
}
