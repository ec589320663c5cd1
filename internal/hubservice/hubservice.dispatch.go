// FilePath: internal/hubservice/hubservice.dispatch.go
package hubservice

import (
	"context"
	"strconv"
	"time"

	"github.com/aeroguard/sentinel/internal/errors"
	"github.com/aeroguard/sentinel/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// Drone command event names. Each family has its own outbound topic under
// the configured command prefix.
const (
	CommandSendDrone   = "send_drone"
	CommandDropPayload = "drop_payload"
	CommandRecallDrone = "recall_drone"
	CommandPatrol      = "patrol"
)

// DroneCommand is the wire payload consumed by physical drones. Numeric
// fields travel as decimal strings so the device side never sees a
// cross-language floating point representation mismatch.
type DroneCommand struct {
	DroneID        string `json:"droneId"`
	Event          string `json:"event"`
	AreaID         string `json:"areaId,omitempty"`
	Latitude       string `json:"latitude,omitempty"`
	Longitude      string `json:"longitude,omitempty"`
	TargetAltitude string `json:"targetAltitude,omitempty"`
	USBAddress     string `json:"usbAddress"`
}

// LatLon is an explicit dispatch target.
type LatLon struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DispatchResult summarizes a successful alert dispatch.
type DispatchResult struct {
	Alert    *models.Alert `json:"alert"`
	DroneID  string        `json:"drone_id"`
	Drone    string        `json:"drone"`
	FlightID string        `json:"flight_id"`
}

// AutoDispatchResult reports the outcome of an automatic dispatch attempt.
// Skipped outcomes are expected no-ops, never errors: auto dispatch is a
// convenience, not a requirement for alert correctness.
type AutoDispatchResult struct {
	Skipped  bool   `json:"skipped"`
	Reason   string `json:"reason,omitempty"`
	DroneID  string `json:"drone_id,omitempty"`
	FlightID string `json:"flight_id,omitempty"`
}

// DispatchService is the drone dispatch surface of the orchestrator.
type DispatchService interface {
	SendDroneForAlert(ctx context.Context, alertID, droneDbID string, target *LatLon) (*DispatchResult, error)
	SendDroneCommand(ctx context.Context, droneDbID string, alertID, sensorID *string, target LatLon) (string, error)
	SimpleDroneCommand(ctx context.Context, droneDbID, command string) error
	ListFlightsByDrone(ctx context.Context, droneDbID string, offset, limit int) ([]*models.FlightHistory, error)
}

// SendDroneForAlert is the operator-triggered dispatch path. Only ACTIVE
// alerts may dispatch; the conditional ACTIVE to SENT transition decides
// the winner of any race, and only the winner publishes a command and
// records flight history.
func (s *HubService) SendDroneForAlert(ctx context.Context, alertID, droneDbID string, target *LatLon) (*DispatchResult, error) {
	if droneDbID == "" {
		return nil, errors.NewValidationError("droneId is required", nil)
	}

	drone, err := s.Drones.Get(ctx, droneDbID)
	if err != nil {
		return nil, err
	}

	alert, err := s.Alerts.Get(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert.Status != models.AlertActive {
		return nil, errors.NewPreconditionError("only ACTIVE alerts can dispatch a drone", nil)
	}

	if target == nil {
		// fall back to the raising sensor's position
		sensor, err := s.Sensors.Get(ctx, alert.SensorDbID)
		if err != nil {
			return nil, err
		}
		target = &LatLon{Latitude: sensor.Latitude, Longitude: sensor.Longitude}
	}

	// The transition is the commit point: a concurrent neutralise or
	// second dispatch loses here and applies zero side effects.
	updated, err := s.Alerts.TransitionFromActive(ctx, alertID, models.AlertSent, "send_drone:"+drone.ID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	flightID := s.dispatch(ctx, updated, drone, *target, CommandSendDrone)

	return &DispatchResult{
		Alert:    updated,
		DroneID:  drone.DroneID,
		Drone:    drone.Name,
		FlightID: flightID,
	}, nil
}

// autoDispatch runs synchronously after a new ACTIVE alert is created. Any
// unmet precondition is a skip with a reason; store errors during
// resolution are logged and degrade to a skip.
func (s *HubService) autoDispatch(ctx context.Context, sensor *models.Sensor, alert *models.Alert) *AutoDispatchResult {
	if !sensor.AutoDispatch {
		return &AutoDispatchResult{Skipped: true, Reason: "auto-dispatch disabled"}
	}
	if sensor.AreaDbID == nil {
		return &AutoDispatchResult{Skipped: true, Reason: "sensor has no area"}
	}

	drone, err := s.Drones.GetByArea(ctx, *sensor.AreaDbID)
	if err != nil {
		if errors.IsNotFound(err) {
			return &AutoDispatchResult{Skipped: true, Reason: "no drone assigned to area"}
		}
		nuts.L.Errorf("[Dispatch] Auto-dispatch drone resolution failed for sensor %s: %v", sensor.SensorID, err)
		return &AutoDispatchResult{Skipped: true, Reason: "drone resolution failed"}
	}

	updated, err := s.Alerts.TransitionFromActive(ctx, alert.ID, models.AlertSent, "auto_send_drone:"+drone.ID, time.Now().UTC())
	if err != nil {
		// an operator neutralised or dispatched first; their transition won
		if errors.IsConflict(err) {
			return &AutoDispatchResult{Skipped: true, Reason: "alert no longer active"}
		}
		nuts.L.Errorf("[Dispatch] Auto-dispatch transition failed for alert %s: %v", alert.ID, err)
		return &AutoDispatchResult{Skipped: true, Reason: "transition failed"}
	}

	target := LatLon{Latitude: sensor.Latitude, Longitude: sensor.Longitude}
	flightID := s.dispatch(ctx, updated, drone, target, CommandSendDrone)

	nuts.L.Infof("[Dispatch] Auto-dispatched drone %s for alert %s", drone.DroneID, alert.ID)
	return &AutoDispatchResult{DroneID: drone.DroneID, FlightID: flightID}
}

// dispatch executes the common tail of every alert dispatch: publish the
// drone command, append flight history, fan out. The alert transition has
// already committed; failures here are logged, never rolled back. The
// at-least-once bus delivery covers redelivery concerns.
func (s *HubService) dispatch(ctx context.Context, alert *models.Alert, drone *models.Drone, target LatLon, event string) string {
	cmd := s.buildCommand(ctx, drone, event, &target)
	if err := s.bus.PublishJSON(s.commandTopic(event), cmd); err != nil {
		nuts.L.Errorf("[Dispatch] Command publish failed for drone %s (alert %s stays SENT): %v",
			drone.DroneID, alert.ID, err)
	}

	flight := &models.FlightHistory{
		ID:           nuts.NID("flt", 12),
		DroneDbID:    drone.ID,
		SensorID:     &alert.SensorID,
		AlertID:      &alert.ID,
		DispatchedAt: time.Now().UTC(),
	}
	if err := s.Flights.Create(ctx, flight); err != nil {
		nuts.L.Errorf("[Dispatch] Failed to record flight history for alert %s: %v", alert.ID, err)
	}

	s.emitLifecycle("alert.dispatched", alert.ID)
	s.fanout.Publish(EventMissionStarted, map[string]any{
		"alert_id":  alert.ID,
		"drone_id":  drone.DroneID,
		"flight_id": flight.ID,
		"event":     event,
	})
	s.fanout.Publish(EventAlertResolved, map[string]any{"id": alert.ID, "status": alert.Status})

	return flight.ID
}

// SendDroneCommand publishes a send_drone command to an explicit target
// without an alert transition, recording a flight-history row. Used by the
// raw operator command path.
func (s *HubService) SendDroneCommand(ctx context.Context, droneDbID string, alertID, sensorID *string, target LatLon) (string, error) {
	drone, err := s.Drones.Get(ctx, droneDbID)
	if err != nil {
		return "", err
	}

	cmd := s.buildCommand(ctx, drone, CommandSendDrone, &target)
	if err := s.bus.PublishJSON(s.commandTopic(CommandSendDrone), cmd); err != nil {
		nuts.L.Errorf("[Dispatch] Command publish failed for drone %s: %v", drone.DroneID, err)
	}

	flight := &models.FlightHistory{
		ID:           nuts.NID("flt", 12),
		DroneDbID:    drone.ID,
		SensorID:     sensorID,
		AlertID:      alertID,
		DispatchedAt: time.Now().UTC(),
	}
	if err := s.Flights.Create(ctx, flight); err != nil {
		return "", err
	}

	s.fanout.Publish(EventMissionStarted, map[string]any{
		"drone_id":  drone.DroneID,
		"flight_id": flight.ID,
		"event":     CommandSendDrone,
	})

	return flight.ID, nil
}

// SimpleDroneCommand publishes a targetless command (drop_payload,
// recall_drone, patrol) for a drone.
func (s *HubService) SimpleDroneCommand(ctx context.Context, droneDbID, command string) error {
	switch command {
	case CommandDropPayload, CommandRecallDrone, CommandPatrol:
	default:
		return errors.NewValidationError("unknown drone command: "+command, nil)
	}

	drone, err := s.Drones.Get(ctx, droneDbID)
	if err != nil {
		return err
	}

	cmd := s.buildCommand(ctx, drone, command, nil)
	if err := s.bus.PublishJSON(s.commandTopic(command), cmd); err != nil {
		nuts.L.Errorf("[Dispatch] Command publish failed for drone %s: %v", drone.DroneID, err)
		return errors.NewUnavailableError("failed to publish drone command", err)
	}

	nuts.L.Infof("[Dispatch] Published %s for drone %s", command, drone.DroneID)
	return nil
}

// ListFlightsByDrone returns a drone's dispatch history, newest first
func (s *HubService) ListFlightsByDrone(ctx context.Context, droneDbID string, offset, limit int) ([]*models.FlightHistory, error) {
	if _, err := s.Drones.Get(ctx, droneDbID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.Flights.ListByDrone(ctx, droneDbID, offset, limit)
}

// buildCommand assembles the wire payload. Device addressing parameters are
// copied verbatim from the drone's stored operational profile.
func (s *HubService) buildCommand(ctx context.Context, drone *models.Drone, event string, target *LatLon) DroneCommand {
	cmd := DroneCommand{
		DroneID:    drone.DroneID,
		Event:      event,
		USBAddress: drone.USBAddress,
	}

	if drone.AreaDbID != nil {
		if area, err := s.Areas.Get(ctx, *drone.AreaDbID); err == nil {
			cmd.AreaID = area.AreaID
		}
	}

	if target != nil {
		cmd.Latitude = formatCoord(target.Latitude)
		cmd.Longitude = formatCoord(target.Longitude)
		cmd.TargetAltitude = formatCoord(drone.TargetAltitude)
	}

	return cmd
}

func (s *HubService) commandTopic(event string) string {
	return s.commandPrefix + "/" + event
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
