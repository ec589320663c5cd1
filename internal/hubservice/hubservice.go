// FilePath: internal/hubservice/hubservice.go

// Package hubservice is the alert lifecycle and drone dispatch orchestrator.
// It owns all Alert status transitions; the dispatch path is the only
// writer of FlightHistory and the telemetry path the only writer of drone
// last-known state. Correctness never depends on the bus or fan-out: both
// are best-effort side channels applied after the store has committed.
package hubservice

import (
	"github.com/aeroguard/sentinel/internal/bus"
	"github.com/aeroguard/sentinel/internal/errors"
	"github.com/aeroguard/sentinel/internal/fanout"
	"github.com/aeroguard/sentinel/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// Fan-out event names delivered to connected observers.
const (
	EventAlertActive    = "alert_active"
	EventAlertResolved  = "alert_resolved"
	EventAlertDeleted   = "alert_deleted"
	EventDroneTelemetry = "drone_telemetry"
	EventMissionStarted = "mission_started"
)

// HubService contains all repositories and service-wide dependencies
type HubService struct {
	Sensors repository.SensorRepository
	Areas   repository.AreaRepository
	Drones  repository.DroneRepository
	Alerts  repository.AlertRepository
	Flights repository.FlightHistoryRepository

	bus           bus.Publisher
	fanout        fanout.Publisher
	events        *nuts.EventEmitter
	commandPrefix string
}

// New creates a new HubService instance. Bus and fan-out are injected; the
// service holds no process-wide singletons.
func New(
	sensors repository.SensorRepository,
	areas repository.AreaRepository,
	drones repository.DroneRepository,
	alerts repository.AlertRepository,
	flights repository.FlightHistoryRepository,
	busClient bus.Publisher,
	fanoutPub fanout.Publisher,
	commandPrefix string,
) *HubService {
	return &HubService{
		Sensors:       sensors,
		Areas:         areas,
		Drones:        drones,
		Alerts:        alerts,
		Flights:       flights,
		bus:           busClient,
		fanout:        fanoutPub,
		events:        nuts.NewEventEmitter(),
		commandPrefix: commandPrefix,
	}
}

// Validate checks if all required dependencies are initialized
func (s *HubService) Validate() error {
	if s.Sensors == nil {
		return ErrMissingDependency("sensors")
	}
	if s.Areas == nil {
		return ErrMissingDependency("areas")
	}
	if s.Drones == nil {
		return ErrMissingDependency("drones")
	}
	if s.Alerts == nil {
		return ErrMissingDependency("alerts")
	}
	if s.Flights == nil {
		return ErrMissingDependency("flights")
	}
	if s.bus == nil {
		return ErrMissingDependency("bus")
	}
	if s.fanout == nil {
		return ErrMissingDependency("fanout")
	}
	return nil
}

// OnLifecycleEvent registers a callback for internal lifecycle events
// (alert.created, alert.dispatched, alert.neutralised, alert.deleted).
func (s *HubService) OnLifecycleEvent(event string, handler func(id string)) {
	// The emitter matches listener signatures exactly, so the listener
	// takes the single id argument every lifecycle emit carries.
	if _, err := s.events.On(event, "lifecycle_handler", handler); err != nil {
		nuts.L.Warnf("[HubService] Failed to register listener for %s: %v", event, err)
	}
}

// emitLifecycle publishes an internal lifecycle event. Listener failures
// are logged and never affect the operation that emitted the event.
func (s *HubService) emitLifecycle(event, id string) {
	if err := s.events.Emit(event, id); err != nil {
		nuts.L.Warnf("[HubService] Lifecycle event %s for %s not delivered: %v", event, id, err)
	}
}

func ErrMissingDependency(name string) error {
	return errors.NewInternalError("missing dependency: "+name, nil)
}
