// FilePath: internal/hubservice/hubservice_test.go
package hubservice

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/aeroguard/sentinel/internal/database"
	"github.com/aeroguard/sentinel/internal/detection"
	"github.com/aeroguard/sentinel/internal/errors"
	"github.com/aeroguard/sentinel/internal/models"
	"github.com/aeroguard/sentinel/internal/repository"
)

// ---- in-memory fakes ----

type fakeSensorRepo struct {
	sensors map[string]*models.Sensor // by db id
}

func (f *fakeSensorRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	return nil, nil
}

func (f *fakeSensorRepo) Get(ctx context.Context, id string) (*models.Sensor, error) {
	if s, ok := f.sensors[id]; ok {
		return s, nil
	}
	return nil, errors.NewNotFoundError("sensor not found", nil)
}

func (f *fakeSensorRepo) GetByBusinessID(ctx context.Context, sensorID string) (*models.Sensor, error) {
	for _, s := range f.sensors {
		if s.SensorID == sensorID {
			return s, nil
		}
	}
	return nil, errors.NewNotFoundError("sensor not found", nil)
}

type fakeAreaRepo struct {
	areas map[string]*models.Area
}

func (f *fakeAreaRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	return nil, nil
}

func (f *fakeAreaRepo) Get(ctx context.Context, id string) (*models.Area, error) {
	if a, ok := f.areas[id]; ok {
		return a, nil
	}
	return nil, errors.NewNotFoundError("area not found", nil)
}

type fakeDroneRepo struct {
	drones       map[string]*models.Drone
	stateUpdates []models.DroneStateUpdate
}

func (f *fakeDroneRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	return nil, nil
}

func (f *fakeDroneRepo) Get(ctx context.Context, id string) (*models.Drone, error) {
	if d, ok := f.drones[id]; ok {
		return d, nil
	}
	return nil, errors.NewNotFoundError("drone not found", nil)
}

func (f *fakeDroneRepo) GetByBusinessID(ctx context.Context, droneID string) (*models.Drone, error) {
	for _, d := range f.drones {
		if d.DroneID == droneID {
			return d, nil
		}
	}
	return nil, errors.NewNotFoundError("drone not found", nil)
}

func (f *fakeDroneRepo) GetByArea(ctx context.Context, areaDbID string) (*models.Drone, error) {
	for _, d := range f.drones {
		if d.AreaDbID != nil && *d.AreaDbID == areaDbID {
			return d, nil
		}
	}
	return nil, errors.NewNotFoundError("no drone for area", nil)
}

func (f *fakeDroneRepo) UpdateLastState(ctx context.Context, id string, state models.DroneStateUpdate) error {
	if _, ok := f.drones[id]; !ok {
		return errors.NewNotFoundError("drone not found", nil)
	}
	f.stateUpdates = append(f.stateUpdates, state)
	return nil
}

type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts map[string]*models.Alert

	// raceOnCreate simulates losing the unique-index race: the insert is
	// rejected with a conflict and the winner's row appears in the store.
	raceOnCreate *models.Alert
}

func (f *fakeAlertRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	return nil, nil
}

func (f *fakeAlertRepo) CreateActive(ctx context.Context, alert *models.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.raceOnCreate != nil {
		f.alerts[f.raceOnCreate.ID] = f.raceOnCreate
		f.raceOnCreate = nil
		return errors.NewConflictError("sensor already has an active alert", repository.ErrDuplicateActiveAlert)
	}

	for _, a := range f.alerts {
		if a.SensorDbID == alert.SensorDbID && a.Status == models.AlertActive {
			return errors.NewConflictError("sensor already has an active alert", repository.ErrDuplicateActiveAlert)
		}
	}
	cp := *alert
	f.alerts[alert.ID] = &cp
	return nil
}

func (f *fakeAlertRepo) Get(ctx context.Context, id string) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.alerts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, errors.NewNotFoundError("alert not found", nil)
}

func (f *fakeAlertRepo) GetActiveBySensor(ctx context.Context, sensorDbID string) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.alerts {
		if a.SensorDbID == sensorDbID && a.Status == models.AlertActive {
			cp := *a
			return &cp, nil
		}
	}
	return nil, errors.NewNotFoundError("no active alert for sensor", nil)
}

func (f *fakeAlertRepo) TransitionFromActive(ctx context.Context, id string, target models.AlertStatus, decision string, decidedAt time.Time) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alerts[id]
	if !ok || a.Status != models.AlertActive {
		return nil, errors.NewConflictError("alert not found or not active", repository.ErrNotActive)
	}
	a.Status = target
	a.Decision = &decision
	a.DecidedAt = &decidedAt
	a.UpdatedAt = time.Now().UTC()
	cp := *a
	return &cp, nil
}

func (f *fakeAlertRepo) NeutraliseAllActive(ctx context.Context, decision string, decidedAt time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := []string{}
	for _, a := range f.alerts {
		if a.Status == models.AlertActive {
			a.Status = models.AlertNeutralised
			a.Decision = &decision
			a.DecidedAt = &decidedAt
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

func (f *fakeAlertRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.alerts[id]; !ok {
		return errors.NewNotFoundError("alert not found", nil)
	}
	delete(f.alerts, id)
	return nil
}

func (f *fakeAlertRepo) List(ctx context.Context, filters models.AlertFilters) (int64, []*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Alert{}
	for _, a := range f.alerts {
		if filters.Status != "" && string(a.Status) != filters.Status {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return int64(len(out)), out, nil
}

func (f *fakeAlertRepo) ListActive(ctx context.Context) ([]*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Alert{}
	for _, a := range f.alerts {
		if a.Status == models.AlertActive {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAlertRepo) ListBySensor(ctx context.Context, sensorDbID string) ([]*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Alert{}
	for _, a := range f.alerts {
		if a.SensorDbID == sensorDbID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeFlightRepo struct {
	flights   []*models.FlightHistory
	createErr error
}

func (f *fakeFlightRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	return nil, nil
}

func (f *fakeFlightRepo) Create(ctx context.Context, flight *models.FlightHistory) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.flights = append(f.flights, flight)
	return nil
}

func (f *fakeFlightRepo) ListByDrone(ctx context.Context, droneDbID string, offset, limit int) ([]*models.FlightHistory, error) {
	out := []*models.FlightHistory{}
	for _, fl := range f.flights {
		if fl.DroneDbID == droneDbID {
			out = append(out, fl)
		}
	}
	return out, nil
}

type publishedMessage struct {
	topic   string
	payload any
}

type fakeBus struct {
	published  []publishedMessage
	publishErr error
}

func (f *fakeBus) PublishJSON(topic string, payload any) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishedMessage{topic: topic, payload: payload})
	return nil
}

type fanoutEvent struct {
	event   string
	payload any
}

type fakeFanout struct {
	events []fanoutEvent
}

func (f *fakeFanout) Publish(event string, payload any) {
	f.events = append(f.events, fanoutEvent{event: event, payload: payload})
}

func (f *fakeFanout) eventNames() []string {
	names := make([]string, 0, len(f.events))
	for _, e := range f.events {
		names = append(names, e.event)
	}
	return names
}

func (f *fakeFanout) countEvent(name string) int {
	n := 0
	for _, e := range f.events {
		if e.event == name {
			n++
		}
	}
	return n
}

// ---- fixtures ----

type fixture struct {
	svc     *HubService
	sensors *fakeSensorRepo
	areas   *fakeAreaRepo
	drones  *fakeDroneRepo
	alerts  *fakeAlertRepo
	flights *fakeFlightRepo
	bus     *fakeBus
	fanout  *fakeFanout
}

func strPtr(s string) *string { return &s }

func newFixture() *fixture {
	f := &fixture{
		sensors: &fakeSensorRepo{sensors: map[string]*models.Sensor{}},
		areas:   &fakeAreaRepo{areas: map[string]*models.Area{}},
		drones:  &fakeDroneRepo{drones: map[string]*models.Drone{}},
		alerts:  &fakeAlertRepo{alerts: map[string]*models.Alert{}},
		flights: &fakeFlightRepo{},
		bus:     &fakeBus{},
		fanout:  &fakeFanout{},
	}
	f.svc = New(f.sensors, f.areas, f.drones, f.alerts, f.flights, f.bus, f.fanout, "drones/commands")
	return f
}

func (f *fixture) addSensor(dbID, sensorID string, autoDispatch bool, areaDbID *string) *models.Sensor {
	s := &models.Sensor{
		ID:           dbID,
		SensorID:     sensorID,
		Name:         "Sensor " + sensorID,
		Latitude:     48.137,
		Longitude:    11.575,
		AreaDbID:     areaDbID,
		AutoDispatch: autoDispatch,
	}
	f.sensors.sensors[dbID] = s
	return s
}

func (f *fixture) addArea(dbID, areaID string) *models.Area {
	a := &models.Area{ID: dbID, AreaID: areaID, Name: "Area " + areaID}
	f.areas.areas[dbID] = a
	return a
}

func (f *fixture) addDrone(dbID, droneID string, areaDbID *string) *models.Drone {
	d := &models.Drone{
		ID:             dbID,
		DroneID:        droneID,
		Name:           "Drone " + droneID,
		TargetAltitude: 30,
		USBAddress:     "/dev/ttyACM0",
		AreaDbID:       areaDbID,
	}
	f.drones.drones[dbID] = d
	return d
}

func (f *fixture) addActiveAlert(id, sensorDbID, sensorID string) *models.Alert {
	now := time.Now().UTC()
	a := &models.Alert{
		ID:         id,
		SensorDbID: sensorDbID,
		SensorID:   sensorID,
		Type:       "Person",
		Message:    "Person detected",
		Confidence: 87,
		DetectedAt: now,
		Status:     models.AlertActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	f.alerts.alerts[id] = a
	return a
}

// ---- ingestion ----

func TestIngestDetection_CreatesActiveAlert(t *testing.T) {
	f := newFixture()
	f.addSensor("sns_1", "sensor-001", false, nil)

	result, err := f.svc.IngestDetection(context.Background(), "sensor-001", detection.Raw{
		Data: "Type:person;Confidence:87;TimestampUs:1700000000000000",
	})
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.Equal(t, models.AlertActive, result.Alert.Status)
	assert.Equal(t, "Person", result.Alert.Type)
	assert.Equal(t, 87.0, result.Alert.Confidence)
	assert.Equal(t, "sns_1", result.Alert.SensorDbID)
	assert.Equal(t, "sensor-001", result.Alert.SensorID)

	assert.Equal(t, 1, f.fanout.countEvent(EventAlertActive))

	require.NotNil(t, result.Dispatch)
	assert.True(t, result.Dispatch.Skipped)
	assert.Equal(t, "auto-dispatch disabled", result.Dispatch.Reason)
}

func TestIngestDetection_IdempotentWhileActive(t *testing.T) {
	f := newFixture()
	f.addSensor("sns_1", "sensor-001", false, nil)
	existing := f.addActiveAlert("alr_1", "sns_1", "sensor-001")

	result, err := f.svc.IngestDetection(context.Background(), "sensor-001", detection.Raw{Type: "person"})
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Equal(t, existing.ID, result.Alert.ID)
	assert.Nil(t, result.Dispatch)
	assert.Len(t, f.alerts.alerts, 1)
	assert.Empty(t, f.fanout.events)
}

func TestIngestDetection_LostCreateRaceIsIdempotent(t *testing.T) {
	f := newFixture()
	f.addSensor("sns_1", "sensor-001", false, nil)

	winner := &models.Alert{
		ID:         "alr_winner",
		SensorDbID: "sns_1",
		SensorID:   "sensor-001",
		Status:     models.AlertActive,
	}
	f.alerts.raceOnCreate = winner

	result, err := f.svc.IngestDetection(context.Background(), "sensor-001", detection.Raw{Type: "person"})
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Equal(t, "alr_winner", result.Alert.ID)
	assert.Empty(t, f.fanout.events)
}

func TestIngestDetection_ConcurrentSameSensor(t *testing.T) {
	f := newFixture()
	f.addSensor("sns_1", "sensor-001", false, nil)

	const workers = 16
	results := make([]*IngestResult, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.IngestDetection(context.Background(), "sensor-001", detection.Raw{Type: "person"})
		}(i)
	}
	wg.Wait()

	created := 0
	var winnerID string
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i].Alert)
		if winnerID == "" {
			winnerID = results[i].Alert.ID
		}
		assert.Equal(t, winnerID, results[i].Alert.ID, "every caller must see the same active alert")
		if !results[i].Skipped {
			created++
		}
	}
	assert.Equal(t, 1, created, "exactly one caller creates the alert")

	f.alerts.mu.Lock()
	assert.Len(t, f.alerts.alerts, 1)
	f.alerts.mu.Unlock()
	assert.Len(t, f.fanout.events, 1)
}

func TestIngestDetection_UnknownSensor(t *testing.T) {
	f := newFixture()

	_, err := f.svc.IngestDetection(context.Background(), "sensor-nope", detection.Raw{Type: "person"})
	assert.True(t, errors.IsNotFound(err))
}

func TestIngestDetection_MissingSensorID(t *testing.T) {
	f := newFixture()

	_, err := f.svc.IngestDetection(context.Background(), "", detection.Raw{Type: "person"})
	assert.True(t, errors.IsValidation(err))
}

func TestIngestDetection_MalformedPayload(t *testing.T) {
	f := newFixture()
	f.addSensor("sns_1", "sensor-001", false, nil)

	_, err := f.svc.IngestDetection(context.Background(), "sensor-001", detection.Raw{
		Data: "Confidence:very-high",
	})
	assert.True(t, errors.IsValidation(err))
	assert.Empty(t, f.alerts.alerts)
}

// ---- auto dispatch ----

func TestIngestDetection_AutoDispatchSkipReasons(t *testing.T) {
	t.Run("sensor has no area", func(t *testing.T) {
		f := newFixture()
		f.addSensor("sns_1", "sensor-001", true, nil)

		result, err := f.svc.IngestDetection(context.Background(), "sensor-001", detection.Raw{Type: "person"})
		require.NoError(t, err)
		require.NotNil(t, result.Dispatch)
		assert.True(t, result.Dispatch.Skipped)
		assert.Equal(t, "sensor has no area", result.Dispatch.Reason)
		assert.Equal(t, models.AlertActive, result.Alert.Status)
	})

	t.Run("no drone assigned to area", func(t *testing.T) {
		f := newFixture()
		f.addArea("ara_1", "area-north")
		f.addSensor("sns_1", "sensor-001", true, strPtr("ara_1"))

		result, err := f.svc.IngestDetection(context.Background(), "sensor-001", detection.Raw{Type: "person"})
		require.NoError(t, err)
		require.NotNil(t, result.Dispatch)
		assert.True(t, result.Dispatch.Skipped)
		assert.Equal(t, "no drone assigned to area", result.Dispatch.Reason)
	})
}

func TestIngestDetection_AutoDispatchSendsDrone(t *testing.T) {
	f := newFixture()
	f.addArea("ara_1", "area-north")
	f.addSensor("sns_1", "sensor-001", true, strPtr("ara_1"))
	f.addDrone("drn_1", "drone-001", strPtr("ara_1"))

	result, err := f.svc.IngestDetection(context.Background(), "sensor-001", detection.Raw{Type: "person"})
	require.NoError(t, err)

	require.NotNil(t, result.Dispatch)
	assert.False(t, result.Dispatch.Skipped)
	assert.Equal(t, "drone-001", result.Dispatch.DroneID)
	assert.NotEmpty(t, result.Dispatch.FlightID)

	stored, err := f.svc.GetAlert(context.Background(), result.Alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertSent, stored.Status)
	require.NotNil(t, stored.Decision)
	assert.Equal(t, "auto_send_drone:drn_1", *stored.Decision)

	require.Len(t, f.bus.published, 1)
	assert.Equal(t, "drones/commands/send_drone", f.bus.published[0].topic)
	require.Len(t, f.flights.flights, 1)
	assert.Equal(t, "drn_1", f.flights.flights[0].DroneDbID)
}

// ---- manual dispatch ----

func TestSendDroneForAlert_PublishesExactlyOnce(t *testing.T) {
	f := newFixture()
	f.addSensor("sns_1", "sensor-001", false, nil)
	f.addDrone("drn_1", "drone-001", nil)
	f.addActiveAlert("alr_1", "sns_1", "sensor-001")

	result, err := f.svc.SendDroneForAlert(context.Background(), "alr_1", "drn_1", nil)
	require.NoError(t, err)

	assert.Equal(t, models.AlertSent, result.Alert.Status)
	assert.Equal(t, "drone-001", result.DroneID)
	assert.NotEmpty(t, result.FlightID)

	require.Len(t, f.bus.published, 1)
	assert.Equal(t, "drones/commands/send_drone", f.bus.published[0].topic)

	cmd, ok := f.bus.published[0].payload.(DroneCommand)
	require.True(t, ok)
	assert.Equal(t, "drone-001", cmd.DroneID)
	assert.Equal(t, CommandSendDrone, cmd.Event)
	// target fell back to the sensor position, serialized as decimal strings
	assert.Equal(t, "48.137", cmd.Latitude)
	assert.Equal(t, "11.575", cmd.Longitude)
	assert.Equal(t, "30", cmd.TargetAltitude)

	require.Len(t, f.flights.flights, 1)
	assert.Equal(t, "alr_1", *f.flights.flights[0].AlertID)

	assert.Equal(t, 1, f.fanout.countEvent(EventMissionStarted))
	assert.Equal(t, 1, f.fanout.countEvent(EventAlertResolved))
}

func TestSendDroneForAlert_ExplicitTarget(t *testing.T) {
	f := newFixture()
	f.addSensor("sns_1", "sensor-001", false, nil)
	f.addDrone("drn_1", "drone-001", nil)
	f.addActiveAlert("alr_1", "sns_1", "sensor-001")

	_, err := f.svc.SendDroneForAlert(context.Background(), "alr_1", "drn_1", &LatLon{Latitude: 50.5, Longitude: 7.25})
	require.NoError(t, err)

	cmd := f.bus.published[0].payload.(DroneCommand)
	assert.Equal(t, "50.5", cmd.Latitude)
	assert.Equal(t, "7.25", cmd.Longitude)
}

func TestSendDroneForAlert_RequiresActiveAlert(t *testing.T) {
	f := newFixture()
	f.addSensor("sns_1", "sensor-001", false, nil)
	f.addDrone("drn_1", "drone-001", nil)
	alert := f.addActiveAlert("alr_1", "sns_1", "sensor-001")
	alert.Status = models.AlertSent

	_, err := f.svc.SendDroneForAlert(context.Background(), "alr_1", "drn_1", nil)
	assert.True(t, errors.IsPrecondition(err))
	assert.Empty(t, f.bus.published)
	assert.Empty(t, f.flights.flights)
}

func TestSendDroneForAlert_UnknownAlert(t *testing.T) {
	f := newFixture()
	f.addDrone("drn_1", "drone-001", nil)

	_, err := f.svc.SendDroneForAlert(context.Background(), "alr_nope", "drn_1", nil)
	assert.True(t, errors.IsNotFound(err))
}

func TestSendDroneCommand_RecordsFlight(t *testing.T) {
	f := newFixture()
	f.addDrone("drn_1", "drone-001", nil)

	flightID, err := f.svc.SendDroneCommand(context.Background(), "drn_1", nil, strPtr("sensor-001"), LatLon{Latitude: 1, Longitude: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, flightID)

	require.Len(t, f.bus.published, 1)
	require.Len(t, f.flights.flights, 1)
	assert.Nil(t, f.flights.flights[0].AlertID)
	assert.Equal(t, "sensor-001", *f.flights.flights[0].SensorID)
}

func TestListFlightsByDrone(t *testing.T) {
	f := newFixture()
	f.addSensor("sns_1", "sensor-001", false, nil)
	f.addDrone("drn_1", "drone-001", nil)
	f.addActiveAlert("alr_1", "sns_1", "sensor-001")

	_, err := f.svc.SendDroneForAlert(context.Background(), "alr_1", "drn_1", nil)
	require.NoError(t, err)

	flights, err := f.svc.ListFlightsByDrone(context.Background(), "drn_1", 0, 0)
	require.NoError(t, err)
	require.Len(t, flights, 1)
	assert.Equal(t, "alr_1", *flights[0].AlertID)

	_, err = f.svc.ListFlightsByDrone(context.Background(), "drn_nope", 0, 10)
	assert.True(t, errors.IsNotFound(err))
}

func TestSimpleDroneCommand(t *testing.T) {
	f := newFixture()
	f.addDrone("drn_1", "drone-001", nil)

	require.NoError(t, f.svc.SimpleDroneCommand(context.Background(), "drn_1", CommandRecallDrone))
	require.Len(t, f.bus.published, 1)
	assert.Equal(t, "drones/commands/recall_drone", f.bus.published[0].topic)

	err := f.svc.SimpleDroneCommand(context.Background(), "drn_1", "self_destruct")
	assert.True(t, errors.IsValidation(err))
}

func TestSimpleDroneCommand_PublishFailureIsUnavailable(t *testing.T) {
	f := newFixture()
	f.addDrone("drn_1", "drone-001", nil)
	f.bus.publishErr = assert.AnError

	err := f.svc.SimpleDroneCommand(context.Background(), "drn_1", CommandPatrol)
	require.Error(t, err)
	apiErr, ok := err.(*errors.APIError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeUnavailable, apiErr.Type)
}

// ---- neutralisation ----

func TestNeutraliseAlert(t *testing.T) {
	f := newFixture()
	f.addActiveAlert("alr_1", "sns_1", "sensor-001")

	alert, err := f.svc.NeutraliseAlert(context.Background(), "alr_1", "operator confirmed clear")
	require.NoError(t, err)

	assert.Equal(t, models.AlertNeutralised, alert.Status)
	require.NotNil(t, alert.Decision)
	assert.Equal(t, "neutralised:operator confirmed clear", *alert.Decision)
	assert.NotNil(t, alert.DecidedAt)
	assert.Equal(t, 1, f.fanout.countEvent(EventAlertResolved))
}

func TestNeutraliseAlert_NotActiveIsConflict(t *testing.T) {
	f := newFixture()
	alert := f.addActiveAlert("alr_1", "sns_1", "sensor-001")
	alert.Status = models.AlertNeutralised

	_, err := f.svc.NeutraliseAlert(context.Background(), "alr_1", "")
	assert.True(t, errors.IsConflict(err))
	assert.Empty(t, f.fanout.events)
}

func TestNeutraliseAlert_UnknownAlert(t *testing.T) {
	f := newFixture()

	_, err := f.svc.NeutraliseAlert(context.Background(), "alr_nope", "")
	assert.True(t, errors.IsNotFound(err))
}

func TestNeutraliseAllAlerts(t *testing.T) {
	f := newFixture()
	for _, id := range []string{"alr_1", "alr_2", "alr_3", "alr_4", "alr_5"} {
		f.addActiveAlert(id, "sns_"+id, "sensor-"+id)
	}
	sent := f.addActiveAlert("alr_sent", "sns_s", "sensor-s")
	sent.Status = models.AlertSent

	ids, err := f.svc.NeutraliseAllAlerts(context.Background(), "sweep")
	require.NoError(t, err)

	assert.Len(t, ids, 5)
	assert.Equal(t, 5, f.fanout.countEvent(EventAlertResolved))
	assert.Equal(t, models.AlertSent, f.alerts.alerts["alr_sent"].Status)

	for _, id := range ids {
		a := f.alerts.alerts[id]
		assert.Equal(t, models.AlertNeutralised, a.Status)
		assert.Equal(t, "neutralised_all:sweep", *a.Decision)
	}
}

func TestNeutraliseAllAlerts_Empty(t *testing.T) {
	f := newFixture()

	ids, err := f.svc.NeutraliseAllAlerts(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, f.fanout.events)
}

// ---- deletion and reads ----

func TestDeleteAlert(t *testing.T) {
	f := newFixture()
	f.addActiveAlert("alr_1", "sns_1", "sensor-001")

	require.NoError(t, f.svc.DeleteAlert(context.Background(), "alr_1"))
	assert.Empty(t, f.alerts.alerts)
	assert.Equal(t, 1, f.fanout.countEvent(EventAlertDeleted))

	err := f.svc.DeleteAlert(context.Background(), "alr_1")
	assert.True(t, errors.IsNotFound(err))
}

func TestListAlerts_ClampsPagination(t *testing.T) {
	f := newFixture()
	f.addActiveAlert("alr_1", "sns_1", "sensor-001")

	alerts, pagination, err := f.svc.ListAlerts(context.Background(), models.AlertFilters{Limit: -3, Skip: -7, Status: "BOGUS"})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
	assert.Equal(t, 100, pagination.Limit)
	assert.Equal(t, 0, pagination.Skip)
	assert.Equal(t, int64(1), pagination.Total)
	assert.False(t, pagination.HasMore)
}

func TestListAlertsBySensor_UnknownSensor(t *testing.T) {
	f := newFixture()

	_, err := f.svc.ListAlertsBySensor(context.Background(), "sns_nope")
	assert.True(t, errors.IsNotFound(err))
}

// ---- telemetry ----

func telemetryPayload(t *testing.T, fields map[string]any) []byte {
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	return raw
}

func TestHandleTelemetry_FieldVariants(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]any
	}{
		{"canonical names", map[string]any{"droneid": "drone-001", "currentLatitude": 48.1, "currentLongitude": 11.5}},
		{"alternate names", map[string]any{"droneId": "drone-001", "lat": 48.1, "lng": 11.5}},
		{"numeric strings", map[string]any{"droneid": "drone-001", "currentLatitude": "48.1", "currentLongitude": "11.5"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.addDrone("drn_1", "drone-001", nil)

			f.svc.HandleTelemetry("drones/drone-001/telemetry", telemetryPayload(t, tc.fields))

			require.Equal(t, 1, f.fanout.countEvent(EventDroneTelemetry))
			tel := f.fanout.events[0].payload.(models.Telemetry)
			assert.Equal(t, "drn_1", tel.DroneDbID)
			assert.Equal(t, 48.1, tel.Latitude)
			assert.Equal(t, 11.5, tel.Longitude)
			// not a snapshot message, nothing persisted
			assert.Empty(t, f.drones.stateUpdates)
		})
	}
}

func TestHandleTelemetry_UnknownDroneDropped(t *testing.T) {
	f := newFixture()

	f.svc.HandleTelemetry("drones/ghost/telemetry", telemetryPayload(t, map[string]any{
		"droneid": "ghost", "lat": 1.0, "lng": 2.0,
	}))

	assert.Empty(t, f.fanout.events)
	assert.Empty(t, f.drones.stateUpdates)
}

func TestHandleTelemetry_MissingPositionDropped(t *testing.T) {
	f := newFixture()
	f.addDrone("drn_1", "drone-001", nil)

	f.svc.HandleTelemetry("drones/drone-001/telemetry", telemetryPayload(t, map[string]any{
		"droneid": "drone-001",
	}))

	assert.Empty(t, f.fanout.events)
}

func TestHandleTelemetry_SnapshotPersistsLastState(t *testing.T) {
	f := newFixture()
	f.addDrone("drn_1", "drone-001", nil)

	f.svc.HandleTelemetry("drones/drone-001/telemetry", telemetryPayload(t, map[string]any{
		"droneid":          "drone-001",
		"currentLatitude":  48.1,
		"currentLongitude": 11.5,
		"currentAltitude":  42.0,
		"batteryVoltage":   "15.8",
		"droneMode":        "AUTO",
		"command":          "altitudeData",
	}))

	require.Equal(t, 1, f.fanout.countEvent(EventDroneTelemetry))
	require.Len(t, f.drones.stateUpdates, 1)
	update := f.drones.stateUpdates[0]
	assert.Equal(t, 48.1, *update.Latitude)
	assert.Equal(t, 11.5, *update.Longitude)
	assert.Equal(t, 42.0, *update.Altitude)
	assert.Equal(t, 15.8, *update.Battery)
	assert.Equal(t, "AUTO", *update.Mode)
}

func TestHandleTelemetry_UnparseablePayload(t *testing.T) {
	f := newFixture()

	f.svc.HandleTelemetry("drones/x/telemetry", []byte("not json"))
	assert.Empty(t, f.fanout.events)
}

// ---- wiring ----

func TestValidate(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.svc.Validate())

	broken := New(nil, f.areas, f.drones, f.alerts, f.flights, f.bus, f.fanout, "drones/commands")
	assert.Error(t, broken.Validate())
}

func TestOnLifecycleEvent(t *testing.T) {
	f := newFixture()
	f.addSensor("sns_1", "sensor-001", false, nil)

	var mu sync.Mutex
	created := []string{}
	f.svc.OnLifecycleEvent("alert.created", func(id string) {
		mu.Lock()
		defer mu.Unlock()
		created = append(created, id)
	})

	result, err := f.svc.IngestDetection(context.Background(), "sensor-001", detection.Raw{Type: "person"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(created) == 1 && created[0] == result.Alert.ID
	}, time.Second, 10*time.Millisecond)
}
