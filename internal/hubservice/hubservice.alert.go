// FilePath: internal/hubservice/hubservice.alert.go
package hubservice

import (
	"context"
	"time"

	"github.com/aeroguard/sentinel/internal/detection"
	"github.com/aeroguard/sentinel/internal/errors"
	"github.com/aeroguard/sentinel/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// AlertService is the alert lifecycle surface of the orchestrator.
type AlertService interface {
	IngestDetection(ctx context.Context, sensorID string, raw detection.Raw) (*IngestResult, error)
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	ListAlerts(ctx context.Context, filters models.AlertFilters) ([]*models.Alert, *models.Pagination, error)
	ListActiveAlerts(ctx context.Context) ([]*models.Alert, error)
	ListAlertsBySensor(ctx context.Context, sensorDbID string) ([]*models.Alert, error)
	NeutraliseAlert(ctx context.Context, id, reason string) (*models.Alert, error)
	NeutraliseAllAlerts(ctx context.Context, reason string) ([]string, error)
	DeleteAlert(ctx context.Context, id string) error
}

// IngestResult is the outcome of one detection ingestion. Skipped means the
// sensor already had an ACTIVE alert and no new row was written.
type IngestResult struct {
	Alert    *models.Alert       `json:"alert"`
	Skipped  bool                `json:"skipped"`
	Dispatch *AutoDispatchResult `json:"dispatch,omitempty"`
}

// IngestDetection normalizes a detection payload and creates an ACTIVE
// alert for the sensor, enforcing the one-active-alert-per-sensor rule.
// The call is idempotent: a duplicate detection surfaces the pre-existing
// alert with Skipped=true. After a successful create, automatic dispatch is
// attempted as a best-effort convenience.
func (s *HubService) IngestDetection(ctx context.Context, sensorID string, raw detection.Raw) (*IngestResult, error) {
	if sensorID == "" {
		return nil, errors.NewValidationError("sensorId is required", nil)
	}

	sensor, err := s.Sensors.GetByBusinessID(ctx, sensorID)
	if err != nil {
		return nil, err
	}

	record, err := detection.Normalize(raw)
	if err != nil {
		return nil, errors.NewValidationError("malformed detection payload", err)
	}

	// Fast path: the sensor already has an ACTIVE alert.
	if existing, err := s.Alerts.GetActiveBySensor(ctx, sensor.ID); err == nil {
		return &IngestResult{Alert: existing, Skipped: true}, nil
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()
	alert := &models.Alert{
		ID:         nuts.NID("alr", 12),
		SensorDbID: sensor.ID,
		SensorID:   sensor.SensorID,
		Type:       record.Type,
		Message:    record.Message,
		Confidence: record.Confidence,
		DetectedAt: record.Timestamp,
		Status:     models.AlertActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.Alerts.CreateActive(ctx, alert); err != nil {
		// The check above is not atomic against a racing duplicate; the
		// partial unique index is. A conflict here means the race was lost,
		// which is idempotent success: surface the winner's row.
		if errors.IsConflict(err) {
			existing, getErr := s.Alerts.GetActiveBySensor(ctx, sensor.ID)
			if getErr != nil {
				return nil, err
			}
			return &IngestResult{Alert: existing, Skipped: true}, nil
		}
		return nil, err
	}

	nuts.L.Infof("[AlertService] New ACTIVE alert %s for sensor %s (%s, confidence %.0f)",
		alert.ID, sensor.SensorID, alert.Type, alert.Confidence)
	s.emitLifecycle("alert.created", alert.ID)

	s.fanout.Publish(EventAlertActive, models.AlertWithSensor{
		Alert:  *alert,
		Sensor: s.sensorSummary(ctx, sensor),
	})

	dispatch := s.autoDispatch(ctx, sensor, alert)

	return &IngestResult{Alert: alert, Dispatch: dispatch}, nil
}

// GetAlert retrieves a single alert by ID
func (s *HubService) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	return s.Alerts.Get(ctx, id)
}

// ListAlerts retrieves a filtered, paginated, sorted alert listing
func (s *HubService) ListAlerts(ctx context.Context, filters models.AlertFilters) ([]*models.Alert, *models.Pagination, error) {
	if filters.Limit <= 0 || filters.Limit > 500 {
		filters.Limit = 100
	}
	if filters.Skip < 0 {
		filters.Skip = 0
	}
	if filters.Status != "" && !models.ValidAlertStatus(filters.Status) {
		filters.Status = ""
	}

	total, alerts, err := s.Alerts.List(ctx, filters)
	if err != nil {
		return nil, nil, err
	}

	return alerts, &models.Pagination{
		Total:   total,
		Limit:   filters.Limit,
		Skip:    filters.Skip,
		HasMore: int64(filters.Skip+filters.Limit) < total,
	}, nil
}

// ListActiveAlerts returns every ACTIVE alert, oldest first, for dashboard
// initial state.
func (s *HubService) ListActiveAlerts(ctx context.Context) ([]*models.Alert, error) {
	return s.Alerts.ListActive(ctx)
}

// ListAlertsBySensor returns the alert history for one sensor
func (s *HubService) ListAlertsBySensor(ctx context.Context, sensorDbID string) ([]*models.Alert, error) {
	if _, err := s.Sensors.Get(ctx, sensorDbID); err != nil {
		return nil, err
	}
	return s.Alerts.ListBySensor(ctx, sensorDbID)
}

// NeutraliseAlert transitions one ACTIVE alert to NEUTRALISED. A concurrent
// transition on the same alert has exactly one winner; the loser receives a
// conflict and applies no side effects.
func (s *HubService) NeutraliseAlert(ctx context.Context, id, reason string) (*models.Alert, error) {
	if _, err := s.Alerts.Get(ctx, id); err != nil {
		return nil, err
	}

	decision := "neutralised"
	if reason != "" {
		decision = "neutralised:" + reason
	}

	updated, err := s.Alerts.TransitionFromActive(ctx, id, models.AlertNeutralised, decision, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	nuts.L.Infof("[AlertService] Alert %s neutralised (%s)", id, decision)
	s.emitLifecycle("alert.neutralised", id)
	s.fanout.Publish(EventAlertResolved, map[string]any{"id": updated.ID, "status": updated.Status})

	return updated, nil
}

// NeutraliseAllAlerts bulk-transitions every ACTIVE alert to NEUTRALISED in
// a single conditional update, then fans out one event per affected id.
// All affected rows share the same decidedAt.
func (s *HubService) NeutraliseAllAlerts(ctx context.Context, reason string) ([]string, error) {
	decision := "neutralised_all"
	if reason != "" {
		decision = "neutralised_all:" + reason
	}

	ids, err := s.Alerts.NeutraliseAllActive(ctx, decision, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	nuts.L.Infof("[AlertService] Neutralised %d active alerts (%s)", len(ids), decision)
	for _, id := range ids {
		s.emitLifecycle("alert.neutralised", id)
		s.fanout.Publish(EventAlertResolved, map[string]any{"id": id, "status": models.AlertNeutralised})
	}

	return ids, nil
}

// DeleteAlert removes an alert in any status
func (s *HubService) DeleteAlert(ctx context.Context, id string) error {
	if _, err := s.Alerts.Get(ctx, id); err != nil {
		return err
	}

	if err := s.Alerts.Delete(ctx, id); err != nil {
		return err
	}

	nuts.L.Infof("[AlertService] Alert %s deleted", id)
	s.emitLifecycle("alert.deleted", id)
	s.fanout.Publish(EventAlertDeleted, map[string]any{"id": id})

	return nil
}

// sensorSummary builds the denormalized sensor view for fan-out payloads.
// Area resolution is best effort; observers still get the sensor itself.
func (s *HubService) sensorSummary(ctx context.Context, sensor *models.Sensor) models.SensorSummary {
	summary := models.SensorSummary{
		ID:        sensor.ID,
		SensorID:  sensor.SensorID,
		Name:      sensor.Name,
		Latitude:  sensor.Latitude,
		Longitude: sensor.Longitude,
		Area:      models.AreaSummary{AreaID: "unknown", Name: "Unknown Area"},
	}

	if sensor.AreaDbID != nil {
		if area, err := s.Areas.Get(ctx, *sensor.AreaDbID); err == nil {
			summary.Area = models.AreaSummary{AreaID: area.AreaID, Name: area.Name}
		} else {
			nuts.L.Warnf("[AlertService] Failed to resolve area for sensor %s: %v", sensor.SensorID, err)
		}
	}

	return summary
}
