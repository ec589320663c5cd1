// FilePath: api/resources/api.resource.alerts.go
package resources

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"github.com/aeroguard/sentinel/internal/detection"
	"github.com/aeroguard/sentinel/internal/errors"
	"github.com/aeroguard/sentinel/internal/hubservice"
	"github.com/aeroguard/sentinel/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// AlertHandlers encapsulates the alert-related HTTP handlers
type AlertHandlers struct {
	hubservice *hubservice.HubService
}

var queryDecoder = newQueryDecoder()

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

type ingestRequest struct {
	SensorID string `json:"sensorId"`
	detection.Raw
}

// @Summary Ingest a detection event
// @Description Normalize a sensor detection payload and raise an ACTIVE alert; idempotent per sensor
// @Tags alerts
// @Accept json
// @Produce json
// @Param detection body ingestRequest true "Detection payload"
// @Success 201 {object} hubservice.IngestResult
// @Success 200 {object} hubservice.IngestResult "sensor already has an active alert (skipped)"
// @Failure 400 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Router /alerts/ingest [post]
func (h *AlertHandlers) IngestDetection(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	result, err := h.hubservice.IngestDetection(r.Context(), req.SensorID, req.Raw)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	code := http.StatusCreated
	if result.Skipped {
		code = http.StatusOK
	}
	respondWithJSON(w, code, result)
}

// @Summary List alerts
// @Description Get alerts with optional status filter, pagination and sort
// @Tags alerts
// @Produce json
// @Param status query string false "Filter by status (ACTIVE, SENT, NEUTRALISED)"
// @Param limit query int false "Page size"
// @Param skip query int false "Offset for pagination"
// @Param sortBy query string false "createdAt or decidedAt"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} map[string]any
// @Router /alerts [get]
func (h *AlertHandlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var filters models.AlertFilters
	if err := queryDecoder.Decode(&filters, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err).WithRequestID(requestID))
		return
	}

	alerts, pagination, err := h.hubservice.ListAlerts(r.Context(), filters)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"data":       alerts,
		"pagination": pagination,
	})
}

// @Summary List active alerts
// @Description Get every ACTIVE alert, oldest first, for dashboard initial state
// @Tags alerts
// @Produce json
// @Success 200 {array} models.Alert
// @Router /alerts/active [get]
func (h *AlertHandlers) ListActiveAlerts(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	alerts, err := h.hubservice.ListActiveAlerts(r.Context())
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, alerts)
}

// @Summary Get an alert by ID
// @Tags alerts
// @Produce json
// @Param id path string true "Alert ID"
// @Success 200 {object} models.Alert
// @Failure 404 {object} errors.APIError
// @Router /alerts/{id} [get]
func (h *AlertHandlers) GetAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	alert, err := h.hubservice.GetAlert(r.Context(), vars["id"])
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, alert)
}

// @Summary Get alert history for a sensor
// @Tags alerts
// @Produce json
// @Param sensorDbId path string true "Sensor DB ID"
// @Success 200 {array} models.Alert
// @Failure 404 {object} errors.APIError
// @Router /alerts/by-sensor/{sensorDbId} [get]
func (h *AlertHandlers) ListAlertsBySensor(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	alerts, err := h.hubservice.ListAlertsBySensor(r.Context(), vars["sensorDbId"])
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, alerts)
}

type neutraliseRequest struct {
	Reason string `json:"reason,omitempty"`
}

// @Summary Neutralise an alert
// @Description Transition one ACTIVE alert to NEUTRALISED
// @Tags alerts
// @Accept json
// @Produce json
// @Param id path string true "Alert ID"
// @Param body body neutraliseRequest false "Optional reason"
// @Success 200 {object} models.Alert
// @Failure 404 {object} errors.APIError
// @Failure 409 {object} errors.APIError "alert is no longer ACTIVE"
// @Router /alerts/{id}/neutralise [post]
func (h *AlertHandlers) NeutraliseAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	var req neutraliseRequest
	if r.Body != nil {
		// body is optional
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	alert, err := h.hubservice.NeutraliseAlert(r.Context(), vars["id"], req.Reason)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, alert)
}

// @Summary Neutralise all active alerts
// @Description Bulk-transition every ACTIVE alert to NEUTRALISED in one atomic update
// @Tags alerts
// @Accept json
// @Produce json
// @Param body body neutraliseRequest false "Optional reason"
// @Success 200 {object} map[string]any
// @Router /alerts/neutralise-all [post]
func (h *AlertHandlers) NeutraliseAllAlerts(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req neutraliseRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	ids, err := h.hubservice.NeutraliseAllAlerts(r.Context(), req.Reason)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"neutralised": len(ids),
		"ids":         ids,
	})
}

// @Summary Delete an alert
// @Description Delete an alert in any status
// @Tags alerts
// @Produce json
// @Param id path string true "Alert ID"
// @Success 204 "No Content"
// @Failure 404 {object} errors.APIError
// @Router /alerts/{id} [delete]
func (h *AlertHandlers) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	if err := h.hubservice.DeleteAlert(r.Context(), vars["id"]); err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Helper functions

func respondWithError(w http.ResponseWriter, err *errors.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
	nuts.L.Errorf("[API] %s", err.Error())
}

// respondWithServiceError maps service-layer errors onto the wire. Typed
// APIErrors pass through with their status code; anything else is internal.
func respondWithServiceError(w http.ResponseWriter, err error, requestID string) {
	if apiErr, ok := err.(*errors.APIError); ok {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}
	respondWithError(w, errors.NewInternalError("unexpected error", err).WithRequestID(requestID))
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
