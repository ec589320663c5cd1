// FilePath: api/resources/api.resource.dronecommands.go
package resources

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/aeroguard/sentinel/internal/errors"
	"github.com/aeroguard/sentinel/internal/hubservice"
	nuts "github.com/vaudience/go-nuts"
)

// DroneCommandHandlers encapsulates the drone dispatch HTTP handlers
type DroneCommandHandlers struct {
	hubservice *hubservice.HubService
}

type sendDroneForAlertRequest struct {
	DroneDbID       string   `json:"droneDbId"`
	TargetLatitude  *float64 `json:"targetLatitude,omitempty"`
	TargetLongitude *float64 `json:"targetLongitude,omitempty"`
}

// @Summary Dispatch a drone for an alert
// @Description Transition an ACTIVE alert to SENT and publish a send_drone command; the target defaults to the sensor position
// @Tags drone-commands
// @Accept json
// @Produce json
// @Param id path string true "Alert ID"
// @Param body body sendDroneForAlertRequest true "Dispatch parameters"
// @Success 200 {object} hubservice.DispatchResult
// @Failure 404 {object} errors.APIError
// @Failure 409 {object} errors.APIError "lost the transition race"
// @Failure 412 {object} errors.APIError "alert is not ACTIVE"
// @Router /alerts/{id}/send-drone [post]
func (h *DroneCommandHandlers) SendDroneForAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	var req sendDroneForAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	var target *hubservice.LatLon
	if req.TargetLatitude != nil && req.TargetLongitude != nil {
		target = &hubservice.LatLon{Latitude: *req.TargetLatitude, Longitude: *req.TargetLongitude}
	}

	result, err := h.hubservice.SendDroneForAlert(r.Context(), vars["id"], req.DroneDbID, target)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

type sendDroneRequest struct {
	DroneDbID       string  `json:"droneDbId"`
	AlertID         *string `json:"alertId,omitempty"`
	SensorID        *string `json:"sensorId,omitempty"`
	TargetLatitude  float64 `json:"targetLatitude"`
	TargetLongitude float64 `json:"targetLongitude"`
}

// @Summary Send a drone to explicit coordinates
// @Description Publish a send_drone command without touching any alert lifecycle state
// @Tags drone-commands
// @Accept json
// @Produce json
// @Param body body sendDroneRequest true "Command parameters"
// @Success 200 {object} map[string]string
// @Failure 400 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Router /drone-commands [post]
func (h *DroneCommandHandlers) SendDrone(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req sendDroneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}
	if req.DroneDbID == "" {
		respondWithError(w, errors.NewValidationError("droneDbId is required", nil).WithRequestID(requestID))
		return
	}

	target := hubservice.LatLon{Latitude: req.TargetLatitude, Longitude: req.TargetLongitude}
	flightID, err := h.hubservice.SendDroneCommand(r.Context(), req.DroneDbID, req.AlertID, req.SensorID, target)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"flightId": flightID})
}

type simpleCommandRequest struct {
	DroneDbID string `json:"droneDbId"`
}

// @Summary Drop payload
// @Tags drone-commands
// @Accept json
// @Produce json
// @Param body body simpleCommandRequest true "Target drone"
// @Success 202 {object} map[string]string
// @Failure 503 {object} errors.APIError
// @Router /drone-commands/drop-payload [post]
func (h *DroneCommandHandlers) DropPayload(w http.ResponseWriter, r *http.Request) {
	h.simpleCommand(w, r, hubservice.CommandDropPayload)
}

// @Summary Recall a drone to base
// @Tags drone-commands
// @Accept json
// @Produce json
// @Param body body simpleCommandRequest true "Target drone"
// @Success 202 {object} map[string]string
// @Failure 503 {object} errors.APIError
// @Router /drone-commands/recall [post]
func (h *DroneCommandHandlers) Recall(w http.ResponseWriter, r *http.Request) {
	h.simpleCommand(w, r, hubservice.CommandRecallDrone)
}

// @Summary Start a patrol run
// @Tags drone-commands
// @Accept json
// @Produce json
// @Param body body simpleCommandRequest true "Target drone"
// @Success 202 {object} map[string]string
// @Failure 503 {object} errors.APIError
// @Router /drone-commands/patrol [post]
func (h *DroneCommandHandlers) Patrol(w http.ResponseWriter, r *http.Request) {
	h.simpleCommand(w, r, hubservice.CommandPatrol)
}

// @Summary Flight history for a drone
// @Tags drone-commands
// @Produce json
// @Param droneDbId path string true "Drone DB ID"
// @Param limit query int false "Page size"
// @Param skip query int false "Offset for pagination"
// @Success 200 {array} models.FlightHistory
// @Failure 404 {object} errors.APIError
// @Router /drones/{droneDbId}/flights [get]
func (h *DroneCommandHandlers) ListFlightsByDrone(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))

	flights, err := h.hubservice.ListFlightsByDrone(r.Context(), vars["droneDbId"], skip, limit)
	if err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, flights)
}

func (h *DroneCommandHandlers) simpleCommand(w http.ResponseWriter, r *http.Request, command string) {
	requestID := nuts.NID("req", 12)

	var req simpleCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}
	if req.DroneDbID == "" {
		respondWithError(w, errors.NewValidationError("droneDbId is required", nil).WithRequestID(requestID))
		return
	}

	if err := h.hubservice.SimpleDroneCommand(r.Context(), req.DroneDbID, command); err != nil {
		respondWithServiceError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]string{"command": command, "droneDbId": req.DroneDbID})
}
