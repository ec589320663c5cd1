// FilePath: api/api.router.go
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/aeroguard/sentinel/api/resources"
	"github.com/aeroguard/sentinel/internal/fanout"
	"github.com/aeroguard/sentinel/internal/hubservice"
)

type Router struct {
	router    *mux.Router
	hub       *fanout.Hub
	resources *resources.Resources
}

func NewRouter(svc *hubservice.HubService, hub *fanout.Hub) *Router {
	r := &Router{
		router:    mux.NewRouter(),
		hub:       hub,
		resources: resources.NewResources(svc),
	}

	r.setupRoutes()
	return r
}

func (r *Router) Resources() *resources.Resources {
	return r.resources
}

func (r *Router) setupRoutes() {
	// API version prefix
	api := r.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		if r.resources.HealthCheck != nil {
			r.resources.HealthCheck(w, req)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	// Live event stream for dashboards
	api.HandleFunc("/stream", r.hub.ServeWS).Methods(http.MethodGet)

	// Alerts. Fixed paths are registered before the {id} routes so mux
	// does not capture "active" or "ingest" as an alert id.
	alerts := api.PathPrefix("/alerts").Subrouter()
	alerts.HandleFunc("/ingest", r.resources.Alerts.IngestDetection).Methods(http.MethodPost)
	alerts.HandleFunc("/active", r.resources.Alerts.ListActiveAlerts).Methods(http.MethodGet)
	alerts.HandleFunc("/neutralise-all", r.resources.Alerts.NeutraliseAllAlerts).Methods(http.MethodPost)
	alerts.HandleFunc("/by-sensor/{sensorDbId}", r.resources.Alerts.ListAlertsBySensor).Methods(http.MethodGet)
	alerts.HandleFunc("", r.resources.Alerts.ListAlerts).Methods(http.MethodGet)
	alerts.HandleFunc("/{id}", r.resources.Alerts.GetAlert).Methods(http.MethodGet)
	alerts.HandleFunc("/{id}", r.resources.Alerts.DeleteAlert).Methods(http.MethodDelete)
	alerts.HandleFunc("/{id}/neutralise", r.resources.Alerts.NeutraliseAlert).Methods(http.MethodPost)
	alerts.HandleFunc("/{id}/send-drone", r.resources.Commands.SendDroneForAlert).Methods(http.MethodPost)

	// Drone commands
	commands := api.PathPrefix("/drone-commands").Subrouter()
	commands.HandleFunc("", r.resources.Commands.SendDrone).Methods(http.MethodPost)
	commands.HandleFunc("/drop-payload", r.resources.Commands.DropPayload).Methods(http.MethodPost)
	commands.HandleFunc("/recall", r.resources.Commands.Recall).Methods(http.MethodPost)
	commands.HandleFunc("/patrol", r.resources.Commands.Patrol).Methods(http.MethodPost)

	// Drones
	drones := api.PathPrefix("/drones").Subrouter()
	drones.HandleFunc("/{droneDbId}/flights", r.resources.Commands.ListFlightsByDrone).Methods(http.MethodGet)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
