// FilePath: api/resources/resources.go
package resources

import (
	"net/http"

	"github.com/aeroguard/sentinel/internal/hubservice"
)

// Resources holds all HTTP resource handlers
type Resources struct {
	Alerts      *AlertHandlers
	Commands    *DroneCommandHandlers
	HealthCheck func(w http.ResponseWriter, r *http.Request)
}

// NewResources creates a new Resources instance
func NewResources(svc *hubservice.HubService) *Resources {
	return &Resources{
		Alerts:   &AlertHandlers{hubservice: svc},
		Commands: &DroneCommandHandlers{hubservice: svc},
	}
}

// SetHealthCheck sets the health check handler
func (r *Resources) SetHealthCheck(h func(w http.ResponseWriter, r *http.Request)) {
	r.HealthCheck = h
}
