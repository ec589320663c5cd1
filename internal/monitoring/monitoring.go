// FilePath: internal/monitoring/monitoring.go
package monitoring

import (
	"sync"
	"time"

	nuts "github.com/vaudience/go-nuts"
)

// Config holds monitoring configuration
type Config struct {
	PrometheusEndpoint string
}

// Service provides lightweight event accounting for the orchestrator:
// every lifecycle event (alert created, dispatched, neutralised, deleted,
// telemetry processed) is counted and logged with its labels.
type Service struct {
	config Config

	mu       sync.Mutex
	counters map[string]int64
}

// NewService creates a new monitoring service
func NewService(config Config) *Service {
	return &Service{
		config:   config,
		counters: make(map[string]int64),
	}
}

// RecordEvent records a monitored event with labels
func (s *Service) RecordEvent(eventName string, labels map[string]string) {
	s.mu.Lock()
	s.counters[eventName]++
	count := s.counters[eventName]
	s.mu.Unlock()

	nuts.L.Infof("[Monitoring] Event %s (#%d) at %v with labels: %v", eventName, count, time.Now(), labels)
}

// EventCount returns the number of times an event has been recorded since
// startup.
func (s *Service) EventCount(eventName string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[eventName]
}

// Snapshot returns a copy of all counters, for the health endpoint.
func (s *Service) Snapshot() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out
}
