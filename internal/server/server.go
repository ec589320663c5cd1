// FilePath: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/redis/go-redis/v9"
	"github.com/aeroguard/sentinel/api"
	"github.com/aeroguard/sentinel/internal/bus"
	"github.com/aeroguard/sentinel/internal/config"
	"github.com/aeroguard/sentinel/internal/database"
	"github.com/aeroguard/sentinel/internal/fanout"
	"github.com/aeroguard/sentinel/internal/hubservice"
	"github.com/aeroguard/sentinel/internal/monitoring"
	"github.com/aeroguard/sentinel/internal/repository/postgres"
	nuts "github.com/vaudience/go-nuts"
)

// Server represents our HTTP server
type Server struct {
	config     *config.Config
	srv        *http.Server
	hubservice *hubservice.HubService
	monitoring *monitoring.Service
	busClient  *bus.Client
	hub        *fanout.Hub
	hubCancel  context.CancelFunc
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	return &Server{
		config: cfg,
	}
}

// Start wires all components and begins listening for requests. It blocks
// until an interrupt arrives, then shuts everything down in reverse order.
func (s *Server) Start() error {
	appDB := initAppDB(s.config.Database.AppDB)
	rdb := initRedis(s.config.Redis)

	busClient, err := bus.NewClient(s.config.MQTT)
	if err != nil {
		nuts.L.Fatalf("[Server] Failed to connect to MQTT broker: %v", err)
	}
	s.busClient = busClient

	hubCtx, hubCancel := context.WithCancel(context.Background())
	s.hubCancel = hubCancel
	s.hub = fanout.NewHub(rdb, s.config.Fanout.RedisChannel, s.config.Fanout.ClientQueueSize)
	go s.hub.Run(hubCtx)

	s.hubservice = hubservice.New(
		postgres.NewSensorRepository(appDB),
		postgres.NewAreaRepository(appDB),
		postgres.NewDroneRepository(appDB),
		postgres.NewAlertRepository(appDB),
		postgres.NewFlightHistoryRepository(appDB),
		busClient,
		s.hub,
		s.config.MQTT.CommandPrefix,
	)
	if err := s.hubservice.Validate(); err != nil {
		nuts.L.Fatalf("[Server] Invalid service wiring: %v", err)
	}

	s.monitoring = monitoring.NewService(monitoring.Config{
		PrometheusEndpoint: s.config.Monitoring.PrometheusEndpoint,
	})
	s.setupLifecycleHandlers()

	if err := busClient.Subscribe(s.config.MQTT.TelemetryTopic, s.hubservice.HandleTelemetry); err != nil {
		nuts.L.Fatalf("[Server] Failed to subscribe to telemetry topic: %v", err)
	}

	router := api.NewRouter(s.hubservice, s.hub)
	router.Resources().SetHealthCheck(s.handleHealth(appDB))

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins(s.config.Server.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      handlers.CombinedLoggingHandler(os.Stdout, corsHandler(router)),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	go func() {
		nuts.L.Infof("[Server] Starting server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nuts.L.Errorf("[Server] Error starting server: %v", err)
			os.Exit(1)
		}
	}()

	return s.waitForShutdown()
}

// waitForShutdown waits for interrupt signal and gracefully shuts down the server
func (s *Server) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	nuts.L.Infof("[Server] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	s.busClient.Disconnect()
	s.hubCancel()

	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}

// handleHealth returns a health check handler that also pings the database
func (s *Server) handleHealth(db database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded","version":"` + nuts.GetVersion() + `"}`))
			return
		}
		status := "ok"
		if s.busClient == nil || !s.busClient.IsConnected() {
			status = "degraded"
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"` + status + `","version":"` + nuts.GetVersion() + `"}`))
	}
}

func (s *Server) setupLifecycleHandlers() {
	s.hubservice.OnLifecycleEvent("alert.created", func(id string) {
		s.monitoring.RecordEvent("alert_created", map[string]string{
			"alert_id": id,
		})
	})

	s.hubservice.OnLifecycleEvent("alert.dispatched", func(id string) {
		s.monitoring.RecordEvent("alert_dispatched", map[string]string{
			"alert_id": id,
		})
	})

	s.hubservice.OnLifecycleEvent("alert.neutralised", func(id string) {
		s.monitoring.RecordEvent("alert_neutralised", map[string]string{
			"alert_id": id,
		})
	})

	s.hubservice.OnLifecycleEvent("alert.deleted", func(id string) {
		s.monitoring.RecordEvent("alert_deleted", map[string]string{
			"alert_id": id,
		})
	})
}

func initAppDB(cfg config.PostgresConfig) database.DB {
	wrappedDB, err := database.NewPostgresDB(cfg)
	if err != nil {
		nuts.L.Fatalf("[Server] Failed to connect to AppDB: %v", err)
	}
	db := wrappedDB.GetDB()
	if err := db.Ping(); err != nil {
		nuts.L.Fatalf("[Server] Failed to ping AppDB: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		nuts.L.Fatalf("[Server] Failed to ping database: %v", err)
	}
	return wrappedDB
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		nuts.L.Fatalf("[Server] Failed to ping Redis: %v", err)
	}
	return rdb
}
