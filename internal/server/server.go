// FilePath: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itsatony/lumen/api"
	"github.com/itsatony/lumen/api/middleware"
	"github.com/itsatony/lumen/internal/config"
	"github.com/itsatony/lumen/internal/database"
	"github.com/itsatony/lumen/internal/events"
	"github.com/itsatony/lumen/internal/ingest"
	"github.com/itsatony/lumen/internal/monitoring"
	"github.com/itsatony/lumen/internal/repository/cache"
	"github.com/itsatony/lumen/internal/repository/postgres"
	"github.com/itsatony/lumen/internal/repository/timescale"
	"github.com/itsatony/lumen/internal/service"
	nuts "github.com/vaudience/go-nuts"
)

const startupTimeout = 30 * time.Second

// Server represents our HTTP server
type Server struct {
	config     *config.Config
	srv        *http.Server
	service    *service.Service
	monitoring *monitoring.Service
	bus        *events.Bus
	subscriber *ingest.Subscriber
	closers    []io.Closer
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config: cfg,
		srv:    srv,
	}
}

// Start wires all components and blocks until shutdown
func (s *Server) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	s.monitoring = monitoring.NewService(monitoring.Config{Namespace: s.config.Monitoring.Namespace})
	s.bus = events.NewBus()
	s.service = s.initializeService(ctx)

	s.setupEventHandlers()

	s.srv.Handler = api.NewRouter(s.service, middleware.KeycloakConfig{
		Enabled:      s.config.Keycloak.Enabled,
		URL:          s.config.Keycloak.URL,
		Realm:        s.config.Keycloak.Realm,
		ClientID:     s.config.Keycloak.ClientID,
		ClientSecret: s.config.Keycloak.ClientSecret,
	}, s.monitoring, s.config.Server.AllowedOrigins)

	if s.config.MQTT.Enabled {
		s.subscriber = ingest.NewSubscriber(s.config.MQTT, s.service, s.config.Query.DefaultTimeout)
		if err := s.subscriber.Start(); err != nil {
			nuts.L.Fatalf("[Server] Failed to start MQTT ingestion: %v", err)
		}
	}

	// Start server
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

	if s.subscriber != nil {
		s.subscriber.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			nuts.L.Warnf("[Server] Error closing resource: %v", err)
		}
	}

	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}

// setupEventHandlers counts and logs lifecycle events and forwards them to
// kafka when brokers are configured.
func (s *Server) setupEventHandlers() {
	for _, name := range events.All {
		s.bus.Subscribe(name, "monitoring", func(e events.Event) {
			s.monitoring.RecordEvent(e.Type, map[string]string{
				"patient_id": e.PatientID,
				"status":     e.Status,
			})
		})
	}

	s.bus.Subscribe(events.SessionAutoClosed, "log", func(e events.Event) {
		nuts.L.Infof("[Events] Session %d of patient %s auto-closed", e.SessionID, e.PatientID)
	})
	s.bus.Subscribe(events.SessionClosed, "log", func(e events.Event) {
		nuts.L.Infof("[Events] Session %d of patient %s closed (%s)", e.SessionID, e.PatientID, e.Status)
	})

	if len(s.config.Kafka.Brokers) > 0 {
		publisher := events.NewKafkaPublisher(s.config.Kafka)
		forwarder := s.bus.Forward(publisher, 5*time.Second, events.DefaultQueueSize)
		s.closers = append(s.closers, publisher, forwarder)
	}
}

// initializeService creates and configures the core service
func (s *Server) initializeService(ctx context.Context) *service.Service {
	// Initialize database connections
	readingsDB := initDB("ReadingsDB", s.config.Database.ReadingsDB)
	appDB := initDB("AppDB", s.config.Database.AppDB)
	s.closers = append(s.closers, readingsDB, appDB)

	// Initialize repositories
	readings := timescale.NewReadingRepository(readingsDB)
	sensors := postgres.NewSensorRepository(appDB)
	battery := postgres.NewBatteryRepository(appDB)

	if err := readings.InitSchema(ctx); err != nil {
		nuts.L.Fatalf("[Server] Failed to initialize readings schema: %v", err)
	}
	if err := sensors.InitSchema(ctx); err != nil {
		nuts.L.Fatalf("[Server] Failed to initialize sensor schema: %v", err)
	}
	if err := battery.InitSchema(ctx); err != nil {
		nuts.L.Fatalf("[Server] Failed to initialize battery schema: %v", err)
	}

	svc := service.New(readings, sensors, battery, service.OptionsFromConfig(s.config)).
		WithEvents(s.bus).
		WithMetrics(s.monitoring)
	if err := svc.Validate(); err != nil {
		nuts.L.Fatalf("[Server] Invalid service wiring: %v", err)
	}

	if s.config.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, s.config.Redis)
		if err != nil {
			nuts.L.Warnf("[Server] Redis unavailable, aggregate cache disabled: %v", err)
		} else {
			s.closers = append(s.closers, client)
			svc.WithCache(cache.NewAggregateCache(cache.NewRedisKVStore(client), s.config.Redis.CacheTTL))
		}
	}

	return svc
}

func initDB(name string, cfg config.PostgresConfig) database.DB {
	wrappedDB, err := database.NewPostgresDB(cfg)
	if err != nil {
		nuts.L.Fatalf("[Server] Failed to connect to %s: %v", name, err)
	}
	// Set up connection timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wrappedDB.Ping(ctx); err != nil {
		nuts.L.Fatalf("[Server] Failed to ping %s: %v", name, err)
	}
	return wrappedDB
}
