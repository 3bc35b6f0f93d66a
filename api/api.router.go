package api

import (
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/itsatony/lumen/api/middleware"
	"github.com/itsatony/lumen/api/resources"
	_ "github.com/itsatony/lumen/docs"
	"github.com/itsatony/lumen/internal/monitoring"
	"github.com/swaggo/swag"
)

// Roles allowed on the ingestion and query routes
var (
	IngestRoles = []string{"device", "clinician", "admin", "system"}
	QueryRoles  = []string{"clinician", "admin", "system"}
)

type Router struct {
	router    *mux.Router
	handler   http.Handler
	auth      *middleware.KeycloakMiddleware
	resources *resources.Resources
	metrics   *monitoring.Service
}

func NewRouter(svc resources.LightService, keycloakConfig middleware.KeycloakConfig, metrics *monitoring.Service, allowedOrigins []string) *Router {
	r := &Router{
		router:    mux.NewRouter(),
		auth:      middleware.NewKeycloakMiddleware(keycloakConfig),
		resources: resources.NewResources(svc),
		metrics:   metrics,
	}
	if metrics != nil {
		r.resources.SetMetrics(metrics.Handler())
	}

	r.setupRoutes()

	r.handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
		handlers.CORS(
			handlers.AllowedOrigins(allowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		)(handlers.CombinedLoggingHandler(os.Stdout, r.router)),
	)
	return r
}

func (r *Router) setupRoutes() {
	// API version prefix
	api := r.router.PathPrefix("/api/v1").Subrouter()
	api.Use(r.metrics.Middleware)

	// Public routes
	api.HandleFunc("/health", r.resources.HealthCheck).Methods(http.MethodGet)
	api.HandleFunc("/metrics", r.resources.MetricsHandler).Methods(http.MethodGet)
	api.HandleFunc("/swagger.json", serveSwagger).Methods(http.MethodGet)

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(r.auth.Authenticate)

	// Sensors
	ingest := r.auth.RequireRoles(IngestRoles...)
	sensors := protected.PathPrefix("/sensors").Subrouter()
	sensors.Handle("/light-data", ingest(http.HandlerFunc(r.resources.Sensors.AppendReading))).Methods(http.MethodPost)
	sensors.Handle("/battery-status", ingest(http.HandlerFunc(r.resources.Sensors.AppendBattery))).Methods(http.MethodPost)
	sensors.Handle("/register-use", ingest(http.HandlerFunc(r.resources.Sensors.RegisterUse))).Methods(http.MethodPost)
	sensors.Handle("/end-use", ingest(http.HandlerFunc(r.resources.Sensors.EndUse))).Methods(http.MethodPost)
	sensors.HandleFunc("/by-serial", r.resources.Sensors.GetBySerial).Methods(http.MethodGet)

	// Patients
	patients := protected.PathPrefix("/patients/{patient_id}").Subrouter()
	patients.Use(r.auth.RequireRoles(QueryRoles...))
	patients.HandleFunc("/sessions", r.resources.Patients.ListSessions).Methods(http.MethodGet)
	patients.HandleFunc("/lightdata", r.resources.Patients.ListReadings).Methods(http.MethodGet)
	patients.HandleFunc("/lightdata/all", r.resources.Patients.ListAllReadings).Methods(http.MethodGet)
	patients.HandleFunc("/lightdata/aggregate", r.resources.Patients.Aggregate).Methods(http.MethodGet)
	patients.HandleFunc("/lightdata/{granularity}/export.xlsx", r.resources.Patients.ExportAggregate).Methods(http.MethodGet)
}

func serveSwagger(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		http.Error(w, "swagger document unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(doc))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}
