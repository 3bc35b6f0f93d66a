// FilePath: api/resources/resources.go
package resources

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/schema"
	"github.com/itsatony/lumen/internal/errors"
	"github.com/itsatony/lumen/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// LightService is the core surface the HTTP handlers expose
type LightService interface {
	AppendReading(ctx context.Context, req models.AppendReadingRequest) (*models.Reading, error)
	AppendBattery(ctx context.Context, req models.BatteryStatusRequest) (*models.BatteryStatus, error)
	RegisterUse(ctx context.Context, req models.RegisterUseRequest) (*models.SessionTransition, error)
	EndUse(ctx context.Context, req models.EndUseRequest) (*models.SensorSession, error)
	LookupSensor(ctx context.Context, deviceSerial string) (*models.Sensor, error)
	ListSessions(ctx context.Context, patientID string) ([]models.SensorSession, error)
	ListReadings(ctx context.Context, patientID string, q models.ReadingsQuery) (*models.ReadingsResult, error)
	ListAllReadings(ctx context.Context, patientID, timeout string) (*models.ReadingsResult, error)
	Aggregate(ctx context.Context, patientID string, q models.AggregateQuery) (*models.AggregateResult, error)
	Ping(ctx context.Context) map[string]error
}

// Resources holds all HTTP resource handlers
type Resources struct {
	Sensors  *SensorHandlers
	Patients *PatientHandlers
	Metrics  http.Handler
	svc      LightService
}

// NewResources creates a new Resources instance
func NewResources(svc LightService) *Resources {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return &Resources{
		Sensors:  &SensorHandlers{svc: svc},
		Patients: &PatientHandlers{svc: svc, decoder: decoder},
		svc:      svc,
	}
}

// SetMetrics sets the metrics handler
func (r *Resources) SetMetrics(h http.Handler) {
	r.Metrics = h
}

// @Summary Health check
// @Description Reports the version and the reachability of both databases
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (r *Resources) HealthCheck(w http.ResponseWriter, req *http.Request) {
	status := http.StatusOK
	checks := map[string]string{}
	for name, err := range r.svc.Ping(req.Context()) {
		if err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	respondWithJSON(w, status, map[string]interface{}{
		"status":  state,
		"version": nuts.GetVersion(),
		"checks":  checks,
	})
}

// MetricsHandler serves the prometheus registry
func (r *Resources) MetricsHandler(w http.ResponseWriter, req *http.Request) {
	if r.Metrics == nil {
		http.NotFound(w, req)
		return
	}
	r.Metrics.ServeHTTP(w, req)
}

func respondWithError(w http.ResponseWriter, err error, requestID string) {
	apiErr, ok := errors.As(err)
	if !ok {
		apiErr = errors.NewInternalError("internal server error", err)
	}
	apiErr = apiErr.WithRequestID(requestID)

	if apiErr.Code >= http.StatusInternalServerError {
		nuts.L.Errorf("[API] %s", apiErr.Error())
	} else {
		nuts.L.Warnf("[API] %s", apiErr.Error())
	}
	respondWithJSON(w, apiErr.Code, apiErr)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.NewValidationError("invalid request body", err)
	}
	return nil
}
