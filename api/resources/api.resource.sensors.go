// FilePath: api/resources/api.resource.sensors.go
package resources

import (
	"net/http"

	"github.com/itsatony/lumen/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// SensorHandlers encapsulates the device facing HTTP handlers
type SensorHandlers struct {
	svc LightService
}

// AppendReadingResponse acknowledges a stored reading
type AppendReadingResponse struct {
	Success bool            `json:"success"`
	Reading *models.Reading `json:"reading"`
}

// EndUseResponse acknowledges an end-use call. Closed is false when no
// session was open.
type EndUseResponse struct {
	Ack     bool                  `json:"ack"`
	Closed  bool                  `json:"closed"`
	Session *models.SensorSession `json:"session,omitempty"`
}

// @Summary Append a light reading
// @Description Stores one reading. A missing captured_at is replaced by the receipt time.
// @Tags sensors
// @Accept json
// @Produce json
// @Param reading body models.AppendReadingRequest true "Reading"
// @Success 201 {object} AppendReadingResponse
// @Failure 400 {object} errors.APIError
// @Failure 503 {object} errors.APIError
// @Router /sensors/light-data [post]
// @Security BearerAuth
func (h *SensorHandlers) AppendReading(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req models.AppendReadingRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, err, requestID)
		return
	}

	reading, err := h.svc.AppendReading(r.Context(), req)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusCreated, AppendReadingResponse{Success: true, Reading: reading})
}

// @Summary Append a battery status
// @Tags sensors
// @Accept json
// @Produce json
// @Param status body models.BatteryStatusRequest true "Battery status"
// @Success 201 {object} models.BatteryStatus
// @Failure 400 {object} errors.APIError
// @Router /sensors/battery-status [post]
// @Security BearerAuth
func (h *SensorHandlers) AppendBattery(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req models.BatteryStatusRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, err, requestID)
		return
	}

	status, err := h.svc.AppendBattery(r.Context(), req)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusCreated, status)
}

// @Summary Register sensor use
// @Description Binds a device to a patient, auto-closing any open session and opening a new one
// @Tags sensors
// @Accept json
// @Produce json
// @Param registration body models.RegisterUseRequest true "Registration"
// @Success 201 {object} models.SessionTransition
// @Failure 400 {object} errors.APIError
// @Failure 409 {object} errors.APIError
// @Router /sensors/register-use [post]
// @Security BearerAuth
func (h *SensorHandlers) RegisterUse(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req models.RegisterUseRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, err, requestID)
		return
	}

	transition, err := h.svc.RegisterUse(r.Context(), req)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusCreated, transition)
}

// @Summary End sensor use
// @Description Closes the most recent open session of the sensor. Succeeds without change when none is open.
// @Tags sensors
// @Accept json
// @Produce json
// @Param end body models.EndUseRequest true "End of use"
// @Success 200 {object} EndUseResponse
// @Failure 400 {object} errors.APIError
// @Router /sensors/end-use [post]
// @Security BearerAuth
func (h *SensorHandlers) EndUse(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req models.EndUseRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, err, requestID)
		return
	}

	session, err := h.svc.EndUse(r.Context(), req)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, EndUseResponse{Ack: true, Closed: session != nil, Session: session})
}

// @Summary Look up a sensor by device serial
// @Tags sensors
// @Produce json
// @Param device_serial query string true "Device serial"
// @Success 200 {object} models.Sensor
// @Failure 404 {object} errors.APIError
// @Router /sensors/by-serial [get]
// @Security BearerAuth
func (h *SensorHandlers) GetBySerial(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	sensor, err := h.svc.LookupSensor(r.Context(), r.URL.Query().Get("device_serial"))
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, sensor)
}
