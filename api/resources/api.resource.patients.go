// FilePath: api/resources/api.resource.patients.go
package resources

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"github.com/itsatony/lumen/internal/errors"
	"github.com/itsatony/lumen/internal/export"
	"github.com/itsatony/lumen/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// PatientHandlers serves the per-patient query routes
type PatientHandlers struct {
	svc     LightService
	decoder *schema.Decoder
}

func (h *PatientHandlers) decodeQuery(r *http.Request, dst interface{}) error {
	if err := h.decoder.Decode(dst, r.URL.Query()); err != nil {
		return errors.NewValidationError("invalid query parameters", err)
	}
	return nil
}

// @Summary List sensor sessions
// @Tags patients
// @Produce json
// @Param patient_id path string true "Patient ID"
// @Success 200 {array} models.SensorSession
// @Failure 400 {object} errors.APIError
// @Router /patients/{patient_id}/sessions [get]
// @Security BearerAuth
func (h *PatientHandlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	sessions, err := h.svc.ListSessions(r.Context(), mux.Vars(r)["patient_id"])
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, sessions)
}

// @Summary List raw readings
// @Description Readings in [from, to), defaulting to the trailing seven days
// @Tags patients
// @Produce json
// @Param patient_id path string true "Patient ID"
// @Param from query string false "Range start (ISO-8601)"
// @Param to query string false "Range end (ISO-8601)"
// @Param timeout query string false "Query timeout, e.g. 5s"
// @Success 200 {object} models.ReadingsResult
// @Failure 400 {object} errors.APIError
// @Failure 504 {object} errors.APIError
// @Router /patients/{patient_id}/lightdata [get]
// @Security BearerAuth
func (h *PatientHandlers) ListReadings(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var q models.ReadingsQuery
	if err := h.decodeQuery(r, &q); err != nil {
		respondWithError(w, err, requestID)
		return
	}

	result, err := h.svc.ListReadings(r.Context(), mux.Vars(r)["patient_id"], q)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// @Summary Full reading history
// @Tags patients
// @Produce json
// @Param patient_id path string true "Patient ID"
// @Param timeout query string false "Query timeout, e.g. 30s"
// @Success 200 {object} models.ReadingsResult
// @Failure 504 {object} errors.APIError
// @Router /patients/{patient_id}/lightdata/all [get]
// @Security BearerAuth
func (h *PatientHandlers) ListAllReadings(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	result, err := h.svc.ListAllReadings(r.Context(), mux.Vars(r)["patient_id"], r.URL.Query().Get("timeout"))
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// @Summary Aggregate readings
// @Description Complete bucket grid for the granularity. An empty window returns 200 with no_data set.
// @Tags patients
// @Produce json
// @Param patient_id path string true "Patient ID"
// @Param granularity query string true "hourly, daily, weekly or monthly"
// @Param from query string false "Range start (ISO-8601)"
// @Param to query string false "Range end (ISO-8601)"
// @Param at query string false "Anchor instant for hourly, weekly and monthly grids"
// @Param timeout query string false "Query timeout, e.g. 5s"
// @Success 200 {object} models.AggregateResult
// @Failure 400 {object} errors.APIError
// @Failure 503 {object} errors.APIError
// @Failure 504 {object} errors.APIError
// @Router /patients/{patient_id}/lightdata/aggregate [get]
// @Security BearerAuth
func (h *PatientHandlers) Aggregate(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var q models.AggregateQuery
	if err := h.decodeQuery(r, &q); err != nil {
		respondWithError(w, err, requestID)
		return
	}

	result, err := h.svc.Aggregate(r.Context(), mux.Vars(r)["patient_id"], q)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// @Summary Export an aggregate grid
// @Description The aggregate grid of the granularity as an XLSX workbook
// @Tags patients
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param patient_id path string true "Patient ID"
// @Param granularity path string true "hourly, daily, weekly or monthly"
// @Param from query string false "Range start (ISO-8601)"
// @Param to query string false "Range end (ISO-8601)"
// @Param at query string false "Anchor instant"
// @Success 200 {file} file
// @Failure 400 {object} errors.APIError
// @Router /patients/{patient_id}/lightdata/{granularity}/export.xlsx [get]
// @Security BearerAuth
func (h *PatientHandlers) ExportAggregate(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	vars := mux.Vars(r)

	var q models.AggregateQuery
	if err := h.decodeQuery(r, &q); err != nil {
		respondWithError(w, err, requestID)
		return
	}
	q.Granularity = vars["granularity"]

	result, err := h.svc.Aggregate(r.Context(), vars["patient_id"], q)
	if err != nil {
		respondWithError(w, err, requestID)
		return
	}

	data, err := export.AggregateWorkbook(result)
	if err != nil {
		respondWithError(w, errors.NewInternalError("failed to render workbook", err), requestID)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+export.Filename(result))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
