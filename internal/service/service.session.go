package service

import (
	"context"
	"strings"
	"time"

	"github.com/itsatony/lumen/internal/auth"
	"github.com/itsatony/lumen/internal/errors"
	"github.com/itsatony/lumen/internal/events"
	"github.com/itsatony/lumen/internal/models"
	"github.com/itsatony/struccy"
	nuts "github.com/vaudience/go-nuts"
)

// RegisterUse binds a device to a patient. Open sessions of the patient's
// sensor are auto-closed and a new active session is opened atomically.
// Conflicting concurrent registrations are retried a bounded number of
// times before a retryable conflict is returned.
func (s *Service) RegisterUse(ctx context.Context, req models.RegisterUseRequest) (*models.SessionTransition, error) {
	if err := ValidatePatientID(req.PatientID); err != nil {
		return nil, err
	}
	serial := strings.TrimSpace(req.DeviceSerial)
	if serial == "" {
		return nil, errors.NewValidationError("device_serial is required", nil)
	}

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxRegisterAttempts; attempt++ {
		now := s.now()
		transition, err := s.sensors.CloseOpenAndStart(ctx, req.PatientID, serial, now)
		if err == nil {
			s.announceTransition(req.PatientID, transition, now)
			nuts.L.Infof("[SessionTracker] Patient %s started session %d on sensor %d (auto-closed %d)",
				req.PatientID, transition.SessionID, transition.SensorID, len(transition.AutoClosedIDs))
			return transition, nil
		}
		if !errors.IsConflict(err) {
			return nil, err
		}
		lastErr = err
		if attempt == s.opts.MaxRegisterAttempts {
			break
		}
		s.metrics.RegisterRetried()
		nuts.L.Warnf("[SessionTracker] Registration conflict for patient %s, attempt %d/%d: %v",
			req.PatientID, attempt, s.opts.MaxRegisterAttempts, err)
		if err := sleepCtx(ctx, s.opts.RetryBackoff*time.Duration(attempt)); err != nil {
			return nil, errors.FromDB("sensor registration interrupted", err)
		}
	}
	return nil, errors.NewConflictError("sensor registration is contended, retry later", lastErr)
}

func (s *Service) announceTransition(patientID string, t *models.SessionTransition, at time.Time) {
	for _, id := range t.AutoClosedIDs {
		s.emit(events.Event{
			Type:      events.SessionAutoClosed,
			PatientID: patientID,
			SensorID:  t.SensorID,
			SessionID: id,
			Status:    string(models.SessionAutoClosed),
			At:        at,
		})
	}
	s.emit(events.Event{
		Type:      events.SessionOpened,
		PatientID: patientID,
		SensorID:  t.SensorID,
		SessionID: t.SessionID,
		Status:    string(models.SessionActive),
		At:        at,
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// EndUse closes the most recent open session of the sensor for the patient.
// It returns nil without error when nothing was open.
func (s *Service) EndUse(ctx context.Context, req models.EndUseRequest) (*models.SensorSession, error) {
	if err := ValidatePatientID(req.PatientID); err != nil {
		return nil, err
	}
	if req.SensorID <= 0 {
		return nil, errors.NewValidationError("sensor_id is required", nil)
	}
	status := models.SessionManual
	if req.Status != "" {
		status = models.SessionStatus(req.Status)
	}
	if !status.IsClosing() {
		return nil, errors.NewValidationError("status must be manual or auto_closed", nil).
			WithDetails(map[string]string{"status": req.Status})
	}

	now := s.now()
	session, err := s.sensors.CloseLatestOpen(ctx, req.PatientID, req.SensorID, status, now)
	if err != nil {
		return nil, err
	}
	if session == nil {
		nuts.L.Infof("[SessionTracker] No open session for patient %s on sensor %d", req.PatientID, req.SensorID)
		return nil, nil
	}

	s.emit(events.Event{
		Type:      events.SessionClosed,
		PatientID: req.PatientID,
		SensorID:  req.SensorID,
		SessionID: session.ID,
		Status:    string(status),
		At:        now,
	})
	return session, nil
}

// ListSessions returns the session history of a patient, newest first
func (s *Service) ListSessions(ctx context.Context, patientID string) ([]models.SensorSession, error) {
	if err := ValidatePatientID(patientID); err != nil {
		return nil, err
	}
	return s.sensors.ListSessions(ctx, patientID)
}

// LookupSensor finds the sensor bound to a device serial. Fields the
// caller's roles may not read are cleared.
func (s *Service) LookupSensor(ctx context.Context, deviceSerial string) (*models.Sensor, error) {
	deviceSerial = strings.TrimSpace(deviceSerial)
	if deviceSerial == "" {
		return nil, errors.NewValidationError("device_serial is required", nil)
	}
	sensor, err := s.sensors.GetBySerial(ctx, deviceSerial)
	if err != nil {
		return nil, err
	}

	roles := auth.Roles(ctx)
	filteredMap, err := struccy.StructToMapFieldsWithReadXS(sensor, roles)
	if err != nil {
		return nil, errors.NewInternalError("failed to filter sensor fields", err)
	}
	filtered := &models.Sensor{}
	if _, err := struccy.MergeMapStringFieldsToStruct(filtered, filteredMap, roles); err != nil {
		return nil, errors.NewInternalError("failed to map filtered fields to sensor struct", err)
	}
	return filtered, nil
}
