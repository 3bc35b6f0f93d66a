package service

import (
	"context"
	stderrors "errors"

	"github.com/itsatony/lumen/internal/errors"
	"github.com/itsatony/lumen/internal/events"
	"github.com/itsatony/lumen/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// AppendReading stores a reading as sent. A missing capture time is
// replaced by the receipt time and the reading is flagged server-stamped.
// Values are not range checked and identical payloads are stored twice.
func (s *Service) AppendReading(ctx context.Context, req models.AppendReadingRequest) (*models.Reading, error) {
	if err := ValidatePatientID(req.PatientID); err != nil {
		return nil, err
	}

	now := s.now()
	reading := &models.Reading{
		PatientID:      req.PatientID,
		SensorID:       req.SensorID,
		LuxLevel:       req.LuxLevel,
		MelanopicEDI:   req.MelanopicEDI,
		DER:            req.DER,
		Illuminance:    req.Illuminance,
		LightType:      req.LightType,
		ExposureScore:  req.ExposureScore,
		ActionRequired: bool(req.ActionRequired),
		CapturedAt:     now,
		ServerStamped:  true,
		ReceivedAt:     now,
	}
	if raw := req.CaptureTime(); raw != "" {
		capturedAt, err := ParseTimestamp("captured_at", raw)
		if err != nil {
			return nil, err
		}
		reading.CapturedAt = capturedAt
		reading.ServerStamped = false
	}

	if err := s.readings.Append(ctx, reading); err != nil {
		return nil, err
	}
	s.metrics.ReadingAppended()

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, reading.PatientID); err != nil {
			nuts.L.Warnf("[ReadingStore] Failed to invalidate aggregate cache for %s: %v", reading.PatientID, err)
		}
	}

	var sensorID int64
	if reading.SensorID != nil {
		sensorID = *reading.SensorID
	}
	s.emit(events.Event{
		Type:      events.ReadingAppended,
		PatientID: reading.PatientID,
		SensorID:  sensorID,
		At:        reading.CapturedAt,
	})
	return reading, nil
}

// AppendBattery stores a battery level report
func (s *Service) AppendBattery(ctx context.Context, req models.BatteryStatusRequest) (*models.BatteryStatus, error) {
	if err := ValidatePatientID(req.PatientID); err != nil {
		return nil, err
	}
	if req.BatteryLevel == nil {
		return nil, errors.NewValidationError("battery_level is required", nil)
	}
	status := &models.BatteryStatus{
		PatientID:    req.PatientID,
		SensorID:     req.SensorID,
		BatteryLevel: *req.BatteryLevel,
		RecordedAt:   s.now(),
	}
	if err := s.battery.Append(ctx, status); err != nil {
		return nil, err
	}
	return status, nil
}

// ListReadings returns the raw readings of a patient in [from, to),
// defaulting to the trailing seven days.
func (s *Service) ListReadings(ctx context.Context, patientID string, q models.ReadingsQuery) (*models.ReadingsResult, error) {
	if err := ValidatePatientID(patientID); err != nil {
		return nil, err
	}
	from, to, err := s.resolveRange(q.From, q.To)
	if err != nil {
		return nil, err
	}
	timeout, err := s.resolveTimeout(q.Timeout)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	readings, err := s.readings.ListByPatient(ctx, patientID, from, to)
	if err != nil {
		return nil, queryError(ctx, "failed to list readings", err)
	}
	return &models.ReadingsResult{
		PatientID: patientID,
		From:      &from,
		To:        &to,
		NoData:    len(readings) == 0,
		Readings:  readings,
	}, nil
}

// ListAllReadings returns the full reading history of a patient
func (s *Service) ListAllReadings(ctx context.Context, patientID, timeoutRaw string) (*models.ReadingsResult, error) {
	if err := ValidatePatientID(patientID); err != nil {
		return nil, err
	}
	timeout, err := s.resolveTimeout(timeoutRaw)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	readings, err := s.readings.ListAllByPatient(ctx, patientID)
	if err != nil {
		return nil, queryError(ctx, "failed to list readings", err)
	}
	return &models.ReadingsResult{
		PatientID: patientID,
		NoData:    len(readings) == 0,
		Readings:  readings,
	}, nil
}

// queryError classifies a storage failure of a timeout-bounded read. An
// expired deadline wins over whatever the driver reported.
func queryError(ctx context.Context, msg string, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewTimeoutError(msg+": query timed out", err)
	}
	return errors.FromDB(msg, err)
}
