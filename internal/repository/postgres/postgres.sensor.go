// FilePath: internal/repository/postgres/postgres.sensor.go
package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/itsatony/lumen/internal/database"
	"github.com/itsatony/lumen/internal/errors"
	"github.com/itsatony/lumen/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

var sensorSchema = []string{
	`CREATE TABLE IF NOT EXISTS sensors (
		id BIGSERIAL PRIMARY KEY,
		patient_id TEXT NOT NULL UNIQUE,
		device_serial TEXT NOT NULL,
		sensor_type TEXT NOT NULL DEFAULT 'light',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sensors_device_serial ON sensors(device_serial)`,
	`CREATE TABLE IF NOT EXISTS sensor_sessions (
		id BIGSERIAL PRIMARY KEY,
		sensor_id BIGINT NOT NULL REFERENCES sensors(id),
		patient_id TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		status TEXT NOT NULL CHECK (status IN ('active', 'auto_closed', 'manual'))
	)`,
	// at most one open session per sensor and patient
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_sensor_sessions_open
		ON sensor_sessions(sensor_id, patient_id) WHERE ended_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_sensor_sessions_patient
		ON sensor_sessions(patient_id, started_at DESC)`,
}

const (
	upsertSensorQuery = `
		INSERT INTO sensors (patient_id, device_serial, sensor_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (patient_id) DO UPDATE SET patient_id = EXCLUDED.patient_id
		RETURNING id, patient_id, device_serial, sensor_type, created_at, (xmax = 0) AS inserted`

	autoCloseQuery = `
		UPDATE sensor_sessions SET ended_at = $3, status = $4
		WHERE sensor_id = $1 AND patient_id = $2 AND ended_at IS NULL
		RETURNING id`

	openSessionQuery = `
		INSERT INTO sensor_sessions (sensor_id, patient_id, started_at, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	closeLatestQuery = `
		UPDATE sensor_sessions SET ended_at = $4, status = $3
		WHERE id = (
			SELECT id FROM sensor_sessions
			WHERE sensor_id = $1 AND patient_id = $2 AND ended_at IS NULL
			ORDER BY started_at DESC
			LIMIT 1
		)
		RETURNING id, sensor_id, patient_id, started_at, ended_at, status`
)

type upsertedSensor struct {
	models.Sensor
	Inserted bool `db:"inserted"`
}

type getter interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type SensorRepo struct {
	PostgresBaseRepo
}

func NewSensorRepository(db database.DB) *SensorRepo {
	repo := &PostgresBaseRepo{db: db}
	return &SensorRepo{PostgresBaseRepo: *repo}
}

// InitSchema creates the sensor and session tables if they are missing.
func (r *SensorRepo) InitSchema(ctx context.Context) error {
	if err := r.execAll(ctx, sensorSchema); err != nil {
		return err
	}
	nuts.L.Infof("[SensorRepo] Schema ready")
	return nil
}

func upsertSensor(ctx context.Context, q getter, patientID, deviceSerial string) (*upsertedSensor, error) {
	row := &upsertedSensor{}
	if err := q.GetContext(ctx, row, upsertSensorQuery, patientID, deviceSerial, models.SensorTypeLight); err != nil {
		return nil, err
	}
	return row, nil
}

// UpsertForPatient returns the sensor of the patient, creating it when
// needed. The bool reports whether a new row was inserted. An existing
// sensor keeps its original device serial.
func (r *SensorRepo) UpsertForPatient(ctx context.Context, patientID, deviceSerial string) (*models.Sensor, bool, error) {
	row, err := upsertSensor(ctx, r.db.GetDB(), patientID, deviceSerial)
	if err != nil {
		return nil, false, errors.FromDB("failed to upsert sensor", err)
	}
	return &row.Sensor, row.Inserted, nil
}

func (r *SensorRepo) GetBySerial(ctx context.Context, deviceSerial string) (*models.Sensor, error) {
	sensor := &models.Sensor{}
	query := `
		SELECT id, patient_id, device_serial, sensor_type, created_at
		FROM sensors
		WHERE device_serial = $1
		ORDER BY created_at DESC
		LIMIT 1`

	err := r.db.GetDB().GetContext(ctx, sensor, query, deviceSerial)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("sensor not found", err)
		}
		return nil, errors.FromDB("failed to get sensor", err)
	}
	return sensor, nil
}

func (r *SensorRepo) CloseOpenAndStart(ctx context.Context, patientID, deviceSerial string, now time.Time) (*models.SessionTransition, error) {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !stderrors.Is(rbErr, sql.ErrTxDone) {
				nuts.L.Warnf("[SensorRepo] Rollback failed for patient %s: %v", patientID, rbErr)
			}
		}
	}()

	sensor, err := upsertSensor(ctx, tx, patientID, deviceSerial)
	if err != nil {
		return nil, errors.FromDB("failed to upsert sensor", err)
	}

	transition := &models.SessionTransition{
		SensorID:      sensor.ID,
		SensorCreated: sensor.Inserted,
	}

	if err := tx.SelectContext(ctx, &transition.AutoClosedIDs, autoCloseQuery,
		sensor.ID, patientID, now, models.SessionAutoClosed); err != nil {
		return nil, errors.FromDB("failed to close open sessions", err)
	}

	if err := tx.GetContext(ctx, &transition.SessionID, openSessionQuery,
		sensor.ID, patientID, now, models.SessionActive); err != nil {
		return nil, errors.FromDB("failed to open session", err)
	}

	if err := r.Commit(tx); err != nil {
		return nil, err
	}
	committed = true
	return transition, nil
}

func (r *SensorRepo) CloseLatestOpen(ctx context.Context, patientID string, sensorID int64, status models.SessionStatus, now time.Time) (*models.SensorSession, error) {
	session := &models.SensorSession{}
	err := r.db.GetDB().GetContext(ctx, session, closeLatestQuery, sensorID, patientID, status, now)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.FromDB("failed to close session", err)
	}
	return session, nil
}

func (r *SensorRepo) ListSessions(ctx context.Context, patientID string) ([]models.SensorSession, error) {
	sessions := []models.SensorSession{}
	query := `
		SELECT id, sensor_id, patient_id, started_at, ended_at, status
		FROM sensor_sessions
		WHERE patient_id = $1
		ORDER BY started_at DESC, id DESC`

	if err := r.db.GetDB().SelectContext(ctx, &sessions, query, patientID); err != nil {
		return nil, errors.FromDB("failed to list sessions", err)
	}
	return sessions, nil
}
