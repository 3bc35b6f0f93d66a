// FilePath: internal/repository/timescale/timescale.reading.go
package timescale

import (
	"context"
	"time"

	"github.com/itsatony/lumen/internal/database"
	"github.com/itsatony/lumen/internal/errors"
	"github.com/itsatony/lumen/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

const readingColumns = `id, patient_id, sensor_id, captured_at, lux_level, melanopic_edi, der,
	illuminance, light_type, exposure_score, action_required, server_stamped, received_at`

type ReadingRepo struct {
	TimeScaleBaseRepo
	hypertable bool
}

func NewReadingRepository(db database.DB) *ReadingRepo {
	return &ReadingRepo{TimeScaleBaseRepo: TimeScaleBaseRepo{db: db}}
}

// InitSchema creates the readings table. It becomes a hypertable on
// captured_at when the timescaledb extension is installed.
func (r *ReadingRepo) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS readings (
			id BIGSERIAL NOT NULL,
			patient_id TEXT NOT NULL,
			sensor_id BIGINT,
			captured_at TIMESTAMPTZ NOT NULL,
			lux_level DOUBLE PRECISION,
			melanopic_edi DOUBLE PRECISION,
			der DOUBLE PRECISION,
			illuminance DOUBLE PRECISION,
			light_type TEXT,
			exposure_score DOUBLE PRECISION,
			action_required BOOLEAN NOT NULL DEFAULT FALSE,
			server_stamped BOOLEAN NOT NULL DEFAULT FALSE,
			received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (id, captured_at)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_patient_captured
			ON readings(patient_id, captured_at)`,
	}
	for _, query := range queries {
		if _, err := r.db.GetDB().ExecContext(ctx, query); err != nil {
			return errors.FromDB("failed to initialize schema", err)
		}
	}

	hasTimescale, err := database.HasExtension(ctx, r.db, "timescaledb")
	if err != nil {
		return errors.FromDB("failed to check timescaledb extension", err)
	}
	if !hasTimescale {
		nuts.L.Warnf("[TimescaleDB] Extension not installed, readings stay a plain table")
		return nil
	}

	_, err = r.db.GetDB().ExecContext(ctx, `SELECT create_hypertable('readings', 'captured_at',
		chunk_time_interval => INTERVAL '7 days',
		if_not_exists => TRUE,
		migrate_data => TRUE
	)`)
	if err != nil {
		return errors.FromDB("failed to create readings hypertable", err)
	}
	r.hypertable = true
	nuts.L.Infof("[TimescaleDB] Readings hypertable ready")
	return nil
}

// Hypertable reports whether InitSchema converted readings to a hypertable.
func (r *ReadingRepo) Hypertable() bool {
	return r.hypertable
}

func (r *ReadingRepo) Append(ctx context.Context, reading *models.Reading) error {
	query := `
		INSERT INTO readings (
			patient_id, sensor_id, captured_at, lux_level, melanopic_edi, der,
			illuminance, light_type, exposure_score, action_required, server_stamped, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	err := r.db.GetDB().GetContext(ctx, &reading.ID, query,
		reading.PatientID, reading.SensorID, reading.CapturedAt, reading.LuxLevel,
		reading.MelanopicEDI, reading.DER, reading.Illuminance, reading.LightType,
		reading.ExposureScore, reading.ActionRequired, reading.ServerStamped, reading.ReceivedAt,
	)
	if err != nil {
		return errors.FromDB("failed to insert reading", err)
	}
	return nil
}

func (r *ReadingRepo) ListByPatient(ctx context.Context, patientID string, from, to time.Time) ([]models.Reading, error) {
	readings := []models.Reading{}
	query := `
		SELECT ` + readingColumns + `
		FROM readings
		WHERE patient_id = $1 AND captured_at >= $2 AND captured_at < $3
		ORDER BY captured_at ASC, id ASC`

	if err := r.db.GetDB().SelectContext(ctx, &readings, query, patientID, from, to); err != nil {
		return nil, errors.FromDB("failed to list readings", err)
	}
	return readings, nil
}

func (r *ReadingRepo) ListAllByPatient(ctx context.Context, patientID string) ([]models.Reading, error) {
	readings := []models.Reading{}
	query := `
		SELECT ` + readingColumns + `
		FROM readings
		WHERE patient_id = $1
		ORDER BY captured_at ASC, id ASC`

	if err := r.db.GetDB().SelectContext(ctx, &readings, query, patientID); err != nil {
		return nil, errors.FromDB("failed to list readings", err)
	}
	return readings, nil
}

func (r *ReadingRepo) ListForAggregation(ctx context.Context, patientID string, from, to time.Time) ([]models.Reading, error) {
	readings := []models.Reading{}
	query := `
		SELECT captured_at, lux_level, melanopic_edi, illuminance, exposure_score, action_required
		FROM readings
		WHERE patient_id = $1 AND captured_at >= $2 AND captured_at < $3
		ORDER BY captured_at ASC`

	if err := r.db.GetDB().SelectContext(ctx, &readings, query, patientID, from, to); err != nil {
		return nil, errors.FromDB("failed to load readings for aggregation", err)
	}
	return readings, nil
}
