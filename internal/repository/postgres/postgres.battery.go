// FilePath: internal/repository/postgres/postgres.battery.go
package postgres

import (
	"context"

	"github.com/itsatony/lumen/internal/database"
	"github.com/itsatony/lumen/internal/errors"
	"github.com/itsatony/lumen/internal/models"
)

var batterySchema = []string{
	`CREATE TABLE IF NOT EXISTS patient_battery_status (
		id BIGSERIAL PRIMARY KEY,
		patient_id TEXT NOT NULL,
		sensor_id BIGINT,
		battery_level DOUBLE PRECISION NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_battery_status_patient
		ON patient_battery_status(patient_id, recorded_at DESC)`,
}

type BatteryRepo struct {
	PostgresBaseRepo
}

func NewBatteryRepository(db database.DB) *BatteryRepo {
	return &BatteryRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

func (r *BatteryRepo) InitSchema(ctx context.Context) error {
	return r.execAll(ctx, batterySchema)
}

func (r *BatteryRepo) Append(ctx context.Context, status *models.BatteryStatus) error {
	query := `
		INSERT INTO patient_battery_status (patient_id, sensor_id, battery_level, recorded_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := r.db.GetDB().GetContext(ctx, &status.ID, query,
		status.PatientID, status.SensorID, status.BatteryLevel, status.RecordedAt)
	if err != nil {
		return errors.FromDB("failed to insert battery status", err)
	}
	return nil
}
