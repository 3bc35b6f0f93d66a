// FilePath: internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/itsatony/lumen/internal/database"
	"github.com/itsatony/lumen/internal/models"
)

var (
	// ErrCacheMiss indicates that a cache key is absent or expired
	ErrCacheMiss = errors.New("cache miss")
)

// ReadingRepository is the append-only store of light readings
type ReadingRepository interface {
	Append(ctx context.Context, reading *models.Reading) error
	// ListByPatient returns readings with from <= captured_at < to, oldest first.
	ListByPatient(ctx context.Context, patientID string, from, to time.Time) ([]models.Reading, error)
	ListAllByPatient(ctx context.Context, patientID string) ([]models.Reading, error)
	// ListForAggregation selects only the columns the aggregator consumes.
	ListForAggregation(ctx context.Context, patientID string, from, to time.Time) ([]models.Reading, error)
	Ping(ctx context.Context) error
}

// SensorRepository manages sensors and their logging sessions
type SensorRepository interface {
	database.Repository
	UpsertForPatient(ctx context.Context, patientID, deviceSerial string) (*models.Sensor, bool, error)
	GetBySerial(ctx context.Context, deviceSerial string) (*models.Sensor, error)
	// CloseOpenAndStart upserts the sensor of the patient, auto-closes its open
	// sessions and opens a new active one, all in one transaction.
	CloseOpenAndStart(ctx context.Context, patientID, deviceSerial string, now time.Time) (*models.SessionTransition, error)
	// CloseLatestOpen closes the most recently started open session. It
	// returns nil without error when no session is open.
	CloseLatestOpen(ctx context.Context, patientID string, sensorID int64, status models.SessionStatus, now time.Time) (*models.SensorSession, error)
	ListSessions(ctx context.Context, patientID string) ([]models.SensorSession, error)
	Ping(ctx context.Context) error
}

// BatteryRepository stores battery level reports
type BatteryRepository interface {
	Append(ctx context.Context, status *models.BatteryStatus) error
}

// KVStore is the key-value surface the aggregate cache needs from redis
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}
