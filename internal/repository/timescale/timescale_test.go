package timescale

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/itsatony/lumen/internal/database"
	"github.com/itsatony/lumen/internal/errors"
	"github.com/itsatony/lumen/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*ReadingRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewReadingRepository(database.Wrap(sqlx.NewDb(db, "sqlmock"))), mock
}

func f64(v float64) *float64 { return &v }

func TestAppend(t *testing.T) {
	repo, mock := setupMockDB(t)
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	reading := &models.Reading{
		PatientID:      "P1",
		CapturedAt:     at,
		LuxLevel:       f64(1500),
		Illuminance:    f64(1500),
		ActionRequired: true,
		ReceivedAt:     at,
	}

	mock.ExpectQuery(`INSERT INTO readings`).
		WithArgs("P1", nil, at, 1500.0, nil, nil, 1500.0, nil, nil, true, false, at).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	require.NoError(t, repo.Append(context.Background(), reading))
	assert.Equal(t, int64(42), reading.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByPatient_HalfOpenWindow(t *testing.T) {
	repo, mock := setupMockDB(t)
	from := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	rows := sqlmock.NewRows([]string{"id", "patient_id", "sensor_id", "captured_at", "lux_level", "melanopic_edi",
		"der", "illuminance", "light_type", "exposure_score", "action_required", "server_stamped", "received_at"}).
		AddRow(1, "P1", 7, from, 10.0, 5.0, nil, 900.0, "indoor", 0.4, false, false, from).
		AddRow(2, "P1", nil, from.Add(time.Hour), nil, nil, nil, nil, nil, nil, true, true, from.Add(time.Hour))

	mock.ExpectQuery(`captured_at >= \$2 AND captured_at < \$3`).
		WithArgs("P1", from, to).
		WillReturnRows(rows)

	readings, err := repo.ListByPatient(context.Background(), "P1", from, to)

	require.NoError(t, err)
	require.Len(t, readings, 2)
	require.NotNil(t, readings[0].SensorID)
	assert.Equal(t, int64(7), *readings[0].SensorID)
	assert.Equal(t, "indoor", *readings[0].LightType)
	assert.Nil(t, readings[1].SensorID)
	assert.Nil(t, readings[1].LuxLevel)
	assert.True(t, readings[1].ServerStamped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListForAggregation_CancelledStatementIsTimeout(t *testing.T) {
	repo, mock := setupMockDB(t)
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT captured_at, lux_level`).
		WillReturnError(&pq.Error{Code: "57014", Message: "canceling statement due to user request"})

	readings, err := repo.ListForAggregation(context.Background(), "P1", from, from.AddDate(0, 1, 0))

	assert.Nil(t, readings)
	assert.True(t, errors.IsTimeout(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAllByPatient_Empty(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectQuery(`FROM readings`).
		WithArgs("P9").
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_id", "captured_at"}))

	readings, err := repo.ListAllByPatient(context.Background(), "P9")

	require.NoError(t, err)
	assert.Empty(t, readings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitSchema_WithoutTimescale(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS readings`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_readings_patient_captured`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`pg_extension`).
		WithArgs("timescaledb").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	require.NoError(t, repo.InitSchema(context.Background()))
	assert.False(t, repo.Hypertable())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitSchema_WithTimescale(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectExec(`CREATE TABLE`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`pg_extension`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`create_hypertable`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.InitSchema(context.Background()))
	assert.True(t, repo.Hypertable())
	assert.NoError(t, mock.ExpectationsWereMet())
}
