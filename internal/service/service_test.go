package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/itsatony/lumen/internal/auth"
	"github.com/itsatony/lumen/internal/errors"
	"github.com/itsatony/lumen/internal/events"
	"github.com/itsatony/lumen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC) // a Wednesday

type harness struct {
	svc      *Service
	sensors  *fakeSensorRepo
	readings *fakeReadingRepo
	battery  *fakeBatteryRepo
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sensors:  newFakeSensorRepo(),
		readings: &fakeReadingRepo{},
		battery:  &fakeBatteryRepo{},
	}
	h.svc = New(h.readings, h.sensors, h.battery, Options{
		MaxRegisterAttempts: 3,
		RetryBackoff:        time.Millisecond,
		DefaultTimeout:      time.Second,
		MaxTimeout:          5 * time.Second,
		MaxRangeDays:        31,
		Now:                 func() time.Time { return fixedNow },
	})
	require.NoError(t, h.svc.Validate())
	return h
}

func f64(v float64) *float64 { return &v }
func str(v string) *string    { return &v }

func TestRegisterUse_SecondCallAutoClosesFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.RegisterUse(ctx, models.RegisterUseRequest{PatientID: "P9", DeviceSerial: "SN-1"})
	require.NoError(t, err)
	assert.True(t, first.SensorCreated)

	second, err := h.svc.RegisterUse(ctx, models.RegisterUseRequest{PatientID: "P9", DeviceSerial: "SN-1"})
	require.NoError(t, err)
	assert.Equal(t, first.SensorID, second.SensorID)
	assert.Equal(t, []int64{first.SessionID}, second.AutoClosedIDs)

	sessions, err := h.svc.ListSessions(ctx, "P9")
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	latest, previous := sessions[0], sessions[1]
	assert.Equal(t, models.SessionActive, latest.Status)
	assert.Nil(t, latest.EndedAt)
	assert.Equal(t, models.SessionAutoClosed, previous.Status)
	require.NotNil(t, previous.EndedAt)
	assert.Equal(t, latest.SensorID, previous.SensorID)
}

func TestRegisterUse_EmitsLifecycleEvents(t *testing.T) {
	h := newHarness(t)
	bus := events.NewBus()
	h.svc.WithEvents(bus)
	got := make(chan events.Event, 4)
	for _, name := range []string{events.SessionOpened, events.SessionAutoClosed} {
		bus.Subscribe(name, "test", func(e events.Event) { got <- e })
	}

	_, err := h.svc.RegisterUse(context.Background(), models.RegisterUseRequest{PatientID: "P9", DeviceSerial: "SN-1"})
	require.NoError(t, err)
	_, err = h.svc.RegisterUse(context.Background(), models.RegisterUseRequest{PatientID: "P9", DeviceSerial: "SN-1"})
	require.NoError(t, err)

	seen := map[string]int{}
	timeout := time.After(time.Second)
	for len(seen) < 2 || seen[events.SessionOpened] < 2 {
		select {
		case e := <-got:
			seen[e.Type]++
			assert.Equal(t, "P9", e.PatientID)
		case <-timeout:
			t.Fatalf("missing events, saw %v", seen)
		}
	}
	assert.Equal(t, 1, seen[events.SessionAutoClosed])
}

func TestRegisterUse_RetriesConflicts(t *testing.T) {
	h := newHarness(t)
	h.sensors.conflicts = 2

	tr, err := h.svc.RegisterUse(context.Background(), models.RegisterUseRequest{PatientID: "P1", DeviceSerial: "SN-1"})

	require.NoError(t, err)
	assert.NotZero(t, tr.SessionID)
	assert.Equal(t, 3, h.sensors.calls)
}

func TestRegisterUse_GivesUpAfterMaxAttempts(t *testing.T) {
	h := newHarness(t)
	h.sensors.conflicts = 10

	tr, err := h.svc.RegisterUse(context.Background(), models.RegisterUseRequest{PatientID: "P1", DeviceSerial: "SN-1"})

	assert.Nil(t, tr)
	assert.True(t, errors.IsConflict(err))
	assert.True(t, errors.IsRetryable(err))
	assert.Equal(t, 3, h.sensors.calls)
}

func TestRegisterUse_DoesNotRetryOtherFailures(t *testing.T) {
	h := newHarness(t)
	h.sensors.err = errors.NewDatabaseError("connection refused", stderrors.New("dial tcp"))

	_, err := h.svc.RegisterUse(context.Background(), models.RegisterUseRequest{PatientID: "P1", DeviceSerial: "SN-1"})

	require.Error(t, err)
	assert.False(t, errors.IsConflict(err))
	assert.Equal(t, 1, h.sensors.calls)
}

func TestRegisterUse_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.RegisterUse(context.Background(), models.RegisterUseRequest{PatientID: "P 1", DeviceSerial: "SN-1"})
	assert.True(t, errors.IsValidation(err))

	_, err = h.svc.RegisterUse(context.Background(), models.RegisterUseRequest{PatientID: "P1", DeviceSerial: "  "})
	assert.True(t, errors.IsValidation(err))
	assert.Zero(t, h.sensors.calls)
}

func TestEndUse_NoOpenSessionIsSuccess(t *testing.T) {
	h := newHarness(t)

	session, err := h.svc.EndUse(context.Background(), models.EndUseRequest{PatientID: "P9", SensorID: 42})

	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestEndUse_ClosesLatestWithDefaultStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr, err := h.svc.RegisterUse(ctx, models.RegisterUseRequest{PatientID: "P9", DeviceSerial: "SN-1"})
	require.NoError(t, err)

	session, err := h.svc.EndUse(ctx, models.EndUseRequest{PatientID: "P9", SensorID: tr.SensorID})

	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, tr.SessionID, session.ID)
	assert.Equal(t, models.SessionManual, session.Status)

	again, err := h.svc.EndUse(ctx, models.EndUseRequest{PatientID: "P9", SensorID: tr.SensorID})
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestEndUse_RejectsActiveStatus(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.EndUse(context.Background(), models.EndUseRequest{PatientID: "P9", SensorID: 1, Status: "active"})

	assert.True(t, errors.IsValidation(err))
}

func TestAppendReading_StampsMissingCaptureTime(t *testing.T) {
	h := newHarness(t)

	r, err := h.svc.AppendReading(context.Background(), models.AppendReadingRequest{PatientID: "P1", LuxLevel: f64(12)})

	require.NoError(t, err)
	assert.True(t, r.ServerStamped)
	assert.Equal(t, fixedNow, r.CapturedAt)
	assert.Equal(t, fixedNow, r.ReceivedAt)
}

func TestAppendReading_NormalizesToUTC(t *testing.T) {
	h := newHarness(t)

	r, err := h.svc.AppendReading(context.Background(), models.AppendReadingRequest{
		PatientID: "P1",
		Timestamp: str("2025-06-02T10:00:00+02:00"),
	})

	require.NoError(t, err)
	assert.False(t, r.ServerStamped)
	assert.Equal(t, time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), r.CapturedAt)
	assert.Equal(t, time.UTC, r.CapturedAt.Location())
}

func TestAppendReading_RejectsBadInput(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.AppendReading(context.Background(), models.AppendReadingRequest{})
	assert.True(t, errors.IsValidation(err))

	_, err = h.svc.AppendReading(context.Background(), models.AppendReadingRequest{PatientID: "P1", CapturedAt: str("yesterday")})
	assert.True(t, errors.IsValidation(err))

	assert.Empty(t, h.readings.readings)
}

func TestAppendBattery(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.AppendBattery(context.Background(), models.BatteryStatusRequest{PatientID: "P1"})
	assert.True(t, errors.IsValidation(err))

	status, err := h.svc.AppendBattery(context.Background(), models.BatteryStatusRequest{PatientID: "P1", BatteryLevel: f64(55)})
	require.NoError(t, err)
	assert.Equal(t, fixedNow, status.RecordedAt)
	assert.Len(t, h.battery.statuses, 1)
}

func TestAggregate_HourlyScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, in := range []struct {
		at          string
		illuminance float64
		exposure    float64
	}{
		{"2025-06-02T02:00:00Z", 500, 0.2},
		{"2025-06-02T02:30:00Z", 1500, 0.6},
		{"2025-06-02T14:00:00Z", 200, 0.1},
	} {
		_, err := h.svc.AppendReading(ctx, models.AppendReadingRequest{
			PatientID: "P3", CapturedAt: str(in.at), Illuminance: f64(in.illuminance), ExposureScore: f64(in.exposure),
		})
		require.NoError(t, err)
	}

	res, err := h.svc.Aggregate(ctx, "P3", models.AggregateQuery{Granularity: "hourly", At: "2025-06-02T09:00:00Z"})

	require.NoError(t, err)
	assert.False(t, res.NoData)
	require.Len(t, res.Buckets, 24)
	assert.Equal(t, 2, res.Buckets[2].TotalMeasurements)
	assert.InDelta(t, 0.4, res.Buckets[2].AverageExposureScore, 1e-9)
	assert.Equal(t, 1, res.Buckets[14].TotalMeasurements)
	nonEmpty := 0
	for _, b := range res.Buckets {
		if b.TotalMeasurements > 0 {
			nonEmpty++
		}
	}
	assert.Equal(t, 2, nonEmpty)
}

func TestAggregate_WeeklyWithoutReadingsIsNoData(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.Aggregate(context.Background(), "P4", models.AggregateQuery{Granularity: "weekly"})

	require.NoError(t, err)
	assert.True(t, res.NoData)
	require.Len(t, res.Buckets, 7)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), res.From)
	for _, b := range res.Buckets {
		assert.Zero(t, b.TotalMeasurements)
	}
}

func TestAggregate_MonthlyGridLength(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.Aggregate(context.Background(), "P4", models.AggregateQuery{Granularity: "monthly", At: "2024-02-15T00:00:00Z"})

	require.NoError(t, err)
	assert.Len(t, res.Buckets, 29)
}

func TestAggregate_DailyDefaultsToTrailingWeek(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.Aggregate(context.Background(), "P4", models.AggregateQuery{Granularity: "daily-range"})

	require.NoError(t, err)
	assert.Equal(t, fixedNow.AddDate(0, 0, -7), res.From)
	assert.Equal(t, fixedNow, res.To)
	// 7 days ending at noon touch 8 calendar dates
	assert.Len(t, res.Buckets, 8)
	assert.Equal(t, "2025-05-28", res.Buckets[0].Date)
}

func TestAggregate_EmptyDailyRange(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.Aggregate(context.Background(), "P4", models.AggregateQuery{
		Granularity: "daily", From: "2025-06-01T00:00:00Z", To: "2025-06-01T00:00:00Z",
	})

	require.NoError(t, err)
	assert.True(t, res.NoData)
	assert.Empty(t, res.Buckets)
	assert.Zero(t, h.readings.queryCount())
}

func TestAggregate_ValidationHappensBeforeStorage(t *testing.T) {
	h := newHarness(t)
	cases := []models.AggregateQuery{
		{Granularity: "yearly"},
		{Granularity: "daily", From: "2025-06-03T00:00:00Z", To: "2025-06-01T00:00:00Z"},
		{Granularity: "weekly", From: "2025-06-03T00:00:00Z", To: "2025-06-01T00:00:00Z"},
		{Granularity: "daily", From: "not-a-date"},
		{Granularity: "daily", From: "2025-01-01T00:00:00Z", To: "2025-06-01T00:00:00Z"},
		{Granularity: "hourly", Timeout: "soon"},
	}
	for _, q := range cases {
		_, err := h.svc.Aggregate(context.Background(), "P1", q)
		assert.True(t, errors.IsValidation(err), "%+v", q)
	}

	_, err := h.svc.Aggregate(context.Background(), "P1;DROP", models.AggregateQuery{Granularity: "hourly"})
	assert.True(t, errors.IsValidation(err))
	assert.Zero(t, h.readings.queryCount())
}

func TestAggregate_TimeoutIsClassified(t *testing.T) {
	h := newHarness(t)
	h.readings.block = true

	res, err := h.svc.Aggregate(context.Background(), "P1", models.AggregateQuery{Granularity: "monthly", Timeout: "20ms"})

	assert.Nil(t, res)
	assert.True(t, errors.IsTimeout(err))
	assert.True(t, errors.IsRetryable(err))
}

func TestAggregate_StorageFailureIsNotZeroFilled(t *testing.T) {
	h := newHarness(t)
	h.readings.err = errors.NewDatabaseError("failed to load readings", stderrors.New("connection reset"))

	res, err := h.svc.Aggregate(context.Background(), "P1", models.AggregateQuery{Granularity: "weekly"})

	assert.Nil(t, res)
	assert.True(t, errors.IsRetryable(err))
	assert.False(t, errors.IsValidation(err))
}

func TestAggregate_CacheCallsShareQueryDeadline(t *testing.T) {
	h := newHarness(t)
	c := newFakeCache()
	h.svc.WithCache(c)

	before := time.Now()
	_, err := h.svc.Aggregate(context.Background(), "P1", models.AggregateQuery{Granularity: "weekly", Timeout: "2s"})
	require.NoError(t, err)

	require.Len(t, c.deadlines, 2)
	for _, deadline := range c.deadlines {
		require.False(t, deadline.IsZero())
		assert.WithinDuration(t, before.Add(2*time.Second), deadline, time.Second)
	}
}

func TestAggregate_CacheServesUntilNextAppend(t *testing.T) {
	h := newHarness(t)
	h.svc.WithCache(newFakeCache())
	ctx := context.Background()
	q := models.AggregateQuery{Granularity: "weekly"}

	first, err := h.svc.Aggregate(ctx, "P1", q)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := h.svc.Aggregate(ctx, "P1", q)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, h.readings.queryCount())

	_, err = h.svc.AppendReading(ctx, models.AppendReadingRequest{PatientID: "P1", Illuminance: f64(2000)})
	require.NoError(t, err)

	third, err := h.svc.Aggregate(ctx, "P1", q)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.False(t, third.NoData)
	assert.Equal(t, 1, third.Buckets[2].CountHighLight)
}

func TestListReadings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.AppendReading(ctx, models.AppendReadingRequest{PatientID: "P1", CapturedAt: str("2025-06-03T08:00:00Z")})
	require.NoError(t, err)
	_, err = h.svc.AppendReading(ctx, models.AppendReadingRequest{PatientID: "P1", CapturedAt: str("2025-05-01T08:00:00Z")})
	require.NoError(t, err)

	recent, err := h.svc.ListReadings(ctx, "P1", models.ReadingsQuery{})
	require.NoError(t, err)
	assert.Len(t, recent.Readings, 1)
	assert.False(t, recent.NoData)

	all, err := h.svc.ListAllReadings(ctx, "P1", "")
	require.NoError(t, err)
	assert.Len(t, all.Readings, 2)

	none, err := h.svc.ListReadings(ctx, "P2", models.ReadingsQuery{})
	require.NoError(t, err)
	assert.True(t, none.NoData)
}

func TestResolveTimeout(t *testing.T) {
	h := newHarness(t)

	d, err := h.svc.resolveTimeout("")
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	d, err = h.svc.resolveTimeout("2.5")
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, d)

	d, err = h.svc.resolveTimeout("10m")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d, "capped at the configured maximum")

	_, err = h.svc.resolveTimeout("-1s")
	assert.True(t, errors.IsValidation(err))
}

func TestLookupSensor_FiltersSerialByRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	transition, err := h.svc.RegisterUse(ctx, models.RegisterUseRequest{PatientID: "P1", DeviceSerial: "SN-7"})
	require.NoError(t, err)

	clinician := auth.WithContext(ctx, &auth.Context{UserID: "c1", Roles: []string{"clinician"}})
	sensor, err := h.svc.LookupSensor(clinician, "SN-7")
	require.NoError(t, err)
	assert.Equal(t, transition.SensorID, sensor.ID)
	assert.Equal(t, "P1", sensor.PatientID)
	assert.Equal(t, models.SensorTypeLight, sensor.SensorType)
	assert.Equal(t, "SN-7", sensor.DeviceSerial)

	guest, err := h.svc.LookupSensor(ctx, "SN-7")
	require.NoError(t, err)
	assert.Equal(t, transition.SensorID, guest.ID)
	assert.Equal(t, "P1", guest.PatientID)
	assert.Empty(t, guest.DeviceSerial)

	_, err = h.svc.LookupSensor(ctx, "SN-404")
	assert.True(t, errors.IsNotFound(err))
}
