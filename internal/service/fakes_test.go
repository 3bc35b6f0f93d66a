package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/itsatony/lumen/internal/database"
	"github.com/itsatony/lumen/internal/errors"
	"github.com/itsatony/lumen/internal/models"
	"github.com/lib/pq"
)

type fakeSensorRepo struct {
	mu        sync.Mutex
	sensors   map[string]*models.Sensor
	sessions  []*models.SensorSession
	nextID    int64
	conflicts int
	err       error
	calls     int
}

func newFakeSensorRepo() *fakeSensorRepo {
	return &fakeSensorRepo{sensors: map[string]*models.Sensor{}}
}

func (f *fakeSensorRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	return nil, errors.NewInternalError("transactions are not supported by the fake", nil)
}

func (f *fakeSensorRepo) Ping(ctx context.Context) error { return nil }

func (f *fakeSensorRepo) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeSensorRepo) UpsertForPatient(ctx context.Context, patientID, deviceSerial string) (*models.Sensor, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upsert(patientID, deviceSerial)
}

func (f *fakeSensorRepo) upsert(patientID, deviceSerial string) (*models.Sensor, bool, error) {
	if s, ok := f.sensors[patientID]; ok {
		return s, false, nil
	}
	s := &models.Sensor{ID: f.id(), PatientID: patientID, DeviceSerial: deviceSerial, SensorType: models.SensorTypeLight}
	f.sensors[patientID] = s
	return s, true, nil
}

func (f *fakeSensorRepo) GetBySerial(ctx context.Context, deviceSerial string) (*models.Sensor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sensors {
		if s.DeviceSerial == deviceSerial {
			copied := *s
			return &copied, nil
		}
	}
	return nil, errors.NewNotFoundError("sensor not found", nil)
}

func (f *fakeSensorRepo) CloseOpenAndStart(ctx context.Context, patientID, deviceSerial string, now time.Time) (*models.SessionTransition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.conflicts > 0 {
		f.conflicts--
		return nil, errors.FromDB("failed to open session", &pq.Error{Code: "23505"})
	}

	sensor, created, _ := f.upsert(patientID, deviceSerial)
	t := &models.SessionTransition{SensorID: sensor.ID, SensorCreated: created}
	for _, s := range f.sessions {
		if s.SensorID == sensor.ID && s.PatientID == patientID && s.IsOpen() {
			ended := now
			s.EndedAt = &ended
			s.Status = models.SessionAutoClosed
			t.AutoClosedIDs = append(t.AutoClosedIDs, s.ID)
		}
	}
	session := &models.SensorSession{ID: f.id(), SensorID: sensor.ID, PatientID: patientID, StartedAt: now, Status: models.SessionActive}
	f.sessions = append(f.sessions, session)
	t.SessionID = session.ID
	return t, nil
}

func (f *fakeSensorRepo) CloseLatestOpen(ctx context.Context, patientID string, sensorID int64, status models.SessionStatus, now time.Time) (*models.SensorSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.SensorSession
	for _, s := range f.sessions {
		if s.SensorID == sensorID && s.PatientID == patientID && s.IsOpen() {
			if latest == nil || s.StartedAt.After(latest.StartedAt) {
				latest = s
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	ended := now
	latest.EndedAt = &ended
	latest.Status = status
	copied := *latest
	return &copied, nil
}

func (f *fakeSensorRepo) ListSessions(ctx context.Context, patientID string) ([]models.SensorSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.SensorSession{}
	for i := len(f.sessions) - 1; i >= 0; i-- {
		if f.sessions[i].PatientID == patientID {
			out = append(out, *f.sessions[i])
		}
	}
	return out, nil
}

type fakeReadingRepo struct {
	mu       sync.Mutex
	readings []models.Reading
	err      error
	block    bool
	queries  int
}

func (f *fakeReadingRepo) Ping(ctx context.Context) error { return nil }

func (f *fakeReadingRepo) Append(ctx context.Context, r *models.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	r.ID = int64(len(f.readings) + 1)
	f.readings = append(f.readings, *r)
	return nil
}

func (f *fakeReadingRepo) list(ctx context.Context, patientID string, from, to *time.Time) ([]models.Reading, error) {
	f.mu.Lock()
	f.queries++
	block, err := f.block, f.err
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Reading{}
	for _, r := range f.readings {
		if r.PatientID != patientID {
			continue
		}
		if from != nil && (r.CapturedAt.Before(*from) || !r.CapturedAt.Before(*to)) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CapturedAt.Before(out[j].CapturedAt) })
	return out, nil
}

func (f *fakeReadingRepo) ListByPatient(ctx context.Context, patientID string, from, to time.Time) ([]models.Reading, error) {
	return f.list(ctx, patientID, &from, &to)
}

func (f *fakeReadingRepo) ListAllByPatient(ctx context.Context, patientID string) ([]models.Reading, error) {
	return f.list(ctx, patientID, nil, nil)
}

func (f *fakeReadingRepo) ListForAggregation(ctx context.Context, patientID string, from, to time.Time) ([]models.Reading, error) {
	return f.list(ctx, patientID, &from, &to)
}

func (f *fakeReadingRepo) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

type fakeBatteryRepo struct {
	statuses []models.BatteryStatus
}

func (f *fakeBatteryRepo) Append(ctx context.Context, status *models.BatteryStatus) error {
	status.ID = int64(len(f.statuses) + 1)
	f.statuses = append(f.statuses, *status)
	return nil
}

type fakeCache struct {
	mu        sync.Mutex
	entries   map[string]*models.AggregateResult
	gens      map[string]int
	deadlines []time.Time
}

func (c *fakeCache) recordDeadline(ctx context.Context) {
	deadline, _ := ctx.Deadline()
	c.deadlines = append(c.deadlines, deadline)
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*models.AggregateResult{}, gens: map[string]int{}}
}

func (c *fakeCache) key(patientID string, g models.Granularity, from, to time.Time, gen string) string {
	return patientID + "|" + string(g) + "|" + from.String() + "|" + to.String() + "|" + gen
}

func (c *fakeCache) Lookup(ctx context.Context, patientID string, g models.Granularity, from, to time.Time) (*models.AggregateResult, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordDeadline(ctx)
	gen := strconv.Itoa(c.gens[patientID])
	if r, ok := c.entries[c.key(patientID, g, from, to, gen)]; ok {
		copied := *r
		copied.Cached = true
		return &copied, gen, true
	}
	return nil, gen, false
}

func (c *fakeCache) Store(ctx context.Context, r *models.AggregateResult, gen string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordDeadline(ctx)
	c.entries[c.key(r.PatientID, r.Granularity, r.From, r.To, gen)] = r
}

func (c *fakeCache) Invalidate(ctx context.Context, patientID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[patientID]++
	return nil
}
