package service

import (
	"context"
	"time"

	"github.com/itsatony/lumen/internal/config"
	"github.com/itsatony/lumen/internal/errors"
	"github.com/itsatony/lumen/internal/events"
	"github.com/itsatony/lumen/internal/models"
	"github.com/itsatony/lumen/internal/monitoring"
	"github.com/itsatony/lumen/internal/repository"
)

// AggregateCache is the cache surface the query path uses
type AggregateCache interface {
	Lookup(ctx context.Context, patientID string, granularity models.Granularity, from, to time.Time) (*models.AggregateResult, string, bool)
	Store(ctx context.Context, result *models.AggregateResult, generation string)
	Invalidate(ctx context.Context, patientID string) error
}

// Options tunes retry and query limits
type Options struct {
	MaxRegisterAttempts int
	RetryBackoff        time.Duration
	DefaultTimeout      time.Duration
	MaxTimeout          time.Duration
	MaxRangeDays        int
	// Now is the clock; it defaults to time.Now.
	Now func() time.Time
}

// OptionsFromConfig maps the sessions and query sections of cfg
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxRegisterAttempts: cfg.Sessions.MaxRegisterAttempts,
		RetryBackoff:        cfg.Sessions.RetryBackoff,
		DefaultTimeout:      cfg.Query.DefaultTimeout,
		MaxTimeout:          cfg.Query.MaxTimeout,
		MaxRangeDays:        cfg.Query.MaxRangeDays,
	}
}

// Service contains all repositories and service-wide dependencies
type Service struct {
	readings repository.ReadingRepository
	sensors  repository.SensorRepository
	battery  repository.BatteryRepository
	cache    AggregateCache
	bus      *events.Bus
	metrics  *monitoring.Service
	opts     Options
}

// New creates a new service instance
func New(
	readings repository.ReadingRepository,
	sensors repository.SensorRepository,
	battery repository.BatteryRepository,
	opts Options,
) *Service {
	if opts.MaxRegisterAttempts < 1 {
		opts.MaxRegisterAttempts = 1
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 10 * time.Second
	}
	if opts.MaxTimeout < opts.DefaultTimeout {
		opts.MaxTimeout = opts.DefaultTimeout
	}
	if opts.MaxRangeDays < 1 {
		opts.MaxRangeDays = 366
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		readings: readings,
		sensors:  sensors,
		battery:  battery,
		opts:     opts,
	}
}

// WithCache enables the aggregate cache
func (s *Service) WithCache(cache AggregateCache) *Service {
	s.cache = cache
	return s
}

// WithEvents sets the bus lifecycle events are emitted on
func (s *Service) WithEvents(bus *events.Bus) *Service {
	s.bus = bus
	return s
}

// WithMetrics sets the metrics sink
func (s *Service) WithMetrics(metrics *monitoring.Service) *Service {
	s.metrics = metrics
	return s
}

// Validate checks if all required repositories are initialized
func (s *Service) Validate() error {
	if s.readings == nil {
		return ErrMissingRepository("readings")
	}
	if s.sensors == nil {
		return ErrMissingRepository("sensors")
	}
	if s.battery == nil {
		return ErrMissingRepository("battery")
	}
	return nil
}

// Ping checks both databases
func (s *Service) Ping(ctx context.Context) map[string]error {
	return map[string]error{
		"readings_db": s.readings.Ping(ctx),
		"app_db":      s.sensors.Ping(ctx),
	}
}

func (s *Service) now() time.Time {
	return s.opts.Now().UTC()
}

func (s *Service) emit(e events.Event) {
	if e.At.IsZero() {
		e.At = s.now()
	}
	if s.bus != nil {
		s.bus.Emit(e)
	}
}

func ErrMissingRepository(name string) error {
	return errors.NewInternalError("missing repository: "+name, nil)
}
