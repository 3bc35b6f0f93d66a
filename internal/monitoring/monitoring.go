package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	nuts "github.com/vaudience/go-nuts"
)

// Config holds monitoring configuration
type Config struct {
	Namespace string
}

// Service owns the prometheus registry of the hub. A nil *Service is valid
// and records nothing.
type Service struct {
	config   Config
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	events           *prometheus.CounterVec
	readingsAppended prometheus.Counter
	registerRetries  prometheus.Counter
	aggregateLatency *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
}

// NewService creates a new monitoring service
func NewService(config Config) *Service {
	ns := config.Namespace
	s := &Service{
		config:   config,
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "lifecycle_events_total",
			Help:      "Sensor session and reading lifecycle events.",
		}, []string{"event"}),
		readingsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "readings_appended_total",
			Help:      "Total light readings stored.",
		}),
		registerRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "register_conflict_retries_total",
			Help:      "Sensor registrations retried after a unique or serialization conflict.",
		}),
		aggregateLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "aggregate_duration_seconds",
			Help:      "Time spent computing aggregate grids by granularity.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"granularity"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "aggregate_cache_lookups_total",
			Help:      "Aggregate cache lookups by result.",
		}, []string{"result"}),
	}

	s.registry.MustRegister(
		s.httpRequests,
		s.httpDuration,
		s.events,
		s.readingsAppended,
		s.registerRetries,
		s.aggregateLatency,
		s.cacheLookups,
		collectors.NewGoCollector(),
	)
	return s
}

// RecordEvent counts a lifecycle event
func (s *Service) RecordEvent(eventName string, labels map[string]string) {
	if s == nil {
		return
	}
	s.events.WithLabelValues(eventName).Inc()
	nuts.L.Debugf("[Monitoring] Event %s recorded with labels: %v", eventName, labels)
}

func (s *Service) ReadingAppended() {
	if s == nil {
		return
	}
	s.readingsAppended.Inc()
}

func (s *Service) RegisterRetried() {
	if s == nil {
		return
	}
	s.registerRetries.Inc()
}

func (s *Service) ObserveAggregate(granularity string, d time.Duration) {
	if s == nil {
		return
	}
	s.aggregateLatency.WithLabelValues(granularity).Observe(d.Seconds())
}

func (s *Service) CacheLookup(hit bool) {
	if s == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	s.cacheLookups.WithLabelValues(result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// WrapHandler records request count and latency under route
func (s *Service) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if s != nil {
			s.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			s.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

// Middleware labels requests with the matched mux path template so that
// patient ids do not explode label cardinality.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.WrapHandler(route, next).ServeHTTP(w, r)
	})
}

// Handler exposes the registry in the prometheus text format
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (s *Service) Registry() *prometheus.Registry {
	return s.registry
}
