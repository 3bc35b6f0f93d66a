package service

import (
	"context"
	"time"

	"github.com/itsatony/lumen/internal/aggregation"
	"github.com/itsatony/lumen/internal/bucketing"
	"github.com/itsatony/lumen/internal/errors"
	"github.com/itsatony/lumen/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// Aggregate computes the complete bucket grid of a patient for the
// requested granularity. Input is validated before storage is touched.
// A window without readings is a successful result with NoData set.
func (s *Service) Aggregate(ctx context.Context, patientID string, q models.AggregateQuery) (*models.AggregateResult, error) {
	if err := ValidatePatientID(patientID); err != nil {
		return nil, err
	}
	granularity, err := models.ParseGranularity(q.Granularity)
	if err != nil {
		return nil, errors.NewValidationError("granularity must be one of hourly, daily, weekly, monthly", err)
	}
	grid, err := s.gridFor(granularity, q)
	if err != nil {
		return nil, err
	}
	timeout, err := s.resolveTimeout(q.Timeout)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { s.metrics.ObserveAggregate(string(granularity), time.Since(start)) }()

	// cache round trips count against the caller's timeout too
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var generation string
	if s.cache != nil {
		cached, gen, hit := s.cache.Lookup(qctx, patientID, granularity, grid.From, grid.To)
		s.metrics.CacheLookup(hit)
		if hit {
			return cached, nil
		}
		generation = gen
	}

	var readings []models.Reading
	if len(grid.Slots) > 0 {
		readings, err = s.readings.ListForAggregation(qctx, patientID, grid.From, grid.To)
		if err != nil {
			err = queryError(qctx, "failed to load readings for aggregation", err)
			nuts.L.Errorf("[QueryFacade] %s aggregate for %s failed: %v", granularity, patientID, err)
			return nil, err
		}
	}

	buckets, counted := aggregation.Aggregate(grid, readings)
	result := &models.AggregateResult{
		PatientID:   patientID,
		Granularity: granularity,
		From:        grid.From,
		To:          grid.To,
		NoData:      counted == 0,
		Buckets:     buckets,
	}

	if s.cache != nil {
		s.cache.Store(qctx, result, generation)
	}
	return result, nil
}

// gridFor picks the window of a query. Daily uses [from, to) with the
// trailing-week default; the fixed grids are anchored at "at", else "from",
// else now.
func (s *Service) gridFor(granularity models.Granularity, q models.AggregateQuery) (bucketing.Grid, error) {
	if granularity == models.Daily {
		from, to, err := s.resolveRange(q.From, q.To)
		if err != nil {
			return bucketing.Grid{}, err
		}
		grid, err := bucketing.DailyRange(from, to)
		if err != nil {
			return bucketing.Grid{}, errors.NewValidationError(err.Error(), err)
		}
		return grid, nil
	}

	anchor := s.now()
	if q.From != "" || q.To != "" {
		var from, to time.Time
		var err error
		if q.From != "" {
			if from, err = ParseTimestamp("from", q.From); err != nil {
				return bucketing.Grid{}, err
			}
			anchor = from
		}
		if q.To != "" {
			if to, err = ParseTimestamp("to", q.To); err != nil {
				return bucketing.Grid{}, err
			}
		}
		if q.From != "" && q.To != "" && from.After(to) {
			return bucketing.Grid{}, errors.NewValidationError("from must not be after to", nil)
		}
	}
	if q.At != "" {
		at, err := ParseTimestamp("at", q.At)
		if err != nil {
			return bucketing.Grid{}, err
		}
		anchor = at
	}

	switch granularity {
	case models.Hourly:
		return bucketing.Hourly(anchor), nil
	case models.Weekly:
		return bucketing.Weekly(anchor), nil
	case models.Monthly:
		return bucketing.Monthly(anchor), nil
	}
	return bucketing.Grid{}, errors.NewValidationError("unsupported granularity", nil)
}
