// FilePath: internal/aggregation/aggregation.go
package aggregation

import (
	"github.com/itsatony/lumen/internal/bucketing"
	"github.com/itsatony/lumen/internal/models"
)

// mean accumulates non-null samples.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v *float64) {
	if v == nil {
		return
	}
	m.sum += *v
	m.n++
}

func (m mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

type accumulator struct {
	edi, lux, illuminance, exposure mean
	actionRequired, high, low, total int
}

func (a *accumulator) add(r *models.Reading) {
	a.edi.add(r.MelanopicEDI)
	a.lux.add(r.LuxLevel)
	a.illuminance.add(r.Illuminance)
	a.exposure.add(r.ExposureScore)
	if r.ActionRequired {
		a.actionRequired++
	}
	if r.Illuminance != nil {
		if *r.Illuminance >= models.HighLightThreshold {
			a.high++
		} else {
			a.low++
		}
	}
	a.total++
}

// Aggregate summarizes readings on grid and returns one bucket per slot in
// slot order, zero-filled where a slot has no readings. Readings outside the
// grid are ignored. The second return value is the number of readings that
// landed in the grid.
func Aggregate(grid bucketing.Grid, readings []models.Reading) ([]models.AggregateBucket, int) {
	acc := make([]accumulator, len(grid.Slots))
	counted := 0
	for i := range readings {
		idx, ok := grid.Index(readings[i].CapturedAt)
		if !ok {
			continue
		}
		acc[idx].add(&readings[i])
		counted++
	}

	buckets := make([]models.AggregateBucket, len(grid.Slots))
	for i, slot := range grid.Slots {
		a := acc[i]
		buckets[i] = models.AggregateBucket{
			Key:                  slot.Key,
			Date:                 slot.Date,
			StartsAt:             slot.Start,
			EndsAt:               slot.End,
			AverageMelanopicEDI:  a.edi.value(),
			AverageLux:           a.lux.value(),
			AverageIlluminance:   a.illuminance.value(),
			AverageExposureScore: a.exposure.value(),
			ActionRequiredCount:  a.actionRequired,
			CountHighLight:       a.high,
			CountLowLight:        a.low,
			TotalMeasurements:    a.total,
		}
	}
	return buckets, counted
}
