// FilePath: internal/models/models.aggregate.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// Granularity selects the bucket grid of an aggregate query.
type Granularity string

const (
	Hourly  Granularity = "hourly"
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// HighLightThreshold is the illuminance (lux) at or above which a reading
// counts as high light.
const HighLightThreshold = 1000.0

// ParseGranularity accepts the canonical names plus "daily-range".
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hourly", "hour":
		return Hourly, nil
	case "daily", "daily-range", "day":
		return Daily, nil
	case "weekly", "week":
		return Weekly, nil
	case "monthly", "month":
		return Monthly, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

// AggregateBucket is the summary of one time slot. Key is the hour (0-23),
// weekday (0=Monday..6), day of month (1-31) or, for daily ranges, the
// position of the date in the range.
type AggregateBucket struct {
	Key                  int       `json:"key"`
	Date                 string    `json:"date,omitempty"`
	StartsAt             time.Time `json:"starts_at"`
	EndsAt               time.Time `json:"ends_at"`
	AverageMelanopicEDI  float64   `json:"average_melanopic_edi"`
	AverageLux           float64   `json:"average_lux"`
	AverageIlluminance   float64   `json:"average_illuminance"`
	AverageExposureScore float64   `json:"average_exposure_score"`
	ActionRequiredCount  int       `json:"action_required_count"`
	CountHighLight       int       `json:"count_high_light"`
	CountLowLight        int       `json:"count_low_light"`
	TotalMeasurements    int       `json:"total_measurements"`
}

// AggregateResult is the complete grid returned for a query. NoData is true
// when the window contained no readings at all; the grid is still complete.
type AggregateResult struct {
	PatientID   string            `json:"patient_id"`
	Granularity Granularity       `json:"granularity"`
	From        time.Time         `json:"from"`
	To          time.Time         `json:"to"`
	NoData      bool              `json:"no_data"`
	Cached      bool              `json:"cached"`
	Buckets     []AggregateBucket `json:"buckets"`
}

// ReadingsResult wraps a raw reading listing.
type ReadingsResult struct {
	PatientID string     `json:"patient_id"`
	From      *time.Time `json:"from,omitempty"`
	To        *time.Time `json:"to,omitempty"`
	NoData    bool       `json:"no_data"`
	Readings  []Reading  `json:"readings"`
}
