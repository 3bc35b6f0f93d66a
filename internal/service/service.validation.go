package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/itsatony/lumen/internal/errors"
)

var patientIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// accepted timestamp layouts; the ones without zone are read as UTC
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ValidatePatientID rejects identifiers outside [A-Za-z0-9_-]+.
func ValidatePatientID(patientID string) error {
	if !patientIDPattern.MatchString(patientID) {
		return errors.NewValidationError("invalid patient_id format", nil).
			WithDetails(map[string]string{"patient_id": patientID})
	}
	return nil
}

// ParseTimestamp parses an ISO-8601 timestamp and returns it in UTC.
func ParseTimestamp(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.NewValidationError(fmt.Sprintf("%s is not a valid timestamp", field), nil).
		WithDetails(map[string]string{field: raw})
}

// resolveTimeout turns the caller's timeout parameter into a bounded
// duration. Plain numbers are seconds.
func (s *Service) resolveTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.opts.DefaultTimeout, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		secs, parseErr := strconv.ParseFloat(raw, 64)
		if parseErr != nil {
			return 0, errors.NewValidationError("timeout must be a duration like 5s or a number of seconds", err)
		}
		d = time.Duration(secs * float64(time.Second))
	}
	if d <= 0 {
		return 0, errors.NewValidationError("timeout must be positive", nil)
	}
	if d > s.opts.MaxTimeout {
		d = s.opts.MaxTimeout
	}
	return d, nil
}

// resolveRange applies the trailing-week default and validates from <= to
// and the maximum span.
func (s *Service) resolveRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	to := s.now()
	if toRaw != "" {
		t, err := ParseTimestamp("to", toRaw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t
	}
	from := to.AddDate(0, 0, -7)
	if fromRaw != "" {
		f, err := ParseTimestamp("from", fromRaw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = f
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, errors.NewValidationError("from must not be after to", nil).
			WithDetails(map[string]string{"from": from.Format(time.RFC3339), "to": to.Format(time.RFC3339)})
	}
	if to.Sub(from) > time.Duration(s.opts.MaxRangeDays)*24*time.Hour {
		return time.Time{}, time.Time{}, errors.NewValidationError(
			fmt.Sprintf("range must not exceed %d days", s.opts.MaxRangeDays), nil)
	}
	return from, to, nil
}
