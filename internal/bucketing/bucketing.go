// FilePath: internal/bucketing/bucketing.go

// Package bucketing lays out the fixed UTC grids readings are summarized on.
// Every slot is half-open: a timestamp equal to a slot's end belongs to the
// next slot.
package bucketing

import (
	"fmt"
	"time"

	"github.com/itsatony/lumen/internal/models"
)

const dateLayout = "2006-01-02"

// Slot is one bucket of a grid.
type Slot struct {
	Key   int
	Date  string
	Start time.Time
	End   time.Time
}

// Grid is the complete, ordered set of slots covering [From, To).
type Grid struct {
	Granularity models.Granularity
	From        time.Time
	To          time.Time
	Slots       []Slot
}

func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Hourly returns the 24 hour-of-day slots of the UTC day containing at.
func Hourly(at time.Time) Grid {
	day := midnight(at)
	g := Grid{Granularity: models.Hourly, From: day, To: day.AddDate(0, 0, 1), Slots: make([]Slot, 0, 24)}
	for h := 0; h < 24; h++ {
		start := day.Add(time.Duration(h) * time.Hour)
		g.Slots = append(g.Slots, Slot{Key: h, Date: day.Format(dateLayout), Start: start, End: start.Add(time.Hour)})
	}
	return g
}

// Weekly returns the seven weekday slots, Monday first, of the UTC week
// containing at.
func Weekly(at time.Time) Grid {
	day := midnight(at)
	// time.Weekday is 0 for Sunday; shift so Monday is 0
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDate(0, 0, -offset)
	return dayGrid(models.Weekly, monday, monday.AddDate(0, 0, 7), 0)
}

// Monthly returns one slot per calendar day of the UTC month containing at,
// keyed 1..N.
func Monthly(at time.Time) Grid {
	at = at.UTC()
	first := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
	return dayGrid(models.Monthly, first, first.AddDate(0, 1, 0), 1)
}

// DaysInMonth returns the number of days of the UTC month containing at.
func DaysInMonth(at time.Time) int {
	return len(Monthly(at).Slots)
}

func dayGrid(g models.Granularity, from, to time.Time, firstKey int) Grid {
	grid := Grid{Granularity: g, From: from, To: to}
	for day, key := from, firstKey; day.Before(to); day, key = day.AddDate(0, 0, 1), key+1 {
		grid.Slots = append(grid.Slots, Slot{Key: key, Date: day.Format(dateLayout), Start: day, End: day.AddDate(0, 0, 1)})
	}
	return grid
}

// DailyRange returns one slot per UTC calendar date intersecting [from, to).
// Slots are clipped to the range; an empty range yields an empty grid.
func DailyRange(from, to time.Time) (Grid, error) {
	from, to = from.UTC(), to.UTC()
	if to.Before(from) {
		return Grid{}, fmt.Errorf("range end %s is before start %s", to.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	grid := Grid{Granularity: models.Daily, From: from, To: to}
	for day, key := midnight(from), 0; day.Before(to); day, key = day.AddDate(0, 0, 1), key+1 {
		start, end := day, day.AddDate(0, 0, 1)
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		grid.Slots = append(grid.Slots, Slot{Key: key, Date: day.Format(dateLayout), Start: start, End: end})
	}
	return grid, nil
}

// Index returns the position of the slot containing t, or false when t
// lies outside [From, To).
func (g Grid) Index(t time.Time) (int, bool) {
	t = t.UTC()
	if len(g.Slots) == 0 || t.Before(g.From) || !t.Before(g.To) {
		return 0, false
	}
	switch g.Granularity {
	case models.Hourly:
		return t.Hour(), true
	case models.Weekly, models.Monthly:
		return daysBetween(g.From, t), true
	case models.Daily:
		return daysBetween(g.From, t), true
	}
	return 0, false
}

func daysBetween(from, t time.Time) int {
	return int(midnight(t).Sub(midnight(from)) / (24 * time.Hour))
}
