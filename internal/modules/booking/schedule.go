package booking

import (
	"fmt"
	"time"

	"slapp/internal/domain"
	"slapp/internal/pkg/timerange"
)

// WeekSchedule is a studio's operating hours indexed by weekday.
type WeekSchedule struct {
	days map[time.Weekday]domain.StudioOperatingHours
}

// NewWeekSchedule indexes entries by weekday. Two entries for the same day
// make the schedule ambiguous and are rejected.
func NewWeekSchedule(entries []domain.StudioOperatingHours) (*WeekSchedule, error) {
	ws := &WeekSchedule{days: make(map[time.Weekday]domain.StudioOperatingHours, 7)}
	for _, e := range entries {
		if e.DayOfWeek < 0 || e.DayOfWeek > 6 {
			return nil, fmt.Errorf("%w: day_of_week %d", ErrInvalidSchedule, e.DayOfWeek)
		}
		day := time.Weekday(e.DayOfWeek)
		if _, dup := ws.days[day]; dup {
			return nil, fmt.Errorf("%w: duplicate entry for %s", ErrInvalidSchedule, day)
		}
		ws.days[day] = e
	}
	return ws, nil
}

// ValidateWeek checks that a schedule has exactly one entry per weekday.
func ValidateWeek(entries []domain.StudioOperatingHours) error {
	ws, err := NewWeekSchedule(entries)
	if err != nil {
		return err
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if _, ok := ws.days[d]; !ok {
			return fmt.Errorf("%w: missing entry for %s", ErrInvalidSchedule, d)
		}
	}
	return nil
}

// Window returns the open window on the local day starting at day.
// ok is false when the studio is closed that day.
func (ws *WeekSchedule) Window(day time.Time) (timerange.Interval, bool, error) {
	e, found := ws.days[day.Weekday()]
	if !found || !e.IsOpen {
		return timerange.Interval{}, false, nil
	}

	open, close := timerange.Clock(0), timerange.EndOfDay
	var err error
	if e.StartTime != nil && *e.StartTime != "" {
		if open, err = timerange.ParseClock(*e.StartTime); err != nil {
			return timerange.Interval{}, false, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
	}
	if e.EndTime != nil && *e.EndTime != "" {
		if close, err = timerange.ParseClock(*e.EndTime); err != nil {
			return timerange.Interval{}, false, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
	}

	w := timerange.Interval{Start: timerange.At(day, open), End: timerange.At(day, close)}
	if !w.Valid() {
		return timerange.Interval{}, false, nil
	}
	return w, true, nil
}

// IsWithinOperatingHours checks that iv lies inside one local day's open window.
func IsWithinOperatingHours(ws *WeekSchedule, loc *time.Location, iv timerange.Interval) error {
	if !iv.Valid() {
		return ErrInvalidInterval
	}
	if !timerange.SingleLocalDay(iv, loc) {
		return fmt.Errorf("%w: booking spans more than one day", ErrInvalidInterval)
	}

	day := timerange.StartOfDay(iv.Start, loc)
	window, open, err := ws.Window(day)
	if err != nil {
		return err
	}
	if !open {
		return fmt.Errorf("%w: studio closed on %s", ErrOutsideOperatingHours, day.Weekday())
	}
	if !timerange.Contains(window, iv) {
		return fmt.Errorf("%w: open %s-%s", ErrOutsideOperatingHours,
			window.Start.Format("15:04"), window.End.Format("15:04"))
	}
	return nil
}
