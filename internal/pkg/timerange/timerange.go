package timerange

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrDegenerate   = errors.New("interval end must be after start")
	ErrInvalidClock = errors.New("invalid time of day")
)

// Interval is a half-open range [Start, End) of absolute instants.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New builds an interval and rejects end <= start.
func New(start, end time.Time) (Interval, error) {
	if !end.After(start) {
		return Interval{}, ErrDegenerate
	}
	return Interval{Start: start, End: end}, nil
}

func (iv Interval) Valid() bool {
	return iv.End.After(iv.Start)
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether a and b share any instant. Touching endpoints do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Contains reports whether inner lies entirely within outer.
func Contains(outer, inner Interval) bool {
	return !inner.Start.Before(outer.Start) && !outer.End.Before(inner.End)
}

// Intersect returns the common part of a and b; ok is false when they do not overlap.
func Intersect(a, b Interval) (Interval, bool) {
	if !Overlaps(a, b) {
		return Interval{}, false
	}
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	return Interval{Start: start, End: end}, true
}

// StartOfDay returns local midnight of the calendar day containing t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// NextDay returns local midnight of the day after day.
func NextDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, day.Location())
}

// SingleLocalDay reports whether iv stays within one calendar day in loc.
// An interval ending exactly at the following midnight still counts as one day.
func SingleLocalDay(iv Interval, loc *time.Location) bool {
	day := StartOfDay(iv.Start, loc)
	return !iv.End.After(NextDay(day))
}

// Clock is a time of day expressed as an offset from midnight.
type Clock time.Duration

const EndOfDay = Clock(24 * time.Hour)

// ParseClock parses "HH:MM". "24:00" is accepted as the end of the day.
func ParseClock(s string) (Clock, error) {
	if s == "24:00" {
		return EndOfDay, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidClock, s)
	}
	return Clock(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
}

func (c Clock) String() string {
	d := time.Duration(c)
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// At places c on the local day that starts at day.
func At(day time.Time, c Clock) time.Time {
	if c == EndOfDay {
		return NextDay(day)
	}
	d := time.Duration(c)
	return time.Date(day.Year(), day.Month(), day.Day(), int(d.Hours()), int(d.Minutes())%60, 0, 0, day.Location())
}
