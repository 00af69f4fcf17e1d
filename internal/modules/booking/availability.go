package booking

import (
	"fmt"
	"time"

	"slapp/internal/domain"
	"slapp/internal/pkg/timerange"
)

// AvailabilityResolver applies room overrides on top of studio operating hours.
type AvailabilityResolver struct {
	// AllowOverrideOpening lets an available=true override open a room
	// outside operating hours.
	AllowOverrideOpening bool
}

// IsAvailable evaluates overrides in precedence order: any overlapping block
// rejects, an opening that fully contains iv skips the hours check, and
// everything else falls through to operating hours.
func (a AvailabilityResolver) IsAvailable(ws *WeekSchedule, loc *time.Location, overrides []domain.Availability, iv timerange.Interval) error {
	if !iv.Valid() {
		return ErrInvalidInterval
	}

	opened := false
	for _, o := range overrides {
		ov := timerange.Interval{Start: o.StartTime, End: o.EndTime}
		if !ov.Valid() || !timerange.Overlaps(ov, iv) {
			continue
		}
		if !o.Available {
			if o.Reason != "" {
				return fmt.Errorf("%w: %s", ErrBlockedByOverride, o.Reason)
			}
			return ErrBlockedByOverride
		}
		if timerange.Contains(ov, iv) {
			opened = true
		}
	}

	if opened && a.AllowOverrideOpening {
		return nil
	}
	return IsWithinOperatingHours(ws, loc, iv)
}
