package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"slapp/internal/domain"
	"slapp/internal/pkg/timerange"
)

const monthLayout = "2006-01"


// StudioStats is one studio's confirmed business for a local calendar month.
type StudioStats struct {
	StudioID          int64           `json:"studio_id"`
	Month             string          `json:"month"`
	TotalReservations int64           `json:"total_reservations"`
	Revenue           decimal.Decimal `json:"revenue"`
	ReservedHours     decimal.Decimal `json:"reserved_hours"`
	AvailableHours    decimal.Decimal `json:"available_hours"`
	OccupancyRate     decimal.Decimal `json:"occupancy_rate"`
}

// OwnerStats sums StudioStats over every studio of an owner.
type OwnerStats struct {
	OwnerID           int64           `json:"owner_id"`
	Month             string          `json:"month"`
	TotalReservations int64           `json:"total_reservations"`
	Revenue           decimal.Decimal `json:"revenue"`
	ReservedHours     decimal.Decimal `json:"reserved_hours"`
	AvailableHours    decimal.Decimal `json:"available_hours"`
	OccupancyRate     decimal.Decimal `json:"occupancy_rate"`
	Studios           []StudioStats   `json:"studios"`
}

// OwnerStats reports confirmed reservations, revenue and occupancy for month
// (YYYY-MM, empty for the current one). Each studio's month runs from local
// midnight on the 1st in its own time zone. Occupancy is reserved hours over
// the operating hours of the studio's active rooms, as a percentage.
func (s *Service) OwnerStats(ctx context.Context, ownerID int64, month string) (*OwnerStats, error) {
	studios, err := s.catalog.ListStudiosByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(studios) == 0 {
		return nil, fmt.Errorf("%w: owner %d has no studios", ErrNotFound, ownerID)
	}

	out := &OwnerStats{OwnerID: ownerID, Month: month, Studios: make([]StudioStats, 0, len(studios))}
	reserved, available := decimal.Zero, decimal.Zero
	for _, studio := range studios {
		st, err := s.studioStats(ctx, studio, month)
		if err != nil {
			return nil, err
		}
		if out.Month == "" {
			out.Month = st.Month
		}
		out.TotalReservations += st.TotalReservations
		out.Revenue = out.Revenue.Add(st.Revenue)
		reserved = reserved.Add(st.ReservedHours)
		available = available.Add(st.AvailableHours)
		out.Studios = append(out.Studios, st)
	}
	out.ReservedHours = reserved.Round(2)
	out.AvailableHours = available.Round(2)
	out.OccupancyRate = occupancy(reserved, available)
	return out, nil
}

func (s *Service) studioStats(ctx context.Context, studio domain.Studio, month string) (StudioStats, error) {
	loc, err := studio.Location()
	if err != nil {
		return StudioStats{}, fmt.Errorf("studio %d timezone: %w", studio.ID, err)
	}
	period, err := monthInterval(month, s.clock.Now(), loc)
	if err != nil {
		return StudioStats{}, err
	}

	totals, err := s.store.StatsByStudioBetween(ctx, studio.ID, period, domain.ReservationConfirmed)
	if err != nil {
		return StudioStats{}, fmt.Errorf("studio %d stats: %w", studio.ID, err)
	}

	available, err := s.availableHours(ctx, studio.ID, period)
	if err != nil {
		return StudioStats{}, err
	}
	reserved := hoursOf(totals.Reserved)

	return StudioStats{
		StudioID:          studio.ID,
		Month:             period.Start.Format(monthLayout),
		TotalReservations: totals.Count,
		Revenue:           totals.Revenue.Round(2),
		ReservedHours:     reserved.Round(2),
		AvailableHours:    available.Round(2),
		OccupancyRate:     occupancy(reserved, available),
	}, nil
}

// availableHours is the studio's open time over period times its active rooms.
func (s *Service) availableHours(ctx context.Context, studioID int64, period timerange.Interval) (decimal.Decimal, error) {
	rooms, err := s.catalog.CountActiveRooms(ctx, studioID)
	if err != nil {
		return decimal.Zero, err
	}
	if rooms == 0 {
		return decimal.Zero, nil
	}
	hours, err := s.catalog.GetOperatingHours(ctx, studioID)
	if err != nil {
		return decimal.Zero, err
	}
	ws, err := NewWeekSchedule(hours)
	if err != nil {
		return decimal.Zero, err
	}

	var open time.Duration
	for day := period.Start; day.Before(period.End); day = timerange.NextDay(day) {
		w, ok, err := ws.Window(day)
		if err != nil {
			return decimal.Zero, err
		}
		if ok {
			open += w.Duration()
		}
	}
	return hoursOf(open).Mul(decimal.NewFromInt(rooms)), nil
}

func monthInterval(month string, now time.Time, loc *time.Location) (timerange.Interval, error) {
	var first time.Time
	if month == "" {
		local := now.In(loc)
		first = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	} else {
		t, err := time.ParseInLocation(monthLayout, month, loc)
		if err != nil {
			return timerange.Interval{}, validationFailed(ErrInvalidInterval, "month must be YYYY-MM")
		}
		first = t
	}
	return timerange.Interval{Start: first, End: first.AddDate(0, 1, 0)}, nil
}

func hoursOf(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(d.Nanoseconds()).Div(nanosPerHour)
}

func occupancy(reserved, available decimal.Decimal) decimal.Decimal {
	if !available.IsPositive() {
		return decimal.Zero
	}
	return reserved.Div(available).Mul(hundred).Round(2)
}
