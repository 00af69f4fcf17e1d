package booking

import (
	"context"

	"slapp/internal/domain"
	"slapp/internal/pkg/timerange"
)

// ActiveStatuses are the statuses that hold a room. Every conflict query uses this list.
var ActiveStatuses = []domain.ReservationStatus{
	domain.ReservationPending,
	domain.ReservationConfirmed,
}

func IsActive(s domain.ReservationStatus) bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// FindConflicts returns the active reservations of roomID that overlap iv.
// It only reads; callers provide isolation through TxManager.
func FindConflicts(ctx context.Context, finder OverlapFinder, roomID int64, iv timerange.Interval) ([]domain.Reservation, error) {
	if !iv.Valid() {
		return nil, ErrInvalidInterval
	}
	rows, err := finder.FindActiveOverlapping(ctx, roomID, iv, ActiveStatuses)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Reservation, 0, len(rows))
	for _, r := range rows {
		if r.RoomID != roomID || !IsActive(r.Status) {
			continue
		}
		if timerange.Overlaps(timerange.Interval{Start: r.StartTime, End: r.EndTime}, iv) {
			out = append(out, r)
		}
	}
	return out, nil
}
