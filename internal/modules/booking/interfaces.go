package booking

import (
	"context"
	"time"

	"slapp/internal/domain"
	"slapp/internal/pkg/timerange"
)

// Catalog is the read-only view of studios, rooms and their booking rules.
type Catalog interface {
	GetRoom(ctx context.Context, roomID int64) (*domain.Room, error)
	GetStudio(ctx context.Context, studioID int64) (*domain.Studio, error)
	GetOperatingHours(ctx context.Context, studioID int64) ([]domain.StudioOperatingHours, error)
	// GetCancellationPolicy returns nil, nil when the studio has no policy.
	GetCancellationPolicy(ctx context.Context, studioID int64) (*domain.CancellationPolicy, error)
	ListOverrides(ctx context.Context, roomID int64, iv timerange.Interval) ([]domain.Availability, error)
	ListSpecialPrices(ctx context.Context, roomID int64) ([]domain.SpecialPrice, error)
	ListStudiosByOwner(ctx context.Context, ownerID int64) ([]domain.Studio, error)
	CountActiveRooms(ctx context.Context, studioID int64) (int64, error)
}

// OverlapFinder is the read side the conflict detector needs.
type OverlapFinder interface {
	FindActiveOverlapping(ctx context.Context, roomID int64, iv timerange.Interval, statuses []domain.ReservationStatus) ([]domain.Reservation, error)
}

// ReservationStore persists reservations.
type ReservationStore interface {
	OverlapFinder
	Insert(ctx context.Context, r *domain.Reservation) error
	FindByID(ctx context.Context, id int64) (*domain.Reservation, error)
	// UpdateStatus applies upd only if the row is still in status from.
	// It reports false when the row moved on in the meantime.
	UpdateStatus(ctx context.Context, id int64, from domain.ReservationStatus, upd domain.StatusUpdate) (bool, error)
	FindStalePending(ctx context.Context, cutoff time.Time, afterID int64, limit int) ([]domain.Reservation, error)
	ListByRoomBetween(ctx context.Context, roomID int64, from, to time.Time, statuses []domain.ReservationStatus) ([]domain.Reservation, error)
	ListPendingByStudio(ctx context.Context, studioID int64) ([]domain.Reservation, error)
	// StatsByStudioBetween totals the studio's reservations in status that
	// start inside iv.
	StatsByStudioBetween(ctx context.Context, studioID int64, iv timerange.Interval, status domain.ReservationStatus) (domain.ReservationTotals, error)
}

// TxManager runs fn in one transaction scoped to a room. Implementations lock
// the room so that a conflict check and the following insert are atomic.
type TxManager interface {
	WithinRoomTx(ctx context.Context, roomID int64, fn func(ctx context.Context, store ReservationStore) error) error
}
