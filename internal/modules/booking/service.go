package booking

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"slapp/internal/domain"
	"slapp/internal/pkg/clock"
	"slapp/internal/pkg/timerange"
)

const (
	defaultSweepBatch   = 100
	defaultSweepWorkers = 4
	maxTransitionTries  = 3

	defaultRejectReason = "rejected by studio owner"
)

type Config struct {
	AllowOverrideOpening bool
	SweepBatch           int
	SweepWorkers         int
}

type Service struct {
	catalog  Catalog
	store    ReservationStore
	tx       TxManager
	clock    clock.Clock
	log      logrus.FieldLogger
	resolver AvailabilityResolver
	locks    *roomLocks

	sweepBatch   int
	sweepWorkers int
}

func NewService(
	catalog Catalog,
	store ReservationStore,
	tx TxManager,
	clk clock.Clock,
	log logrus.FieldLogger,
	cfg Config,
) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = defaultSweepBatch
	}
	if cfg.SweepWorkers <= 0 {
		cfg.SweepWorkers = defaultSweepWorkers
	}
	return &Service{
		catalog:      catalog,
		store:        store,
		tx:           tx,
		clock:        clk,
		log:          log,
		resolver:     AvailabilityResolver{AllowOverrideOpening: cfg.AllowOverrideOpening},
		locks:        newRoomLocks(),
		sweepBatch:   cfg.SweepBatch,
		sweepWorkers: cfg.SweepWorkers,
	}
}

// CreateReservation validates the request, prices it and stores it as PENDING.
// Every rule violation comes back as a *ValidationError.
func (s *Service) CreateReservation(ctx context.Context, req CreateReservationRequest) (*domain.Reservation, error) {
	iv, err := timerange.New(req.StartTime, req.EndTime)
	if err != nil {
		return nil, validationFailed(ErrInvalidInterval, err.Error())
	}
	now := s.clock.Now()
	if iv.Start.Before(now) {
		return nil, validationFailed(ErrInvalidInterval, "booking starts in the past")
	}

	room, studio, loc, err := s.loadRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, validationFailed(ErrRoomInactive, "")
	}

	if err := s.checkAvailability(ctx, room, studio, loc, iv); err != nil {
		return nil, asValidation(err)
	}

	quote, err := s.price(ctx, room, loc, iv)
	if err != nil {
		return nil, err
	}

	res := &domain.Reservation{
		RoomID:      room.ID,
		StudioID:    studio.ID,
		CustomerID:  req.CustomerID,
		StartTime:   iv.Start,
		EndTime:     iv.End,
		TotalPrice:  quote.Total,
		Status:      domain.ReservationPending,
		Notes:       req.Notes,
		ArtistName:  req.ArtistName,
		Instruments: req.Instruments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	unlock := s.locks.lock(room.ID)
	defer unlock()

	err = s.tx.WithinRoomTx(ctx, room.ID, func(ctx context.Context, store ReservationStore) error {
		conflicts, err := FindConflicts(ctx, store, room.ID, iv)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return fmt.Errorf("%w: overlaps reservation %d", ErrDoubleBooked, conflicts[0].ID)
		}
		return store.Insert(ctx, res)
	})
	if err != nil {
		if isOverbookingError(err) {
			return nil, validationFailed(ErrDoubleBooked, "")
		}
		return nil, asValidation(err)
	}

	s.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"room_id":        res.RoomID,
		"customer_id":    res.CustomerID,
		"total_price":    res.TotalPrice.StringFixed(2),
	}).Info("reservation created")

	return res, nil
}

// Quote prices an interval without booking it.
func (s *Service) Quote(ctx context.Context, roomID int64, req QuoteRequest) (*Quote, error) {
	iv, err := timerange.New(req.StartTime, req.EndTime)
	if err != nil {
		return nil, validationFailed(ErrInvalidInterval, err.Error())
	}
	room, _, loc, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	q, err := s.price(ctx, room, loc, iv)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *Service) Approve(ctx context.Context, id int64) (*domain.Reservation, error) {
	r, _, err := s.apply(ctx, id, ActionApprove, func(_ *domain.Reservation, next domain.ReservationStatus, now time.Time) (domain.StatusUpdate, error) {
		return domain.StatusUpdate{Status: next, UpdatedAt: now}, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("reservation_id", id).Info("reservation approved")
	return r, nil
}

func (s *Service) Reject(ctx context.Context, id int64, reason string) (*domain.Reservation, error) {
	if reason == "" {
		reason = defaultRejectReason
	}
	r, _, err := s.apply(ctx, id, ActionReject, func(_ *domain.Reservation, next domain.ReservationStatus, now time.Time) (domain.StatusUpdate, error) {
		return domain.StatusUpdate{Status: next, UpdatedAt: now, RejectReason: reason}, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"reservation_id": id, "reason": reason}).Info("reservation rejected")
	return r, nil
}

// Cancel moves a PENDING or CONFIRMED reservation to CANCELLED and attaches
// the refund owed under the studio's cancellation policy.
func (s *Service) Cancel(ctx context.Context, id int64, actor domain.Actor, reason string) (*CancelOutcome, error) {
	if actor != domain.ActorCustomer && actor != domain.ActorOwner {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActor, actor)
	}

	var (
		policy       *domain.CancellationPolicy
		policyLoaded bool
		refund       Refund
	)
	r, _, err := s.apply(ctx, id, ActionCancel, func(cur *domain.Reservation, next domain.ReservationStatus, now time.Time) (domain.StatusUpdate, error) {
		if !policyLoaded {
			p, err := s.catalog.GetCancellationPolicy(ctx, cur.StudioID)
			if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
				return domain.StatusUpdate{}, err
			}
			policy, policyLoaded = p, true
		}
		refund = ComputeRefund(*cur, policy, now)
		amount := refund.Amount
		return domain.StatusUpdate{
			Status:       next,
			UpdatedAt:    now,
			CancelledAt:  &now,
			CancelReason: reason,
			CancelledBy:  actor,
			RefundAmount: &amount,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	entry := s.log.WithFields(logrus.Fields{
		"reservation_id": id,
		"actor":          actor,
		"refund":         refund.Amount.StringFixed(2),
	})
	if refund.PolicyMissing {
		entry.WithError(ErrPolicyMissing).Info("reservation cancelled without guaranteed refund")
	} else {
		entry.Info("reservation cancelled")
	}
	return &CancelOutcome{Reservation: r, Refund: refund}, nil
}

// Expire moves a PENDING reservation created at or before cutoff to EXPIRED.
// Expiring an already expired reservation is a no-op.
func (s *Service) Expire(ctx context.Context, id int64, cutoff time.Time) (*domain.Reservation, error) {
	r, _, err := s.expire(ctx, id, cutoff)
	return r, err
}

func (s *Service) expire(ctx context.Context, id int64, cutoff time.Time) (*domain.Reservation, bool, error) {
	return s.apply(ctx, id, ActionExpire, func(cur *domain.Reservation, next domain.ReservationStatus, now time.Time) (domain.StatusUpdate, error) {
		if cur.CreatedAt.After(cutoff) {
			return domain.StatusUpdate{}, fmt.Errorf("%w: reservation %d is not stale yet", ErrInvalidTransition, cur.ID)
		}
		return domain.StatusUpdate{Status: next, UpdatedAt: now}, nil
	})
}

// RunExpirySweep expires every PENDING reservation created at or before
// cutoff and returns how many were expired. Rows that raced with an owner
// action are skipped.
func (s *Service) RunExpirySweep(ctx context.Context, cutoff time.Time) (int, error) {
	var expired, failed int64
	afterID := int64(0)

	for {
		batch, err := s.store.FindStalePending(ctx, cutoff, afterID, s.sweepBatch)
		if err != nil {
			return int(expired), fmt.Errorf("find stale pending: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		var g errgroup.Group
		g.SetLimit(s.sweepWorkers)
		for _, r := range batch {
			id := r.ID
			g.Go(func() error {
				_, changed, err := s.expire(ctx, id, cutoff)
				switch {
				case err == nil:
					if changed {
						atomic.AddInt64(&expired, 1)
					}
				case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotFound):
					s.log.WithError(err).WithField("reservation_id", id).Debug("reservation left unexpired")
				default:
					atomic.AddInt64(&failed, 1)
					s.log.WithError(err).WithField("reservation_id", id).Error("failed to expire reservation")
				}
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return int(expired), err
		}
		afterID = batch[len(batch)-1].ID
		if len(batch) < s.sweepBatch {
			break
		}
	}

	if expired > 0 || failed > 0 {
		s.log.WithFields(logrus.Fields{
			"expired": expired,
			"failed":  failed,
			"cutoff":  cutoff.UTC().Format(time.RFC3339),
		}).Info("expiry sweep finished")
	}
	return int(expired), nil
}

func (s *Service) GetReservation(ctx context.Context, id int64) (*domain.Reservation, error) {
	r, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "reservation", id)
	}
	return r, nil
}

// RoomSchedule lists the active reservations of a room on one local day (YYYY-MM-DD).
func (s *Service) RoomSchedule(ctx context.Context, roomID int64, date string) ([]domain.Reservation, error) {
	_, _, loc, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil, validationFailed(ErrInvalidInterval, "date must be YYYY-MM-DD")
	}
	return s.store.ListByRoomBetween(ctx, roomID, day, timerange.NextDay(day), ActiveStatuses)
}

// PendingForStudio lists reservations awaiting owner action, oldest first.
func (s *Service) PendingForStudio(ctx context.Context, studioID int64) ([]domain.Reservation, error) {
	if _, err := s.catalog.GetStudio(ctx, studioID); err != nil {
		return nil, notFound(err, "studio", studioID)
	}
	return s.store.ListPendingByStudio(ctx, studioID)
}

type buildUpdate func(cur *domain.Reservation, next domain.ReservationStatus, now time.Time) (domain.StatusUpdate, error)

// apply runs one lifecycle action. The status is re-read and the transition
// re-validated whenever the compare-and-set update loses a race.
func (s *Service) apply(ctx context.Context, id int64, action Action, build buildUpdate) (*domain.Reservation, bool, error) {
	for attempt := 0; attempt < maxTransitionTries; attempt++ {
		cur, err := s.store.FindByID(ctx, id)
		if err != nil {
			return nil, false, notFound(err, "reservation", id)
		}

		next, changed, err := Transition(cur.Status, action)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return cur, false, nil
		}

		now := s.clock.Now()
		upd, err := build(cur, next, now)
		if err != nil {
			return nil, false, err
		}

		ok, err := s.store.UpdateStatus(ctx, id, cur.Status, upd)
		if err != nil {
			return nil, false, fmt.Errorf("update reservation %d: %w", id, err)
		}
		if ok {
			upd.Apply(cur)
			return cur, true, nil
		}
		s.log.WithFields(logrus.Fields{"reservation_id": id, "action": action}).Debug("status changed concurrently, retrying")
	}
	return nil, false, fmt.Errorf("%w: reservation %d keeps changing concurrently", ErrInvalidTransition, id)
}

func (s *Service) loadRoom(ctx context.Context, roomID int64) (*domain.Room, *domain.Studio, *time.Location, error) {
	room, err := s.catalog.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, nil, notFound(err, "room", roomID)
	}
	studio, err := s.catalog.GetStudio(ctx, room.StudioID)
	if err != nil {
		return nil, nil, nil, notFound(err, "studio", room.StudioID)
	}
	loc, err := studio.Location()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("studio %d timezone: %w", studio.ID, err)
	}
	return room, studio, loc, nil
}

func (s *Service) checkAvailability(ctx context.Context, room *domain.Room, studio *domain.Studio, loc *time.Location, iv timerange.Interval) error {
	hours, err := s.catalog.GetOperatingHours(ctx, studio.ID)
	if err != nil {
		return err
	}
	ws, err := NewWeekSchedule(hours)
	if err != nil {
		return err
	}
	overrides, err := s.catalog.ListOverrides(ctx, room.ID, iv)
	if err != nil {
		return err
	}
	return s.resolver.IsAvailable(ws, loc, overrides, iv)
}

func (s *Service) price(ctx context.Context, room *domain.Room, loc *time.Location, iv timerange.Interval) (Quote, error) {
	rules, err := s.catalog.ListSpecialPrices(ctx, room.ID)
	if err != nil {
		return Quote{}, err
	}
	return ComputePrice(*room, rules, loc, iv)
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, domain.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
	}
	return err
}

// isOverbookingError recognises the storage-level overlap guard. Only the
// exclusion constraint (or a unique violation on it) counts; every other
// database error stays an infrastructure error.
func isOverbookingError(err error) bool {
	if errors.Is(err, ErrDoubleBooked) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23P01":
			return true
		case "23505":
			return pgErr.ConstraintName == domain.ReservationOverlapConstraint
		}
	}
	return false
}
