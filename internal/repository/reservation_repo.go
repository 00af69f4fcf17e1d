package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"slapp/internal/domain"
	"slapp/internal/modules/booking"
	"slapp/internal/pkg/timerange"
)

type ReservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

type reservationModel struct {
	ID           int64            `gorm:"column:id;primaryKey"`
	RoomID       int64            `gorm:"column:room_id;not null;index:idx_reservations_room_time,priority:1"`
	StudioID     int64            `gorm:"column:studio_id;not null;index"`
	CustomerID   int64            `gorm:"column:customer_id;not null;index"`
	StartTime    time.Time        `gorm:"column:start_time;not null;index:idx_reservations_room_time,priority:2"`
	EndTime      time.Time        `gorm:"column:end_time;not null"`
	TotalPrice   decimal.Decimal  `gorm:"column:total_price;type:decimal(21,2);not null"`
	Status       string           `gorm:"column:status;size:16;not null;index"`
	Notes        *string          `gorm:"column:notes"`
	ArtistName   *string          `gorm:"column:artist_name;size:255"`
	Instruments  *string          `gorm:"column:instruments"`
	CreatedAt    time.Time        `gorm:"column:created_at"`
	UpdatedAt    time.Time        `gorm:"column:updated_at"`
	CancelledAt  *time.Time       `gorm:"column:cancelled_at"`
	CancelReason *string          `gorm:"column:cancel_reason;size:500"`
	CancelledBy  *string          `gorm:"column:cancelled_by;size:16"`
	RejectReason *string          `gorm:"column:reject_reason;size:500"`
	RefundAmount *decimal.Decimal `gorm:"column:refund_amount;type:decimal(21,2)"`
}

func (reservationModel) TableName() string { return "reservations" }

// Models lists the tables the booking engine needs, for database.Migrate.
func Models() []any {
	return []any{
		&domain.Studio{},
		&domain.StudioOperatingHours{},
		&domain.CancellationPolicy{},
		&domain.Room{},
		&domain.Availability{},
		&domain.SpecialPrice{},
		&reservationModel{},
	}
}

func toDomainReservation(m reservationModel) *domain.Reservation {
	r := &domain.Reservation{
		ID:           m.ID,
		RoomID:       m.RoomID,
		StudioID:     m.StudioID,
		CustomerID:   m.CustomerID,
		StartTime:    m.StartTime.UTC(),
		EndTime:      m.EndTime.UTC(),
		TotalPrice:   m.TotalPrice,
		Status:       domain.ReservationStatus(m.Status),
		Notes:        deref(m.Notes),
		ArtistName:   deref(m.ArtistName),
		Instruments:  deref(m.Instruments),
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
		CancelReason: deref(m.CancelReason),
		CancelledBy:  domain.Actor(deref(m.CancelledBy)),
		RejectReason: deref(m.RejectReason),
		RefundAmount: m.RefundAmount,
	}
	if m.CancelledAt != nil {
		t := m.CancelledAt.UTC()
		r.CancelledAt = &t
	}
	return r
}

func toReservationModel(r *domain.Reservation) reservationModel {
	m := reservationModel{
		ID:           r.ID,
		RoomID:       r.RoomID,
		StudioID:     r.StudioID,
		CustomerID:   r.CustomerID,
		StartTime:    r.StartTime.UTC(),
		EndTime:      r.EndTime.UTC(),
		TotalPrice:   r.TotalPrice,
		Status:       string(r.Status),
		Notes:        optional(r.Notes),
		ArtistName:   optional(r.ArtistName),
		Instruments:  optional(r.Instruments),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		CancelReason: optional(r.CancelReason),
		CancelledBy:  optional(string(r.CancelledBy)),
		RejectReason: optional(r.RejectReason),
		RefundAmount: r.RefundAmount,
	}
	if r.CancelledAt != nil {
		t := r.CancelledAt.UTC()
		m.CancelledAt = &t
	}
	return m
}

func (r *ReservationRepository) Insert(ctx context.Context, res *domain.Reservation) error {
	m := toReservationModel(res)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	res.ID = m.ID
	return nil
}

func (r *ReservationRepository) FindByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	var m reservationModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, translate(err)
	}
	return toDomainReservation(m), nil
}

// FindActiveOverlapping uses the half-open overlap test start < iv.End AND end > iv.Start.
func (r *ReservationRepository) FindActiveOverlapping(ctx context.Context, roomID int64, iv timerange.Interval, statuses []domain.ReservationStatus) ([]domain.Reservation, error) {
	var ms []reservationModel
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND status IN ? AND start_time < ? AND end_time > ?",
			roomID, statusStrings(statuses), iv.End.UTC(), iv.Start.UTC()).
		Order("start_time, id").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return toDomainReservations(ms), nil
}

// UpdateStatus is a compare-and-set on the status column.
func (r *ReservationRepository) UpdateStatus(ctx context.Context, id int64, from domain.ReservationStatus, upd domain.StatusUpdate) (bool, error) {
	cols := map[string]interface{}{
		"status":     string(upd.Status),
		"updated_at": upd.UpdatedAt.UTC(),
	}
	if upd.CancelledAt != nil {
		cols["cancelled_at"] = upd.CancelledAt.UTC()
		cols["cancel_reason"] = optional(upd.CancelReason)
		cols["cancelled_by"] = optional(string(upd.CancelledBy))
		cols["refund_amount"] = upd.RefundAmount
	}
	if upd.RejectReason != "" {
		cols["reject_reason"] = upd.RejectReason
	}

	res := r.db.WithContext(ctx).
		Model(&reservationModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(cols)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindStalePending pages through PENDING rows created at or before cutoff in id order.
func (r *ReservationRepository) FindStalePending(ctx context.Context, cutoff time.Time, afterID int64, limit int) ([]domain.Reservation, error) {
	var ms []reservationModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at <= ? AND id > ?", string(domain.ReservationPending), cutoff.UTC(), afterID).
		Order("id").
		Limit(limit).
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return toDomainReservations(ms), nil
}

func (r *ReservationRepository) ListByRoomBetween(ctx context.Context, roomID int64, from, to time.Time, statuses []domain.ReservationStatus) ([]domain.Reservation, error) {
	var ms []reservationModel
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND status IN ? AND start_time < ? AND end_time > ?",
			roomID, statusStrings(statuses), to.UTC(), from.UTC()).
		Order("start_time, id").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return toDomainReservations(ms), nil
}

func (r *ReservationRepository) ListPendingByStudio(ctx context.Context, studioID int64) ([]domain.Reservation, error) {
	var ms []reservationModel
	err := r.db.WithContext(ctx).
		Where("studio_id = ? AND status = ?", studioID, string(domain.ReservationPending)).
		Order("created_at, id").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return toDomainReservations(ms), nil
}

type statsRow struct {
	StartTime  time.Time
	EndTime    time.Time
	TotalPrice decimal.Decimal
}

// StatsByStudioBetween sums the rows in Go so revenue stays decimal on every
// driver; SQLite returns SUM over numeric columns as a float.
func (r *ReservationRepository) StatsByStudioBetween(ctx context.Context, studioID int64, iv timerange.Interval, status domain.ReservationStatus) (domain.ReservationTotals, error) {
	var rows []statsRow
	err := r.db.WithContext(ctx).
		Model(&reservationModel{}).
		Select("start_time, end_time, total_price").
		Where("studio_id = ? AND status = ? AND start_time >= ? AND start_time < ?",
			studioID, string(status), iv.Start.UTC(), iv.End.UTC()).
		Scan(&rows).Error
	if err != nil {
		return domain.ReservationTotals{}, err
	}

	totals := domain.ReservationTotals{Count: int64(len(rows)), Revenue: decimal.Zero}
	for _, row := range rows {
		totals.Revenue = totals.Revenue.Add(row.TotalPrice)
		totals.Reserved += row.EndTime.Sub(row.StartTime)
	}
	return totals, nil
}

// GormTxManager runs booking work in a transaction. On PostgreSQL the room row
// is locked FOR UPDATE first, so concurrent processes serialise per room.
type GormTxManager struct {
	db *gorm.DB
}

func NewGormTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

func (m *GormTxManager) WithinRoomTx(ctx context.Context, roomID int64, fn func(ctx context.Context, store booking.ReservationStore) error) error {
	postgres := m.db.Dialector.Name() == "postgres"

	var opts []*sql.TxOptions
	if postgres {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	}

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if postgres {
			var room domain.Room
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&room, roomID).Error; err != nil {
				return translate(err)
			}
		}
		return fn(ctx, NewReservationRepository(tx))
	}, opts...)
}

func toDomainReservations(ms []reservationModel) []domain.Reservation {
	out := make([]domain.Reservation, 0, len(ms))
	for _, m := range ms {
		out = append(out, *toDomainReservation(m))
	}
	return out
}

func statusStrings(statuses []domain.ReservationStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrRecordNotFound
	}
	return err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
