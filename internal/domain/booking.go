package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrRecordNotFound is returned by stores when the referenced row does not exist.
var ErrRecordNotFound = errors.New("record not found")

// ReservationOverlapConstraint is the PostgreSQL exclusion constraint that
// forbids two active reservations of one room from overlapping.
const ReservationOverlapConstraint = "reservations_no_overlap"

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationRejected  ReservationStatus = "REJECTED"
	ReservationExpired   ReservationStatus = "EXPIRED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

func (s ReservationStatus) Terminal() bool {
	switch s {
	case ReservationRejected, ReservationExpired, ReservationCancelled:
		return true
	}
	return false
}

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationConfirmed, ReservationRejected, ReservationExpired, ReservationCancelled:
		return true
	}
	return false
}

type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorOwner    Actor = "owner"
	ActorSystem   Actor = "system"
)

// Reservation is never deleted; cancelled and rejected rows stay for audit.
type Reservation struct {
	ID         int64             `json:"id"`
	RoomID     int64             `json:"room_id"`
	StudioID   int64             `json:"studio_id"`
	CustomerID int64             `json:"customer_id"`
	StartTime  time.Time         `json:"start_time"`
	EndTime    time.Time         `json:"end_time"`
	TotalPrice decimal.Decimal   `json:"total_price"`
	Status     ReservationStatus `json:"status"`
	Notes      string            `json:"notes,omitempty"`

	ArtistName  string `json:"artist_name,omitempty"`
	Instruments string `json:"instruments,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	CancelReason string           `json:"cancel_reason,omitempty"`
	CancelledBy  Actor            `json:"cancelled_by,omitempty"`
	RejectReason string           `json:"reject_reason,omitempty"`
	RefundAmount *decimal.Decimal `json:"refund_amount,omitempty"`
}

// StatusUpdate carries the fields a lifecycle transition may change.
type StatusUpdate struct {
	Status       ReservationStatus
	UpdatedAt    time.Time
	CancelledAt  *time.Time
	CancelReason string
	CancelledBy  Actor
	RejectReason string
	RefundAmount *decimal.Decimal
}

// Apply copies the update onto r.
func (u StatusUpdate) Apply(r *Reservation) {
	r.Status = u.Status
	r.UpdatedAt = u.UpdatedAt
	if u.CancelledAt != nil {
		r.CancelledAt = u.CancelledAt
		r.CancelReason = u.CancelReason
		r.CancelledBy = u.CancelledBy
		r.RefundAmount = u.RefundAmount
	}
	if u.RejectReason != "" {
		r.RejectReason = u.RejectReason
	}
}

// ReservationTotals aggregates a set of reservations.
type ReservationTotals struct {
	Count    int64
	Revenue  decimal.Decimal
	Reserved time.Duration
}
