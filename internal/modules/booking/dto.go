package booking

import (
	"time"

	"slapp/internal/domain"
)

type CreateReservationRequest struct {
	RoomID      int64     `json:"-"`
	CustomerID  int64     `json:"customer_id" binding:"required"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	EndTime     time.Time `json:"end_time" binding:"required"`
	Notes       string    `json:"notes"`
	ArtistName  string    `json:"artist_name" binding:"max=255"`
	Instruments string    `json:"instruments"`
}

type QuoteRequest struct {
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
}

type RejectRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type CancelRequest struct {
	Actor  domain.Actor `json:"actor" binding:"required,oneof=customer owner"`
	Reason string       `json:"reason" binding:"max=500"`
}

// CancelOutcome is the cancelled reservation plus the refund owed for it.
type CancelOutcome struct {
	Reservation *domain.Reservation `json:"reservation"`
	Refund      Refund              `json:"refund"`
}
