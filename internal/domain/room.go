package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Room struct {
	ID          int64           `json:"id" gorm:"primaryKey"`
	StudioID    int64           `json:"studio_id" gorm:"not null;index"`
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description,omitempty"`
	HourlyRate  decimal.Decimal `json:"hourly_rate" gorm:"type:decimal(21,2);not null" validate:"gte=0"`
	Capacity    int             `json:"capacity,omitempty"`
	IsActive    bool            `json:"is_active" gorm:"not null"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Room) TableName() string {
	return "rooms"
}

// Availability is an explicit per-room override on top of operating hours.
type Availability struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	RoomID    int64     `json:"room_id" gorm:"not null;index"`
	StartTime time.Time `json:"start_time" gorm:"not null"`
	EndTime   time.Time `json:"end_time" gorm:"not null"`
	Available bool      `json:"available" gorm:"not null"`
	Reason    string    `json:"reason,omitempty" gorm:"size:255"`
	CreatedAt time.Time `json:"created_at"`
}

func (Availability) TableName() string {
	return "availabilities"
}

// SpecialPrice replaces the base hourly rate on a weekday, a time window, or both.
type SpecialPrice struct {
	ID          int64           `json:"id" gorm:"primaryKey"`
	RoomID      int64           `json:"room_id" gorm:"not null;index"`
	DayOfWeek   *int            `json:"day_of_week,omitempty" validate:"omitempty,gte=0,lte=6"` // 0=Sunday
	StartTime   *string         `json:"start_time,omitempty" gorm:"size:5"`                     // "HH:MM"
	EndTime     *string         `json:"end_time,omitempty" gorm:"size:5"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(21,2);not null" validate:"gte=0"`
	Description string          `json:"description,omitempty" gorm:"size:200" validate:"max=200"`
	Active      bool            `json:"active" gorm:"not null"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (SpecialPrice) TableName() string {
	return "special_prices"
}

func (p SpecialPrice) HasDay() bool {
	return p.DayOfWeek != nil
}

// HasWindow is false when both times are missing or blank.
func (p SpecialPrice) HasWindow() bool {
	return (p.StartTime != nil && *p.StartTime != "") || (p.EndTime != nil && *p.EndTime != "")
}
