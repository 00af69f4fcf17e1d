package domain

import "time"

type Studio struct {
	ID                   int64     `json:"id" gorm:"primaryKey"`
	OwnerID              int64     `json:"owner_id" gorm:"not null;index"`
	Name                 string    `json:"name" validate:"required"`
	Address              string    `json:"address,omitempty"`
	City                 string    `json:"city,omitempty"`
	Timezone             string    `json:"timezone" gorm:"size:64;not null;default:'UTC'"`
	CancellationPolicyID *int64    `json:"cancellation_policy_id,omitempty"`
	IsActive             bool      `json:"is_active" gorm:"not null"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (Studio) TableName() string {
	return "studios"
}

// Location resolves the studio time zone, falling back to UTC when unset.
func (s Studio) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// StudioOperatingHours is one weekday entry of a studio's weekly schedule.
type StudioOperatingHours struct {
	ID        int64   `json:"id" gorm:"primaryKey"`
	StudioID  int64   `json:"studio_id" gorm:"not null;index"`
	DayOfWeek int     `json:"day_of_week" validate:"gte=0,lte=6"` // 0=Sunday, 1=Monday, ..., 6=Saturday
	StartTime *string `json:"start_time,omitempty" gorm:"size:5"` // "09:00"
	EndTime   *string `json:"end_time,omitempty" gorm:"size:5"`   // "21:00", "24:00" allowed
	IsOpen    bool    `json:"is_open"`
}

func (StudioOperatingHours) TableName() string {
	return "studio_operating_hours"
}

type CancellationPolicy struct {
	ID               int64     `json:"id" gorm:"primaryKey"`
	Name             string    `json:"name" validate:"required,max=100"`
	Description      string    `json:"description,omitempty" gorm:"type:text"`
	HoursBeforeEvent int       `json:"hours_before_event" validate:"gte=0"`
	RefundPercentage int       `json:"refund_percentage" validate:"gte=0,lte=100"`
	Active           bool      `json:"active" gorm:"not null"`
	CreatedAt        time.Time `json:"created_at"`
}

func (CancellationPolicy) TableName() string {
	return "cancellation_policies"
}
