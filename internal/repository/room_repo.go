package repository

import (
	"context"

	"gorm.io/gorm"

	"slapp/internal/domain"
	"slapp/internal/modules/booking"
	"slapp/internal/pkg/timerange"
)

type RoomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) GetByID(ctx context.Context, id int64) (*domain.Room, error) {
	var room domain.Room
	if err := r.db.WithContext(ctx).First(&room, id).Error; err != nil {
		return nil, translate(err)
	}
	return &room, nil
}

func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *RoomRepository) CountActive(ctx context.Context, studioID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("studio_id = ? AND is_active = ?", studioID, true).
		Count(&n).Error
	return n, err
}

func (r *RoomRepository) CreateOverride(ctx context.Context, a *domain.Availability) error {
	a.StartTime = a.StartTime.UTC()
	a.EndTime = a.EndTime.UTC()
	return r.db.WithContext(ctx).Create(a).Error
}

// ListOverrides returns the room's overrides that overlap iv.
func (r *RoomRepository) ListOverrides(ctx context.Context, roomID int64, iv timerange.Interval) ([]domain.Availability, error) {
	var list []domain.Availability
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND start_time < ? AND end_time > ?", roomID, iv.End.UTC(), iv.Start.UTC()).
		Order("start_time, id").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// CreateSpecialPrice stores p after checking it prices the way it reads.
// Blank times are stored as NULL.
func (r *RoomRepository) CreateSpecialPrice(ctx context.Context, p *domain.SpecialPrice) error {
	if p.StartTime != nil && *p.StartTime == "" {
		p.StartTime = nil
	}
	if p.EndTime != nil && *p.EndTime == "" {
		p.EndTime = nil
	}
	if err := booking.ValidateSpecialPrice(*p); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(p).Error
}

// ListSpecialPrices returns the room's active special prices.
func (r *RoomRepository) ListSpecialPrices(ctx context.Context, roomID int64) ([]domain.SpecialPrice, error) {
	var list []domain.SpecialPrice
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND active = ?", roomID, true).
		Order("id").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Catalog adapts the studio and room repositories to booking.Catalog.
type Catalog struct {
	Studios *StudioRepository
	Rooms   *RoomRepository
}

func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{Studios: NewStudioRepository(db), Rooms: NewRoomRepository(db)}
}

func (c *Catalog) GetRoom(ctx context.Context, roomID int64) (*domain.Room, error) {
	return c.Rooms.GetByID(ctx, roomID)
}

func (c *Catalog) GetStudio(ctx context.Context, studioID int64) (*domain.Studio, error) {
	return c.Studios.GetByID(ctx, studioID)
}

func (c *Catalog) GetOperatingHours(ctx context.Context, studioID int64) ([]domain.StudioOperatingHours, error) {
	return c.Studios.GetOperatingHours(ctx, studioID)
}

func (c *Catalog) GetCancellationPolicy(ctx context.Context, studioID int64) (*domain.CancellationPolicy, error) {
	return c.Studios.GetCancellationPolicy(ctx, studioID)
}

func (c *Catalog) ListOverrides(ctx context.Context, roomID int64, iv timerange.Interval) ([]domain.Availability, error) {
	return c.Rooms.ListOverrides(ctx, roomID, iv)
}

func (c *Catalog) ListSpecialPrices(ctx context.Context, roomID int64) ([]domain.SpecialPrice, error) {
	return c.Rooms.ListSpecialPrices(ctx, roomID)
}

func (c *Catalog) ListStudiosByOwner(ctx context.Context, ownerID int64) ([]domain.Studio, error) {
	return c.Studios.ListByOwner(ctx, ownerID)
}

func (c *Catalog) CountActiveRooms(ctx context.Context, studioID int64) (int64, error) {
	return c.Rooms.CountActive(ctx, studioID)
}
