package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"slapp/internal/domain"
)

type StudioRepository struct {
	db *gorm.DB
}

func NewStudioRepository(db *gorm.DB) *StudioRepository {
	return &StudioRepository{db: db}
}

func (r *StudioRepository) GetByID(ctx context.Context, id int64) (*domain.Studio, error) {
	var s domain.Studio
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *StudioRepository) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Studio, error) {
	var studios []domain.Studio
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id").
		Find(&studios).Error
	if err != nil {
		return nil, err
	}
	return studios, nil
}

func (r *StudioRepository) Create(ctx context.Context, studio *domain.Studio) error {
	return r.db.WithContext(ctx).Create(studio).Error
}

// GetOperatingHours returns the weekly schedule ordered Sunday first.
func (r *StudioRepository) GetOperatingHours(ctx context.Context, studioID int64) ([]domain.StudioOperatingHours, error) {
	var hours []domain.StudioOperatingHours
	err := r.db.WithContext(ctx).
		Where("studio_id = ?", studioID).
		Order("day_of_week").
		Find(&hours).Error
	if err != nil {
		return nil, err
	}
	return hours, nil
}

// SetOperatingHours replaces the studio's schedule.
func (r *StudioRepository) SetOperatingHours(ctx context.Context, studioID int64, hours []domain.StudioOperatingHours) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("studio_id = ?", studioID).Delete(&domain.StudioOperatingHours{}).Error; err != nil {
			return err
		}
		if len(hours) == 0 {
			return nil
		}
		for i := range hours {
			hours[i].ID = 0
			hours[i].StudioID = studioID
		}
		return tx.Create(&hours).Error
	})
}

func (r *StudioRepository) CreateCancellationPolicy(ctx context.Context, p *domain.CancellationPolicy) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// GetCancellationPolicy returns nil, nil when the studio has no policy or the
// referenced policy row is gone.
func (r *StudioRepository) GetCancellationPolicy(ctx context.Context, studioID int64) (*domain.CancellationPolicy, error) {
	studio, err := r.GetByID(ctx, studioID)
	if err != nil {
		return nil, err
	}
	if studio.CancellationPolicyID == nil {
		return nil, nil
	}

	var p domain.CancellationPolicy
	err = r.db.WithContext(ctx).First(&p, *studio.CancellationPolicyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
