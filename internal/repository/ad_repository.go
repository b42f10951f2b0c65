package repository

import (
	"context"
	"sync/atomic"

	"github.com/fidest-ci/kivou-backend/internal/model"
	"gorm.io/gorm"
)

type AdRepository interface {
	// FindActive returns the ad only while it is in the active state.
	FindActive(ctx context.Context, id uint64) (*model.Ad, error)
	SetDB(db *gorm.DB)
}

type adRepository struct {
	db atomic.Pointer[gorm.DB]
}

func NewAdRepository(db *gorm.DB) AdRepository {
	r := &adRepository{}
	r.db.Store(db)
	return r
}

func (r *adRepository) FindActive(ctx context.Context, id uint64) (*model.Ad, error) {
	db := r.db.Load()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var ad model.Ad
	if err := db.WithContext(ctx).
		Where("id = ? AND status = ?", id, model.AdStatusActive).
		First(&ad).Error; err != nil {
		return nil, err
	}
	return &ad, nil
}

func (r *adRepository) SetDB(db *gorm.DB) {
	r.db.Store(db)
}
