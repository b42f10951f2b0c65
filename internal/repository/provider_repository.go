package repository

import (
	"context"
	"sync/atomic"

	"github.com/fidest-ci/kivou-backend/internal/model"
	"gorm.io/gorm"
)

type ProviderRepository interface {
	FindByID(ctx context.Context, id uint64) (*model.ServiceProvider, error)
	Exists(ctx context.Context, id uint64) (bool, error)
	FindByIDs(ctx context.Context, ids []uint64) (map[uint64]model.ServiceProvider, error)
	SetDB(db *gorm.DB)
}

type providerRepository struct {
	db atomic.Pointer[gorm.DB]
}

func NewProviderRepository(db *gorm.DB) ProviderRepository {
	r := &providerRepository{}
	r.db.Store(db)
	return r
}

func (r *providerRepository) FindByID(ctx context.Context, id uint64) (*model.ServiceProvider, error) {
	db := r.db.Load()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var sp model.ServiceProvider
	if err := db.WithContext(ctx).First(&sp, id).Error; err != nil {
		return nil, err
	}
	return &sp, nil
}

func (r *providerRepository) Exists(ctx context.Context, id uint64) (bool, error) {
	db := r.db.Load()
	if db == nil {
		return false, ErrDBNotReady
	}
	var cnt int64
	if err := db.WithContext(ctx).Model(&model.ServiceProvider{}).Where("id = ?", id).Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *providerRepository) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]model.ServiceProvider, error) {
	db := r.db.Load()
	if db == nil {
		return nil, ErrDBNotReady
	}
	out := make(map[uint64]model.ServiceProvider, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var providers []model.ServiceProvider
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&providers).Error; err != nil {
		return nil, err
	}
	for _, sp := range providers {
		out[sp.ID] = sp
	}
	return out, nil
}

func (r *providerRepository) SetDB(db *gorm.DB) {
	r.db.Store(db)
}
