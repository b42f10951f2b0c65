package repository

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/fidest-ci/kivou-backend/internal/model"
	"gorm.io/gorm"
)

var ErrDBNotReady = errors.New("database not initialized")

type UserRepository interface {
	FindByID(ctx context.Context, id uint64) (*model.User, error)
	Exists(ctx context.Context, id uint64) (bool, error)
	FindByIDs(ctx context.Context, ids []uint64) (map[uint64]model.User, error)
	SetDB(db *gorm.DB)
}

// Repositories keep the handle behind an atomic pointer: the server takes
// requests before the database is reachable and SetDB swaps it in live.
type userRepository struct {
	db atomic.Pointer[gorm.DB]
}

func NewUserRepository(db *gorm.DB) UserRepository {
	r := &userRepository{}
	r.db.Store(db)
	return r
}

func (r *userRepository) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	db := r.db.Load()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var u model.User
	if err := db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) Exists(ctx context.Context, id uint64) (bool, error) {
	db := r.db.Load()
	if db == nil {
		return false, ErrDBNotReady
	}
	var cnt int64
	if err := db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *userRepository) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]model.User, error) {
	db := r.db.Load()
	if db == nil {
		return nil, ErrDBNotReady
	}
	out := make(map[uint64]model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []model.User
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *userRepository) SetDB(db *gorm.DB) {
	r.db.Store(db)
}
