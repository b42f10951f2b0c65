package repository

import (
	"context"
	"sync/atomic"

	"github.com/fidest-ci/kivou-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceTokenRepository interface {
	Upsert(ctx context.Context, t *model.DeviceToken) error
	ListTokens(ctx context.Context, userID uint64) ([]string, error)
	SetDB(db *gorm.DB)
}

type deviceTokenRepository struct {
	db atomic.Pointer[gorm.DB]
}

func NewDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	r := &deviceTokenRepository{}
	r.db.Store(db)
	return r
}

// Upsert reassigns an already-registered token to its latest user, so a
// device switching accounts keeps exactly one row.
func (r *deviceTokenRepository) Upsert(ctx context.Context, t *model.DeviceToken) error {
	db := r.db.Load()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform"}),
	}).Create(t).Error
}

func (r *deviceTokenRepository) ListTokens(ctx context.Context, userID uint64) ([]string, error) {
	db := r.db.Load()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var tokens []string
	if err := db.WithContext(ctx).
		Model(&model.DeviceToken{}).
		Where("user_id = ?", userID).
		Pluck("token", &tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *deviceTokenRepository) SetDB(db *gorm.DB) {
	r.db.Store(db)
}
