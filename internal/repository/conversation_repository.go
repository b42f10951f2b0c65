package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/fidest-ci/kivou-backend/internal/model"
	"gorm.io/gorm"
)

type ConversationRepository interface {
	// FindOrCreate resolves the conversation for a canonically ordered pair
	// and provider context (model.NoProvider for none). Concurrent callers
	// racing on the same key converge on a single row.
	FindOrCreate(ctx context.Context, userAID, userBID, providerID uint64) (*model.Conversation, error)
	FindByID(ctx context.Context, id uint64) (*model.Conversation, error)
	FindByUser(ctx context.Context, userID uint64) ([]model.Conversation, error)
	// CreateMessage inserts the message and projects the conversation
	// summary (preview, last_at, recipient unread) in the same transaction.
	CreateMessage(ctx context.Context, msg *model.Message, preview string) error
	ListMessages(ctx context.Context, convID, sinceID uint64, limit int) ([]model.Message, error)
	MarkRead(ctx context.Context, convID, userID uint64) error
	Pin(ctx context.Context, convID, adID uint64, text string, imageURL *string, at time.Time) error
	SetDB(db *gorm.DB)
}

type conversationRepository struct {
	db atomic.Pointer[gorm.DB]
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	r := &conversationRepository{}
	r.db.Store(db)
	return r
}

func (r *conversationRepository) FindOrCreate(ctx context.Context, userAID, userBID, providerID uint64) (*model.Conversation, error) {
	db := r.db.Load()
	if db == nil {
		return nil, ErrDBNotReady
	}
	fetch := func() (*model.Conversation, error) {
		var cv model.Conversation
		err := db.WithContext(ctx).
			Where("user_a_id = ? AND user_b_id = ? AND provider_id = ?", userAID, userBID, providerID).
			First(&cv).Error
		if err != nil {
			return nil, err
		}
		return &cv, nil
	}

	if cv, err := fetch(); err == nil {
		return cv, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cv := model.Conversation{UserAID: userAID, UserBID: userBID, ProviderID: providerID}
	if err := db.WithContext(ctx).Create(&cv).Error; err != nil {
		// Lost the create race: the unique index on (user_a_id, user_b_id,
		// provider_id) rejected us, so the winner's row exists now.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fetch()
		}
		return nil, err
	}
	return &cv, nil
}

func (r *conversationRepository) FindByID(ctx context.Context, id uint64) (*model.Conversation, error) {
	db := r.db.Load()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var cv model.Conversation
	if err := db.WithContext(ctx).First(&cv, id).Error; err != nil {
		return nil, err
	}
	return &cv, nil
}

func (r *conversationRepository) FindByUser(ctx context.Context, userID uint64) ([]model.Conversation, error) {
	db := r.db.Load()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Conversation
	if err := db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("COALESCE(last_at, created_at) DESC, id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *conversationRepository) CreateMessage(ctx context.Context, msg *model.Message, preview string) error {
	db := r.db.Load()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		// Relative increments: two concurrent sends must both land, so the
		// recipient counter is never rewritten from a stale read.
		res := tx.Model(&model.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Updates(map[string]interface{}{
				"last_message": preview,
				"last_at":      msg.CreatedAt,
				"unread_a":     gorm.Expr("CASE WHEN user_a_id = ? THEN unread_a + 1 ELSE unread_a END", msg.ToUserID),
				"unread_b":     gorm.Expr("CASE WHEN user_b_id = ? THEN unread_b + 1 ELSE unread_b END", msg.ToUserID),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *conversationRepository) ListMessages(ctx context.Context, convID, sinceID uint64, limit int) ([]model.Message, error) {
	db := r.db.Load()
	if db == nil {
		return nil, ErrDBNotReady
	}
	q := db.WithContext(ctx).Where("conversation_id = ?", convID)
	if sinceID > 0 {
		q = q.Where("id > ?", sinceID)
	}
	var msgs []model.Message
	// Newest first so the limit keeps the tail of the conversation; the
	// service reverses before returning.
	if err := q.Order("id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *conversationRepository) MarkRead(ctx context.Context, convID, userID uint64) error {
	db := r.db.Load()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ?", convID).
		Updates(map[string]interface{}{
			"unread_a": gorm.Expr("CASE WHEN user_a_id = ? THEN 0 ELSE unread_a END", userID),
			"unread_b": gorm.Expr("CASE WHEN user_b_id = ? THEN 0 ELSE unread_b END", userID),
		}).Error
}

func (r *conversationRepository) Pin(ctx context.Context, convID, adID uint64, text string, imageURL *string, at time.Time) error {
	db := r.db.Load()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ?", convID).
		Updates(map[string]interface{}{
			"pinned_ad_id":     adID,
			"pinned_text":      text,
			"pinned_image_url": imageURL,
			"pinned_at":        at,
		}).Error
}

func (r *conversationRepository) SetDB(db *gorm.DB) {
	r.db.Store(db)
}
