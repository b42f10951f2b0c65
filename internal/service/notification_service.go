package service

import (
	"context"
	"log"
	"time"

	"github.com/fidest-ci/kivou-backend/internal/model"
	"github.com/fidest-ci/kivou-backend/internal/repository"
)

type NotificationService interface {
	// Notify records an in-app notification. Best-effort: errors are logged
	// and swallowed so the calling flow never fails on it.
	Notify(ctx context.Context, userID uint64, title, body string, providerID, conversationID *uint64)
	List(ctx context.Context, userID uint64, limit int) ([]model.Notification, int64, error)
	MarkAllRead(ctx context.Context, userID uint64) error
}

type notificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

func (s *notificationService) Notify(ctx context.Context, userID uint64, title, body string, providerID, conversationID *uint64) {
	if userID == 0 || title == "" {
		return
	}
	ctx, cancel := withShortDeadline(ctx)
	defer cancel()
	n := &model.Notification{
		UserID:         userID,
		ProviderID:     providerID,
		ConversationID: conversationID,
		Title:          title,
		Body:           body,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		log.Printf("notification: create for user %d: %v", userID, err)
	}
}

func (s *notificationService) List(ctx context.Context, userID uint64, limit int) ([]model.Notification, int64, error) {
	if userID == 0 {
		return nil, 0, nil
	}
	list, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, 0, err
	}
	cnt, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return list, 0, err
	}
	return list, cnt, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uint64) error {
	if userID == 0 {
		return nil
	}
	return s.repo.MarkAllRead(ctx, userID)
}

// withShortDeadline caps side-effect writes so they cannot stall a caller.
func withShortDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 2*time.Second)
}
