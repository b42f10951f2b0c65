package service

import (
	"context"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/fidest-ci/kivou-backend/internal/config"
	"github.com/fidest-ci/kivou-backend/internal/repository"
	"google.golang.org/api/option"
)

// PushService sends FCM pushes to every registered device of a user. It is
// the Notifier used by the chat flow: callers never see its errors.
type PushService interface {
	Notifier
	Configured() bool
}

type pushService struct {
	client *messaging.Client
	tokens repository.DeviceTokenRepository
	debug  bool
}

// NewPushService builds the FCM client. Missing Firebase configuration is
// not an error: the service comes up disabled and every send reports false.
func NewPushService(ctx context.Context, cfg *config.Config, tokens repository.DeviceTokenRepository) (PushService, error) {
	s := &pushService{tokens: tokens, debug: cfg.PushDebug}
	if cfg.FirebaseProjectID == "" && cfg.FirebaseCredentialsFile == "" {
		log.Printf("push: firebase not configured, notifications disabled")
		return s, nil
	}

	var opts []option.ClientOption
	if cfg.FirebaseCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, opts...)
	if err != nil {
		return nil, err
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}
	s.client = client
	return s, nil
}

func (s *pushService) Configured() bool {
	return s.client != nil
}

func (s *pushService) SendToUser(ctx context.Context, userID uint64, title, body string, data map[string]string) bool {
	if s.client == nil {
		return false
	}
	tokens, err := s.tokens.ListTokens(ctx, userID)
	if err != nil {
		log.Printf("push: listing tokens for user %d: %v", userID, err)
		return false
	}
	if len(tokens) == 0 {
		return false
	}

	okAny := false
	for _, token := range tokens {
		msg := &messaging.Message{
			Token: token,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: data,
			Android: &messaging.AndroidConfig{
				Priority: "high",
			},
		}
		if _, err := s.client.Send(ctx, msg); err != nil {
			if s.debug {
				log.Printf("push: send to user %d failed: %v", userID, err)
			}
			continue
		}
		okAny = true
	}
	return okAny
}
