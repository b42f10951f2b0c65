package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fidest-ci/kivou-backend/internal/model"
	"github.com/fidest-ci/kivou-backend/internal/repository"
	"gorm.io/gorm"
)

const (
	messagesDefaultLimit = 100
	messagesMaxLimit     = 200
	pinnedDescLimit      = 120
)

// Notifier delivers a best-effort push to every device of a user. The
// return value only says whether at least one delivery went through.
type Notifier interface {
	SendToUser(ctx context.Context, userID uint64, title, body string, data map[string]string) bool
}

type SendMessageInput struct {
	ConversationID uint64
	Body           string
	AttachmentURL  *string
	Lat            *float64
	Lng            *float64
	IsPinned       bool
}

// ConversationView is the read model for a conversation: the row plus the
// peer's identity, the requester-relative unread counter and, for provider
// conversations, the provider and derived client side.
type ConversationView struct {
	Conversation model.Conversation

	PeerUserID    uint64
	PeerName      string
	PeerAvatarURL string
	UnreadCount   uint

	ProviderID          *uint64
	ProviderName        string
	ProviderAvatarURL   string
	ProviderOwnerUserID *uint64

	ClientUserID    *uint64
	ClientName      string
	ClientAvatarURL string
}

type ChatService interface {
	Open(ctx context.Context, requesterID, peerID uint64, providerID *uint64) (*ConversationView, error)
	Send(ctx context.Context, senderID uint64, in SendMessageInput) (*model.Message, error)
	ListMessages(ctx context.Context, requesterID, convID, sinceID uint64, limit int) ([]model.Message, error)
	ListConversations(ctx context.Context, requesterID uint64) ([]ConversationView, error)
	MarkRead(ctx context.Context, requesterID, convID uint64) error
	Pin(ctx context.Context, requesterID, convID, adID uint64) (*model.Conversation, error)
}

type chatService struct {
	convRepo      repository.ConversationRepository
	userRepo      repository.UserRepository
	providerRepo  repository.ProviderRepository
	adRepo        repository.AdRepository
	notifier      Notifier
	notifications NotificationService
}

func NewChatService(
	convRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	providerRepo repository.ProviderRepository,
	adRepo repository.AdRepository,
	notifier Notifier,
	notifications NotificationService,
) ChatService {
	return &chatService{
		convRepo:      convRepo,
		userRepo:      userRepo,
		providerRepo:  providerRepo,
		adRepo:        adRepo,
		notifier:      notifier,
		notifications: notifications,
	}
}

func (s *chatService) Open(ctx context.Context, requesterID, peerID uint64, providerID *uint64) (*ConversationView, error) {
	if peerID == 0 {
		return nil, invalidf("peer_user_id is required")
	}
	if peerID == requesterID {
		return nil, invalidf("cannot open a conversation with yourself")
	}
	if ok, err := s.userRepo.Exists(ctx, requesterID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrNotFound
	}
	peer, err := s.userRepo.FindByID(ctx, peerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	pid := model.NoProvider
	if providerID != nil {
		if *providerID == 0 {
			return nil, invalidf("invalid provider_id")
		}
		ok, err := s.providerRepo.Exists(ctx, *providerID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, invalidf("unknown provider_id")
		}
		pid = *providerID
	}

	a, b := requesterID, peerID
	if b < a {
		a, b = b, a
	}
	cv, err := s.convRepo.FindOrCreate(ctx, a, b, pid)
	if err != nil {
		return nil, err
	}

	return &ConversationView{
		Conversation:  *cv,
		PeerUserID:    peer.ID,
		PeerName:      peer.Name,
		PeerAvatarURL: deref(peer.AvatarURL),
		UnreadCount:   cv.UnreadFor(requesterID),
		ProviderID:    cv.ProviderRef(),
	}, nil
}

func (s *chatService) Send(ctx context.Context, senderID uint64, in SendMessageInput) (*model.Message, error) {
	cv, err := s.convRepo.FindByID(ctx, in.ConversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !cv.HasParty(senderID) {
		return nil, ErrForbidden
	}

	if (in.Lat == nil) != (in.Lng == nil) {
		return nil, invalidf("lat and lng must both be set")
	}
	body := strings.TrimSpace(in.Body)
	hasAttachment := in.AttachmentURL != nil && strings.TrimSpace(*in.AttachmentURL) != ""
	hasLocation := in.Lat != nil && in.Lng != nil
	if body == "" && !hasAttachment && !hasLocation {
		return nil, invalidf("message needs a body, an attachment or a location")
	}

	msg := &model.Message{
		ConversationID: cv.ID,
		FromUserID:     senderID,
		ToUserID:       cv.PeerOf(senderID),
		Body:           body,
		AttachmentURL:  in.AttachmentURL,
		Lat:            in.Lat,
		Lng:            in.Lng,
		IsPinned:       in.IsPinned,
		CreatedAt:      time.Now(),
	}
	preview := messagePreview(body, hasAttachment, hasLocation)
	if err := s.convRepo.CreateMessage(ctx, msg, preview); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.notifyRecipient(ctx, cv, msg, preview)
	return msg, nil
}

// notifyRecipient fans out the push and the in-app notification record
// after the message is committed. Both are best-effort and detached from
// the request: a dead FCM config or a slow network never fails the send.
func (s *chatService) notifyRecipient(ctx context.Context, cv *model.Conversation, msg *model.Message, preview string) {
	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, 5*time.Second)
		defer cancel()

		title := "New message"
		if sender, err := s.userRepo.FindByID(ctx, msg.FromUserID); err == nil && sender.Name != "" {
			title = sender.Name
		}
		data := map[string]string{
			"type":            "chat_message",
			"conversation_id": strconv.FormatUint(cv.ID, 10),
			"message_id":      strconv.FormatUint(msg.ID, 10),
		}
		s.notifier.SendToUser(ctx, msg.ToUserID, title, preview, data)

		convID := cv.ID
		s.notifications.Notify(ctx, msg.ToUserID, title, preview, cv.ProviderRef(), &convID)
	}()
}

func (s *chatService) ListMessages(ctx context.Context, requesterID, convID, sinceID uint64, limit int) ([]model.Message, error) {
	cv, err := s.convRepo.FindByID(ctx, convID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !cv.HasParty(requesterID) {
		return nil, ErrForbidden
	}
	if limit <= 0 {
		limit = messagesDefaultLimit
	}
	if limit > messagesMaxLimit {
		limit = messagesMaxLimit
	}
	msgs, err := s.convRepo.ListMessages(ctx, convID, sinceID, limit)
	if err != nil {
		return nil, err
	}
	// Repo returns newest first; callers read oldest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *chatService) ListConversations(ctx context.Context, requesterID uint64) ([]ConversationView, error) {
	convs, err := s.convRepo.FindByUser(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	userIDs := []uint64{requesterID}
	var providerIDs []uint64
	for _, cv := range convs {
		userIDs = append(userIDs, cv.PeerOf(requesterID))
		if cv.ProviderID != model.NoProvider {
			providerIDs = append(providerIDs, cv.ProviderID)
		}
	}
	users, err := s.userRepo.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	providers, err := s.providerRepo.FindByIDs(ctx, providerIDs)
	if err != nil {
		return nil, err
	}

	views := make([]ConversationView, 0, len(convs))
	for _, cv := range convs {
		view := ConversationView{
			Conversation: cv,
			PeerUserID:   cv.PeerOf(requesterID),
			UnreadCount:  cv.UnreadFor(requesterID),
			ProviderID:   cv.ProviderRef(),
		}
		if peer, ok := users[view.PeerUserID]; ok {
			view.PeerName = peer.Name
			view.PeerAvatarURL = deref(peer.AvatarURL)
		} else {
			// Peer row gone (deleted account): keep the conversation
			// listable under a generic display name.
			view.PeerName = "User"
		}
		if sp, ok := providers[cv.ProviderID]; ok {
			view.ProviderName = sp.Name
			view.ProviderAvatarURL = deref(sp.PhotoURL)
			owner := sp.OwnerUserID
			view.ProviderOwnerUserID = &owner

			// The client is the non-owner side, resolvable only when the
			// owner is actually one of the two parties.
			var clientID uint64
			switch owner {
			case cv.UserAID:
				clientID = cv.UserBID
			case cv.UserBID:
				clientID = cv.UserAID
			}
			if clientID != 0 {
				view.ClientUserID = &clientID
				if u, ok := users[clientID]; ok {
					view.ClientName = u.Name
					view.ClientAvatarURL = deref(u.AvatarURL)
				}
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *chatService) MarkRead(ctx context.Context, requesterID, convID uint64) error {
	cv, err := s.convRepo.FindByID(ctx, convID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !cv.HasParty(requesterID) {
		return ErrForbidden
	}
	return s.convRepo.MarkRead(ctx, convID, requesterID)
}

func (s *chatService) Pin(ctx context.Context, requesterID, convID, adID uint64) (*model.Conversation, error) {
	cv, err := s.convRepo.FindByID(ctx, convID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !cv.HasParty(requesterID) {
		return nil, ErrForbidden
	}
	ad, err := s.adRepo.FindActive(ctx, adID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	text := ad.Title
	if desc := strings.TrimSpace(ad.Description); desc != "" {
		text += " — " + truncateRunes(desc, pinnedDescLimit)
	}
	now := time.Now()
	if err := s.convRepo.Pin(ctx, convID, adID, text, ad.ImageURL, now); err != nil {
		return nil, err
	}

	cv.PinnedAdID = &adID
	cv.PinnedText = &text
	cv.PinnedImageURL = ad.ImageURL
	cv.PinnedAt = &now
	return cv, nil
}

// messagePreview derives the conversation preview: body text wins, then an
// attachment placeholder, then a location placeholder.
func messagePreview(body string, hasAttachment, hasLocation bool) string {
	switch {
	case body != "":
		return body
	case hasAttachment:
		return "[Image]"
	case hasLocation:
		return "[Location]"
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
