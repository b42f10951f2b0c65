package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fidest-ci/kivou-backend/internal/middleware"
	"github.com/fidest-ci/kivou-backend/internal/service"
	"github.com/labstack/echo/v4"
)

type ChatHandler struct {
	svc     service.ChatService
	uploads service.UploadService
}

func NewChatHandler(svc service.ChatService, uploads service.UploadService) *ChatHandler {
	return &ChatHandler{svc: svc, uploads: uploads}
}

type OpenConversationRequest struct {
	PeerUserID uint64  `json:"peer_user_id"`
	ProviderID *uint64 `json:"provider_id"`
}

type SendMessageRequest struct {
	ConversationID uint64   `json:"conversation_id"`
	Body           string   `json:"body"`
	AttachmentURL  *string  `json:"attachment_url"`
	Lat            *float64 `json:"lat"`
	Lng            *float64 `json:"lng"`
	IsPinned       bool     `json:"is_pinned"`
}

type MarkReadRequest struct {
	ConversationID uint64 `json:"conversation_id"`
}

type PinRequest struct {
	ConversationID uint64 `json:"conversation_id"`
	AdID           uint64 `json:"ad_id"`
}

type ConversationResponse struct {
	ID                  uint64  `json:"id"`
	PeerUserID          uint64  `json:"peer_user_id"`
	PeerName            string  `json:"peer_name"`
	PeerAvatarURL       string  `json:"peer_avatar_url"`
	LastMessage         string  `json:"last_message"`
	LastAt              *string `json:"last_at"`
	UnreadCount         uint    `json:"unread_count"`
	ProviderID          *uint64 `json:"provider_id"`
	ProviderName        string  `json:"provider_name,omitempty"`
	ProviderAvatarURL   string  `json:"provider_avatar_url,omitempty"`
	ProviderOwnerUserID *uint64 `json:"provider_owner_user_id,omitempty"`
	ClientUserID        *uint64 `json:"client_user_id,omitempty"`
	ClientName          string  `json:"client_name,omitempty"`
	ClientAvatarURL     string  `json:"client_avatar_url,omitempty"`
	PinnedAdID          *uint64 `json:"pinned_ad_id"`
	PinnedText          *string `json:"pinned_text"`
	PinnedImageURL      *string `json:"pinned_image_url"`
	PinnedAt            *string `json:"pinned_at"`
}

func toConversationResponse(v service.ConversationView) ConversationResponse {
	cv := v.Conversation
	return ConversationResponse{
		ID:                  cv.ID,
		PeerUserID:          v.PeerUserID,
		PeerName:            v.PeerName,
		PeerAvatarURL:       v.PeerAvatarURL,
		LastMessage:         cv.LastMessage,
		LastAt:              rfc3339OrNil(cv.LastAt),
		UnreadCount:         v.UnreadCount,
		ProviderID:          v.ProviderID,
		ProviderName:        v.ProviderName,
		ProviderAvatarURL:   v.ProviderAvatarURL,
		ProviderOwnerUserID: v.ProviderOwnerUserID,
		ClientUserID:        v.ClientUserID,
		ClientName:          v.ClientName,
		ClientAvatarURL:     v.ClientAvatarURL,
		PinnedAdID:          cv.PinnedAdID,
		PinnedText:          cv.PinnedText,
		PinnedImageURL:      cv.PinnedImageURL,
		PinnedAt:            rfc3339OrNil(cv.PinnedAt),
	}
}

func rfc3339OrNil(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func (h *ChatHandler) Open(c echo.Context) error {
	uid := middleware.CallerID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing user"))
	}
	var req OpenConversationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	view, err := h.svc.Open(c.Request().Context(), uid, req.PeerUserID, req.ProviderID)
	if err != nil {
		return serviceError(c, err, "failed to open conversation")
	}
	return c.JSON(http.StatusOK, toConversationResponse(*view))
}

func (h *ChatHandler) Send(c echo.Context) error {
	uid := middleware.CallerID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing user"))
	}
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	msg, err := h.svc.Send(c.Request().Context(), uid, service.SendMessageInput{
		ConversationID: req.ConversationID,
		Body:           req.Body,
		AttachmentURL:  req.AttachmentURL,
		Lat:            req.Lat,
		Lng:            req.Lng,
		IsPinned:       req.IsPinned,
	})
	if err != nil {
		return serviceError(c, err, "failed to send message")
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *ChatHandler) ListMessages(c echo.Context) error {
	uid := middleware.CallerID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing user"))
	}
	convID, err := strconv.ParseUint(c.QueryParam("conversation_id"), 10, 64)
	if err != nil || convID == 0 {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation_id"))
	}
	var sinceID uint64
	if v := c.QueryParam("since_id"); v != "" {
		sinceID, _ = strconv.ParseUint(v, 10, 64)
	}
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	msgs, err := h.svc.ListMessages(c.Request().Context(), uid, convID, sinceID, limit)
	if err != nil {
		return serviceError(c, err, "failed to fetch messages")
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *ChatHandler) ListConversations(c echo.Context) error {
	uid := middleware.CallerID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing user"))
	}
	views, err := h.svc.ListConversations(c.Request().Context(), uid)
	if err != nil {
		return serviceError(c, err, "failed to fetch conversations")
	}
	resp := make([]ConversationResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toConversationResponse(v))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) MarkRead(c echo.Context) error {
	uid := middleware.CallerID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing user"))
	}
	var req MarkReadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	if req.ConversationID == 0 {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation_id"))
	}
	if err := h.svc.MarkRead(c.Request().Context(), uid, req.ConversationID); err != nil {
		return serviceError(c, err, "failed to mark read")
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (h *ChatHandler) Pin(c echo.Context) error {
	uid := middleware.CallerID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing user"))
	}
	var req PinRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	if req.ConversationID == 0 || req.AdID == 0 {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid ids"))
	}
	cv, err := h.svc.Pin(c.Request().Context(), uid, req.ConversationID, req.AdID)
	if err != nil {
		return serviceError(c, err, "failed to pin ad")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversation_id": cv.ID,
		"pinned": map[string]interface{}{
			"ad_id":     cv.PinnedAdID,
			"text":      cv.PinnedText,
			"image_url": cv.PinnedImageURL,
			"pinned_at": rfc3339OrNil(cv.PinnedAt),
		},
	})
}

func (h *ChatHandler) UploadAttachment(c echo.Context) error {
	uid := middleware.CallerID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing user"))
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "no file uploaded"))
	}
	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "unreadable file"))
	}
	defer src.Close()

	url, err := h.uploads.UploadAttachment(c.Request().Context(), fh.Filename, src)
	if err != nil {
		return serviceError(c, err, "failed to store attachment")
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}
