package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fidest-ci/kivou-backend/internal/middleware"
	"github.com/fidest-ci/kivou-backend/internal/model"
	"github.com/fidest-ci/kivou-backend/internal/service"
	"github.com/labstack/echo/v4"
)

type fakeChatService struct {
	openView *service.ConversationView
	openErr  error
	sendMsg  *model.Message
	sendErr  error
}

func (f *fakeChatService) Open(context.Context, uint64, uint64, *uint64) (*service.ConversationView, error) {
	return f.openView, f.openErr
}

func (f *fakeChatService) Send(context.Context, uint64, service.SendMessageInput) (*model.Message, error) {
	return f.sendMsg, f.sendErr
}

func (f *fakeChatService) ListMessages(context.Context, uint64, uint64, uint64, int) ([]model.Message, error) {
	return nil, nil
}

func (f *fakeChatService) ListConversations(context.Context, uint64) ([]service.ConversationView, error) {
	return nil, nil
}

func (f *fakeChatService) MarkRead(context.Context, uint64, uint64) error {
	return nil
}

func (f *fakeChatService) Pin(context.Context, uint64, uint64, uint64) (*model.Conversation, error) {
	return nil, nil
}

func doJSON(t *testing.T, h echo.HandlerFunc, method, target, body string, uid uint64) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if uid != 0 {
		c.Set(middleware.UserIDKey, uid)
	}
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func TestOpenReturnsConversation(t *testing.T) {
	now := time.Now()
	svc := &fakeChatService{openView: &service.ConversationView{
		Conversation: model.Conversation{ID: 9, UserAID: 1, UserBID: 2, LastMessage: "salut", LastAt: &now},
		PeerUserID:   2,
		PeerName:     "Bakary",
		UnreadCount:  3,
	}}
	h := NewChatHandler(svc, nil)

	rec := doJSON(t, h.Open, http.MethodPost, "/api/chat/open", `{"peer_user_id":2}`, 1)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp ConversationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.ID != 9 || resp.PeerUserID != 2 || resp.PeerName != "Bakary" || resp.UnreadCount != 3 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.ProviderID != nil {
		t.Fatalf("provider_id = %v, want null", resp.ProviderID)
	}
}

func TestOpenErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"invalid", service.ErrInvalid, http.StatusBadRequest, "bad_request"},
		{"not found", service.ErrNotFound, http.StatusNotFound, "not_found"},
		{"forbidden", service.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"internal", context.DeadlineExceeded, http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewChatHandler(&fakeChatService{openErr: tt.err}, nil)
			rec := doJSON(t, h.Open, http.MethodPost, "/api/chat/open", `{"peer_user_id":2}`, 1)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Fatalf("body %q missing code %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestOpenRequiresCaller(t *testing.T) {
	h := NewChatHandler(&fakeChatService{}, nil)
	rec := doJSON(t, h.Open, http.MethodPost, "/api/chat/open", `{"peer_user_id":2}`, 0)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestSendCreated(t *testing.T) {
	svc := &fakeChatService{sendMsg: &model.Message{ID: 4, ConversationID: 9, FromUserID: 1, ToUserID: 2, Body: "hi"}}
	h := NewChatHandler(svc, nil)

	rec := doJSON(t, h.Send, http.MethodPost, "/api/chat/send", `{"conversation_id":9,"body":"hi"}`, 1)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var msg model.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if msg.ID != 4 || msg.ToUserID != 2 {
		t.Fatalf("message = %+v", msg)
	}
}

func TestMarkReadRejectsZeroConversation(t *testing.T) {
	h := NewChatHandler(&fakeChatService{}, nil)
	rec := doJSON(t, h.MarkRead, http.MethodPost, "/api/chat/mark-read", `{}`, 1)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
