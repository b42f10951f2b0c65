package handler

import (
	"net/http"
	"strings"

	"github.com/fidest-ci/kivou-backend/internal/middleware"
	"github.com/fidest-ci/kivou-backend/internal/model"
	"github.com/fidest-ci/kivou-backend/internal/repository"
	"github.com/fidest-ci/kivou-backend/internal/service"
	"github.com/labstack/echo/v4"
)

type PushHandler struct {
	tokens repository.DeviceTokenRepository
	push   service.PushService
}

func NewPushHandler(tokens repository.DeviceTokenRepository, push service.PushService) *PushHandler {
	return &PushHandler{tokens: tokens, push: push}
}

type RegisterTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func (h *PushHandler) RegisterToken(c echo.Context) error {
	uid := middleware.CallerID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing user"))
	}
	var req RegisterTokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	token := strings.TrimSpace(req.Token)
	platform := strings.ToLower(strings.TrimSpace(req.Platform))
	if token == "" || (platform != "android" && platform != "ios") {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid token/platform"))
	}
	t := &model.DeviceToken{UserID: uid, Token: token, Platform: platform}
	if err := h.tokens.Upsert(c.Request().Context(), t); err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to register token"))
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (h *PushHandler) Status(c echo.Context) error {
	uid := middleware.CallerID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing user"))
	}
	return c.JSON(http.StatusOK, map[string]bool{"configured": h.push.Configured()})
}
