package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/fidest-ci/kivou-backend/internal/config"
	"github.com/fidest-ci/kivou-backend/internal/handler"
	appmw "github.com/fidest-ci/kivou-backend/internal/middleware"
	"github.com/fidest-ci/kivou-backend/internal/repository"
	"github.com/fidest-ci/kivou-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

type Server struct {
	e *echo.Echo

	userRepo     repository.UserRepository
	providerRepo repository.ProviderRepository
	adRepo       repository.AdRepository
	convRepo     repository.ConversationRepository
	tokenRepo    repository.DeviceTokenRepository
	notifRepo    repository.NotificationRepository

	sha   string
	build string
}

func New(ctx context.Context, cfg *config.Config, db *gorm.DB, sha, buildTime string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httpErrorHandler(e)
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) (bool, error) {
			low := strings.ToLower(origin)
			if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
				strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
				return true, nil
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false, nil
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return false, nil
			}
			return strings.HasSuffix(u.Hostname(), "kivou.app"), nil
		},
	}))

	userRepo := repository.NewUserRepository(db)
	providerRepo := repository.NewProviderRepository(db)
	adRepo := repository.NewAdRepository(db)
	convRepo := repository.NewConversationRepository(db)
	tokenRepo := repository.NewDeviceTokenRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	pushSvc, err := service.NewPushService(ctx, cfg, tokenRepo)
	if err != nil {
		e.Logger.Fatalf("failed to init push service: %v", err)
	}
	notifSvc := service.NewNotificationService(notifRepo)
	chatSvc := service.NewChatService(convRepo, userRepo, providerRepo, adRepo, pushSvc, notifSvc)

	var storageClient *storage.Client
	if cfg.StorageBucket != "" {
		storageClient, err = storage.NewClient(ctx)
		if err != nil {
			log.Printf("storage client init failed, attachment uploads disabled: %v", err)
			storageClient = nil
		}
	}
	uploadSvc := service.NewUploadService(storageClient, cfg.StorageBucket)

	chatHandler := handler.NewChatHandler(chatSvc, uploadSvc)
	pushHandler := handler.NewPushHandler(tokenRepo, pushSvc)
	notifHandler := handler.NewNotificationHandler(notifSvc)

	authMw := appmw.NewAuthMiddleware(cfg.JWTSecret)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    sha,
			"build_time": buildTime,
		})
	})

	api := e.Group("/api", authMw.RequireAuth)
	api.POST("/chat/open", chatHandler.Open)
	api.POST("/chat/send", chatHandler.Send)
	api.GET("/chat/messages", chatHandler.ListMessages)
	api.GET("/chat/conversations", chatHandler.ListConversations)
	api.POST("/chat/mark-read", chatHandler.MarkRead)
	api.POST("/chat/attachments", chatHandler.UploadAttachment)
	api.POST("/ads/pin-in-conversation", chatHandler.Pin)
	api.POST("/push/register-token", pushHandler.RegisterToken)
	api.GET("/push/status", pushHandler.Status)
	api.GET("/notifications", notifHandler.List)
	api.POST("/notifications/mark-read", notifHandler.MarkAllRead)

	return &Server{
		e:            e,
		userRepo:     userRepo,
		providerRepo: providerRepo,
		adRepo:       adRepo,
		convRepo:     convRepo,
		tokenRepo:    tokenRepo,
		notifRepo:    notifRepo,
		sha:          sha,
		build:        buildTime,
	}
}

// httpErrorHandler renders errors echo raises itself, unknown routes,
// wrong verbs, middleware rejections, in the same {error:{code,message}}
// envelope the handlers use, so clients can switch on stable codes.
func httpErrorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	codes := map[int]string{
		http.StatusBadRequest:       "bad_request",
		http.StatusUnauthorized:     "unauthorized",
		http.StatusForbidden:        "forbidden",
		http.StatusNotFound:         "not_found",
		http.StatusMethodNotAllowed: "method_not_allowed",
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		message := "internal error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if msg, ok := he.Message.(string); ok {
				message = msg
			} else {
				message = http.StatusText(status)
			}
		}
		code, ok := codes[status]
		if !ok {
			code = "internal_error"
		}
		if jerr := c.JSON(status, handler.NewErrorResponse(code, message)); jerr != nil {
			e.Logger.Error(jerr)
		}
	}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

// SetDB attaches the database once it is reachable; the server accepts
// traffic before that and repositories answer ErrDBNotReady until then.
func (s *Server) SetDB(db *gorm.DB) {
	s.userRepo.SetDB(db)
	s.providerRepo.SetDB(db)
	s.adRepo.SetDB(db)
	s.convRepo.SetDB(db)
	s.tokenRepo.SetDB(db)
	s.notifRepo.SetDB(db)
}
