package main

import (
	"context"
	"log"

	"github.com/fidest-ci/kivou-backend/internal/config"
	"github.com/fidest-ci/kivou-backend/internal/db"
	"github.com/fidest-ci/kivou-backend/internal/model"
	"github.com/fidest-ci/kivou-backend/internal/server"
	"github.com/joho/godotenv"
)

// Set via -ldflags at build time.
var (
	gitSHA    = "dev"
	buildTime = "unknown"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	srv := server.New(context.Background(), cfg, nil, gitSHA, buildTime)
	addr := ":" + cfg.Port

	errCh := make(chan error, 1)

	go func() {
		log.Printf("starting server on %s", addr)
		errCh <- srv.Start(addr)
	}()

	// Attach the database in the background so a slow Cloud SQL socket
	// does not delay the health endpoint.
	go func() {
		conn, err := db.Connect(cfg)
		if err != nil {
			log.Printf("db connect error: %v", err)
			return
		}
		if err := conn.AutoMigrate(
			&model.User{},
			&model.ServiceProvider{},
			&model.Ad{},
			&model.Conversation{},
			&model.Message{},
			&model.DeviceToken{},
			&model.Notification{},
		); err != nil {
			log.Printf("auto migrate error: %v", err)
		}
		srv.SetDB(conn)
	}()

	if err := <-errCh; err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
