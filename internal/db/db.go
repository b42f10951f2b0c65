package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/fidest-ci/kivou-backend/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// BuildDSN derives the mysql driver address from the deployment shape:
// a Cloud SQL instance name always wins and speaks over its unix socket,
// a bare socket path gets wrapped, and anything else is host:port over
// tcp. Hosts that already carry a tcp() or unix() wrapper pass through.
func BuildDSN(cfg *config.Config) string {
	addr := cfg.DBHost
	switch {
	case cfg.InstanceConnectionName != "":
		addr = fmt.Sprintf("unix(/cloudsql/%s)", cfg.InstanceConnectionName)
	case strings.HasPrefix(addr, "tcp(") || strings.HasPrefix(addr, "unix("):
	case strings.HasPrefix(addr, "/"):
		addr = fmt.Sprintf("unix(%s)", addr)
	default:
		addr = fmt.Sprintf("tcp(%s:%s)", addr, cfg.DBPort)
	}
	return fmt.Sprintf("%s:%s@%s/%s?charset=utf8mb4&parseTime=True&loc=Local", cfg.DBUser, cfg.DBPassword, addr, cfg.DBName)
}

func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := BuildDSN(cfg)
	gcfg := &gorm.Config{
		PrepareStmt: true,
		// Duplicate-key races on conversation creation must surface as
		// gorm.ErrDuplicatedKey so callers can retry-as-fetch.
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
	db, err := gorm.Open(mysql.Open(dsn), gcfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)

	return db, nil
}
