package db

import (
	"database/sql"
	"fmt"
	"time"

	"printlink-be/internal/config"
	"printlink-be/internal/logger"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	defaultMaxOpen     = 25
	defaultMaxIdle     = 5
	defaultMaxLifetime = 30 * time.Minute
)

func buildDSN(cfg *config.Config) string {
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, sslMode,
	)
}

func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// NewDatabase opens a pooled postgres handle and verifies it with a ping.
func NewDatabase(cfg *config.Config) (*sql.DB, error) {
	return newDatabaseWithDriver(cfg, "postgres")
}

func newDatabaseWithDriver(cfg *config.Config, driver string) (*sql.DB, error) {
	db, err := sql.Open(driver, buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}

	db.SetMaxOpenConns(orDefault(cfg.DBMaxOpenConns, defaultMaxOpen))
	db.SetMaxIdleConns(orDefault(cfg.DBMaxIdleConns, defaultMaxIdle))
	db.SetConnMaxLifetime(orDefault(cfg.DBConnMaxLifetime, defaultMaxLifetime))

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	return db, nil
}

func InitDB(cfg *config.Config) *sql.DB {
	db, err := NewDatabase(cfg)
	if err != nil {
		logger.L().Fatal("database unavailable", zap.Error(err))
	}

	logger.L().Info("database connection established",
		zap.String("host", cfg.DBHost),
		zap.String("name", cfg.DBName),
		zap.Int("max_open_conns", db.Stats().MaxOpenConnections),
	)
	return db
}
