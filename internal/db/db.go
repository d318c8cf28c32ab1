package db

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bikestra/paper-tracker/internal/config"
	"github.com/bikestra/paper-tracker/internal/logging"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the database selected by DB_DRIVER.
func Open(cfg config.Config) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.Environment == "development" {
		level = logger.Info
	}
	if cfg.IsProduction() {
		level = logger.Error
	}
	gormConfig := newGormConfig(level)

	switch cfg.DBDriver {
	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		slog.Info("connected to postgres", "host", cfg.DBHost, "db", cfg.DBName)
		return db, nil

	case "sqlite", "":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		dsn := cfg.SQLitePath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		db, err := openSQLite(dsn, gormConfig)
		if err != nil {
			return nil, err
		}
		slog.Info("connected to sqlite", "path", cfg.SQLitePath)
		return db, nil
	}

	return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
}

// OpenInMemory returns a private in-memory SQLite database with the schema
// migrated. Used by tests and one-off CLI runs.
func OpenInMemory() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := openSQLite(dsn, newGormConfig(logger.Silent))
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func openSQLite(dsn string, gormConfig *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; one connection keeps transactions from
	// tripping over SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func newGormConfig(level logger.LogLevel) *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger: logger.New(
			logging.StdLogger(slogLevel(level)),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  level,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	}
}

func slogLevel(level logger.LogLevel) slog.Level {
	switch level {
	case logger.Info:
		return slog.LevelDebug
	case logger.Warn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// Ping checks the connection, for health probes.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		slog.Error("failed to close db", "error", err)
		return
	}
	slog.Info("database closed")
}
