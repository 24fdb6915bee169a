// Package database manages the SQLite connection used for durable writes.
package database

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"pagesense/internal/config"
)

// DBManager owns the GORM connection and write retry behavior.
type DBManager struct {
	db     *gorm.DB
	cfg    *config.Config
	logger *slog.Logger
}

// NewDBManager creates a database manager for the configured SQLite file.
func NewDBManager(cfg *config.Config, logger *slog.Logger) *DBManager {
	return &DBManager{cfg: cfg, logger: logger}
}

// Init opens the connection with WAL mode and a busy timeout.
func (dm *DBManager) Init() error {
	if dir := filepath.Dir(dm.cfg.GetDatabasePath()); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", dm.cfg.GetDatabasePath())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(dm.cfg.GetMaxOpenConns())
	sqlDB.SetMaxIdleConns(dm.cfg.GetMaxIdleConns())

	dm.db = db
	return nil
}

// GetConnection returns the GORM handle.
func (dm *DBManager) GetConnection() *gorm.DB {
	return dm.db
}

// SetConnection overrides the GORM handle; used by tests.
func (dm *DBManager) SetConnection(db *gorm.DB) {
	dm.db = db
}

// PerformWrite runs fn in a transaction, retrying briefly when SQLite reports
// the database is locked by a concurrent writer.
func PerformWrite(logger *slog.Logger, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	const maxAttempts = 3

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = db.Transaction(fn)
		if err == nil {
			return nil
		}
		if !isBusyError(err) {
			return err
		}
		logger.Warn("Database busy, retrying write",
			slog.Int("attempt", attempt),
			slog.Any("error", err))
		time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
	}
	return err
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
