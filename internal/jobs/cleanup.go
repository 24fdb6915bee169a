// Package jobs runs the background maintenance loops: raw-event retention
// cleanup and closed-day summary persistence.
package jobs

import (
	"log/slog"
	"time"

	"pagesense/internal/config"
	"pagesense/internal/database"
	"pagesense/internal/events"
	"pagesense/internal/sessions"
)

// CleanupJob removes raw events and ended sessions past the retention period.
// Rollup minutes, daily visitor rows and day summaries are kept: they are the
// compact long-term record.
type CleanupJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewCleanupJob(dbManager *database.DBManager, logger *slog.Logger, cfg *config.Config) *CleanupJob {
	return &CleanupJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run deletes expired rows in batches to avoid long write locks.
func (j *CleanupJob) Run() error {
	retentionDays := j.cfg.EventRetentionDays
	db := j.dbManager.GetConnection()
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	j.logger.Info("Starting retention cleanup",
		slog.Int("retention_days", retentionDays),
		slog.Time("cutoff", cutoff))

	const batchSize = 1000
	totalDeleted := int64(0)

	for {
		result := db.Where("timestamp < ?", cutoff).
			Limit(batchSize).
			Delete(&events.Event{})
		if result.Error != nil {
			j.logger.Error("Failed to delete old events",
				slog.Any("error", result.Error),
				slog.Int64("deleted_so_far", totalDeleted))
			return result.Error
		}
		totalDeleted += result.RowsAffected
		if result.RowsAffected < int64(batchSize) {
			break
		}
		// Small delay between batches to prevent lock contention
		time.Sleep(100 * time.Millisecond)
	}

	sessResult := db.Where("last_seen_at < ? AND ended_at IS NOT NULL", cutoff).
		Delete(&sessions.Session{})
	if sessResult.Error != nil {
		j.logger.Error("Failed to delete old sessions", slog.Any("error", sessResult.Error))
		return sessResult.Error
	}

	j.logger.Info("Retention cleanup finished",
		slog.Int64("events_deleted", totalDeleted),
		slog.Int64("sessions_deleted", sessResult.RowsAffected))
	return nil
}
