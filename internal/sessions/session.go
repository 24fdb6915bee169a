// Package sessions assigns session ids by inactivity gaps and maintains the
// durable session rows.
package sessions

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Session is a bounded run of one visitor's activity. The row is created on
// the first event after an inactivity gap and mutated on every later event of
// the same session. EndedAt is set lazily when the next event for the visitor
// starts a new session, or on an explicit session_end beacon.
type Session struct {
	ID               string `gorm:"primaryKey;size:128"` // visitorID + "." + index
	WebsiteID        uint   `gorm:"index:idx_sessions_website_visitor;not null"`
	VisitorID        string `gorm:"index:idx_sessions_website_visitor;size:64;not null"`
	Index            int64  `gorm:"column:session_index;not null"`
	StartedAt        time.Time
	LastSeenAt       time.Time
	EngagementMs     int64
	InteractionCount int64
	IsDirect         bool
	IsSuspicious     bool
	IsValid          bool
	CountryCode      string `gorm:"size:2"`
	EndedAt          *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SessionID derives the deterministic id for (visitor, index).
func SessionID(visitorID string, index int64) string {
	return fmt.Sprintf("%s.%d", visitorID, index)
}

// GetSession loads a session row by id.
func GetSession(db *gorm.DB, id string) (*Session, error) {
	var s Session
	if err := db.First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertSession creates the row on a new session or refreshes LastSeenAt on an
// existing one. The session upsert always accompanies its event write.
func UpsertSession(tx *gorm.DB, s *Session) error {
	var existing Session
	err := tx.First(&existing, "id = ?", s.ID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(s).Error
		}
		return fmt.Errorf("failed to load session: %w", err)
	}
	updates := map[string]any{
		"last_seen_at": s.LastSeenAt,
	}
	if s.CountryCode != "" && existing.CountryCode == "" {
		updates["country_code"] = s.CountryCode
	}
	return tx.Model(&Session{}).Where("id = ?", s.ID).Updates(updates).Error
}

// CloseSession marks a session as ended. Missing rows are ignored: the prior
// session may predate the store's retention.
func CloseSession(tx *gorm.DB, id string, endedAt time.Time) error {
	return tx.Model(&Session{}).
		Where("id = ? AND ended_at IS NULL", id).
		Update("ended_at", endedAt).Error
}

// AddEngagement accumulates dwell time on a session and flips IsValid once the
// running total crosses the validity threshold.
func AddEngagement(tx *gorm.DB, id string, deltaMs int64, minValidMs int64) error {
	if deltaMs <= 0 {
		return nil
	}
	return tx.Model(&Session{}).Where("id = ?", id).
		Updates(map[string]any{
			"engagement_ms": gorm.Expr("engagement_ms + ?", deltaMs),
			"is_valid":      gorm.Expr("engagement_ms + ? >= ?", deltaMs, minValidMs),
		}).Error
}

// AddInteraction increments the session interaction counter.
func AddInteraction(tx *gorm.DB, id string) error {
	return tx.Model(&Session{}).Where("id = ?", id).
		Update("interaction_count", gorm.Expr("interaction_count + 1")).Error
}

// MarkSuspicious stickies the suspicious flag on a session.
func MarkSuspicious(tx *gorm.DB, id string) error {
	return tx.Model(&Session{}).Where("id = ?", id).
		Update("is_suspicious", true).Error
}

// CountSessionsStarted counts sessions that started inside [from, to) for a
// website; used by day metric reads.
func CountSessionsStarted(db *gorm.DB, websiteID uint, from, to time.Time) (int64, error) {
	var count int64
	err := db.Model(&Session{}).
		Where("website_id = ? AND started_at >= ? AND started_at < ?", websiteID, from, to).
		Count(&count).Error
	return count, err
}
