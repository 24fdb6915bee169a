package events

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DailyVisitorUpdate is one incoming observation to merge into the
// per-(website, day, visitor) row.
type DailyVisitorUpdate struct {
	HasValidSession bool
	HasInteraction  bool
	WasSuspicious   bool
	EngagementMs    int64
	CountryCode     string
}

// MergeDailyVisitor upserts the reconciliation row with tagged merge
// semantics: booleans OR with the stored value (sticky true), engagement
// adds, and the country is set only when the incoming value is present. A
// blind overwrite would let a later invalid event reset an earlier true flag.
func MergeDailyVisitor(tx *gorm.DB, websiteID uint, day, visitorID string, upd DailyVisitorUpdate) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO daily_visitors (
			website_id, day, visitor_id,
			has_valid_session, has_interaction, was_suspicious,
			engagement_ms, country_code, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (website_id, day, visitor_id) DO UPDATE SET
			has_valid_session = MAX(daily_visitors.has_valid_session, excluded.has_valid_session),
			has_interaction = MAX(daily_visitors.has_interaction, excluded.has_interaction),
			was_suspicious = MAX(daily_visitors.was_suspicious, excluded.was_suspicious),
			engagement_ms = daily_visitors.engagement_ms + excluded.engagement_ms,
			country_code = COALESCE(NULLIF(excluded.country_code, ''), daily_visitors.country_code),
			updated_at = excluded.updated_at
	`
	err := tx.Exec(query,
		websiteID, day, visitorID,
		upd.HasValidSession, upd.HasInteraction, upd.WasSuspicious,
		upd.EngagementMs, upd.CountryCode, now, now).Error
	if err != nil {
		return fmt.Errorf("failed to merge daily visitor: %w", err)
	}
	return nil
}

// DailyVisitorTotals summarizes the reconciliation rows for one day.
type DailyVisitorTotals struct {
	UniqueVisitors  int64 `json:"unique_visitors"`
	ValidVisitors   int64 `json:"valid_visitors"`
	SuspiciousCount int64 `json:"suspicious_visitors"`
	EngagementMsSum int64 `json:"engagement_ms_sum"`
}

// SumDailyVisitors aggregates the daily rows; softMode keeps suspicious
// visitors inside the counted totals.
func SumDailyVisitors(db *gorm.DB, websiteID uint, day string, softMode bool) (*DailyVisitorTotals, error) {
	var totals DailyVisitorTotals

	base := db.Model(&DailyVisitor{}).Where("website_id = ? AND day = ?", websiteID, day)
	if !softMode {
		base = base.Where("was_suspicious = ?", false)
	}
	if err := base.Count(&totals.UniqueVisitors).Error; err != nil {
		return nil, fmt.Errorf("failed to count daily visitors: %w", err)
	}

	valid := db.Model(&DailyVisitor{}).
		Where("website_id = ? AND day = ? AND has_valid_session = ?", websiteID, day, true)
	if !softMode {
		valid = valid.Where("was_suspicious = ?", false)
	}
	if err := valid.Count(&totals.ValidVisitors).Error; err != nil {
		return nil, fmt.Errorf("failed to count valid daily visitors: %w", err)
	}

	err := db.Model(&DailyVisitor{}).
		Where("website_id = ? AND day = ? AND was_suspicious = ?", websiteID, day, true).
		Count(&totals.SuspiciousCount).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count suspicious daily visitors: %w", err)
	}

	engagement := db.Model(&DailyVisitor{}).
		Select("COALESCE(SUM(engagement_ms),0)").
		Where("website_id = ? AND day = ?", websiteID, day)
	if !softMode {
		engagement = engagement.Where("was_suspicious = ?", false)
	}
	err = engagement.Scan(&totals.EngagementMsSum).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum daily engagement: %w", err)
	}

	return &totals, nil
}
