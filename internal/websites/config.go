package websites

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Config holds per-website tunables. Each parameter has a safe default and a
// clamp range enforced on every write, including calibration nudges.
type Config struct {
	ID        uint `gorm:"primaryKey;autoIncrement" json:"-"`
	WebsiteID uint `gorm:"uniqueIndex;not null" json:"website_id"`

	// Sessionization
	InactivityMinutes int `gorm:"default:35" json:"inactivity_minutes"`

	// Engagement increments (milliseconds)
	HeartbeatMs int `gorm:"default:5000" json:"heartbeat_ms"`
	PageviewMs  int `gorm:"default:1000" json:"pageview_ms"`

	// Session-time reconstruction
	MaxGapSeconds        int `gorm:"default:1800" json:"max_gap_seconds"`
	LastPageDwellSeconds int `gorm:"default:30" json:"last_page_dwell_seconds"`

	// Bot scoring thresholds
	BotPvRate10s       int `gorm:"default:10" json:"bot_pv_rate_10s"`
	BotPvCount5m       int `gorm:"default:120" json:"bot_pv_count_5m"`
	BotStddevMs        int `gorm:"default:400" json:"bot_stddev_ms"`
	BotMinEngagementMs int `gorm:"default:2000" json:"bot_min_engagement_ms"`

	// SoftMode keeps suspicious sessions inside counted totals.
	SoftMode bool `gorm:"default:true" json:"soft_mode"`

	// Strict accuracy stream parameters
	StrictCountry    string `gorm:"default:'US'" json:"strict_country"`
	StrictDedupTTLMs int    `gorm:"default:1500" json:"strict_dedup_ttl_ms"`

	UpdatedAt time.Time `json:"-"`
}

// TableName keeps the table name explicit.
func (Config) TableName() string { return "website_configs" }

// clampRange bounds one tunable.
type clampRange struct{ min, max int }

var clamps = map[string]clampRange{
	"inactivity_minutes":      {5, 120},
	"heartbeat_ms":            {1000, 60000},
	"pageview_ms":             {0, 5000},
	"max_gap_seconds":         {60, 7200},
	"last_page_dwell_seconds": {0, 300},
	"bot_pv_rate_10s":         {3, 100},
	"bot_pv_count_5m":         {20, 2000},
	"bot_stddev_ms":           {50, 5000},
	"bot_min_engagement_ms":   {0, 10000},
	"strict_dedup_ttl_ms":     {100, 10000},
}

// DefaultConfig returns the tunables every website starts with.
func DefaultConfig(websiteID uint) Config {
	return Config{
		WebsiteID:            websiteID,
		InactivityMinutes:    35,
		HeartbeatMs:          5000,
		PageviewMs:           1000,
		MaxGapSeconds:        1800,
		LastPageDwellSeconds: 30,
		BotPvRate10s:         10,
		BotPvCount5m:         120,
		BotStddevMs:          400,
		BotMinEngagementMs:   2000,
		SoftMode:             true,
		StrictCountry:        "US",
		StrictDedupTTLMs:     1500,
	}
}

// Clamp bounds every tunable to its valid range in place.
func (c *Config) Clamp() {
	c.InactivityMinutes = clampInt(c.InactivityMinutes, clamps["inactivity_minutes"])
	c.HeartbeatMs = clampInt(c.HeartbeatMs, clamps["heartbeat_ms"])
	c.PageviewMs = clampInt(c.PageviewMs, clamps["pageview_ms"])
	c.MaxGapSeconds = clampInt(c.MaxGapSeconds, clamps["max_gap_seconds"])
	c.LastPageDwellSeconds = clampInt(c.LastPageDwellSeconds, clamps["last_page_dwell_seconds"])
	c.BotPvRate10s = clampInt(c.BotPvRate10s, clamps["bot_pv_rate_10s"])
	c.BotPvCount5m = clampInt(c.BotPvCount5m, clamps["bot_pv_count_5m"])
	c.BotStddevMs = clampInt(c.BotStddevMs, clamps["bot_stddev_ms"])
	c.BotMinEngagementMs = clampInt(c.BotMinEngagementMs, clamps["bot_min_engagement_ms"])
	c.StrictDedupTTLMs = clampInt(c.StrictDedupTTLMs, clamps["strict_dedup_ttl_ms"])
}

func clampInt(v int, r clampRange) int {
	if v < r.min {
		return r.min
	}
	if v > r.max {
		return r.max
	}
	return v
}

// InactivityTimeout returns the session gap as a duration.
func (c *Config) InactivityTimeout() time.Duration {
	return time.Duration(c.InactivityMinutes) * time.Minute
}

// MaxGap returns the reconstruction gap cap as a duration.
func (c *Config) MaxGap() time.Duration {
	return time.Duration(c.MaxGapSeconds) * time.Second
}

// GetConfig loads the tunables for a website, falling back to defaults when no
// row exists yet.
func GetConfig(db *gorm.DB, websiteID uint) (*Config, error) {
	var cfg Config
	err := db.Where("website_id = ?", websiteID).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			def := DefaultConfig(websiteID)
			return &def, nil
		}
		return nil, fmt.Errorf("failed to load website config: %w", err)
	}
	cfg.Clamp()
	return &cfg, nil
}

// SaveConfig clamps and persists the tunables.
func SaveConfig(db *gorm.DB, cfg *Config) error {
	cfg.Clamp()
	var existing Config
	err := db.Where("website_id = ?", cfg.WebsiteID).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return db.Create(cfg).Error
		}
		return fmt.Errorf("failed to load website config: %w", err)
	}
	cfg.ID = existing.ID
	return db.Save(cfg).Error
}
