// Package events holds the event model, engagement accounting, rollup
// aggregation, daily visitor reconciliation and the ingestion pipeline.
package events

import "time"

// EventType identifies a beacon type on the wire.
type EventType string

// General beacon types plus the strict accuracy pair.
const (
	EventTypePageView     EventType = "page_view"
	EventTypeHeartbeat    EventType = "heartbeat"
	EventTypeInteraction  EventType = "interaction"
	EventTypeSessionStart EventType = "session_start"
	EventTypeSessionEnd   EventType = "session_end"
	EventTypeRenderPing   EventType = "render_ping"
	EventTypeClientError  EventType = "client_error"

	EventTypeStrictPageview EventType = "pageview"
	EventTypeStrictPing     EventType = "ping"
)

var validTypes = map[EventType]bool{
	EventTypePageView:       true,
	EventTypeHeartbeat:      true,
	EventTypeInteraction:    true,
	EventTypeSessionStart:   true,
	EventTypeSessionEnd:     true,
	EventTypeRenderPing:     true,
	EventTypeClientError:    true,
	EventTypeStrictPageview: true,
	EventTypeStrictPing:     true,
}

// Valid reports whether the wire value is a known event type.
func (t EventType) Valid() bool { return validTypes[t] }

// IsPageview covers both the general and the strict pageview type.
func (t EventType) IsPageview() bool {
	return t == EventTypePageView || t == EventTypeStrictPageview
}

// IsStrictPair reports membership in the strict accuracy stream types.
func (t EventType) IsStrictPair() bool {
	return t == EventTypeStrictPageview || t == EventTypeStrictPing
}

// MinValidEngagementMs is the global validity threshold: engagement at or
// above it counts, anything below is a bounce.
const MinValidEngagementMs = 1000

// Event is the immutable, append-only record of one accepted beacon. Rows are
// never updated after write.
type Event struct {
	ID              string    `gorm:"primaryKey;size:26"` // ULID
	WebsiteID       uint      `gorm:"index:idx_events_website_timestamp;not null"`
	EventType       EventType `gorm:"index;size:16;not null"`
	URL             string    `gorm:"not null"` // normalized: path + query
	Referrer        string
	VisitorID       string    `gorm:"index:idx_events_website_visitor;size:64;not null"`
	SessionID       string    `gorm:"index;size:128;not null"`
	Timestamp       time.Time `gorm:"index:idx_events_website_timestamp;index:idx_events_website_visitor;not null"`
	ClientTimestamp *time.Time
	EventName       string `gorm:"index"`
	EventData       string `gorm:"type:text"`
	ReferrerSource  string `gorm:"size:64"` // friendly name, empty for direct/internal

	// Computed flags
	IsValid        bool
	IsSuspicious   bool
	IsRouteChange  bool
	StrictExcluded bool // lost the fine dedup slot; out of the strict stream
	BotScore       int
	Reasons        string `gorm:"type:text"` // JSON array of scoring reasons

	// Metadata: only the masked bucket of the source IP is ever stored.
	IPBucket    string `gorm:"size:48"`
	CountryCode string `gorm:"size:2"`

	CreatedAt time.Time
}

// RollupMinute is a purely additive counter bucket keyed by
// (website, floor(time, 60s)). Writers only ever increment.
type RollupMinute struct {
	ID                   uint      `gorm:"primaryKey;autoIncrement"`
	WebsiteID            uint      `gorm:"uniqueIndex:idx_rollup_website_minute;not null"`
	Minute               time.Time `gorm:"uniqueIndex:idx_rollup_website_minute;not null"`
	Pageviews            int64     // counted: past dedup and validity gates
	RawPageviews         int64     // every pageview beacon, duplicates included
	RouteChangePageviews int64
	RenderPings          int64
	DedupedPageviews     int64
	ClientErrors         int64
	EngagementMs         int64
	InvalidCount         int64
	SuspiciousCount      int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DailyVisitor is the per-(website, day, visitor) reconciliation row. Boolean
// fields are sticky: they may flip false→true within a day, never back.
type DailyVisitor struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	WebsiteID       uint   `gorm:"uniqueIndex:idx_daily_website_day_visitor;not null"`
	Day             string `gorm:"uniqueIndex:idx_daily_website_day_visitor;size:10;not null"` // tenant-local 2006-01-02
	VisitorID       string `gorm:"uniqueIndex:idx_daily_website_day_visitor;size:64;not null"`
	HasValidSession bool
	HasInteraction  bool
	WasSuspicious   bool
	EngagementMs    int64
	CountryCode     string `gorm:"size:2"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DaySummary is the persisted result of the session-time reconstruction for a
// closed (website, day, mode).
type DaySummary struct {
	ID                   uint   `gorm:"primaryKey;autoIncrement"`
	WebsiteID            uint   `gorm:"uniqueIndex:idx_summary_website_day_mode;not null"`
	Day                  string `gorm:"uniqueIndex:idx_summary_website_day_mode;size:10;not null"`
	Mode                 string `gorm:"uniqueIndex:idx_summary_website_day_mode;size:8;not null"` // general | strict
	Visitors             int64  // visitors passing the minimum-dwell filter
	Sessions             int64
	ObservedSeconds      int64
	EstimatedSeconds     int64
	AvgSecondsPerVisitor float64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
