package reconstruct

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"pagesense/internal/events"
	"pagesense/internal/websites"
)

// Modes selecting the input event stream. The algorithm is identical; only
// the event set differs.
const (
	ModeGeneral = "general"
	ModeStrict  = "strict"
)

// todayCacheTTL bounds recomputation storms for the still-changing current
// day. Closed days are persisted instead.
const todayCacheTTL = 2 * time.Minute

// Summarizer computes and caches per-(website, day, mode) reconstruction
// summaries. It reads durable events only and never runs on the request hot
// path.
type Summarizer struct {
	db     *gorm.DB
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]cachedSummary
}

type cachedSummary struct {
	summary  *events.DaySummary
	cachedAt time.Time
}

// NewSummarizer creates a Summarizer.
func NewSummarizer(db *gorm.DB, logger *slog.Logger) *Summarizer {
	return &Summarizer{
		db:     db,
		logger: logger,
		cache:  make(map[string]cachedSummary),
	}
}

// Summarize returns the reconstruction summary for a tenant-local day.
// Today's result is cached briefly; closed days are computed once and
// persisted as the final summary row.
func (s *Summarizer) Summarize(website *websites.Website, cfg *websites.Config, day, mode string) (*events.DaySummary, error) {
	if mode != ModeGeneral && mode != ModeStrict {
		return nil, fmt.Errorf("unknown reconstruction mode: %s", mode)
	}

	today := website.LocalDay(time.Now())
	if day != today {
		return s.closedDaySummary(website, cfg, day, mode)
	}

	key := fmt.Sprintf("%d:%s:%s", website.ID, day, mode)
	s.mu.Lock()
	entry, ok := s.cache[key]
	s.mu.Unlock()
	if ok && time.Since(entry.cachedAt) < todayCacheTTL {
		return entry.summary, nil
	}

	summary, err := s.compute(website, cfg, day, mode)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = cachedSummary{summary: summary, cachedAt: time.Now()}
	s.mu.Unlock()
	return summary, nil
}

// closedDaySummary serves past days from the persisted row, computing and
// storing it on first access.
func (s *Summarizer) closedDaySummary(website *websites.Website, cfg *websites.Config, day, mode string) (*events.DaySummary, error) {
	var stored events.DaySummary
	err := s.db.Where("website_id = ? AND day = ? AND mode = ?", website.ID, day, mode).
		First(&stored).Error
	if err == nil {
		return &stored, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load day summary: %w", err)
	}

	summary, err := s.compute(website, cfg, day, mode)
	if err != nil {
		return nil, err
	}
	if err := s.db.Create(summary).Error; err != nil {
		// Lost a race against a concurrent computation; theirs is as good.
		s.logger.Debug("Failed to persist day summary", slog.Any("error", err))
	}
	return summary, nil
}

// compute reconstructs every visitor's day from durable events.
func (s *Summarizer) compute(website *websites.Website, cfg *websites.Config, day, mode string) (*events.DaySummary, error) {
	from, to, err := dayBounds(website, day)
	if err != nil {
		return nil, err
	}

	type row struct {
		VisitorID string
		Timestamp time.Time
	}
	var rows []row

	query := s.db.Model(&events.Event{}).
		Select("visitor_id, timestamp").
		Where("website_id = ? AND timestamp >= ? AND timestamp < ?", website.ID, from, to).
		Order("visitor_id ASC, timestamp ASC")

	if mode == ModeStrict {
		query = query.Where("event_type IN ? AND strict_excluded = ? AND country_code = ?",
			[]events.EventType{events.EventTypeStrictPageview, events.EventTypeStrictPing},
			false, cfg.StrictCountry)
	}
	if !cfg.SoftMode {
		query = query.Where("is_suspicious = ?", false)
	}

	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read events for reconstruction: %w", err)
	}

	params := Params{
		Inactivity:    cfg.InactivityTimeout(),
		MaxGap:        cfg.MaxGap(),
		LastPageDwell: time.Duration(cfg.LastPageDwellSeconds) * time.Second,
	}

	var (
		visitorDays []VisitorDay
		current     []time.Time
		currentID   string
	)
	flush := func() {
		if len(current) > 0 {
			visitorDays = append(visitorDays, Reconstruct(current, params))
			current = nil
		}
	}
	for _, r := range rows {
		if r.VisitorID != currentID {
			flush()
			currentID = r.VisitorID
		}
		current = append(current, r.Timestamp)
	}
	flush()

	m := AggregateDay(visitorDays)
	now := time.Now().UTC()
	return &events.DaySummary{
		WebsiteID:            website.ID,
		Day:                  day,
		Mode:                 mode,
		Visitors:             m.Visitors,
		Sessions:             m.Sessions,
		ObservedSeconds:      m.ObservedSeconds,
		EstimatedSeconds:     m.EstimatedSeconds,
		AvgSecondsPerVisitor: m.AvgSecondsPerVisitor,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// dayBounds converts a tenant-local day string into UTC query bounds.
func dayBounds(website *websites.Website, day string) (time.Time, time.Time, error) {
	loc := website.Location()
	start, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid day %q: %w", day, err)
	}
	return start.UTC(), start.AddDate(0, 0, 1).UTC(), nil
}
