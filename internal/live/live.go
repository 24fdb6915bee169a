// Package live maintains the sliding-window online/pageview counters and the
// push snapshots built from them. State lives in the shared store so any
// instance can serve any subscriber.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"pagesense/internal/store"
)

const (
	onlineWindow = 2 * time.Minute
	pvWindow     = 5 * time.Minute
	recentTTL    = 10 * time.Minute
)

// Entry is the compact event summary shown in live snapshots.
type Entry struct {
	Type      string    `json:"type"`
	URL       string    `json:"url"`
	SessionID string    `json:"session_id"`
	Country   string    `json:"country,omitempty"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is one push frame for subscribed clients.
type Snapshot struct {
	OnlineCount       int64     `json:"online_count"`
	LivePageviewCount int64     `json:"live_pageview_count"`
	RecentEvents      []Entry   `json:"recent_events"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// Service records live markers and builds snapshots.
type Service struct {
	store       *store.Store
	logger      *slog.Logger
	recentLimit int64
}

// NewService creates the live counter service.
func NewService(s *store.Store, logger *slog.Logger, recentLimit int) *Service {
	if recentLimit <= 0 {
		recentLimit = 20
	}
	return &Service{store: s, logger: logger, recentLimit: int64(recentLimit)}
}

func onlineKey(websiteID uint) string { return fmt.Sprintf("live:online:%d", websiteID) }
func pvKey(websiteID uint) string     { return fmt.Sprintf("live:pv:%d", websiteID) }
func recentKey(websiteID uint) string { return fmt.Sprintf("live:recent:%d", websiteID) }

// Record updates the live windows for one accepted event. Failures are
// swallowed: the live counters are a cache over durable data, and a missed
// marker self-heals as the window slides.
func (s *Service) Record(ctx context.Context, websiteID uint, entry Entry, countedPageview bool, now time.Time) {
	if err := s.store.WindowAdd(ctx, onlineKey(websiteID), entry.SessionID, now, onlineWindow*2); err != nil {
		s.logger.Debug("Failed to record online marker", slog.Any("error", err))
	}

	if countedPageview {
		marker := ulid.Make().String()
		if err := s.store.WindowAdd(ctx, pvKey(websiteID), marker, now, pvWindow*2); err != nil {
			s.logger.Debug("Failed to record live pageview marker", slog.Any("error", err))
		}
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.store.ListPushCapped(ctx, recentKey(websiteID), string(payload), s.recentLimit, recentTTL); err != nil {
		s.logger.Debug("Failed to push recent event", slog.Any("error", err))
	}
}

// OnlineCount prunes markers older than the online window and returns the
// remaining cardinality.
func (s *Service) OnlineCount(ctx context.Context, websiteID uint, now time.Time) (int64, error) {
	return s.store.WindowCountSince(ctx, onlineKey(websiteID), now.Add(-onlineWindow))
}

// LivePageviewCount range-counts pageview markers over the last five minutes.
func (s *Service) LivePageviewCount(ctx context.Context, websiteID uint, now time.Time) (int64, error) {
	return s.store.WindowCountSince(ctx, pvKey(websiteID), now.Add(-pvWindow))
}

// Snapshot builds one push frame.
func (s *Service) Snapshot(ctx context.Context, websiteID uint, now time.Time) (*Snapshot, error) {
	online, err := s.OnlineCount(ctx, websiteID, now)
	if err != nil {
		return nil, fmt.Errorf("online count: %w", err)
	}
	pageviews, err := s.LivePageviewCount(ctx, websiteID, now)
	if err != nil {
		return nil, fmt.Errorf("live pageview count: %w", err)
	}

	recent := make([]Entry, 0, s.recentLimit)
	raw, err := s.store.ListRange(ctx, recentKey(websiteID), s.recentLimit)
	if err != nil {
		s.logger.Debug("Failed to read recent events", slog.Any("error", err))
	} else {
		for _, item := range raw {
			var entry Entry
			if jerr := json.Unmarshal([]byte(item), &entry); jerr == nil {
				recent = append(recent, entry)
			}
		}
	}

	return &Snapshot{
		OnlineCount:       online,
		LivePageviewCount: pageviews,
		RecentEvents:      recent,
		GeneratedAt:       now.UTC(),
	}, nil
}
