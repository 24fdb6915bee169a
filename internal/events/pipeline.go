package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	ua "github.com/mileusna/useragent"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"pagesense/internal/botscore"
	"pagesense/internal/database"
	"pagesense/internal/dedup"
	"pagesense/internal/geo"
	"pagesense/internal/live"
	"pagesense/internal/metrics"
	"pagesense/internal/pkg/referrers"
	"pagesense/internal/sessions"
	"pagesense/internal/store"
	"pagesense/internal/visitors"
	"pagesense/internal/websites"
)

// ProcessInput is one validated beacon handed to the pipeline.
type ProcessInput struct {
	Website *websites.Website
	Config  *websites.Config

	EventType       EventType
	RawURL          string
	Referrer        string
	ClientVisitorID string
	ClientTimestamp *time.Time
	EventName       string
	EventData       string

	IPAddress string
	UserAgent string
	Language  string
	Timezone  string
	Screen    string
	Country   string // client country hint, normalized upstream

	Timestamp time.Time // server receive time
}

// ProcessResult reports what happened to one beacon.
type ProcessResult struct {
	Event     *Event
	VisitorID string
	SessionID string
	Deduped   bool
}

// Pipeline is the stateless ingestion hot path. All cross-request
// coordination lives in the shared store; instances hold no locks.
type Pipeline struct {
	db     *gorm.DB
	store  *store.Store
	logger *slog.Logger
	salt   string
	sess   *sessions.Sessionizer
	dedup  *dedup.Deduplicator
	geo    *geo.Resolver
	live   *live.Service
}

// NewPipeline wires the pipeline components together.
func NewPipeline(db *gorm.DB, st *store.Store, logger *slog.Logger, salt string, geoResolver *geo.Resolver, liveSvc *live.Service) *Pipeline {
	return &Pipeline{
		db:     db,
		store:  st,
		logger: logger,
		salt:   salt,
		sess:   sessions.NewSessionizer(st),
		dedup:  dedup.New(st),
		geo:    geoResolver,
		live:   liveSvc,
	}
}

func pvWindowKey(websiteID uint, visitorID string) string {
	return fmt.Sprintf("pvwin:%d:%s", websiteID, visitorID)
}

// Process runs one beacon through identity resolution, sessionization,
// deduplication, scoring, engagement accounting and the durable writes.
func (p *Pipeline) Process(ctx context.Context, in *ProcessInput) (*ProcessResult, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}()

	now := in.Timestamp
	normalized := dedup.NormalizeURL(in.RawURL)
	cfg := in.Config

	visitorID := visitors.Resolve(in.ClientVisitorID, visitors.Fingerprint{
		UserAgent: in.UserAgent,
		Language:  in.Language,
		Timezone:  in.Timezone,
		Screen:    in.Screen,
		IPAddress: in.IPAddress,
	}, in.Website.Location(), now, p.salt)

	country := p.geo.Country(in.Country, in.IPAddress)

	assignment, err := p.sess.Assign(ctx, in.Website.ID, visitorID, now, cfg.InactivityTimeout())
	if err != nil {
		return nil, fmt.Errorf("sessionizer: %w", err)
	}

	result := &ProcessResult{VisitorID: visitorID, SessionID: assignment.SessionID}

	// Coarse dedup gate: duplicates are acknowledged but only touch the
	// raw/deduped counters. Expected outcome of at-least-once delivery.
	if in.EventType.IsPageview() {
		won, derr := p.dedup.ClaimCoarse(ctx, visitorID, assignment.SessionID, normalized, now)
		if derr != nil {
			return nil, derr
		}
		if !won {
			metrics.DedupHits.WithLabelValues("coarse").Inc()
			result.Deduped = true
			err = database.PerformWrite(p.logger, p.db, func(tx *gorm.DB) error {
				return ApplyRollupIncrement(tx, in.Website.ID, now, RollupIncrement{
					RawPageviews:     1,
					DedupedPageviews: 1,
				})
			})
			if err != nil {
				return nil, err
			}
			return result, nil
		}
	}

	strictExcluded := false
	if in.EventType.IsPageview() {
		ttl := time.Duration(cfg.StrictDedupTTLMs) * time.Millisecond
		won, derr := p.dedup.ClaimFine(ctx, in.Website.ID, visitorID, normalized, in.Referrer, ttl)
		if derr != nil {
			return nil, derr
		}
		if !won {
			metrics.DedupHits.WithLabelValues("fine").Inc()
			strictExcluded = true
		}
	}

	// Session state read once for scoring and engagement accounting.
	var (
		sessionEngagementMs int64
		interactionCount    int64
	)
	if existing, serr := sessions.GetSession(p.db, assignment.SessionID); serr == nil {
		sessionEngagementMs = existing.EngagementMs
		interactionCount = existing.InteractionCount
	}

	engagementDelta := p.engagementDelta(in.EventType, cfg)

	score := p.scoreEvent(ctx, in, visitorID, interactionCount, sessionEngagementMs+engagementDelta, now)

	ref := referrers.Classify(in.Referrer, in.Website.Domains())
	isRouteChange := in.EventType.IsPageview() && ref.Kind == referrers.KindInternal
	isValid := sessionEngagementMs+engagementDelta >= MinValidEngagementMs

	reasons, _ := json.Marshal(score.Reasons)
	event := &Event{
		ID:              newEventID(now),
		WebsiteID:       in.Website.ID,
		EventType:       in.EventType,
		URL:             normalized,
		Referrer:        in.Referrer,
		VisitorID:       visitorID,
		SessionID:       assignment.SessionID,
		Timestamp:       now,
		ClientTimestamp: in.ClientTimestamp,
		EventName:       in.EventName,
		EventData:       in.EventData,
		ReferrerSource:  ref.Source,
		IsValid:         isValid,
		IsSuspicious:    score.IsSuspicious,
		IsRouteChange:   isRouteChange,
		StrictExcluded:  strictExcluded,
		BotScore:        score.BotScore,
		Reasons:         string(reasons),
		IPBucket:        visitors.IPBucket(in.IPAddress),
		CountryCode:     country,
		CreatedAt:       time.Now().UTC(),
	}

	day := in.Website.LocalDay(now)
	inc := p.rollupIncrement(in.EventType, engagementDelta, isRouteChange, isValid, score.IsSuspicious)

	err = database.PerformWrite(p.logger, p.db, func(tx *gorm.DB) error {
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("failed to store event: %w", err)
		}

		if assignment.PriorSession != "" {
			if err := sessions.CloseSession(tx, assignment.PriorSession, now); err != nil {
				return fmt.Errorf("failed to close prior session: %w", err)
			}
		}

		sess := &sessions.Session{
			ID:          assignment.SessionID,
			WebsiteID:   in.Website.ID,
			VisitorID:   visitorID,
			Index:       assignment.Index,
			StartedAt:   now,
			LastSeenAt:  now,
			IsDirect:    ref.Kind == referrers.KindDirect,
			CountryCode: country,
		}
		if err := sessions.UpsertSession(tx, sess); err != nil {
			return fmt.Errorf("failed to upsert session: %w", err)
		}

		if in.EventType == EventTypeSessionEnd {
			if err := sessions.CloseSession(tx, assignment.SessionID, now); err != nil {
				return fmt.Errorf("failed to close session: %w", err)
			}
		}
		if engagementDelta > 0 {
			if err := sessions.AddEngagement(tx, assignment.SessionID, engagementDelta, MinValidEngagementMs); err != nil {
				return fmt.Errorf("failed to add engagement: %w", err)
			}
		}
		if in.EventType == EventTypeInteraction {
			if err := sessions.AddInteraction(tx, assignment.SessionID); err != nil {
				return fmt.Errorf("failed to add interaction: %w", err)
			}
		}
		if score.IsSuspicious {
			if err := sessions.MarkSuspicious(tx, assignment.SessionID); err != nil {
				return fmt.Errorf("failed to mark session suspicious: %w", err)
			}
		}

		if err := ApplyRollupIncrement(tx, in.Website.ID, now, inc); err != nil {
			return err
		}

		return MergeDailyVisitor(tx, in.Website.ID, day, visitorID, DailyVisitorUpdate{
			HasValidSession: isValid,
			HasInteraction:  in.EventType == EventTypeInteraction,
			WasSuspicious:   score.IsSuspicious,
			EngagementMs:    engagementDelta,
			CountryCode:     country,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.EventsIngested.WithLabelValues(string(in.EventType)).Inc()
	for _, reason := range score.Reasons {
		metrics.SuspiciousEvents.WithLabelValues(reason).Inc()
	}

	// Live counters are best effort: a store hiccup must not fail the
	// request, reads fall back to recomputation.
	p.live.Record(ctx, in.Website.ID, live.Entry{
		Type:      string(event.EventType),
		URL:       event.URL,
		SessionID: event.SessionID,
		Country:   event.CountryCode,
		Source:    ref.Source,
		Timestamp: now.UTC(),
	}, event.EventType.IsPageview(), now)

	result.Event = event
	return result, nil
}

// engagementDelta maps an event type to its implicit dwell increment.
func (p *Pipeline) engagementDelta(t EventType, cfg *websites.Config) int64 {
	switch {
	case t == EventTypeHeartbeat || t == EventTypeStrictPing:
		return int64(cfg.HeartbeatMs)
	case t.IsPageview():
		return int64(cfg.PageviewMs)
	default:
		return 0
	}
}

// scoreEvent samples the visitor's pageview windows and runs the decision
// table. Window reads happen only for pageviews; other types reuse an empty
// sample so the no_interaction rule still applies uniformly.
func (p *Pipeline) scoreEvent(ctx context.Context, in *ProcessInput, visitorID string, interactionCount, engagementMs int64, now time.Time) botscore.Result {
	sample := botscore.Sample{
		InteractionCount: interactionCount,
		EngagementMs:     engagementMs,
		BotUserAgent:     ua.Parse(in.UserAgent).Bot,
	}

	if in.EventType.IsPageview() {
		key := pvWindowKey(in.Website.ID, visitorID)
		if err := p.store.WindowAdd(ctx, key, fmt.Sprintf("%d:%s", now.UnixNano(), ulid.Make().String()), now, 5*time.Minute); err != nil {
			p.logger.Warn("Failed to record pageview window marker", slog.Any("error", err))
		}
		if count, err := p.store.WindowCountSince(ctx, key, now.Add(-10*time.Second)); err == nil {
			sample.PvCount10s = count
		}
		if count, err := p.store.WindowCountSince(ctx, key, now.Add(-5*time.Minute)); err == nil {
			sample.PvCount5m = count
		}
		if scores, err := p.store.WindowScores(ctx, key, 20); err == nil {
			sample.IntervalStddevMs = botscore.IntervalStddev(scores)
		}
	}

	return botscore.Score(sample, botscore.Thresholds{
		PvRate10s:       in.Config.BotPvRate10s,
		PvCount5m:       in.Config.BotPvCount5m,
		StddevMs:        in.Config.BotStddevMs,
		MinEngagementMs: in.Config.BotMinEngagementMs,
	})
}

// rollupIncrement maps one accepted event onto its minute-bucket counters.
func (p *Pipeline) rollupIncrement(t EventType, engagementDelta int64, isRouteChange, isValid, isSuspicious bool) RollupIncrement {
	inc := RollupIncrement{EngagementMs: engagementDelta}

	if t.IsPageview() {
		inc.RawPageviews = 1
		inc.Pageviews = 1
		if isRouteChange {
			inc.RouteChangePageviews = 1
		}
		if !isValid {
			inc.InvalidCount = 1
		}
	}
	if t == EventTypeRenderPing {
		inc.RenderPings = 1
	}
	if t == EventTypeClientError {
		inc.ClientErrors = 1
	}
	if isSuspicious {
		inc.SuspiciousCount = 1
	}
	return inc
}

func newEventID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at.UTC()), ulid.DefaultEntropy()).String()
}
