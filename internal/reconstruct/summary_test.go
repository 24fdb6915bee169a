package reconstruct_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"pagesense/internal/events"
	"pagesense/internal/logging"
	"pagesense/internal/reconstruct"
	"pagesense/internal/testsupport"
	"pagesense/internal/websites"
)

func seedEvent(t *testing.T, db *gorm.DB, websiteID uint, visitorID string, eventType events.EventType, at time.Time, strictExcluded bool, country string) {
	t.Helper()
	e := &events.Event{
		ID:             fmt.Sprintf("%s-%d", visitorID, at.UnixNano()),
		WebsiteID:      websiteID,
		EventType:      eventType,
		URL:            "/",
		VisitorID:      visitorID,
		SessionID:      visitorID + ".1",
		Timestamp:      at,
		StrictExcluded: strictExcluded,
		CountryCode:    country,
		CreatedAt:      at,
	}
	require.NoError(t, db.Create(e).Error)
}

func TestSummarizeClosedDay(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	website := testsupport.CreateTestWebsite(t, db)
	cfg, err := websites.GetConfig(db, website.ID)
	require.NoError(t, err)

	day := "2026-03-14"
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	// One engaged visitor with 50 observed seconds, one bounce.
	seedEvent(t, db, website.ID, "engaged", events.EventTypePageView, base, false, "US")
	seedEvent(t, db, website.ID, "engaged", events.EventTypePageView, base.Add(10*time.Second), false, "US")
	seedEvent(t, db, website.ID, "engaged", events.EventTypeHeartbeat, base.Add(50*time.Second), false, "US")
	seedEvent(t, db, website.ID, "bounce", events.EventTypePageView, base.Add(time.Hour), false, "US")

	s := reconstruct.NewSummarizer(db, logging.NewTestLogger())
	summary, err := s.Summarize(website, cfg, day, reconstruct.ModeGeneral)
	require.NoError(t, err)

	assert.EqualValues(t, 1, summary.Visitors)
	assert.EqualValues(t, 1, summary.Sessions)
	assert.EqualValues(t, 50, summary.ObservedSeconds)
	assert.EqualValues(t, 50+int64(cfg.LastPageDwellSeconds), summary.EstimatedSeconds)

	// The closed day is now persisted and served from the stored row.
	var stored events.DaySummary
	require.NoError(t, db.First(&stored, "website_id = ? AND day = ? AND mode = ?",
		website.ID, day, reconstruct.ModeGeneral).Error)

	again, err := s.Summarize(website, cfg, day, reconstruct.ModeGeneral)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, again.ID)
}

func TestSummarizeStrictMode(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	website := testsupport.CreateTestWebsite(t, db)
	cfg, err := websites.GetConfig(db, website.ID)
	require.NoError(t, err)

	day := "2026-03-14"
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	// Qualifies: strict pair, fine-dedup survivor, reference country.
	seedEvent(t, db, website.ID, "us-visitor", events.EventTypeStrictPageview, base, false, "US")
	seedEvent(t, db, website.ID, "us-visitor", events.EventTypeStrictPing, base.Add(30*time.Second), false, "US")
	// Excluded from strict: wrong country, general type, dedup loser.
	seedEvent(t, db, website.ID, "de-visitor", events.EventTypeStrictPageview, base, false, "DE")
	seedEvent(t, db, website.ID, "de-visitor", events.EventTypeStrictPing, base.Add(30*time.Second), false, "DE")
	seedEvent(t, db, website.ID, "us-visitor", events.EventTypePageView, base.Add(60*time.Second), false, "US")
	seedEvent(t, db, website.ID, "us-visitor", events.EventTypeStrictPageview, base.Add(90*time.Second), true, "US")

	s := reconstruct.NewSummarizer(db, logging.NewTestLogger())

	strict, err := s.Summarize(website, cfg, day, reconstruct.ModeStrict)
	require.NoError(t, err)
	assert.EqualValues(t, 1, strict.Visitors)
	assert.EqualValues(t, 30, strict.ObservedSeconds)

	general, err := s.Summarize(website, cfg, day, reconstruct.ModeGeneral)
	require.NoError(t, err)
	assert.EqualValues(t, 2, general.Visitors)
}

func TestSummarizeRejectsUnknownMode(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	website := testsupport.CreateTestWebsite(t, db)
	cfg, err := websites.GetConfig(db, website.ID)
	require.NoError(t, err)

	s := reconstruct.NewSummarizer(db, logging.NewTestLogger())
	_, err = s.Summarize(website, cfg, "2026-03-14", "fuzzy")
	assert.Error(t, err)
}
