package sessions_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesense/internal/sessions"
	"pagesense/internal/testsupport"
)

func TestSessionEngagementValidity(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	now := time.Now().UTC()

	s := &sessions.Session{
		ID: "visitor-a.1", WebsiteID: 1, VisitorID: "visitor-a", Index: 1,
		StartedAt: now, LastSeenAt: now,
	}
	require.NoError(t, sessions.UpsertSession(db, s))

	// 999ms total stays invalid, 1000ms flips validity.
	require.NoError(t, sessions.AddEngagement(db, s.ID, 999, 1000))
	got, err := sessions.GetSession(db, s.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 999, got.EngagementMs)
	assert.False(t, got.IsValid)

	require.NoError(t, sessions.AddEngagement(db, s.ID, 1, 1000))
	got, err = sessions.GetSession(db, s.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, got.EngagementMs)
	assert.True(t, got.IsValid)

	// Validity is sticky once reached.
	require.NoError(t, sessions.AddEngagement(db, s.ID, 5000, 1000))
	got, err = sessions.GetSession(db, s.ID)
	require.NoError(t, err)
	assert.True(t, got.IsValid)
}

func TestUpsertSessionKeepsFirstCountry(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	now := time.Now().UTC()

	first := &sessions.Session{
		ID: "visitor-b.1", WebsiteID: 1, VisitorID: "visitor-b", Index: 1,
		StartedAt: now, LastSeenAt: now, CountryCode: "DE",
	}
	require.NoError(t, sessions.UpsertSession(db, first))

	later := *first
	later.LastSeenAt = now.Add(time.Minute)
	later.CountryCode = "FR"
	require.NoError(t, sessions.UpsertSession(db, &later))

	got, err := sessions.GetSession(db, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "DE", got.CountryCode)
	assert.Equal(t, now.Add(time.Minute).Unix(), got.LastSeenAt.Unix())
}

func TestCloseSession(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	now := time.Now().UTC()

	s := &sessions.Session{
		ID: "visitor-c.1", WebsiteID: 1, VisitorID: "visitor-c", Index: 1,
		StartedAt: now, LastSeenAt: now,
	}
	require.NoError(t, sessions.UpsertSession(db, s))

	endedAt := now.Add(10 * time.Minute)
	require.NoError(t, sessions.CloseSession(db, s.ID, endedAt))

	got, err := sessions.GetSession(db, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	assert.Equal(t, endedAt.Unix(), got.EndedAt.Unix())

	// Closing again keeps the original timestamp.
	require.NoError(t, sessions.CloseSession(db, s.ID, endedAt.Add(time.Hour)))
	got, err = sessions.GetSession(db, s.ID)
	require.NoError(t, err)
	assert.Equal(t, endedAt.Unix(), got.EndedAt.Unix())
}

func TestMarkSuspiciousAndInteraction(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	now := time.Now().UTC()

	s := &sessions.Session{
		ID: "visitor-d.1", WebsiteID: 1, VisitorID: "visitor-d", Index: 1,
		StartedAt: now, LastSeenAt: now,
	}
	require.NoError(t, sessions.UpsertSession(db, s))

	require.NoError(t, sessions.AddInteraction(db, s.ID))
	require.NoError(t, sessions.AddInteraction(db, s.ID))
	require.NoError(t, sessions.MarkSuspicious(db, s.ID))

	got, err := sessions.GetSession(db, s.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.InteractionCount)
	assert.True(t, got.IsSuspicious)
}
