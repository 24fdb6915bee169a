package sessions_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesense/internal/sessions"
	"pagesense/internal/testsupport"
)

func TestSessionizerAssign(t *testing.T) {
	st, _ := testsupport.SetupTestStore(t)
	sz := sessions.NewSessionizer(st)
	ctx := context.Background()

	inactivity := 35 * time.Minute
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	first, err := sz.Assign(ctx, 1, "visitor-a", base, inactivity)
	require.NoError(t, err)
	assert.True(t, first.IsNewSession)
	assert.EqualValues(t, 1, first.Index)
	assert.Equal(t, "visitor-a.1", first.SessionID)
	assert.Empty(t, first.PriorSession)

	// Activity inside the window continues the same session.
	second, err := sz.Assign(ctx, 1, "visitor-a", base.Add(10*time.Minute), inactivity)
	require.NoError(t, err)
	assert.False(t, second.IsNewSession)
	assert.Equal(t, first.SessionID, second.SessionID)

	// A gap beyond the timeout rolls the index and reports the prior
	// session for lazy close.
	third, err := sz.Assign(ctx, 1, "visitor-a", base.Add(50*time.Minute), inactivity)
	require.NoError(t, err)
	assert.True(t, third.IsNewSession)
	assert.EqualValues(t, 2, third.Index)
	assert.Equal(t, "visitor-a.2", third.SessionID)
	assert.Equal(t, "visitor-a.1", third.PriorSession)
}

func TestSessionizerIsolation(t *testing.T) {
	st, _ := testsupport.SetupTestStore(t)
	sz := sessions.NewSessionizer(st)
	ctx := context.Background()
	now := time.Now()

	a, err := sz.Assign(ctx, 1, "visitor-a", now, time.Hour)
	require.NoError(t, err)
	b, err := sz.Assign(ctx, 2, "visitor-a", now, time.Hour)
	require.NoError(t, err)

	// Same visitor on two websites: independent state, both new.
	assert.True(t, a.IsNewSession)
	assert.True(t, b.IsNewSession)
}

func TestSessionizerGapEqualToTimeoutContinues(t *testing.T) {
	st, _ := testsupport.SetupTestStore(t)
	sz := sessions.NewSessionizer(st)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	first, err := sz.Assign(ctx, 1, "visitor-a", base, 35*time.Minute)
	require.NoError(t, err)
	second, err := sz.Assign(ctx, 1, "visitor-a", base.Add(35*time.Minute), 35*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
}
