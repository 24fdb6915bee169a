package dedup_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesense/internal/dedup"
	"pagesense/internal/testsupport"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/pricing", "/pricing"},
		{"https://example.com/pricing#faq", "/pricing"},
		{"https://example.com/search?q=go&page=2", "/search?q=go&page=2"},
		{"https://example.com", "/"},
		{"https://example.com/", "/"},
		{"  https://example.com/a  ", "/a"},
		{"/relative/path", "/relative/path"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dedup.NormalizeURL(tt.in), "NormalizeURL(%q)", tt.in)
	}
}

func TestClaimCoarse(t *testing.T) {
	st, _ := testsupport.SetupTestStore(t)
	d := dedup.New(st)
	ctx := context.Background()

	// Slot-aligned base keeps both claims in one 10s bucket.
	base := time.Unix(1770000000, 0)

	won, err := d.ClaimCoarse(ctx, "visitor-a", "visitor-a.1", "/pricing", base)
	require.NoError(t, err)
	assert.True(t, won)

	// Same visitor, session and URL inside the slot: duplicate.
	won, err = d.ClaimCoarse(ctx, "visitor-a", "visitor-a.1", "/pricing", base.Add(3*time.Second))
	require.NoError(t, err)
	assert.False(t, won)

	// Next slot opens a fresh claim.
	won, err = d.ClaimCoarse(ctx, "visitor-a", "visitor-a.1", "/pricing", base.Add(10*time.Second))
	require.NoError(t, err)
	assert.True(t, won)

	// A different URL never contends.
	won, err = d.ClaimCoarse(ctx, "visitor-a", "visitor-a.1", "/about", base)
	require.NoError(t, err)
	assert.True(t, won)

	// Neither does a different visitor.
	won, err = d.ClaimCoarse(ctx, "visitor-b", "visitor-b.1", "/pricing", base)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestClaimFine(t *testing.T) {
	st, mr := testsupport.SetupTestStore(t)
	d := dedup.New(st)
	ctx := context.Background()
	ttl := 1500 * time.Millisecond

	won, err := d.ClaimFine(ctx, 1, "visitor-a", "/pricing", "https://google.com", ttl)
	require.NoError(t, err)
	assert.True(t, won)

	// Burst duplicate loses the slot.
	won, err = d.ClaimFine(ctx, 1, "visitor-a", "/pricing", "https://google.com", ttl)
	require.NoError(t, err)
	assert.False(t, won)

	// Same URL with another referrer is a distinct navigation.
	won, err = d.ClaimFine(ctx, 1, "visitor-a", "/pricing", "https://bing.com", ttl)
	require.NoError(t, err)
	assert.True(t, won)

	// After the TTL the slot reopens.
	mr.FastForward(2 * time.Second)
	won, err = d.ClaimFine(ctx, 1, "visitor-a", "/pricing", "https://google.com", ttl)
	require.NoError(t, err)
	assert.True(t, won)
}
