// Package dedup suppresses duplicate pageview beacons. Two independent layers
// run against the shared store's insert-if-absent primitive: a coarse 10-second
// slot for general counting and a fine sub-second slot feeding the strict
// accuracy stream.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"pagesense/internal/store"
)

const (
	coarseSlot = 10 * time.Second
	coarseTTL  = 10 * time.Second
)

// Deduplicator claims dedup slots in the shared store.
type Deduplicator struct {
	store *store.Store
}

// New creates a Deduplicator.
func New(s *store.Store) *Deduplicator {
	return &Deduplicator{store: s}
}

// NormalizeURL strips the fragment and keeps path plus query. Unparseable
// input is passed through unchanged.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	u.Fragment = ""
	if u.RawQuery != "" {
		return u.EscapedPath() + "?" + u.RawQuery
	}
	if u.EscapedPath() == "" {
		return "/"
	}
	return u.EscapedPath()
}

// ClaimCoarse claims the 10-second dedup slot for a pageview. Returns true
// when this event is the first in the slot; false means the beacon is a
// duplicate and must be excluded from counted totals.
func (d *Deduplicator) ClaimCoarse(ctx context.Context, visitorID, sessionID, normalizedURL string, at time.Time) (bool, error) {
	slot := at.Unix() / int64(coarseSlot.Seconds())
	key := "dedup:c:" + hashKey(visitorID, sessionID, normalizedURL, fmt.Sprint(slot))
	ok, err := d.store.InsertIfAbsent(ctx, key, coarseTTL)
	if err != nil {
		return false, fmt.Errorf("coarse dedup claim: %w", err)
	}
	return ok, nil
}

// ClaimFine claims the strict-mode dedup slot. The short TTL suppresses
// near-simultaneous duplicates independently of the 10-second bucket. A false
// result only removes the event from the strict stream.
func (d *Deduplicator) ClaimFine(ctx context.Context, websiteID uint, visitorID, normalizedURL, referrer string, ttl time.Duration) (bool, error) {
	key := "dedup:f:" + hashKey(fmt.Sprint(websiteID), visitorID, normalizedURL, referrer)
	ok, err := d.store.InsertIfAbsent(ctx, key, ttl)
	if err != nil {
		return false, fmt.Errorf("fine dedup claim: %w", err)
	}
	return ok, nil
}

func hashKey(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:16])
}
