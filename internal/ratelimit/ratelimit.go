// Package ratelimit sheds abusive ingest load before any heavier work runs.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pagesense/internal/store"
)

// ErrRateLimited is returned when a source IP exceeds its window cap.
// Beacons are fire-and-forget; there is no retry contract.
var ErrRateLimited = errors.New("rate limited")

const window = 60 * time.Second

// Limiter enforces a fixed 60-second window counter per source IP through
// the shared store, so the cap holds across instances.
type Limiter struct {
	store *store.Store
	cap   int64
}

// NewLimiter creates a Limiter with the configured hard cap per window.
func NewLimiter(s *store.Store, cap int) *Limiter {
	return &Limiter{store: s, cap: int64(cap)}
}

// Check consumes one slot for ip and returns ErrRateLimited on breach.
func (l *Limiter) Check(ctx context.Context, ip string, now time.Time) error {
	slot := now.Unix() / int64(window.Seconds())
	key := fmt.Sprintf("ratelimit:%s:%d", ip, slot)

	count, err := l.store.FixedWindowIncr(ctx, key, window)
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}
	if count > l.cap {
		return ErrRateLimited
	}
	return nil
}
