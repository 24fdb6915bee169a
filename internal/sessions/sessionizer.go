package sessions

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"pagesense/internal/store"
)

// Sessionizer tracks per-(website, visitor) session state in the shared store
// so any instance can extend any visitor's session.
type Sessionizer struct {
	store *store.Store
}

// stateTTL bounds how long idle visitor state survives in the store.
const stateTTL = 24 * time.Hour

// Assignment is the outcome of sessionizing one event.
type Assignment struct {
	SessionID    string
	Index        int64
	IsNewSession bool
	PriorSession string // set when a new session lazily closes the previous one
}

// NewSessionizer creates a Sessionizer on the shared store.
func NewSessionizer(s *store.Store) *Sessionizer {
	return &Sessionizer{store: s}
}

func stateKey(websiteID uint, visitorID string) string {
	return fmt.Sprintf("sess:%d:%s", websiteID, visitorID)
}

// Assign resolves the session id for an event and persists the updated state.
// A new session starts when no state exists or the gap since the visitor was
// last seen exceeds the inactivity timeout.
func (sz *Sessionizer) Assign(ctx context.Context, websiteID uint, visitorID string, now time.Time, inactivity time.Duration) (*Assignment, error) {
	key := stateKey(websiteID, visitorID)

	state, err := sz.store.HashGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}

	var (
		index    int64
		lastSeen time.Time
		known    bool
	)
	if raw, ok := state["index"]; ok {
		if parsed, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			index = parsed
			known = true
		}
	}
	if raw, ok := state["last_seen_ms"]; ok {
		if ms, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			lastSeen = time.UnixMilli(ms)
		}
	}

	assignment := &Assignment{}
	if !known || now.Sub(lastSeen) > inactivity {
		if known {
			assignment.PriorSession = SessionID(visitorID, index)
		}
		index++
		assignment.IsNewSession = true
	}
	assignment.Index = index
	assignment.SessionID = SessionID(visitorID, index)

	err = sz.store.HashSet(ctx, key, map[string]any{
		"index":        index,
		"last_seen_ms": now.UnixMilli(),
	}, stateTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to persist session state: %w", err)
	}

	return assignment, nil
}
