package live

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
)

const pushInterval = 2 * time.Second

// Push streams live snapshots over a websocket connection until the
// client disconnects or a write fails.
func (s *Service) Push(conn *websocket.Conn, websiteID uint) {
	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	send := func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		snapshot, err := s.Snapshot(ctx, websiteID, time.Now())
		cancel()
		if err != nil {
			s.logger.Debug("Failed to build live snapshot",
				slog.Uint64("websiteID", uint64(websiteID)), slog.Any("error", err))
			return true
		}
		if err := conn.WriteJSON(snapshot); err != nil {
			return false
		}
		return true
	}

	if !send() {
		return
	}
	for range ticker.C {
		if !send() {
			return
		}
	}
}
