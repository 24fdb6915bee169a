package v1

import (
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// GetLive returns a one-shot snapshot of the sliding-window live counters.
func (h *Handler) GetLive(c *fiber.Ctx) error {
	website, errResp := h.lookupWebsite(c)
	if website == nil {
		return errResp
	}

	snapshot, err := h.live.Snapshot(c.Context(), website.ID, time.Now())
	if err != nil {
		h.logger.Error("Failed to build live snapshot", slog.Any("error", err))
		return internalError(c)
	}
	return c.JSON(snapshot)
}

// LiveWebsocket upgrades the connection and streams snapshots until the
// client disconnects. The website must exist before the upgrade.
func (h *Handler) LiveWebsocket(c *fiber.Ctx) error {
	website, errResp := h.lookupWebsite(c)
	if website == nil {
		return errResp
	}
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	websiteID := website.ID
	return websocket.New(func(conn *websocket.Conn) {
		defer conn.Close()
		h.live.Push(conn, websiteID)
	})(c)
}
