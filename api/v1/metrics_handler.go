package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"pagesense/internal/events"
	"pagesense/internal/reconstruct"
	"pagesense/internal/websites"
)

// GetDayMetrics returns the counted totals for one tenant-local day:
// additive rollups, visitor reconciliation totals and the session-time
// reconstruction summary. It reads aggregates only, never raw events.
func (h *Handler) GetDayMetrics(c *fiber.Ctx) error {
	website, errResp := h.lookupWebsite(c)
	if website == nil {
		return errResp
	}

	cfg, err := websites.GetConfig(h.db, website.ID)
	if err != nil {
		h.logger.Error("Failed to load website config", slog.Any("error", err))
		return internalError(c)
	}

	day := c.Query("date", website.LocalDay(time.Now()))
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid date, expected YYYY-MM-DD",
			"code":  "INVALID_DATE",
		})
	}

	mode := c.Query("mode", reconstruct.ModeGeneral)
	if mode != reconstruct.ModeGeneral && mode != reconstruct.ModeStrict {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid mode",
			"code":  "INVALID_MODE",
		})
	}

	dayStart, err := time.ParseInLocation("2006-01-02", day, website.Location())
	if err != nil {
		return internalError(c)
	}
	dayEnd := dayStart.AddDate(0, 0, 1)

	rollups, err := events.SumRollupRange(h.db, website.ID, dayStart, dayEnd)
	if err != nil {
		h.logger.Error("Failed to sum rollups", slog.Any("error", err))
		return internalError(c)
	}

	visitors, err := events.SumDailyVisitors(h.db, website.ID, day, cfg.SoftMode)
	if err != nil {
		h.logger.Error("Failed to sum daily visitors", slog.Any("error", err))
		return internalError(c)
	}

	summary, err := h.summarizer.Summarize(website, cfg, day, mode)
	if err != nil {
		h.logger.Error("Failed to reconstruct day", slog.Any("error", err))
		return internalError(c)
	}

	return c.JSON(fiber.Map{
		"day":      day,
		"mode":     mode,
		"rollups":  rollups,
		"visitors": visitors,
		"sessionTime": fiber.Map{
			"visitors":             summary.Visitors,
			"sessions":             summary.Sessions,
			"observedSeconds":      summary.ObservedSeconds,
			"estimatedSeconds":     summary.EstimatedSeconds,
			"avgSecondsPerVisitor": summary.AvgSecondsPerVisitor,
		},
	})
}

// lookupWebsite resolves the :id route param. On failure the returned
// error value is the already-written fiber response.
func (h *Handler) lookupWebsite(c *fiber.Ctx) (*websites.Website, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid website id",
			"code":  "INVALID_WEBSITE_ID",
		})
	}

	website, err := websites.GetWebsiteByID(h.db, uint(id))
	if err != nil {
		var notFound *websites.WebsiteNotFoundError
		if errors.As(err, &notFound) {
			return nil, c.Status(http.StatusNotFound).JSON(fiber.Map{
				"error": "Website not found",
				"code":  "WEBSITE_NOT_FOUND",
			})
		}
		h.logger.Error("Failed to load website", slog.Any("error", err))
		return nil, internalError(c)
	}
	return website, nil
}

func internalError(c *fiber.Ctx) error {
	return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal error",
		"code":  "INTERNAL_ERROR",
	})
}
