package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"pagesense/internal/database"
	"pagesense/internal/reconstruct"
	"pagesense/internal/websites"
)

// GetWebsiteConfig returns the effective (clamped, defaulted) tunables.
func (h *Handler) GetWebsiteConfig(c *fiber.Ctx) error {
	website, errResp := h.lookupWebsite(c)
	if website == nil {
		return errResp
	}

	cfg, err := websites.GetConfig(h.db, website.ID)
	if err != nil {
		h.logger.Error("Failed to load website config", slog.Any("error", err))
		return internalError(c)
	}
	return c.JSON(cfg)
}

type calibrateParams struct {
	Date      string                    `json:"date" validate:"required"`
	Reference websites.ReferenceMetrics `json:"reference" validate:"required"`
}

// Calibrate nudges the website tunables toward an external reference
// measurement of one closed day, using this system's own reconstruction
// of that day as the measured side.
func (h *Handler) Calibrate(c *fiber.Ctx) error {
	website, errResp := h.lookupWebsite(c)
	if website == nil {
		return errResp
	}

	var params calibrateParams
	if err := c.BodyParser(&params); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": errInvalidRequest,
			"code":  "INVALID_REQUEST",
		})
	}
	if err := h.validate.Struct(&params); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": errInvalidRequest,
			"code":  "INVALID_REQUEST",
		})
	}
	if _, err := time.Parse("2006-01-02", params.Date); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid date, expected YYYY-MM-DD",
			"code":  "INVALID_DATE",
		})
	}

	cfg, err := websites.GetConfig(h.db, website.ID)
	if err != nil {
		h.logger.Error("Failed to load website config", slog.Any("error", err))
		return internalError(c)
	}

	summary, err := h.summarizer.Summarize(website, cfg, params.Date, reconstruct.ModeGeneral)
	if err != nil {
		h.logger.Error("Failed to reconstruct calibration day", slog.Any("error", err))
		return internalError(c)
	}

	measured := websites.MeasuredMetrics{
		Visitors:         summary.Visitors,
		Sessions:         summary.Sessions,
		AvgSecondsOnSite: summary.AvgSecondsPerVisitor,
	}

	calibrated := websites.Calibrate(*cfg, params.Reference, measured)
	err = database.PerformWrite(h.logger, h.db, func(tx *gorm.DB) error {
		return websites.SaveConfig(tx, &calibrated)
	})
	if err != nil {
		h.logger.Error("Failed to save calibrated config", slog.Any("error", err))
		return internalError(c)
	}

	h.logger.Info("Calibrated website config",
		slog.Uint64("websiteID", uint64(website.ID)),
		slog.String("date", params.Date))
	return c.JSON(fiber.Map{
		"measured": measured,
		"config":   calibrated,
	})
}
