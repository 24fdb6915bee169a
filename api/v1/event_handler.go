package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"pagesense/internal/events"
	"pagesense/internal/metrics"
	"pagesense/internal/ratelimit"
	"pagesense/internal/websites"
)

const (
	errInvalidRequest = "Invalid request"
	errInvalidOrigin  = "Invalid origin"
)

type CreateEventParams struct {
	WebsiteID uint             `json:"websiteId" form:"websiteId" validate:"required"`
	EventType events.EventType `json:"type" form:"type" validate:"required"`
	URL       string           `json:"url" form:"url" validate:"required,max=2048"`
	Referrer  string           `json:"referrer" form:"referrer" validate:"max=2048"`
	VisitorID string           `json:"visitorId" form:"visitorId" validate:"max=128"`
	Timestamp *time.Time       `json:"timestamp" form:"timestamp"`
	Language  string           `json:"language" form:"language" validate:"max=35"`
	Timezone  string           `json:"timezone" form:"timezone" validate:"max=64"`
	Screen    string           `json:"screen" form:"screen" validate:"max=16"`
	Country   string           `json:"country" form:"country" validate:"max=64"`
	EventName string           `json:"eventName" form:"eventName" validate:"max=128"`
	EventData string           `json:"eventData" form:"eventData" validate:"max=2048"`
	UserAgent string           `json:"userAgent" form:"userAgent" validate:"max=512"`
}

// CreateEvent ingests one beacon. Rate limiting runs before any parsing
// so abusive clients never reach the database.
func (h *Handler) CreateEvent(c *fiber.Ctx) error {
	clientIP := getClientIP(c)
	now := time.Now()

	if err := h.limiter.Check(c.Context(), clientIP, now); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimited) {
			metrics.EventsRejected.WithLabelValues("rate_limited").Inc()
			return c.Status(http.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests",
				"code":  "RATE_LIMITED",
			})
		}
		h.logger.Warn("Rate limiter unavailable, letting request through", slog.Any("error", err))
	}

	var params CreateEventParams
	if err := c.BodyParser(&params); err != nil {
		metrics.EventsRejected.WithLabelValues("malformed").Inc()
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": errInvalidRequest,
			"code":  "INVALID_REQUEST",
		})
	}
	if err := h.validate.Struct(&params); err != nil {
		metrics.EventsRejected.WithLabelValues("validation").Inc()
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": errInvalidRequest,
			"code":  "INVALID_REQUEST",
		})
	}
	if !params.EventType.Valid() {
		metrics.EventsRejected.WithLabelValues("unknown_type").Inc()
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown event type",
			"code":  "INVALID_EVENT_TYPE",
		})
	}

	website, err := websites.GetWebsiteByID(h.db, params.WebsiteID)
	if err != nil {
		var notFound *websites.WebsiteNotFoundError
		if errors.As(err, &notFound) {
			metrics.EventsRejected.WithLabelValues("unknown_website").Inc()
			return c.Status(http.StatusNotFound).JSON(fiber.Map{
				"error": "Website not found - please register your domain first",
				"code":  "WEBSITE_NOT_FOUND",
			})
		}
		h.logger.Error("Failed to load website", slog.Any("error", err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to collect event",
			"code":  "COLLECTION_ERROR",
		})
	}

	if err := validateOrigin(c, website); err != nil {
		metrics.EventsRejected.WithLabelValues("domain_mismatch").Inc()
		return c.Status(http.StatusForbidden).JSON(fiber.Map{
			"error": errInvalidOrigin,
			"code":  "INVALID_ORIGIN",
		})
	}

	cfg, err := websites.GetConfig(h.db, website.ID)
	if err != nil {
		h.logger.Error("Failed to load website config", slog.Any("error", err))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to collect event",
			"code":  "COLLECTION_ERROR",
		})
	}

	userAgent := params.UserAgent
	if userAgent == "" {
		userAgent = c.Get("User-Agent")
	}

	result, err := h.pipeline.Process(c.Context(), &events.ProcessInput{
		Website:         website,
		Config:          cfg,
		EventType:       params.EventType,
		RawURL:          params.URL,
		Referrer:        params.Referrer,
		ClientVisitorID: params.VisitorID,
		ClientTimestamp: params.Timestamp,
		EventName:       params.EventName,
		EventData:       params.EventData,
		IPAddress:       clientIP,
		UserAgent:       userAgent,
		Language:        params.Language,
		Timezone:        params.Timezone,
		Screen:          params.Screen,
		Country:         params.Country,
		Timestamp:       now,
	})
	if err != nil {
		h.logger.Error("Failed to process event", slog.Any("error", err))
		if strings.Contains(err.Error(), "database is locked") || strings.Contains(err.Error(), "busy") {
			return c.Status(599).JSON(fiber.Map{})
		}
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to collect event",
			"code":  "COLLECTION_ERROR",
		})
	}

	// Duplicates are acknowledged like anything else so the SDK never retries them.
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"ok":      true,
		"deduped": result.Deduped,
	})
}

// validateOrigin checks the browser-set Origin header (or Referer as a
// fallback) against the website's allow-list. Requests carrying neither
// header pass: beacons from some webviews omit both.
func validateOrigin(c *fiber.Ctx, website *websites.Website) error {
	origin := c.Get("Origin")
	if origin == "" {
		origin = c.Get("Referer")
	}
	if origin == "" {
		return nil
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Hostname() == "" {
		return errors.New("unparseable origin")
	}
	if !website.DomainAllowed(parsed.Hostname()) {
		return errors.New("origin not in allow-list")
	}
	return nil
}
