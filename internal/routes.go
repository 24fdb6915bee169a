package internal

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	v1 "pagesense/api/v1"
	"pagesense/internal/metrics"
)

// publicCORSConfig is shared by every public endpoint. Ingestion is
// cross-origin by nature, so every origin is allowed; validating through
// AllowOriginsFunc makes the middleware echo the caller's origin instead of
// answering with a wildcard.
var publicCORSConfig = cors.Config{
	AllowOriginsFunc: func(string) bool { return true },
	AllowMethods:     "POST,GET,OPTIONS",
	AllowHeaders:     "Origin, Content-Type, Accept, Referrer, User-Agent",
}

// MountRoutes attaches the full HTTP surface.
func MountRoutes(app *fiber.App, a *Application, handler *v1.Handler) {
	app.Use(recover.New())
	app.Use(cors.New(publicCORSConfig))

	app.Get("/healthz", healthHandler(a))
	app.Get("/metrics", adaptor(metrics.Handler()))

	api := app.Group("/api/v1")
	api.Post("/events", handler.CreateEvent)
	// CORS preflights never reach this handler; it answers probes that carry
	// no Origin header, which the middleware passes through.
	api.Options("/events", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	sites := api.Group("/websites/:id")
	sites.Get("/metrics/day", handler.GetDayMetrics)
	sites.Get("/live", handler.GetLive)
	sites.Get("/live/ws", handler.LiveWebsocket)
	sites.Get("/config", handler.GetWebsiteConfig)
	sites.Post("/calibrate", handler.Calibrate)
}

// healthHandler pings both stores; either failing marks the instance down.
func healthHandler(a *Application) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sqlDB, err := a.DBManager.GetConnection().DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "down", "component": "database",
			})
		}

		pingCtx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		if err := a.Store.Ping(pingCtx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "down", "component": "store",
			})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

func adaptor(h http.Handler) fiber.Handler {
	fasthttpHandler := fasthttpadaptor.NewFastHTTPHandler(h)
	return func(c *fiber.Ctx) error {
		fasthttpHandler(c.Context())
		return nil
	}
}
