// Package internal wires the application together.
package internal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	v1 "pagesense/api/v1"
	"pagesense/internal/config"
	"pagesense/internal/database"
	"pagesense/internal/events"
	"pagesense/internal/geo"
	"pagesense/internal/jobs"
	"pagesense/internal/live"
	"pagesense/internal/logging"
	"pagesense/internal/ratelimit"
	"pagesense/internal/reconstruct"
	"pagesense/internal/sessions"
	"pagesense/internal/store"
	"pagesense/internal/websites"
)

// Application holds every long-lived component of the service.
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	DBManager *database.DBManager
	Store     *store.Store
	Geo       *geo.Resolver
	Live      *live.Service
	Pipeline  *events.Pipeline
	Scheduler *jobs.Scheduler
	Fiber     *fiber.App
}

// NewApp builds the full dependency graph from the ambient configuration.
func NewApp() (*Application, error) {
	cfg := config.GetConfig()
	return NewAppWithConfig(cfg)
}

// NewAppWithConfig builds the dependency graph against an explicit config.
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := logging.NewLogger(cfg)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db := dbManager.GetConnection()

	if err := MigrateDatabase(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if !cfg.IsProduction() {
		if err := websites.SeedDevelopmentWebsite(db, logger); err != nil {
			return nil, fmt.Errorf("failed to seed development website: %w", err)
		}
	}

	st := store.New(cfg)
	geoResolver := geo.NewResolver(cfg.GeoDBPath, logger)
	liveSvc := live.NewService(st, logger, cfg.RecentEventsLimit)
	pipeline := events.NewPipeline(db, st, logger, cfg.PrivateKey, geoResolver, liveSvc)
	summarizer := reconstruct.NewSummarizer(db, logger)
	limiter := ratelimit.NewLimiter(st, cfg.RateLimitPerMinute)
	scheduler := jobs.NewScheduler(dbManager, logger, summarizer)

	app := &Application{
		Config:    cfg,
		Logger:    logger,
		DBManager: dbManager,
		Store:     st,
		Geo:       geoResolver,
		Live:      liveSvc,
		Pipeline:  pipeline,
		Scheduler: scheduler,
	}

	handler := v1.NewHandler(db, logger, pipeline, summarizer, liveSvc, limiter)
	app.Fiber = newFiberApp(cfg)
	MountRoutes(app.Fiber, app, handler)

	return app, nil
}

func newFiberApp(cfg *config.Config) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: cfg.IsProduction(),
		BodyLimit:             64 * 1024,
	})
}

// MigrateDatabase auto-migrates every persisted model. The model list lives
// here rather than in the database package so storage stays import-free of
// the domain packages.
func MigrateDatabase(db *gorm.DB) error {
	return db.AutoMigrate(
		&websites.Website{},
		&websites.Config{},
		&events.Event{},
		&sessions.Session{},
		&events.RollupMinute{},
		&events.DailyVisitor{},
		&events.DaySummary{},
	)
}

// Start begins serving traffic and kicks off the background jobs.
func (a *Application) Start() error {
	a.Scheduler.Start()
	a.Logger.Info("Starting server", slog.String("port", a.Config.AppPort))
	return a.Fiber.Listen(":" + a.Config.AppPort)
}

// Shutdown stops the server and background workers and closes the stores.
func (a *Application) Shutdown(ctx context.Context) error {
	a.Scheduler.Stop()

	err := a.Fiber.ShutdownWithContext(ctx)
	if cerr := a.Store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	a.Geo.Close()
	return err
}
