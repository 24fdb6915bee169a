package v1

import (
	"log/slog"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"pagesense/internal/events"
	"pagesense/internal/live"
	"pagesense/internal/ratelimit"
	"pagesense/internal/reconstruct"
)

// Handler carries the dependencies shared by all v1 endpoints.
type Handler struct {
	db         *gorm.DB
	logger     *slog.Logger
	pipeline   *events.Pipeline
	summarizer *reconstruct.Summarizer
	live       *live.Service
	limiter    *ratelimit.Limiter
	validate   *validator.Validate
}

func NewHandler(db *gorm.DB, logger *slog.Logger, pipeline *events.Pipeline, summarizer *reconstruct.Summarizer, liveSvc *live.Service, limiter *ratelimit.Limiter) *Handler {
	return &Handler{
		db:         db,
		logger:     logger,
		pipeline:   pipeline,
		summarizer: summarizer,
		live:       liveSvc,
		limiter:    limiter,
		validate:   validator.New(),
	}
}
