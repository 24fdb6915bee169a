package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pagesense/internal/database"
	"pagesense/internal/pkg/async"
	"pagesense/internal/reconstruct"
	"pagesense/internal/websites"
)

const summaryWorkers = 4

// SummaryJob persists yesterday's reconstruction summaries for every website
// so closed days are served from the final row instead of recomputation.
type SummaryJob struct {
	dbManager  *database.DBManager
	logger     *slog.Logger
	summarizer *reconstruct.Summarizer
}

func NewSummaryJob(dbManager *database.DBManager, logger *slog.Logger, summarizer *reconstruct.Summarizer) *SummaryJob {
	return &SummaryJob{
		dbManager:  dbManager,
		logger:     logger,
		summarizer: summarizer,
	}
}

// Run walks all websites and materializes both accuracy modes for the
// tenant-local previous day.
func (j *SummaryJob) Run() error {
	db := j.dbManager.GetConnection()

	var sites []websites.Website
	if err := db.Find(&sites).Error; err != nil {
		j.logger.Error("Failed to list websites for summary job", slog.Any("error", err))
		return err
	}

	// One reconstruction per (website, mode); independent, so fan out.
	var tasks []async.Task
	for i := range sites {
		site := &sites[i]
		cfg, err := websites.GetConfig(db, site.ID)
		if err != nil {
			j.logger.Warn("Skipping website in summary job",
				slog.Uint64("website_id", uint64(site.ID)),
				slog.Any("error", err))
			continue
		}

		yesterday := site.LocalDay(time.Now().AddDate(0, 0, -1))
		for _, mode := range []string{reconstruct.ModeGeneral, reconstruct.ModeStrict} {
			mode := mode
			tasks = append(tasks, async.Task{
				Name: fmt.Sprintf("%d/%s/%s", site.ID, yesterday, mode),
				Execute: func() error {
					_, err := j.summarizer.Summarize(site, cfg, yesterday, mode)
					return err
				},
			})
		}
	}

	pool := async.NewPool(summaryWorkers)
	for name, result := range pool.Execute(context.Background(), tasks) {
		if result.Err != nil {
			j.logger.Warn("Failed to persist day summary",
				slog.String("task", name),
				slog.Any("error", result.Err))
		}
	}

	return nil
}
