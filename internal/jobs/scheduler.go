package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pagesense/internal/config"
	"pagesense/internal/database"
	"pagesense/internal/reconstruct"
)

// Scheduler is responsible for running background jobs
type Scheduler struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	cfg       *config.Config
	isRunning bool

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool

	// Job instances
	cleanupJob *CleanupJob
	summaryJob *SummaryJob

	// Tickers for each job type
	cleanupTicker *time.Ticker
	summaryTicker *time.Ticker
}

// NewScheduler creates the scheduler and its job instances.
func NewScheduler(dbManager *database.DBManager, logger *slog.Logger, summarizer *reconstruct.Summarizer) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := config.GetConfig()

	return &Scheduler{
		dbManager:  dbManager,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		cfg:        cfg,
		cleanupJob: NewCleanupJob(dbManager, logger, cfg),
		summaryJob: NewSummaryJob(dbManager, logger, summarizer),
	}
}

// Start launches the background loops.
func (s *Scheduler) Start() {
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.startCleanupJob()
	s.startSummaryJob()
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func() error) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}
		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(); err != nil {
		s.logger.Error("Background job failed",
			slog.String("job", jobName),
			slog.Any("error", err))
	}
}

func (s *Scheduler) startCleanupJob() {
	interval := 24 * time.Hour
	s.logger.Info("Starting cleanup job", slog.Duration("interval", interval))
	s.cleanupTicker = time.NewTicker(interval)

	go func() {
		s.executeJobSafely("cleanup", s.cleanupJob.Run)

		for {
			select {
			case <-s.cleanupTicker.C:
				s.executeJobSafely("cleanup", s.cleanupJob.Run)
			case <-s.ctx.Done():
				s.logger.Info("Cleanup job stopped")
				return
			}
		}
	}()
}

func (s *Scheduler) startSummaryJob() {
	interval := time.Duration(s.cfg.JobIntervalSeconds) * time.Second
	s.logger.Info("Starting summary job", slog.Duration("interval", interval))
	s.summaryTicker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-s.summaryTicker.C:
				s.executeJobSafely("summary", s.summaryJob.Run)
			case <-s.ctx.Done():
				s.logger.Info("Summary job stopped")
				return
			}
		}
	}()
}

// Stop halts all background jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")

	if s.cleanupTicker != nil {
		s.cleanupTicker.Stop()
	}
	if s.summaryTicker != nil {
		s.summaryTicker.Stop()
	}

	s.cancel()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}
