package scheduler

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/models"
)

// Service resumes partially indexed manuscripts on a cron schedule.
// Imports interrupted by shutdown or a backend outage pick up where they
// stopped without operator intervention.
type Service struct {
	manuscripts interfaces.ManuscriptService
	storage     interfaces.StorageManager
	config      *common.ProcessingConfig
	cron        *cron.Cron
	logger      arbor.ILogger
	mu          sync.Mutex
	isRunning   bool
}

// NewService creates a new scheduler service
func NewService(
	manuscripts interfaces.ManuscriptService,
	storage interfaces.StorageManager,
	config *common.ProcessingConfig,
	logger arbor.ILogger,
) *Service {
	return &Service{
		manuscripts: manuscripts,
		storage:     storage,
		config:      config,
		cron:        cron.New(cron.WithSeconds()),
		logger:      logger,
	}
}

// Start registers the resume pass and starts the cron loop. A no-op when
// background processing is disabled.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.logger.Info().Msg("Background processing disabled, scheduler not started")
		return nil
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, s.runResumePass); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", s.config.Schedule).
		Int("limit", s.config.Limit).
		Msg("Manuscript resume scheduler started")

	// Sweep once at startup so manuscripts interrupted by the previous
	// shutdown don't wait for the first cron tick.
	common.SafeGo(s.logger, "startupResumePass", s.runResumePass)

	return nil
}

// Stop halts the cron loop, waiting for an in-flight pass to finish
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Manuscript resume scheduler stopped")
}

// runResumePass finds partial manuscripts and finishes their embedding
// tails, bounded to the configured limit per pass. Overlapping passes are
// skipped rather than queued.
func (s *Service) runResumePass() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		s.logger.Debug().Msg("Resume pass already in flight, skipping")
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	partials, err := s.storage.ManuscriptStorage().ListByStatus(models.ManuscriptStatusPartial)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list partial manuscripts")
		return
	}
	if len(partials) == 0 {
		return
	}

	limit := s.config.Limit
	if limit <= 0 || limit > len(partials) {
		limit = len(partials)
	}

	s.logger.Info().
		Int("partial", len(partials)).
		Int("resuming", limit).
		Msg("Resuming partial manuscripts")

	ctx := context.Background()
	for _, m := range partials[:limit] {
		resumed, err := s.manuscripts.Resume(ctx, m.ID)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("manuscript_id", m.ID).
				Msg("Failed to resume manuscript, will retry next pass")
			continue
		}
		s.logger.Info().
			Str("manuscript_id", m.ID).
			Str("status", string(resumed.Status)).
			Int("indexed", resumed.IndexedChunks).
			Int("total", resumed.ChunkCount).
			Msg("Manuscript resume pass finished")
	}
}
