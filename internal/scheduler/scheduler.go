package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Maintainer is the set of periodic maintenance operations the scheduler drives.
type Maintainer interface {
	RefreshCatalog(ctx context.Context) error
	Prune(ctx context.Context, maxAge time.Duration) (int, error)
}

// Config controls job cadence.
type Config struct {
	CatalogInterval time.Duration
	PruneInterval   time.Duration
	MaxAge          time.Duration // 0 disables pruning
	JobTimeout      time.Duration
}

// Scheduler periodically refreshes the reference catalog and prunes expired records.
type Scheduler struct {
	scheduler *gocron.Scheduler
	target    Maintainer
	cfg       Config
	log       *zap.Logger
}

// New creates a new Scheduler.
func New(cfg Config, target Maintainer, log *zap.Logger) *Scheduler {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		target:    target,
		cfg:       cfg,
		log:       log.With(zap.String("component", "scheduler")),
	}
}

// Start schedules the periodic jobs and starts the underlying scheduler.
// Both jobs run once immediately.
func (s *Scheduler) Start() error {
	if s.cfg.CatalogInterval > 0 {
		if _, err := s.scheduler.Every(s.cfg.CatalogInterval).SingletonMode().Do(s.refreshCatalog); err != nil {
			return err
		}
	} else {
		s.log.Info("catalog refresh disabled")
	}

	if s.cfg.MaxAge > 0 && s.cfg.PruneInterval > 0 {
		if _, err := s.scheduler.Every(s.cfg.PruneInterval).SingletonMode().Do(s.prune); err != nil {
			return err
		}
	} else {
		s.log.Info("retention pruning disabled")
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) refreshCatalog() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	if err := s.target.RefreshCatalog(ctx); err != nil {
		s.log.Warn("catalog refresh failed", zap.Error(err))
		return
	}
	s.log.Debug("catalog refresh completed")
}

func (s *Scheduler) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	n, err := s.target.Prune(ctx, s.cfg.MaxAge)
	if err != nil {
		s.log.Warn("retention prune failed", zap.Error(err))
		return
	}
	s.log.Debug("retention prune completed", zap.Int("removed", n))
}
