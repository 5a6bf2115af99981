// Package scheduler refreshes favorites and checks their alerts on a timer.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/smukkama/weather-dashboard/internal/dashboard"
	"github.com/smukkama/weather-dashboard/internal/settings"
	"github.com/smukkama/weather-dashboard/pkg/logging"
)

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = time.Minute

// Source is the part of the dashboard service a refresh job needs.
type Source interface {
	RefreshFavorites(ctx context.Context) (dashboard.RefreshResult, error)
	Settings() *settings.Manager
}

// Scheduler runs one refresh job per interval while autoRefresh is on.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	source     Source
	interval   time.Duration
	jobTimeout time.Duration
	logger     *zap.Logger
	onTrigger  func(dashboard.RefreshResult)
}

// New creates a scheduler. onTrigger, if set, is called after every run that
// triggered at least one alert.
func New(source Source, interval time.Duration, logger *zap.Logger, onTrigger func(dashboard.RefreshResult)) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:  s,
		source:     source,
		interval:   interval,
		jobTimeout: interval,
		logger:     logging.OrNop(logger),
		onTrigger:  onTrigger,
	}
}

// Start schedules the job, runs it once immediately, and returns.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.interval).Do(s.run); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.logger.Info("Auto-refresh scheduled", zap.Duration("interval", s.interval))
	return nil
}

// Stop cancels future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce performs a single refresh unless autoRefresh is off. It reports
// whether a refresh ran.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	if !s.source.Settings().GetAll(ctx).AutoRefresh {
		s.logger.Debug("Auto-refresh is off; skipping run")
		return false
	}

	result, err := s.source.RefreshFavorites(ctx)
	if err != nil {
		s.logger.Warn("Refresh failed", zap.Error(err))
		return true
	}

	s.logger.Info("Refreshed favorites",
		zap.Int("refreshed", result.Refreshed),
		zap.Int("failed", result.Failed),
		zap.Int("triggered", len(result.Triggered)))

	if len(result.Triggered) > 0 && s.onTrigger != nil {
		s.onTrigger(result)
	}
	return true
}
