package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/infoboard/internal/observability"
)

// Refresher repopulates cache tables by running the pipelines that own them.
// Implemented by the board composer.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Warmer keeps tables warm by calling a Refresher on a schedule, so a display
// polling the board is served from cache. This runs beside the pipeline; the
// normalizers themselves never start background work.
type Warmer struct {
	refresher Refresher
	logger    *zap.Logger
	timeout   time.Duration
	scheduler *gocron.Scheduler
}

// NewWarmer creates a Warmer. timeout bounds each run.
func NewWarmer(refresher Refresher, logger *zap.Logger, timeout time.Duration) *Warmer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Warmer{
		refresher: refresher,
		logger:    observability.OrNop(logger),
		timeout:   timeout,
	}
}

// Warm runs one refresh and records metrics.
func (w *Warmer) Warm(ctx context.Context) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	w.logger.Debug("warming cache")

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	err := w.refresher.Refresh(ctx)

	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if err != nil {
		observability.CacheWarmingErrorsTotal.Inc()
		w.logger.Warn("cache warming failed", zap.Error(err), zap.Float64("duration_seconds", duration))
		return fmt.Errorf("cache warming: %w", err)
	}
	w.logger.Debug("cache warming complete", zap.Float64("duration_seconds", duration))
	return nil
}

// Start runs Warm immediately and then every interval until Stop.
// Overlapping runs are skipped.
func (w *Warmer) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("warm interval must be positive, got %s", interval)
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	if _, err := s.Every(interval).Do(func() {
		_ = w.Warm(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule cache warming: %w", err)
	}
	w.scheduler = s
	s.StartAsync()
	w.logger.Info("cache warming scheduled", zap.Duration("interval", interval))
	return nil
}

// Stop stops the schedule. Safe to call when Start was never called.
func (w *Warmer) Stop() {
	if w.scheduler != nil {
		w.scheduler.Stop()
	}
}
