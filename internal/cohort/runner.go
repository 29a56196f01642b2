package cohort

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chainsocial/scoring-service/internal/config"
	"github.com/chainsocial/scoring-service/internal/pkg/distlock"
	"github.com/chainsocial/scoring-service/internal/pkg/logger"
)

// Runner schedules analysis passes. A Redis lock keeps the pass
// single-instance across replicas; losing the lock race just skips the
// tick, the winner publishes for everyone.
type Runner struct {
	analyzer  *Analyzer
	publisher *Publisher
	redis     *redis.Client
	cfg       config.AnalysisConfig
}

// NewRunner creates a Runner.
func NewRunner(analyzer *Analyzer, publisher *Publisher, rc *redis.Client, cfg config.AnalysisConfig) *Runner {
	return &Runner{analyzer: analyzer, publisher: publisher, redis: rc, cfg: cfg}
}

// Run blocks until the context is canceled, running one analysis per
// interval.
func (r *Runner) Run(ctx context.Context) {
	logger.Info("cohort: scheduler starting", "interval", r.cfg.Interval)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Error("cohort: scheduled analysis failed", "error", err)
			}
		case <-ctx.Done():
			logger.Info("cohort: scheduler stopped")
			return
		}
	}
}

// RunOnce performs a single locked analysis pass and publishes the result.
// Returns (nil, nil) when another instance holds the lock.
func (r *Runner) RunOnce(ctx context.Context) (*AnalysisResult, error) {
	lock := distlock.NewRedisLock(r.redis, "daily-analysis", r.cfg.LockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !acquired {
		logger.Info("cohort: analysis already running elsewhere, skipping")
		return nil, nil
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			logger.Warn("cohort: failed to release analysis lock", "error", err)
		}
	}()

	result, err := r.analyzer.Run(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.publisher.Publish(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}
