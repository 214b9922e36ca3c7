package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"slackhooks/core/log"
)

const defaultJobTimeout = time.Minute

// Task is a unit of scheduled work
type Task func(ctx context.Context) error

// TaskWrapper decorates every registered task, e.g. with error alerting
type TaskWrapper func(name string, task func(ctx context.Context) error) func(ctx context.Context) error

// Scheduler runs background maintenance on cron schedules
type Scheduler struct {
	engine   *cron.Cron
	wrap     TaskWrapper
	timeout  time.Duration
	jobCount int
}

type Option func(*Scheduler)

func WithTaskWrapper(wrap TaskWrapper) Option {
	return func(s *Scheduler) {
		s.wrap = wrap
	}
}

func WithJobTimeout(timeout time.Duration) Option {
	return func(s *Scheduler) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		engine:  cron.New(),
		timeout: defaultJobTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds task under a standard cron spec or descriptor such as "@every 5m"
func (s *Scheduler) Register(name, spec string, task Task) error {
	run := func(ctx context.Context) error { return task(ctx) }
	if s.wrap != nil {
		run = s.wrap(name, run)
	}

	_, err := s.engine.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := run(ctx); err != nil {
			log.Error("❌ Scheduled job %s failed: %v", name, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register job %s with schedule %q: %w", name, spec, err)
	}
	s.jobCount++
	return nil
}

func (s *Scheduler) Start() {
	log.Info("📋 Scheduler is running %d job(s)", s.jobCount)
	s.engine.Start()
}

// Stop halts scheduling and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.engine.Stop()
	select {
	case <-done.Done():
		log.Info("📋 Scheduler stopped")
	case <-ctx.Done():
		log.Warn("⚠️ Scheduler stop timed out with jobs still running")
	}
}

// StateCleaner is the part of the OAuth state manager the cleanup job needs
type StateCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// CleanupExpiredStates removes OAuth states that were issued but never redeemed
func CleanupExpiredStates(cleaner StateCleaner) Task {
	return func(ctx context.Context) error {
		removed, err := cleaner.CleanupExpired(ctx)
		if err != nil {
			return err
		}
		if removed > 0 {
			log.Ctx(ctx).Info().Int64("removed", removed).Msg("🧹 Removed expired OAuth states")
		}
		return nil
	}
}
