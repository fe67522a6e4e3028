// Package sweep periodically re-evaluates recently active users so that
// day-based requirements are refreshed without a new attempt.
package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/mathquest/mathquest/internal/app/achievement"
	"github.com/mathquest/mathquest/internal/domain"
)

// PassRunner runs an evaluation pass for one user.
type PassRunner interface {
	EvaluateUser(ctx context.Context, userID string, event *domain.TriggeringEvent, trigger achievement.Trigger) (*domain.PassResult, error)
}

// Config controls how often the sweep runs and how far back it looks.
type Config struct {
	Interval time.Duration
	Lookback time.Duration
}

// DefaultConfig returns an hourly sweep over the last two days of activity.
func DefaultConfig() Config {
	return Config{
		Interval: time.Hour,
		Lookback: 48 * time.Hour,
	}
}

// Sweeper schedules evaluation passes for recently active users.
type Sweeper struct {
	scheduler *gocron.Scheduler
	source    domain.ActivitySource
	runner    PassRunner
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a sweeper. Call Start to schedule it.
func New(source domain.ActivitySource, runner PassRunner, cfg Config, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = def.Lookback
	}
	return &Sweeper{
		scheduler: gocron.NewScheduler(time.UTC),
		source:    source,
		runner:    runner,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Start schedules the sweep every Interval. The first run happens one
// interval after Start. Passes started by the schedule use ctx.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("sweep already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	_, err := s.scheduler.Every(s.cfg.Interval).SingletonMode().WaitForSchedule().Do(s.tick)
	if err != nil {
		s.cancel()
		s.cancel = nil
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.scheduler.StartAsync()
	s.logger.Info("sweep scheduled",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("lookback", s.cfg.Lookback))
	return nil
}

// Stop cancels in-flight passes and terminates the schedule.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.scheduler.Stop()
}

func (s *Sweeper) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Warn("sweep failed", zap.Error(err))
	}
}

// RunOnce evaluates every user active within Lookback and returns how many
// passes completed. A failing pass is logged and does not stop the sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	since := s.now().UTC().Add(-s.cfg.Lookback)
	users, err := s.source.ActiveUsersSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("list active users: %w", err)
	}

	done := 0
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		res, err := s.runner.EvaluateUser(ctx, userID, nil, achievement.TriggerSweep)
		if err != nil {
			s.logger.Warn("sweep pass failed", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		done++
		s.logger.Debug("sweep pass complete",
			zap.String("user_id", userID),
			zap.String("pass_id", res.PassID),
			zap.Int("passed", len(res.Passed())))
	}

	s.logger.Info("sweep complete", zap.Int("users", len(users)), zap.Int("passes", done))
	return done, nil
}
