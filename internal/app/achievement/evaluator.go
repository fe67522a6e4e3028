package achievement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mathquest/mathquest/internal/domain"
	"github.com/mathquest/mathquest/internal/infra/metrics"
)

// LegacyChecker evaluates badges whose schemas the engine does not recognize.
type LegacyChecker interface {
	CheckLegacy(ctx context.Context, userID string, badge domain.Badge, event *domain.TriggeringEvent) (bool, error)
}

// Trigger names what started an evaluation pass.
type Trigger string

const (
	TriggerEvent Trigger = "event"
	TriggerSweep Trigger = "sweep"
	TriggerAPI   Trigger = "api"
)

// Evaluator runs one evaluation pass over every badge definition for a user.
type Evaluator struct {
	engine *Engine
	badges domain.BadgeSource
	legacy LegacyChecker
	logger *zap.Logger
}

// NewEvaluator creates an evaluator over the given badge source.
func NewEvaluator(engine *Engine, badges domain.BadgeSource, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{engine: engine, badges: badges, logger: logger}
}

// WithLegacy routes unrecognized schemas to l.
func (ev *Evaluator) WithLegacy(l LegacyChecker) *Evaluator {
	ev.legacy = l
	return ev
}

// EvaluateUser builds the stats cache once and evaluates every badge with it.
// Only a failure to list badges is returned; per-badge faults are contained.
func (ev *Evaluator) EvaluateUser(ctx context.Context, userID string, event *domain.TriggeringEvent, trigger Trigger) (*domain.PassResult, error) {
	start := time.Now()
	badges, err := ev.badges.ListBadges(ctx)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}

	cache, misses := ev.engine.BuildStats(ctx, userID)
	res := &domain.PassResult{
		PassID:      uuid.NewString(),
		UserID:      userID,
		StartedAt:   start.UTC(),
		Badges:      make([]domain.BadgeResult, 0, len(badges)),
		CacheMisses: misses,
	}

	for _, b := range badges {
		res.Badges = append(res.Badges, ev.evaluateBadge(ctx, userID, b, event, cache))
	}

	res.Duration = time.Since(start)
	passed := len(res.Passed())
	metrics.PassesCompleted.WithLabelValues(string(trigger)).Inc()
	metrics.PassLatency.Observe(res.Duration.Seconds())
	metrics.BadgesPassed.Add(float64(passed))

	ev.logger.Debug("evaluation pass complete",
		zap.String("pass_id", res.PassID),
		zap.String("user_id", userID),
		zap.String("trigger", string(trigger)),
		zap.Int("badges", len(badges)),
		zap.Int("passed", passed),
		zap.Int("cache_misses", misses),
		zap.Duration("took", res.Duration),
	)
	return res, nil
}

func (ev *Evaluator) evaluateBadge(ctx context.Context, userID string, b domain.Badge, event *domain.TriggeringEvent, cache *domain.StatsCache) domain.BadgeResult {
	br := domain.BadgeResult{
		BadgeID: b.ID,
		Kind:    DetectKind(b.Requirements),
		Result:  ev.engine.CheckRequirements(ctx, userID, b.Requirements, event, cache),
	}

	if !br.Result.Handled() {
		if ev.legacy != nil {
			br.Legacy = true
			br.Result = ev.checkLegacy(ctx, userID, b, event)
		}
		return br
	}

	if p, ok := ev.engine.RequirementProgress(ctx, userID, b.Requirements, cache); ok {
		br.Progress = &p
	}
	return br
}

func (ev *Evaluator) checkLegacy(ctx context.Context, userID string, b domain.Badge, event *domain.TriggeringEvent) (result domain.CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			ev.logger.Error("legacy badge check panicked",
				zap.String("badge_id", b.ID), zap.String("user_id", userID), zap.Any("panic", r))
			result = domain.CheckFailed
		}
	}()

	passed, err := ev.legacy.CheckLegacy(ctx, userID, b, event)
	if err != nil {
		ev.logger.Warn("legacy badge check failed",
			zap.String("badge_id", b.ID), zap.String("user_id", userID), zap.Error(err))
		return domain.CheckFailed
	}
	return domain.ResultOf(passed)
}
