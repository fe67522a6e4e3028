package achievement

import (
	"context"
	"time"

	"github.com/mathquest/mathquest/internal/domain"
	"github.com/mathquest/mathquest/internal/infra/metrics"
)

// DefaultStreakScanLimit bounds how many recent attempts per exercise type
// are read when precomputing streaks.
const DefaultStreakScanLimit = 200

// BuildStats precomputes the aggregates shared by every badge in a pass. A
// failing aggregate is reported and left absent so the engine queries it
// directly later. The second result is the number of absent aggregates.
func (e *Engine) BuildStats(ctx context.Context, userID string) (*domain.StatsCache, int) {
	start := time.Now()
	defer func() { metrics.StatsBuildLatency.Observe(time.Since(start).Seconds()) }()

	c := &domain.StatsCache{}
	failed := 0
	fail := func(aggregate string, err error) {
		failed++
		metrics.StatsAggregateFailures.WithLabelValues(aggregate).Inc()
		e.reporter.Report(ctx, &domain.EvaluationError{
			Op:        domain.OpStats,
			Aggregate: aggregate,
			UserID:    userID,
			Err:       err,
		})
	}

	if t, err := e.store.AttemptTotals(ctx, userID, domain.AttemptFilter{}); err != nil {
		fail("attempts_total", err)
	} else {
		c.AttemptsCount = domain.IntPtr(t.Total)
		c.AttemptsTotal = domain.IntPtr(t.Total)
		c.AttemptsCorrect = domain.IntPtr(t.Correct)
	}

	if t, err := e.store.AttemptTotals(ctx, userID, domain.AttemptFilter{ExerciseType: domain.ExerciseTypeLogic}); err != nil {
		fail("logic_correct_count", err)
	} else {
		c.LogicCorrectCount = domain.IntPtr(t.Correct)
	}

	types, err := e.store.ActiveExerciseTypes(ctx)
	if err != nil {
		fail("exercise_types", err)
	} else {
		c.ExerciseTypes = nonNil(types)
	}

	c.ConsecutiveByType = make(map[string]int, len(types)+1)
	c.StreakScanLimit = e.scanLimit
	for _, t := range append([]string{""}, types...) {
		attempts, err := e.store.RecentAttempts(ctx, userID, domain.AttemptFilter{ExerciseType: t}, e.scanLimit)
		if err != nil {
			fail("consecutive_by_type", err)
			continue
		}
		c.ConsecutiveByType[t] = CorrectStreak(attempts)
	}

	if fastest, err := e.store.FastestCorrect(ctx, userID); err != nil {
		fail("min_fast_time", err)
	} else {
		c.MinFastTime = &fastest
	}

	if dates, err := e.store.ActivityDates(ctx, userID); err != nil {
		fail("activity_dates", err)
	} else {
		c.ActivityDates = nonNil(dates)
	}

	today := domain.Day(e.now())
	if t, err := e.store.AttemptTotals(ctx, userID, domain.AttemptFilter{Since: today, Until: today.AddDate(0, 0, 1)}); err != nil {
		fail("perfect_day_today", err)
	} else {
		c.PerfectDayToday = &t
	}

	if succeeded, err := e.store.SucceededExerciseTypes(ctx, userID); err != nil {
		fail("user_exercise_types", err)
	} else {
		c.UserExerciseTypes = nonNil(succeeded)
	}

	if counts, err := e.store.CorrectCountsByType(ctx, userID); err != nil {
		fail("per_type_correct", err)
	} else {
		if counts == nil {
			counts = map[string]int{}
		}
		c.PerTypeCorrect = counts
	}

	return c, failed
}

// nonNil keeps an empty result distinguishable from an absent aggregate.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
