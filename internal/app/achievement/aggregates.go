package achievement

import (
	"context"
	"time"

	"github.com/mathquest/mathquest/internal/domain"
)

// evalContext carries the inputs of one requirement evaluation. Aggregate
// accessors consult the stats cache first and fall back to the store.
type evalContext struct {
	ctx       context.Context
	store     domain.AttemptStore
	userID    string
	event     *domain.TriggeringEvent
	cache     *domain.StatsCache
	now       time.Time
	overfetch int
}

func (ec *evalContext) today() time.Time {
	return domain.Day(ec.now)
}

func (ec *evalContext) attemptsCount() (int, error) {
	if ec.cache != nil && ec.cache.AttemptsCount != nil {
		return *ec.cache.AttemptsCount, nil
	}
	t, err := ec.store.AttemptTotals(ec.ctx, ec.userID, domain.AttemptFilter{})
	return t.Total, err
}

func (ec *evalContext) logicCorrectCount() (int, error) {
	if ec.cache != nil && ec.cache.LogicCorrectCount != nil {
		return *ec.cache.LogicCorrectCount, nil
	}
	t, err := ec.store.AttemptTotals(ec.ctx, ec.userID, domain.AttemptFilter{
		ExerciseType: domain.ExerciseTypeLogic,
	})
	return t.Correct, err
}

// totals returns the (total, correct) pair. Both cache keys must be present;
// mixing a cached total with a queried correct count could double count.
func (ec *evalContext) totals() (domain.AttemptTotals, error) {
	if ec.cache != nil && ec.cache.AttemptsTotal != nil && ec.cache.AttemptsCorrect != nil {
		return domain.AttemptTotals{
			Total:   *ec.cache.AttemptsTotal,
			Correct: *ec.cache.AttemptsCorrect,
		}, nil
	}
	return ec.store.AttemptTotals(ec.ctx, ec.userID, domain.AttemptFilter{})
}

// correctStreak returns the run of correct attempts ending at the newest one.
// Without a cache entry it scans overfetch*target recent attempts.
func (ec *evalContext) correctStreak(exerciseType string, target int) (int, error) {
	if ec.cache != nil && ec.cache.ConsecutiveByType != nil {
		if n, ok := ec.cache.ConsecutiveByType[exerciseType]; ok && cachedStreakUsable(n, target, ec.cache.StreakScanLimit) {
			return n, nil
		}
	}
	limit := target * ec.overfetch
	if limit < target {
		limit = target
	}
	attempts, err := ec.store.RecentAttempts(ec.ctx, ec.userID, domain.AttemptFilter{
		ExerciseType: exerciseType,
	}, limit)
	if err != nil {
		return 0, err
	}
	return CorrectStreak(attempts), nil
}

// cachedStreakUsable reports whether a cached streak answers a target the
// same way a direct scan would. A streak cut short by the scan limit is only
// trusted once it already reaches the target.
func cachedStreakUsable(n, target, scanLimit int) bool {
	return scanLimit <= 0 || n < scanLimit || n >= target
}

func (ec *evalContext) fastestCorrect() (domain.FastestTime, error) {
	if ec.cache != nil && ec.cache.MinFastTime != nil {
		return *ec.cache.MinFastTime, nil
	}
	return ec.store.FastestCorrect(ec.ctx, ec.userID)
}

func (ec *evalContext) activityDates() ([]time.Time, error) {
	if ec.cache != nil && ec.cache.ActivityDates != nil {
		return ec.cache.ActivityDates, nil
	}
	return ec.store.ActivityDates(ec.ctx, ec.userID)
}

func (ec *evalContext) todayTotals() (domain.AttemptTotals, error) {
	if ec.cache != nil && ec.cache.PerfectDayToday != nil {
		return *ec.cache.PerfectDayToday, nil
	}
	today := ec.today()
	return ec.store.AttemptTotals(ec.ctx, ec.userID, domain.AttemptFilter{
		Since: today,
		Until: today.AddDate(0, 0, 1),
	})
}

func (ec *evalContext) activeTypes() ([]string, error) {
	if ec.cache != nil && ec.cache.ExerciseTypes != nil {
		return ec.cache.ExerciseTypes, nil
	}
	return ec.store.ActiveExerciseTypes(ec.ctx)
}

func (ec *evalContext) succeededTypes() ([]string, error) {
	if ec.cache != nil && ec.cache.UserExerciseTypes != nil {
		return ec.cache.UserExerciseTypes, nil
	}
	return ec.store.SucceededExerciseTypes(ec.ctx, ec.userID)
}

func (ec *evalContext) perTypeCorrect() (map[string]int, error) {
	if ec.cache != nil && ec.cache.PerTypeCorrect != nil {
		return ec.cache.PerTypeCorrect, nil
	}
	return ec.store.CorrectCountsByType(ec.ctx, ec.userID)
}

// previousAttempt returns the newest attempt strictly before the event.
func (ec *evalContext) previousAttempt() (domain.Attempt, bool, error) {
	attempts, err := ec.store.RecentAttempts(ec.ctx, ec.userID, domain.AttemptFilter{
		Until:     ec.event.At,
		ExcludeID: ec.event.AttemptID,
	}, 1)
	if err != nil || len(attempts) == 0 {
		return domain.Attempt{}, false, err
	}
	return attempts[0], true, nil
}
