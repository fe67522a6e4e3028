package achievement

import (
	"fmt"
	"time"

	"github.com/mathquest/mathquest/internal/domain"
)

// checkFunc decides whether one kind of requirement is satisfied.
type checkFunc func(ec *evalContext, s domain.RequirementSchema) (bool, error)

// checkers is indexed by kind and never modified after initialization.
var checkers = [domain.KindCount]checkFunc{
	domain.KindAttemptsCount:      checkAttemptsCount,
	domain.KindLogicAttemptsCount: checkLogicAttemptsCount,
	domain.KindMixte:              checkMixte,
	domain.KindSuccessRate:        checkSuccessRate,
	domain.KindConsecutive:        checkConsecutive,
	domain.KindMaxTime:            checkMaxTime,
	domain.KindConsecutiveDays:    checkConsecutiveDays,
	domain.KindPerfectDay:         checkPerfectDay,
	domain.KindAllTypes:           checkAllTypes,
	domain.KindMinPerType:         checkMinPerType,
	domain.KindComeback:           checkComeback,
}

// ─── Volume ─────────────────────────────────────────────────────────────────

func checkAttemptsCount(ec *evalContext, s domain.RequirementSchema) (bool, error) {
	target, err := s.Target(domain.FieldAttemptsCount)
	if err != nil {
		return false, err
	}
	n, err := ec.attemptsCount()
	if err != nil {
		return false, fmt.Errorf("count attempts: %w", err)
	}
	return n >= target, nil
}

func checkLogicAttemptsCount(ec *evalContext, s domain.RequirementSchema) (bool, error) {
	target, err := s.Target(domain.FieldLogicAttemptsCount)
	if err != nil {
		return false, err
	}
	n, err := ec.logicCorrectCount()
	if err != nil {
		return false, fmt.Errorf("count logic attempts: %w", err)
	}
	return n >= target, nil
}

// checkMixte requires both thresholds independently.
func checkMixte(ec *evalContext, s domain.RequirementSchema) (bool, error) {
	ok, err := checkAttemptsCount(ec, s)
	if err != nil || !ok {
		return false, err
	}
	return checkLogicAttemptsCount(ec, s)
}

// ─── Accuracy ───────────────────────────────────────────────────────────────

type successRateRule struct {
	minAttempts int
	rate        float64
}

func parseSuccessRate(s domain.RequirementSchema) (successRateRule, error) {
	minAttempts, err := s.Target(domain.FieldMinAttempts)
	if err != nil {
		return successRateRule{}, err
	}
	rate, err := s.Float(domain.FieldSuccessRate)
	if err != nil {
		return successRateRule{}, err
	}
	if rate < 0 || rate > 100 {
		return successRateRule{}, fmt.Errorf("%s = %v: %w", domain.FieldSuccessRate, rate, domain.ErrInvalidThreshold)
	}
	return successRateRule{minAttempts: minAttempts, rate: rate}, nil
}

func (r successRateRule) met(t domain.AttemptTotals) bool {
	if t.Total == 0 || t.Total < r.minAttempts {
		return false
	}
	return float64(t.Correct)*100/float64(t.Total) >= r.rate
}

func checkSuccessRate(ec *evalContext, s domain.RequirementSchema) (bool, error) {
	rule, err := parseSuccessRate(s)
	if err != nil {
		return false, err
	}
	t, err := ec.totals()
	if err != nil {
		return false, fmt.Errorf("attempt totals: %w", err)
	}
	return rule.met(t), nil
}

// consecutiveRule reads the streak target and the optional exercise type.
// An absent type means the streak runs across every type.
func consecutiveRule(s domain.RequirementSchema) (string, int, error) {
	target, err := s.Target(domain.FieldConsecutiveCorrect)
	if err != nil {
		return "", 0, err
	}
	var exerciseType string
	if s.Has(domain.FieldExerciseType) {
		if exerciseType, err = s.String(domain.FieldExerciseType); err != nil {
			return "", 0, err
		}
	}
	return exerciseType, target, nil
}

func checkConsecutive(ec *evalContext, s domain.RequirementSchema) (bool, error) {
	exerciseType, target, err := consecutiveRule(s)
	if err != nil {
		return false, err
	}
	streak, err := ec.correctStreak(exerciseType, target)
	if err != nil {
		return false, fmt.Errorf("recent attempts: %w", err)
	}
	return streak >= target, nil
}

// ─── Speed ──────────────────────────────────────────────────────────────────

// maxTime reads the threshold in seconds.
func maxTime(s domain.RequirementSchema) (time.Duration, error) {
	seconds, err := s.Float(domain.FieldMaxTime)
	if err != nil {
		return 0, err
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("%s = %v: %w", domain.FieldMaxTime, seconds, domain.ErrInvalidThreshold)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func fastEnough(ec *evalContext, limit time.Duration) (bool, error) {
	fastest, err := ec.fastestCorrect()
	if err != nil {
		return false, fmt.Errorf("fastest correct attempt: %w", err)
	}
	return fastest.Valid && fastest.Duration <= limit, nil
}

// checkMaxTime accepts the triggering attempt without a query when it was
// correct and fast enough; otherwise any historical correct attempt counts.
func checkMaxTime(ec *evalContext, s domain.RequirementSchema) (bool, error) {
	limit, err := maxTime(s)
	if err != nil {
		return false, err
	}
	if ec.event.HasDuration() && ec.event.Correct && ec.event.Duration <= limit {
		return true, nil
	}
	return fastEnough(ec, limit)
}

// ─── Regularity ─────────────────────────────────────────────────────────────

func checkConsecutiveDays(ec *evalContext, s domain.RequirementSchema) (bool, error) {
	target, err := s.Target(domain.FieldConsecutiveDays)
	if err != nil {
		return false, err
	}
	dates, err := ec.activityDates()
	if err != nil {
		return false, fmt.Errorf("activity dates: %w", err)
	}
	return DayStreak(dates, ec.today()) >= target, nil
}

func perfectDay(ec *evalContext) (bool, error) {
	t, err := ec.todayTotals()
	if err != nil {
		return false, fmt.Errorf("today's attempts: %w", err)
	}
	return t.Total >= domain.PerfectDayMinAttempts && t.AllCorrect(), nil
}

func checkPerfectDay(ec *evalContext, _ domain.RequirementSchema) (bool, error) {
	return perfectDay(ec)
}

// checkComeback compares the triggering attempt with the one before it.
// Without event data the gap is unknown and the check fails closed.
func checkComeback(ec *evalContext, s domain.RequirementSchema) (bool, error) {
	days, err := s.Target(domain.FieldComebackDays)
	if err != nil {
		return false, err
	}
	if !ec.event.HasTimestamp() {
		return false, nil
	}
	prev, ok, err := ec.previousAttempt()
	if err != nil {
		return false, fmt.Errorf("previous attempt: %w", err)
	}
	if !ok {
		return false, nil
	}
	return GapDays(prev.CreatedAt, ec.event.At) >= days, nil
}

// ─── Coverage ───────────────────────────────────────────────────────────────

// checkAllTypes fails when the catalog has no active type.
func checkAllTypes(ec *evalContext, _ domain.RequirementSchema) (bool, error) {
	active, err := ec.activeTypes()
	if err != nil {
		return false, fmt.Errorf("active exercise types: %w", err)
	}
	if len(active) == 0 {
		return false, nil
	}
	succeeded, err := ec.succeededTypes()
	if err != nil {
		return false, fmt.Errorf("succeeded exercise types: %w", err)
	}
	return coveredTypes(active, succeeded) == len(active), nil
}

func minPerTypeThreshold(s domain.RequirementSchema) (int, error) {
	if s.Has(domain.FieldMinPerType) {
		return s.Target(domain.FieldMinPerType)
	}
	return s.Target(domain.FieldMinCount)
}

func checkMinPerType(ec *evalContext, s domain.RequirementSchema) (bool, error) {
	threshold, err := minPerTypeThreshold(s)
	if err != nil {
		return false, err
	}
	active, err := ec.activeTypes()
	if err != nil {
		return false, fmt.Errorf("active exercise types: %w", err)
	}
	if len(active) == 0 {
		return false, nil
	}
	counts, err := ec.perTypeCorrect()
	if err != nil {
		return false, fmt.Errorf("correct counts by type: %w", err)
	}
	for _, t := range active {
		if counts[t] < threshold {
			return false, nil
		}
	}
	return true, nil
}
