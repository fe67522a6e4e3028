package achievement

import (
	"fmt"

	"github.com/mathquest/mathquest/internal/domain"
)

// progressFunc computes completion for one kind. ok=false means progress is
// not applicable.
type progressFunc func(ec *evalContext, s domain.RequirementSchema) (p domain.Progress, ok bool, err error)

// progressGetters mirrors checkers.
var progressGetters = [domain.KindCount]progressFunc{
	domain.KindAttemptsCount:      progressAttemptsCount,
	domain.KindLogicAttemptsCount: progressLogicAttemptsCount,
	domain.KindMixte:              progressMixte,
	domain.KindSuccessRate:        progressSuccessRate,
	domain.KindConsecutive:        progressConsecutive,
	domain.KindMaxTime:            progressMaxTime,
	domain.KindConsecutiveDays:    progressConsecutiveDays,
	domain.KindPerfectDay:         progressPerfectDay,
	domain.KindAllTypes:           progressAllTypes,
	domain.KindMinPerType:         progressMinPerType,
	domain.KindComeback:           progressComeback,
}

func progressAttemptsCount(ec *evalContext, s domain.RequirementSchema) (domain.Progress, bool, error) {
	target, err := s.Target(domain.FieldAttemptsCount)
	if err != nil {
		return domain.Progress{}, false, err
	}
	n, err := ec.attemptsCount()
	if err != nil {
		return domain.Progress{}, false, fmt.Errorf("count attempts: %w", err)
	}
	return domain.NewProgress(n, target), true, nil
}

func progressLogicAttemptsCount(ec *evalContext, s domain.RequirementSchema) (domain.Progress, bool, error) {
	target, err := s.Target(domain.FieldLogicAttemptsCount)
	if err != nil {
		return domain.Progress{}, false, err
	}
	n, err := ec.logicCorrectCount()
	if err != nil {
		return domain.Progress{}, false, fmt.Errorf("count logic attempts: %w", err)
	}
	return domain.NewProgress(n, target), true, nil
}

// progressMixte reports whichever sub-goal lags.
func progressMixte(ec *evalContext, s domain.RequirementSchema) (domain.Progress, bool, error) {
	attempts, ok, err := progressAttemptsCount(ec, s)
	if err != nil || !ok {
		return domain.Progress{}, false, err
	}
	logic, ok, err := progressLogicAttemptsCount(ec, s)
	if err != nil || !ok {
		return domain.Progress{}, false, err
	}
	if logic.Fraction < attempts.Fraction {
		return logic, true, nil
	}
	return attempts, true, nil
}

// progressSuccessRate tracks volume toward min_attempts and reports 1 once
// both volume and rate are met.
func progressSuccessRate(ec *evalContext, s domain.RequirementSchema) (domain.Progress, bool, error) {
	rule, err := parseSuccessRate(s)
	if err != nil {
		return domain.Progress{}, false, err
	}
	t, err := ec.totals()
	if err != nil {
		return domain.Progress{}, false, fmt.Errorf("attempt totals: %w", err)
	}
	p := domain.NewProgress(t.Total, rule.minAttempts)
	if rule.met(t) {
		p.Fraction = 1
	}
	return p, true, nil
}

func progressConsecutive(ec *evalContext, s domain.RequirementSchema) (domain.Progress, bool, error) {
	exerciseType, target, err := consecutiveRule(s)
	if err != nil {
		return domain.Progress{}, false, err
	}
	streak, err := ec.correctStreak(exerciseType, target)
	if err != nil {
		return domain.Progress{}, false, fmt.Errorf("recent attempts: %w", err)
	}
	return domain.NewProgress(streak, target), true, nil
}

func progressMaxTime(ec *evalContext, s domain.RequirementSchema) (domain.Progress, bool, error) {
	limit, err := maxTime(s)
	if err != nil {
		return domain.Progress{}, false, err
	}
	ok, err := fastEnough(ec, limit)
	if err != nil {
		return domain.Progress{}, false, err
	}
	return domain.BinaryProgress(ok), true, nil
}

func progressConsecutiveDays(ec *evalContext, s domain.RequirementSchema) (domain.Progress, bool, error) {
	target, err := s.Target(domain.FieldConsecutiveDays)
	if err != nil {
		return domain.Progress{}, false, err
	}
	dates, err := ec.activityDates()
	if err != nil {
		return domain.Progress{}, false, fmt.Errorf("activity dates: %w", err)
	}
	return domain.NewProgress(DayStreak(dates, ec.today()), target), true, nil
}

func progressPerfectDay(ec *evalContext, _ domain.RequirementSchema) (domain.Progress, bool, error) {
	ok, err := perfectDay(ec)
	if err != nil {
		return domain.Progress{}, false, err
	}
	return domain.BinaryProgress(ok), true, nil
}

func progressAllTypes(ec *evalContext, _ domain.RequirementSchema) (domain.Progress, bool, error) {
	active, err := ec.activeTypes()
	if err != nil {
		return domain.Progress{}, false, fmt.Errorf("active exercise types: %w", err)
	}
	if len(active) == 0 {
		return domain.Progress{}, false, nil
	}
	succeeded, err := ec.succeededTypes()
	if err != nil {
		return domain.Progress{}, false, fmt.Errorf("succeeded exercise types: %w", err)
	}
	return domain.NewProgress(coveredTypes(active, succeeded), len(active)), true, nil
}

func progressMinPerType(ec *evalContext, s domain.RequirementSchema) (domain.Progress, bool, error) {
	threshold, err := minPerTypeThreshold(s)
	if err != nil {
		return domain.Progress{}, false, err
	}
	active, err := ec.activeTypes()
	if err != nil {
		return domain.Progress{}, false, fmt.Errorf("active exercise types: %w", err)
	}
	if len(active) == 0 {
		return domain.Progress{}, false, nil
	}
	counts, err := ec.perTypeCorrect()
	if err != nil {
		return domain.Progress{}, false, fmt.Errorf("correct counts by type: %w", err)
	}
	return domain.NewProgress(typesAtThreshold(active, counts, threshold), len(active)), true, nil
}

// Comeback badges are a surprise and expose no progress.
func progressComeback(*evalContext, domain.RequirementSchema) (domain.Progress, bool, error) {
	return domain.Progress{}, false, nil
}
