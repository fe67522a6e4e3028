package domain

import "time"

// StatsCache holds aggregates precomputed once per evaluation pass and shared
// read-only by every badge evaluated in that pass. A nil pointer, nil slice or
// nil map means the aggregate is absent and must be queried directly.
type StatsCache struct {
	AttemptsCount     *int
	LogicCorrectCount *int
	AttemptsTotal     *int
	AttemptsCorrect   *int

	// ConsecutiveByType maps exercise type to its current correct streak.
	// The empty type holds the streak across all types.
	ConsecutiveByType map[string]int

	// StreakScanLimit is how many recent attempts each cached streak was
	// computed over. A streak equal to it may be longer in full history.
	// Zero means the streaks are exact.
	StreakScanLimit int

	// MinFastTime is the fastest correct attempt. Present with Valid=false
	// when the user has no timed correct attempt.
	MinFastTime *FastestTime

	// ActivityDates are distinct UTC days with at least one attempt, newest first.
	ActivityDates []time.Time

	PerfectDayToday *AttemptTotals

	ExerciseTypes     []string
	UserExerciseTypes []string
	PerTypeCorrect    map[string]int
}

// FastestTime is the shortest duration among a user's correct attempts.
type FastestTime struct {
	Duration time.Duration
	Valid    bool
}

// IntPtr returns a pointer to n, for building caches.
func IntPtr(n int) *int { return &n }
