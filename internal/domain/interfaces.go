package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// AttemptStore is the read side of the platform's attempt persistence.
// Implemented by infra/sqlite.Store and infra/postgres.Store.
type AttemptStore interface {
	// AttemptTotals counts a user's attempts and correct attempts matching f.
	AttemptTotals(ctx context.Context, userID string, f AttemptFilter) (AttemptTotals, error)

	// RecentAttempts returns at most limit attempts matching f, newest first.
	RecentAttempts(ctx context.Context, userID string, f AttemptFilter, limit int) ([]Attempt, error)

	// FastestCorrect returns the shortest duration among timed correct attempts.
	FastestCorrect(ctx context.Context, userID string) (FastestTime, error)

	// ActivityDates returns the distinct UTC days with activity, newest first.
	ActivityDates(ctx context.Context, userID string) ([]time.Time, error)

	// ActiveExerciseTypes lists the exercise types currently active in the catalog.
	ActiveExerciseTypes(ctx context.Context) ([]string, error)

	// SucceededExerciseTypes lists the distinct types the user answered correctly.
	SucceededExerciseTypes(ctx context.Context, userID string) ([]string, error)

	// CorrectCountsByType maps exercise type to the user's correct attempt count.
	CorrectCountsByType(ctx context.Context, userID string) (map[string]int, error)
}

// BadgeSource supplies the badge definitions evaluated in a pass.
type BadgeSource interface {
	ListBadges(ctx context.Context) ([]Badge, error)
}

// ActivitySource lists users with attempts since a point in time.
type ActivitySource interface {
	ActiveUsersSince(ctx context.Context, since time.Time) ([]string, error)
}

// ErrorReporter receives every error the evaluation engine contains.
type ErrorReporter interface {
	Report(ctx context.Context, err *EvaluationError)
}

// Pinger is implemented by backends that can verify their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}
