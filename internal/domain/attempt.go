package domain

import "time"

// ─── Attempts ───────────────────────────────────────────────────────────────

// Attempt is one recorded answer to an exercise.
type Attempt struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	ExerciseType string        `json:"exercise_type"`
	Correct      bool          `json:"correct"`
	Duration     time.Duration `json:"duration"`
	CreatedAt    time.Time     `json:"created_at"`
}

// AttemptFilter narrows attempt aggregates. Zero fields do not filter.
type AttemptFilter struct {
	ExerciseType string
	Since        time.Time // inclusive
	Until        time.Time // exclusive
	ExcludeID    string
}

// AttemptTotals is a (total, correct) aggregate taken in a single query.
type AttemptTotals struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

// AllCorrect reports whether there was at least one attempt and none failed.
func (t AttemptTotals) AllCorrect() bool {
	return t.Total > 0 && t.Correct == t.Total
}

// TriggeringEvent carries the attempt that caused an evaluation pass.
type TriggeringEvent struct {
	AttemptID    string        `json:"attempt_id,omitempty"`
	ExerciseType string        `json:"exercise_type,omitempty"`
	Correct      bool          `json:"correct"`
	Duration     time.Duration `json:"duration,omitempty"`
	At           time.Time     `json:"at"`
}

// HasDuration reports whether the event recorded how long the attempt took.
func (e *TriggeringEvent) HasDuration() bool {
	return e != nil && e.Duration > 0
}

// HasTimestamp reports whether the event carries its occurrence time.
func (e *TriggeringEvent) HasTimestamp() bool {
	return e != nil && !e.At.IsZero()
}

// AttemptRecorded is the message published when the platform stores an attempt.
type AttemptRecorded struct {
	UserID       string    `json:"user_id"`
	AttemptID    string    `json:"attempt_id"`
	ExerciseType string    `json:"exercise_type"`
	Correct      bool      `json:"correct"`
	DurationMs   int64     `json:"duration_ms"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Event converts the message into triggering event data.
func (m AttemptRecorded) Event() *TriggeringEvent {
	return &TriggeringEvent{
		AttemptID:    m.AttemptID,
		ExerciseType: m.ExerciseType,
		Correct:      m.Correct,
		Duration:     time.Duration(m.DurationMs) * time.Millisecond,
		At:           m.OccurredAt,
	}
}

// ─── Calendar Helpers ───────────────────────────────────────────────────────

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
