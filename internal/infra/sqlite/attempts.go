package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mathquest/mathquest/internal/domain"
)

// ─── Attempt Writes ─────────────────────────────────────────────────────────

// RecordAttempt stores an attempt, assigning an ID and timestamp when unset.
func (d *DB) RecordAttempt(ctx context.Context, a domain.Attempt) (domain.Attempt, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.CreatedAt = a.CreatedAt.UTC()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO attempts (id, user_id, exercise_type, correct, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.ExerciseType, a.Correct, a.Duration.Milliseconds(), a.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return a, fmt.Errorf("insert attempt: %w", err)
	}
	return a, nil
}

// UpsertExerciseType adds a catalog type or changes whether it is active.
func (d *DB) UpsertExerciseType(ctx context.Context, name string, active bool) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO exercise_types (name, active, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET active = excluded.active, updated_at = excluded.updated_at`,
		name, active, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert exercise type %s: %w", name, err)
	}
	return nil
}

// ─── Attempt Reads ──────────────────────────────────────────────────────────

type attemptRow struct {
	ID           string `db:"id"`
	UserID       string `db:"user_id"`
	ExerciseType string `db:"exercise_type"`
	Correct      bool   `db:"correct"`
	DurationMs   int64  `db:"duration_ms"`
	CreatedAt    int64  `db:"created_at"`
}

func (r attemptRow) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:           r.ID,
		UserID:       r.UserID,
		ExerciseType: r.ExerciseType,
		Correct:      r.Correct,
		Duration:     time.Duration(r.DurationMs) * time.Millisecond,
		CreatedAt:    time.UnixMilli(r.CreatedAt).UTC(),
	}
}

// filterClause renders f as additional AND conditions.
func filterClause(userID string, f domain.AttemptFilter) (string, []any) {
	conds := []string{"user_id = ?"}
	args := []any{userID}
	if f.ExerciseType != "" {
		conds = append(conds, "exercise_type = ?")
		args = append(args, f.ExerciseType)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	if !f.Until.IsZero() {
		conds = append(conds, "created_at < ?")
		args = append(args, f.Until.UnixMilli())
	}
	if f.ExcludeID != "" {
		conds = append(conds, "id <> ?")
		args = append(args, f.ExcludeID)
	}
	return strings.Join(conds, " AND "), args
}

// AttemptTotals counts attempts and correct attempts in one query.
func (d *DB) AttemptTotals(ctx context.Context, userID string, f domain.AttemptFilter) (domain.AttemptTotals, error) {
	where, args := filterClause(userID, f)
	var row struct {
		Total   int `db:"total"`
		Correct int `db:"correct"`
	}
	err := d.db.GetContext(ctx, &row,
		`SELECT COUNT(*) AS total, COALESCE(SUM(correct), 0) AS correct FROM attempts WHERE `+where, args...)
	if err != nil {
		return domain.AttemptTotals{}, fmt.Errorf("attempt totals: %w", err)
	}
	return domain.AttemptTotals{Total: row.Total, Correct: row.Correct}, nil
}

// RecentAttempts returns at most limit attempts, newest first.
func (d *DB) RecentAttempts(ctx context.Context, userID string, f domain.AttemptFilter, limit int) ([]domain.Attempt, error) {
	where, args := filterClause(userID, f)
	var rows []attemptRow
	err := d.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, exercise_type, correct, duration_ms, created_at
		FROM attempts WHERE `+where+`
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("recent attempts: %w", err)
	}
	out := make([]domain.Attempt, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// FastestCorrect returns the shortest timed correct attempt.
func (d *DB) FastestCorrect(ctx context.Context, userID string) (domain.FastestTime, error) {
	var ms sql.NullInt64
	err := d.db.GetContext(ctx, &ms,
		`SELECT MIN(duration_ms) FROM attempts WHERE user_id = ? AND correct = 1 AND duration_ms > 0`, userID)
	if err != nil {
		return domain.FastestTime{}, fmt.Errorf("fastest correct: %w", err)
	}
	if !ms.Valid {
		return domain.FastestTime{}, nil
	}
	return domain.FastestTime{Duration: time.Duration(ms.Int64) * time.Millisecond, Valid: true}, nil
}

// ActivityDates returns distinct UTC days with attempts, newest first.
func (d *DB) ActivityDates(ctx context.Context, userID string) ([]time.Time, error) {
	var days []string
	err := d.db.SelectContext(ctx, &days, `
		SELECT DISTINCT date(created_at / 1000, 'unixepoch') AS day
		FROM attempts WHERE user_id = ? ORDER BY day DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("activity dates: %w", err)
	}
	out := make([]time.Time, 0, len(days))
	for _, s := range days {
		t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse activity date %q: %w", s, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// ActiveExerciseTypes lists active catalog types.
func (d *DB) ActiveExerciseTypes(ctx context.Context) ([]string, error) {
	var types []string
	if err := d.db.SelectContext(ctx, &types,
		`SELECT name FROM exercise_types WHERE active = 1 ORDER BY name`); err != nil {
		return nil, fmt.Errorf("active exercise types: %w", err)
	}
	return types, nil
}

// SucceededExerciseTypes lists the types the user answered correctly at least once.
func (d *DB) SucceededExerciseTypes(ctx context.Context, userID string) ([]string, error) {
	var types []string
	if err := d.db.SelectContext(ctx, &types, `
		SELECT DISTINCT exercise_type FROM attempts
		WHERE user_id = ? AND correct = 1 ORDER BY exercise_type`, userID); err != nil {
		return nil, fmt.Errorf("succeeded exercise types: %w", err)
	}
	return types, nil
}

// CorrectCountsByType maps exercise type to correct attempts.
func (d *DB) CorrectCountsByType(ctx context.Context, userID string) (map[string]int, error) {
	var rows []struct {
		ExerciseType string `db:"exercise_type"`
		N            int    `db:"n"`
	}
	if err := d.db.SelectContext(ctx, &rows, `
		SELECT exercise_type, COUNT(*) AS n FROM attempts
		WHERE user_id = ? AND correct = 1 GROUP BY exercise_type`, userID); err != nil {
		return nil, fmt.Errorf("correct counts by type: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.ExerciseType] = r.N
	}
	return out, nil
}

// ActiveUsersSince lists users with attempts at or after since.
func (d *DB) ActiveUsersSince(ctx context.Context, since time.Time) ([]string, error) {
	var users []string
	if err := d.db.SelectContext(ctx, &users,
		`SELECT DISTINCT user_id FROM attempts WHERE created_at >= ? ORDER BY user_id`, since.UnixMilli()); err != nil {
		return nil, fmt.Errorf("active users: %w", err)
	}
	return users, nil
}
