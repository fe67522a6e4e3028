// Package postgres implements the attempt store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathquest/mathquest/internal/domain"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	// DSN is a libpq connection string or postgres:// URL.
	DSN string

	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32

	// MinConns is the minimum number of connections in the pool.
	MinConns int32

	// MaxConnLifetime is the maximum lifetime of a connection.
	MaxConnLifetime time.Duration

	// HealthCheckPeriod is the interval between pool health checks.
	HealthCheckPeriod time.Duration
}

// DefaultConfig returns pool defaults; DSN must still be set.
func DefaultConfig() Config {
	return Config{
		MaxConns:          10,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		HealthCheckPeriod: time.Minute,
	}
}

// PoolConfig returns pgxpool configuration.
func (c Config) PoolConfig() (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if c.MaxConns > 0 {
		config.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		config.MinConns = c.MinConns
	}
	if c.MaxConnLifetime > 0 {
		config.MaxConnLifetime = c.MaxConnLifetime
	}
	if c.HealthCheckPeriod > 0 {
		config.HealthCheckPeriod = c.HealthCheckPeriod
	}
	return config, nil
}

// Store is a pgxpool-backed AttemptStore.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects, verifies the connection and applies migrations.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS exercise_types (
			name       TEXT PRIMARY KEY,
			active     BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS attempts (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			exercise_type TEXT NOT NULL,
			correct       BOOLEAN NOT NULL,
			duration_ms   BIGINT NOT NULL DEFAULT 0,
			created_at    TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_user_created ON attempts(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_user_type ON attempts(user_id, exercise_type, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS badges (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			requirements JSONB NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Writes ─────────────────────────────────────────────────────────────────

// RecordAttempt stores an attempt, assigning an ID and timestamp when unset.
func (s *Store) RecordAttempt(ctx context.Context, a domain.Attempt) (domain.Attempt, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.CreatedAt = a.CreatedAt.UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attempts (id, user_id, exercise_type, correct, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.UserID, a.ExerciseType, a.Correct, a.Duration.Milliseconds(), a.CreatedAt)
	if err != nil {
		return a, fmt.Errorf("insert attempt: %w", err)
	}
	return a, nil
}

// UpsertExerciseType adds a catalog type or changes whether it is active.
func (s *Store) UpsertExerciseType(ctx context.Context, name string, active bool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO exercise_types (name, active, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET active = EXCLUDED.active, updated_at = now()`,
		name, active)
	if err != nil {
		return fmt.Errorf("upsert exercise type %s: %w", name, err)
	}
	return nil
}

// UpsertBadge inserts or replaces a badge definition.
func (s *Store) UpsertBadge(ctx context.Context, b domain.Badge) error {
	raw, err := json.Marshal(b.Requirements)
	if err != nil {
		return fmt.Errorf("encode requirements: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO badges (id, name, description, requirements, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description,
			requirements = EXCLUDED.requirements, updated_at = now()`,
		b.ID, b.Name, b.Description, string(raw))
	if err != nil {
		return fmt.Errorf("upsert badge %s: %w", b.ID, err)
	}
	return nil
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// filterClause renders the user and filter conditions with $n placeholders.
func filterClause(userID string, f domain.AttemptFilter) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{userID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if f.ExerciseType != "" {
		add("exercise_type = ?", f.ExerciseType)
	}
	if !f.Since.IsZero() {
		add("created_at >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		add("created_at < ?", f.Until)
	}
	if f.ExcludeID != "" {
		add("id <> ?", f.ExcludeID)
	}
	return strings.Join(conds, " AND "), args
}

// AttemptTotals counts attempts and correct attempts in one query.
func (s *Store) AttemptTotals(ctx context.Context, userID string, f domain.AttemptFilter) (domain.AttemptTotals, error) {
	where, args := filterClause(userID, f)
	var t domain.AttemptTotals
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE correct) FROM attempts WHERE `+where, args...,
	).Scan(&t.Total, &t.Correct)
	if err != nil {
		return domain.AttemptTotals{}, fmt.Errorf("attempt totals: %w", err)
	}
	return t, nil
}

// RecentAttempts returns at most limit attempts, newest first.
func (s *Store) RecentAttempts(ctx context.Context, userID string, f domain.AttemptFilter, limit int) ([]domain.Attempt, error) {
	where, args := filterClause(userID, f)
	args = append(args, limit)
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, exercise_type, correct, duration_ms, created_at
		FROM attempts WHERE `+where+`
		ORDER BY created_at DESC, id DESC LIMIT $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("recent attempts: %w", err)
	}
	attempts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Attempt, error) {
		var a domain.Attempt
		var ms int64
		err := row.Scan(&a.ID, &a.UserID, &a.ExerciseType, &a.Correct, &ms, &a.CreatedAt)
		a.Duration = time.Duration(ms) * time.Millisecond
		a.CreatedAt = a.CreatedAt.UTC()
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan attempts: %w", err)
	}
	return attempts, nil
}

// FastestCorrect returns the shortest timed correct attempt.
func (s *Store) FastestCorrect(ctx context.Context, userID string) (domain.FastestTime, error) {
	var ms *int64
	err := s.pool.QueryRow(ctx,
		`SELECT MIN(duration_ms) FROM attempts WHERE user_id = $1 AND correct AND duration_ms > 0`, userID,
	).Scan(&ms)
	if err != nil {
		return domain.FastestTime{}, fmt.Errorf("fastest correct: %w", err)
	}
	if ms == nil {
		return domain.FastestTime{}, nil
	}
	return domain.FastestTime{Duration: time.Duration(*ms) * time.Millisecond, Valid: true}, nil
}

// ActivityDates returns distinct UTC days with attempts, newest first.
func (s *Store) ActivityDates(ctx context.Context, userID string) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT (created_at AT TIME ZONE 'UTC')::date AS day
		FROM attempts WHERE user_id = $1 ORDER BY day DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("activity dates: %w", err)
	}
	days, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, fmt.Errorf("scan activity dates: %w", err)
	}
	for i, d := range days {
		days[i] = domain.Day(d)
	}
	return days, nil
}

// ActiveExerciseTypes lists active catalog types.
func (s *Store) ActiveExerciseTypes(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, "active exercise types",
		`SELECT name FROM exercise_types WHERE active ORDER BY name`)
}

// SucceededExerciseTypes lists the types the user answered correctly at least once.
func (s *Store) SucceededExerciseTypes(ctx context.Context, userID string) ([]string, error) {
	return s.queryStrings(ctx, "succeeded exercise types",
		`SELECT DISTINCT exercise_type FROM attempts WHERE user_id = $1 AND correct ORDER BY exercise_type`, userID)
}

// ActiveUsersSince lists users with attempts at or after since.
func (s *Store) ActiveUsersSince(ctx context.Context, since time.Time) ([]string, error) {
	return s.queryStrings(ctx, "active users",
		`SELECT DISTINCT user_id FROM attempts WHERE created_at >= $1 ORDER BY user_id`, since)
}

func (s *Store) queryStrings(ctx context.Context, what, query string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", what, err)
	}
	return out, nil
}

// CorrectCountsByType maps exercise type to correct attempts.
func (s *Store) CorrectCountsByType(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT exercise_type, COUNT(*) FROM attempts
		WHERE user_id = $1 AND correct GROUP BY exercise_type`, userID)
	if err != nil {
		return nil, fmt.Errorf("correct counts by type: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan correct counts: %w", err)
		}
		out[typ] = n
	}
	return out, rows.Err()
}

// ListBadges returns every badge definition ordered by ID.
func (s *Store) ListBadges(ctx context.Context) ([]domain.Badge, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, description, requirements FROM badges ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	badges, err := pgx.CollectRows(rows, scanBadge)
	if err != nil {
		return nil, fmt.Errorf("scan badges: %w", err)
	}
	return badges, nil
}

// GetBadge returns one badge definition.
func (s *Store) GetBadge(ctx context.Context, id string) (domain.Badge, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, description, requirements FROM badges WHERE id = $1`, id)
	if err != nil {
		return domain.Badge{}, fmt.Errorf("get badge: %w", err)
	}
	b, err := pgx.CollectOneRow(rows, scanBadge)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Badge{}, fmt.Errorf("%s: %w", id, domain.ErrBadgeNotFound)
	}
	if err != nil {
		return domain.Badge{}, fmt.Errorf("get badge: %w", err)
	}
	return b, nil
}

func scanBadge(row pgx.CollectableRow) (domain.Badge, error) {
	var b domain.Badge
	var raw []byte
	if err := row.Scan(&b.ID, &b.Name, &b.Description, &raw); err != nil {
		return b, err
	}
	return decodeRequirements(b, raw)
}

func decodeRequirements(b domain.Badge, raw []byte) (domain.Badge, error) {
	s, err := domain.ParseRequirementSchema(raw)
	if err != nil {
		return domain.Badge{}, fmt.Errorf("badge %s: %w", b.ID, err)
	}
	b.Requirements = s
	return b, nil
}
