package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mathquest/mathquest/internal/domain"
)

// ─── Badge Definitions ──────────────────────────────────────────────────────

type badgeRow struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	Description  string `db:"description"`
	Requirements string `db:"requirements"`
}

// toDomain decodes the stored requirements.
func (r badgeRow) toDomain() (domain.Badge, error) {
	s, err := domain.ParseRequirementSchema([]byte(r.Requirements))
	if err != nil {
		return domain.Badge{}, fmt.Errorf("badge %s: %w", r.ID, err)
	}
	return domain.Badge{ID: r.ID, Name: r.Name, Description: r.Description, Requirements: s}, nil
}

// UpsertBadge inserts or replaces a badge definition.
func (d *DB) UpsertBadge(ctx context.Context, b domain.Badge) error {
	raw, err := json.Marshal(b.Requirements)
	if err != nil {
		return fmt.Errorf("encode requirements: %w", err)
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO badges (id, name, description, requirements, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			requirements = excluded.requirements,
			updated_at = excluded.updated_at`,
		b.ID, b.Name, b.Description, string(raw), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert badge %s: %w", b.ID, err)
	}
	return nil
}

// ListBadges returns every badge definition ordered by ID.
func (d *DB) ListBadges(ctx context.Context) ([]domain.Badge, error) {
	var rows []badgeRow
	if err := d.db.SelectContext(ctx, &rows,
		`SELECT id, name, description, requirements FROM badges ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	out := make([]domain.Badge, len(rows))
	for i, r := range rows {
		b, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("list badges: %w", err)
		}
		out[i] = b
	}
	return out, nil
}

// GetBadge returns one badge definition.
func (d *DB) GetBadge(ctx context.Context, id string) (domain.Badge, error) {
	var r badgeRow
	err := d.db.GetContext(ctx, &r,
		`SELECT id, name, description, requirements FROM badges WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Badge{}, fmt.Errorf("%s: %w", id, domain.ErrBadgeNotFound)
	}
	if err != nil {
		return domain.Badge{}, fmt.Errorf("get badge: %w", err)
	}
	return r.toDomain()
}
