package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yu-iskw/lightdash/internal/domain"
)

var _ domain.ExploreRepository = (*ExploreRepo)(nil)

// ExploreRepo stores compiled explores as JSON documents keyed by project and name.
type ExploreRepo struct {
	db *sql.DB
}

// NewExploreRepo creates a new ExploreRepo.
func NewExploreRepo(db *sql.DB) *ExploreRepo {
	return &ExploreRepo{db: db}
}

// ReplaceAll swaps the explores of a project atomically. Readers see either the
// previous set or the new one.
func (r *ExploreRepo) ReplaceAll(ctx context.Context, projectUUID string, explores []domain.Explore, compiledAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_explores WHERE project_uuid = ?`, projectUUID); err != nil {
		return mapDBError(err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO catalog_explores (project_uuid, name, label, explore, compiled_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	at := formatTime(compiledAt)
	for _, e := range explores {
		doc, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal explore %q: %w", e.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, projectUUID, e.Name, e.Label, string(doc), at); err != nil {
			return mapDBError(err)
		}
	}
	return tx.Commit()
}

// Get returns one stored explore.
func (r *ExploreRepo) Get(ctx context.Context, projectUUID, name string) (*domain.StoredExplore, error) {
	var doc, compiledAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT explore, compiled_at FROM catalog_explores WHERE project_uuid = ? AND name = ?`,
		projectUUID, name).Scan(&doc, &compiledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("explore %q not found in project %q", name, projectUUID)
	}
	if err != nil {
		return nil, err
	}

	out := &domain.StoredExplore{ProjectUUID: projectUUID}
	if err := json.Unmarshal([]byte(doc), &out.Explore); err != nil {
		return nil, fmt.Errorf("decode explore %q: %w", name, err)
	}
	if out.CompiledAt, err = parseTime(compiledAt); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns a page of explore summaries ordered by name.
func (r *ExploreRepo) List(ctx context.Context, projectUUID string, page domain.PageRequest) ([]domain.ExploreSummary, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM catalog_explores WHERE project_uuid = ?`, projectUUID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT name, label, compiled_at FROM catalog_explores WHERE project_uuid = ? ORDER BY name LIMIT ? OFFSET ?`,
		projectUUID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.ExploreSummary
	for rows.Next() {
		var (
			s          domain.ExploreSummary
			compiledAt string
		)
		if err := rows.Scan(&s.Name, &s.Label, &compiledAt); err != nil {
			return nil, 0, err
		}
		if s.CompiledAt, err = parseTime(compiledAt); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}
