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

var _ domain.ProjectRepository = (*ProjectRepo)(nil)

// ProjectRepo implements domain.ProjectRepository using SQLite.
type ProjectRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewProjectRepo creates a new ProjectRepo.
func NewProjectRepo(db *sql.DB) *ProjectRepo {
	return &ProjectRepo{db: db, now: time.Now}
}

const projectColumns = `uuid, organization_uuid, name, adapter_type, manifest_uri, catalog_uri,
	refresh_schedule, spotlight, created_at, updated_at`

// Upsert creates the project or updates it in place, keeping its creation time.
func (r *ProjectRepo) Upsert(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	spotlight, err := json.Marshal(p.Spotlight)
	if err != nil {
		return nil, fmt.Errorf("marshal spotlight: %w", err)
	}
	now := formatTime(r.now())

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uuid) DO UPDATE SET
			organization_uuid = excluded.organization_uuid,
			name = excluded.name,
			adapter_type = excluded.adapter_type,
			manifest_uri = excluded.manifest_uri,
			catalog_uri = excluded.catalog_uri,
			refresh_schedule = excluded.refresh_schedule,
			spotlight = excluded.spotlight,
			updated_at = excluded.updated_at`,
		p.UUID, p.OrganizationUUID, p.Name, string(p.AdapterType), p.ManifestURI, p.CatalogURI,
		p.RefreshSchedule, string(spotlight), now, now)
	if err != nil {
		return nil, mapDBError(err)
	}
	return r.GetByUUID(ctx, p.UUID)
}

// GetByUUID returns a project by uuid.
func (r *ProjectRepo) GetByUUID(ctx context.Context, uuid string) (*domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE uuid = ?`, uuid)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("project %q not found", uuid)
	}
	if err != nil {
		return nil, mapDBError(err)
	}
	return p, nil
}

// List returns a page of projects ordered by name.
func (r *ProjectRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Project, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY name, uuid LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, *p)
	}
	return projects, total, rows.Err()
}

// Delete removes a project together with its access grants and explores.
func (r *ProjectRepo) Delete(ctx context.Context, uuid string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE uuid = ?`, uuid)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("project %q not found", uuid)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*domain.Project, error) {
	var (
		p                    domain.Project
		adapter, spotlight   string
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.UUID, &p.OrganizationUUID, &p.Name, &adapter, &p.ManifestURI, &p.CatalogURI,
		&p.RefreshSchedule, &spotlight, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.AdapterType = domain.AdapterType(adapter)
	if err := json.Unmarshal([]byte(spotlight), &p.Spotlight); err != nil {
		return nil, fmt.Errorf("decode spotlight of project %q: %w", p.UUID, err)
	}
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
