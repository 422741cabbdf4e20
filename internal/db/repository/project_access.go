package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/yu-iskw/lightdash/internal/domain"
)

var _ domain.ProjectAccessRepository = (*ProjectAccessRepo)(nil)

// ProjectAccessRepo implements domain.ProjectAccessRepository using SQLite.
type ProjectAccessRepo struct {
	db *sql.DB
}

// NewProjectAccessRepo creates a new ProjectAccessRepo.
func NewProjectAccessRepo(db *sql.DB) *ProjectAccessRepo {
	return &ProjectAccessRepo{db: db}
}

// Grant sets the role of a principal on a project, replacing any previous role.
func (r *ProjectAccessRepo) Grant(ctx context.Context, a *domain.ProjectAccess) error {
	switch a.Role {
	case domain.ProjectRoleViewer, domain.ProjectRoleDeveloper, domain.ProjectRoleAdmin:
	default:
		return domain.ErrValidation("invalid project role %q", a.Role)
	}
	if a.Principal == "" {
		return domain.ErrValidation("principal is required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO project_access (project_uuid, principal, role) VALUES (?, ?, ?)
		ON CONFLICT (project_uuid, principal) DO UPDATE SET role = excluded.role`,
		a.ProjectUUID, a.Principal, string(a.Role))
	return mapDBError(err)
}

// Revoke removes a principal's role on a project.
func (r *ProjectAccessRepo) Revoke(ctx context.Context, projectUUID, principal string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM project_access WHERE project_uuid = ? AND principal = ?`, projectUUID, principal)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("%q has no access to project %q", principal, projectUUID)
	}
	return nil
}

// GetRole returns a principal's role on a project.
func (r *ProjectAccessRepo) GetRole(ctx context.Context, projectUUID, principal string) (domain.ProjectRole, error) {
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT role FROM project_access WHERE project_uuid = ? AND principal = ?`, projectUUID, principal).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound("%q has no access to project %q", principal, projectUUID)
	}
	if err != nil {
		return "", err
	}
	return domain.ProjectRole(role), nil
}

// ListForProject returns every grant on a project ordered by principal.
func (r *ProjectAccessRepo) ListForProject(ctx context.Context, projectUUID string) ([]domain.ProjectAccess, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT project_uuid, principal, role FROM project_access WHERE project_uuid = ? ORDER BY principal`, projectUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ProjectAccess
	for rows.Next() {
		var (
			a    domain.ProjectAccess
			role string
		)
		if err := rows.Scan(&a.ProjectUUID, &a.Principal, &role); err != nil {
			return nil, err
		}
		a.Role = domain.ProjectRole(role)
		out = append(out, a)
	}
	return out, rows.Err()
}
