package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yu-iskw/lightdash/internal/config"
	"github.com/yu-iskw/lightdash/internal/domain"
)

type projectWriter interface {
	Upsert(ctx context.Context, p *domain.Project) (*domain.Project, error)
}

// syncProjects upserts every project of the projects file and makes its access
// list match the file: listed grants are upserted, unlisted principals revoked.
// Projects missing from the file are left in place.
func syncProjects(ctx context.Context, projects projectWriter, access domain.ProjectAccessRepository, resolved []config.ResolvedProject, logger *slog.Logger) error {
	for _, rp := range resolved {
		p := rp.Project
		if _, err := projects.Upsert(ctx, &p); err != nil {
			return fmt.Errorf("upsert project %q: %w", p.UUID, err)
		}

		wanted := make(map[string]bool, len(rp.Access))
		for _, a := range rp.Access {
			grant := a
			if err := access.Grant(ctx, &grant); err != nil {
				return fmt.Errorf("grant %q on %q: %w", a.Principal, p.UUID, err)
			}
			wanted[a.Principal] = true
		}

		current, err := access.ListForProject(ctx, p.UUID)
		if err != nil {
			return fmt.Errorf("list access for %q: %w", p.UUID, err)
		}
		for _, a := range current {
			if wanted[a.Principal] {
				continue
			}
			if err := access.Revoke(ctx, p.UUID, a.Principal); err != nil {
				return fmt.Errorf("revoke %q on %q: %w", a.Principal, p.UUID, err)
			}
			logger.InfoContext(ctx, "revoked project access", "project_uuid", p.UUID, "principal", a.Principal)
		}
		logger.InfoContext(ctx, "synced project", "project_uuid", p.UUID, "name", p.Name, "grants", len(rp.Access))
	}
	return nil
}
