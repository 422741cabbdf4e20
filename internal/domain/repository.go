package domain

import (
	"context"
	"time"
)

// ProjectRepository provides CRUD operations for projects.
type ProjectRepository interface {
	Upsert(ctx context.Context, p *Project) (*Project, error)
	GetByUUID(ctx context.Context, uuid string) (*Project, error)
	List(ctx context.Context, page PageRequest) ([]Project, int64, error)
	Delete(ctx context.Context, uuid string) error
}

// ProjectAccessRepository stores per-project role grants.
type ProjectAccessRepository interface {
	Grant(ctx context.Context, a *ProjectAccess) error
	Revoke(ctx context.Context, projectUUID, principal string) error
	GetRole(ctx context.Context, projectUUID, principal string) (ProjectRole, error)
	ListForProject(ctx context.Context, projectUUID string) ([]ProjectAccess, error)
}

// ExploreRepository stores compiled explores per project.
type ExploreRepository interface {
	// ReplaceAll swaps the full explore set of a project in one transaction.
	ReplaceAll(ctx context.Context, projectUUID string, explores []Explore, compiledAt time.Time) error
	Get(ctx context.Context, projectUUID, name string) (*StoredExplore, error)
	List(ctx context.Context, projectUUID string, page PageRequest) ([]ExploreSummary, int64, error)
}
