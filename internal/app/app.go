// Package app wires repositories and services into a runnable application.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/yu-iskw/lightdash/internal/config"
	"github.com/yu-iskw/lightdash/internal/db/repository"
	"github.com/yu-iskw/lightdash/internal/domain"
	"github.com/yu-iskw/lightdash/internal/service/catalog"
	"github.com/yu-iskw/lightdash/internal/service/metricsexplorer"
	"github.com/yu-iskw/lightdash/internal/service/query"
	"github.com/yu-iskw/lightdash/internal/service/security"
	"github.com/yu-iskw/lightdash/internal/service/semantic"
)

// Deps holds the external dependencies that main() must provide: database
// handles, config, the warehouse connection and the artifact reader.
type Deps struct {
	Cfg       *config.Config
	WriteDB   *sql.DB
	ReadDB    *sql.DB
	Warehouse domain.WarehouseClient
	Artifacts domain.ArtifactReader
	Logger    *slog.Logger
}

// Services groups the services the API handler needs.
type Services struct {
	Authorizer      *security.ProjectAuthorizer
	Catalog         *catalog.Service
	Query           *query.Service
	MetricsExplorer *metricsexplorer.Service
}

// App holds the fully-wired application.
type App struct {
	Services  Services
	Projects  *repository.ProjectRepo
	Access    *repository.ProjectAccessRepo
	Scheduler *catalog.Scheduler

	projectsFile string
	logger       *slog.Logger
}

// New wires all repositories and services from the provided deps and syncs
// the projects file into the metastore when one is configured.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// === Repositories (write-pool) ===
	projectRepo := repository.NewProjectRepo(deps.WriteDB)
	accessRepo := repository.NewProjectAccessRepo(deps.WriteDB)
	exploreRepo := repository.NewExploreRepo(deps.WriteDB)

	// === Repositories (read-pool) ===
	projectReader := repository.NewProjectRepo(deps.ReadDB)
	exploreReader := repository.NewExploreRepo(deps.ReadDB)

	if err := loadAndSyncProjects(ctx, cfg.ProjectsFile, projectRepo, accessRepo, logger); err != nil {
		return nil, err
	}

	// === Services ===
	authz := security.NewProjectAuthorizer(accessRepo)
	catalogSvc := catalog.NewService(
		authz, projectRepo, exploreRepo, deps.Artifacts, deps.Warehouse,
		semantic.AttachOptions{ThrowOnMissing: cfg.StrictSchema},
		logger.With("component", "catalog"),
	)
	querySvc := query.NewService(projectReader, exploreReader, deps.Warehouse, cfg.QueryMaxLimit,
		logger.With("component", "query"))
	explorerSvc := metricsexplorer.NewService(authz, projectReader, catalogSvc, querySvc, cfg.QueryMaxLimit,
		logger.With("component", "metrics-explorer"))

	return &App{
		Services: Services{
			Authorizer:      authz,
			Catalog:         catalogSvc,
			Query:           querySvc,
			MetricsExplorer: explorerSvc,
		},
		Projects:  projectRepo,
		Access:    accessRepo,
		Scheduler:    catalog.NewScheduler(catalogSvc, projectRepo, logger.With("component", "scheduler")),
		projectsFile: cfg.ProjectsFile,
		logger:       logger,
	}, nil
}

// ReloadProjects re-reads the projects file into the metastore, reschedules
// refreshes from the updated projects and compiles any project added since start.
func (a *App) ReloadProjects(ctx context.Context) error {
	if err := loadAndSyncProjects(ctx, a.projectsFile, a.Projects, a.Access, a.logger); err != nil {
		return err
	}
	if err := a.Scheduler.Reload(ctx); err != nil {
		return fmt.Errorf("reload schedules: %w", err)
	}
	n, err := a.Services.Catalog.CompileMissing(ctx)
	if err != nil {
		return fmt.Errorf("compile new projects: %w", err)
	}
	a.logger.InfoContext(ctx, "reloaded projects", "compiled", n, "scheduled", len(a.Scheduler.ScheduledProjects()))
	return nil
}

func loadAndSyncProjects(ctx context.Context, path string, projects projectWriter, access domain.ProjectAccessRepository, logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	resolved, err := config.LoadProjectsFile(path)
	if err != nil {
		return fmt.Errorf("load projects file: %w", err)
	}
	if err := syncProjects(ctx, projects, access, resolved, logger); err != nil {
		return fmt.Errorf("sync projects: %w", err)
	}
	return nil
}

// Start compiles projects that have never been compiled and starts the
// refresh scheduler. Compile failures are logged, not returned.
func (a *App) Start(ctx context.Context) error {
	n, err := a.Services.Catalog.CompileMissing(ctx)
	if err != nil {
		return fmt.Errorf("initial compile: %w", err)
	}
	if n > 0 {
		a.logger.InfoContext(ctx, "compiled projects at startup", "projects", n)
	}
	return a.Scheduler.Start(ctx)
}

// Stop stops the refresh scheduler.
func (a *App) Stop() {
	a.Scheduler.Stop()
}
