// Package catalog compiles dbt projects into explores, stores them and
// resolves metrics for the metrics explorer.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yu-iskw/lightdash/internal/domain"
	"github.com/yu-iskw/lightdash/internal/service/semantic"
)

var _ domain.MetricCatalog = (*Service)(nil)

// Service owns the compiled semantic catalog of every project.
type Service struct {
	auth      domain.Authorizer
	projects  domain.ProjectRepository
	explores  domain.ExploreRepository
	artifacts domain.ArtifactReader
	warehouse domain.WarehouseClient
	attach    semantic.AttachOptions
	now       func() time.Time
	logger    *slog.Logger
}

// NewService creates a catalog Service. warehouse may be nil, in which case
// projects without a catalog.json compile against an empty schema snapshot.
func NewService(
	auth domain.Authorizer,
	projects domain.ProjectRepository,
	explores domain.ExploreRepository,
	artifacts domain.ArtifactReader,
	warehouse domain.WarehouseClient,
	attach semantic.AttachOptions,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		auth:      auth,
		projects:  projects,
		explores:  explores,
		artifacts: artifacts,
		warehouse: warehouse,
		attach:    attach,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *Service) authorize(ctx context.Context, projectUUID string, action domain.Action) (*domain.Project, error) {
	principal, ok := domain.PrincipalFromContext(ctx)
	if !ok {
		return nil, domain.ErrAccessDenied("authentication required")
	}
	project, err := s.projects.GetByUUID(ctx, projectUUID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.auth.CanPerform(ctx, principal, action, domain.ResourceContext{
		Type:             "project",
		OrganizationUUID: project.OrganizationUUID,
		ProjectUUID:      project.UUID,
	})
	if err != nil {
		return nil, fmt.Errorf("check permission: %w", err)
	}
	if !allowed {
		return nil, domain.ErrAccessDenied("%q cannot %s project %q", principal.Name, action, projectUUID)
	}
	return project, nil
}

// CompileProject recompiles the project's explores from its dbt artifacts.
func (s *Service) CompileProject(ctx context.Context, projectUUID string) (*domain.CompileSummary, error) {
	project, err := s.authorize(ctx, projectUUID, domain.ActionCompile)
	if err != nil {
		return nil, err
	}
	return s.compile(ctx, project)
}

// compile runs without an authorization check; the scheduler uses it directly.
func (s *Service) compile(ctx context.Context, project *domain.Project) (*domain.CompileSummary, error) {
	start := time.Now()

	var (
		manifest *domain.DbtManifest
		dbtCat   *domain.DbtCatalog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := ReadManifest(gctx, s.artifacts, project.ManifestURI)
		manifest = m
		return err
	})
	if project.CatalogURI != "" {
		g.Go(func() error {
			c, err := ReadCatalog(gctx, s.artifacts, project.CatalogURI)
			dbtCat = c
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if a := manifest.Metadata.AdapterType; a != "" && domain.AdapterType(a) != project.AdapterType {
		s.logger.WarnContext(ctx, "manifest adapter differs from project adapter",
			"project_uuid", project.UUID, "manifest_adapter", a, "project_adapter", project.AdapterType)
	}

	snapshot, err := s.schemaSnapshot(ctx, manifest, dbtCat)
	if err != nil {
		return nil, err
	}

	attach := s.attach
	if project.AdapterType == domain.AdapterSnowflake {
		// Snowflake reports unquoted identifiers upper-cased.
		attach.CaseInsensitive = true
	}
	result, err := semantic.NewTranslator(project.AdapterType, project.Spotlight, attach).Translate(manifest, snapshot)
	if err != nil {
		return nil, err
	}

	compiledAt := s.now().UTC()
	if err := s.explores.ReplaceAll(ctx, project.UUID, result.Explores, compiledAt); err != nil {
		return nil, fmt.Errorf("store explores: %w", err)
	}

	summary := &domain.CompileSummary{
		ProjectUUID: project.UUID,
		Explores:    len(result.Explores),
		CompiledAt:  compiledAt,
	}
	for _, t := range result.Tables {
		summary.Metrics += len(t.Metrics)
		summary.Dimensions += len(t.Dimensions)
	}
	s.logger.InfoContext(ctx, "compiled project",
		"project_uuid", project.UUID,
		"explores", summary.Explores,
		"metrics", summary.Metrics,
		"dimensions", summary.Dimensions,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return summary, nil
}

// ReadManifest reads and decodes a dbt manifest.json.
func ReadManifest(ctx context.Context, artifacts domain.ArtifactReader, uri string) (*domain.DbtManifest, error) {
	b, err := artifacts.Read(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m domain.DbtManifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, domain.ErrParse("invalid manifest %s: %v", uri, err)
	}
	return &m, nil
}

// ReadCatalog reads and decodes a dbt catalog.json.
func ReadCatalog(ctx context.Context, artifacts domain.ArtifactReader, uri string) (*domain.DbtCatalog, error) {
	b, err := artifacts.Read(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c domain.DbtCatalog
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, domain.ErrParse("invalid catalog %s: %v", uri, err)
	}
	return &c, nil
}

// schemaSnapshot prefers dbt's catalog.json and falls back to asking the warehouse.
func (s *Service) schemaSnapshot(ctx context.Context, manifest *domain.DbtManifest, dbtCatalog *domain.DbtCatalog) (domain.WarehouseCatalog, error) {
	if dbtCatalog != nil {
		return dbtCatalog.WarehouseCatalog(), nil
	}
	if s.warehouse == nil {
		return domain.WarehouseCatalog{}, nil
	}
	snapshot, err := s.warehouse.Catalog(ctx, semantic.TableRefs(manifest))
	if err != nil {
		return nil, fmt.Errorf("snapshot warehouse schema: %w", err)
	}
	return snapshot, nil
}

// ListExplores lists the compiled explores of a project.
func (s *Service) ListExplores(ctx context.Context, projectUUID string, page domain.PageRequest) ([]domain.ExploreSummary, int64, error) {
	if _, err := s.authorize(ctx, projectUUID, domain.ActionView); err != nil {
		return nil, 0, err
	}
	return s.explores.List(ctx, projectUUID, page)
}

// GetExplore returns one compiled explore.
func (s *Service) GetExplore(ctx context.Context, projectUUID, name string) (*domain.StoredExplore, error) {
	if _, err := s.authorize(ctx, projectUUID, domain.ActionView); err != nil {
		return nil, err
	}
	return s.explores.Get(ctx, projectUUID, name)
}

// GetMetric finds a metric by name in an explore, preferring the base table,
// and resolves its time dimension: the metric's default, else its table's.
// A non-empty granularityOverride replaces the resolved interval.
func (s *Service) GetMetric(ctx context.Context, projectUUID, exploreName, metricName string, granularityOverride domain.TimeFrame) (*domain.MetricWithAssociatedTimeDimension, error) {
	stored, err := s.explores.Get(ctx, projectUUID, exploreName)
	if err != nil {
		return nil, err
	}
	explore := stored.Explore

	names := make([]string, 0, len(explore.Tables))
	for name := range explore.Tables {
		if name != explore.BaseTable {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	names = append([]string{explore.BaseTable}, names...)

	for _, name := range names {
		table, ok := explore.Tables[name]
		if !ok {
			continue
		}
		metric, ok := table.Metric(metricName)
		if !ok {
			continue
		}
		out := &domain.MetricWithAssociatedTimeDimension{Metric: *metric}
		dtd := metric.DefaultTimeDimension
		if dtd == nil {
			dtd = table.DefaultTimeDimension
		}
		if dtd != nil {
			out.TimeDimension = &domain.TimeDimensionConfig{Table: table.Name, Field: dtd.Field, Interval: dtd.Interval}
			if granularityOverride != "" {
				out.TimeDimension.Interval = granularityOverride
			}
		}
		return out, nil
	}
	return nil, domain.ErrNotFound("metric %q not found in explore %q", metricName, exploreName)
}
