// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase. This follows the Go convention of a
// shared test utility package (like net/http/httptest).
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/yu-iskw/lightdash/internal/domain"
)

// === Authorizer Mock ===

// MockAuthorizer implements domain.Authorizer for testing.
type MockAuthorizer struct {
	CanPerformFn func(ctx context.Context, principal domain.ContextPrincipal, action domain.Action, resource domain.ResourceContext) (bool, error)
}

// CanPerform implements the interface method for testing. Without CanPerformFn every action is allowed.
func (m *MockAuthorizer) CanPerform(ctx context.Context, principal domain.ContextPrincipal, action domain.Action, resource domain.ResourceContext) (bool, error) {
	if m.CanPerformFn != nil {
		return m.CanPerformFn(ctx, principal, action, resource)
	}
	return true, nil
}

// === Project Repository Mock ===

// MockProjectRepo implements domain.ProjectRepository for testing.
type MockProjectRepo struct {
	UpsertFn    func(ctx context.Context, p *domain.Project) (*domain.Project, error)
	GetByUUIDFn func(ctx context.Context, uuid string) (*domain.Project, error)
	ListFn      func(ctx context.Context, page domain.PageRequest) ([]domain.Project, int64, error)
	DeleteFn    func(ctx context.Context, uuid string) error
}

// Upsert implements the interface method for testing.
func (m *MockProjectRepo) Upsert(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	if m.UpsertFn != nil {
		return m.UpsertFn(ctx, p)
	}
	panic("unexpected call to MockProjectRepo.Upsert")
}

// GetByUUID implements the interface method for testing.
func (m *MockProjectRepo) GetByUUID(ctx context.Context, uuid string) (*domain.Project, error) {
	if m.GetByUUIDFn != nil {
		return m.GetByUUIDFn(ctx, uuid)
	}
	panic("unexpected call to MockProjectRepo.GetByUUID")
}

// List implements the interface method for testing.
func (m *MockProjectRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Project, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, page)
	}
	panic("unexpected call to MockProjectRepo.List")
}

// Delete implements the interface method for testing.
func (m *MockProjectRepo) Delete(ctx context.Context, uuid string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, uuid)
	}
	panic("unexpected call to MockProjectRepo.Delete")
}

// StaticProjects returns a MockProjectRepo serving the given projects by uuid.
func StaticProjects(projects ...domain.Project) *MockProjectRepo {
	byUUID := make(map[string]domain.Project, len(projects))
	for _, p := range projects {
		byUUID[p.UUID] = p
	}
	return &MockProjectRepo{
		GetByUUIDFn: func(_ context.Context, uuid string) (*domain.Project, error) {
			p, ok := byUUID[uuid]
			if !ok {
				return nil, domain.ErrNotFound("project %q not found", uuid)
			}
			return &p, nil
		},
		ListFn: func(_ context.Context, _ domain.PageRequest) ([]domain.Project, int64, error) {
			return projects, int64(len(projects)), nil
		},
	}
}

// === Project Access Repository Mock ===

// MockProjectAccessRepo implements domain.ProjectAccessRepository for testing.
type MockProjectAccessRepo struct {
	GrantFn          func(ctx context.Context, a *domain.ProjectAccess) error
	RevokeFn         func(ctx context.Context, projectUUID, principal string) error
	GetRoleFn        func(ctx context.Context, projectUUID, principal string) (domain.ProjectRole, error)
	ListForProjectFn func(ctx context.Context, projectUUID string) ([]domain.ProjectAccess, error)
}

// Grant implements the interface method for testing.
func (m *MockProjectAccessRepo) Grant(ctx context.Context, a *domain.ProjectAccess) error {
	if m.GrantFn != nil {
		return m.GrantFn(ctx, a)
	}
	panic("unexpected call to MockProjectAccessRepo.Grant")
}

// Revoke implements the interface method for testing.
func (m *MockProjectAccessRepo) Revoke(ctx context.Context, projectUUID, principal string) error {
	if m.RevokeFn != nil {
		return m.RevokeFn(ctx, projectUUID, principal)
	}
	panic("unexpected call to MockProjectAccessRepo.Revoke")
}

// GetRole implements the interface method for testing.
func (m *MockProjectAccessRepo) GetRole(ctx context.Context, projectUUID, principal string) (domain.ProjectRole, error) {
	if m.GetRoleFn != nil {
		return m.GetRoleFn(ctx, projectUUID, principal)
	}
	panic("unexpected call to MockProjectAccessRepo.GetRole")
}

// ListForProject implements the interface method for testing.
func (m *MockProjectAccessRepo) ListForProject(ctx context.Context, projectUUID string) ([]domain.ProjectAccess, error) {
	if m.ListForProjectFn != nil {
		return m.ListForProjectFn(ctx, projectUUID)
	}
	panic("unexpected call to MockProjectAccessRepo.ListForProject")
}

// === Explore Repository Mock ===

// MockExploreRepo implements domain.ExploreRepository in memory.
type MockExploreRepo struct {
	mu       sync.Mutex
	explores map[string][]domain.StoredExplore
	// ReplaceErr, when set, is returned by ReplaceAll.
	ReplaceErr error
}

// ReplaceAll implements the interface method for testing.
func (m *MockExploreRepo) ReplaceAll(_ context.Context, projectUUID string, explores []domain.Explore, compiledAt time.Time) error {
	if m.ReplaceErr != nil {
		return m.ReplaceErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.explores == nil {
		m.explores = map[string][]domain.StoredExplore{}
	}
	stored := make([]domain.StoredExplore, 0, len(explores))
	for _, e := range explores {
		stored = append(stored, domain.StoredExplore{ProjectUUID: projectUUID, Explore: e, CompiledAt: compiledAt})
	}
	m.explores[projectUUID] = stored
	return nil
}

// Get implements the interface method for testing.
func (m *MockExploreRepo) Get(_ context.Context, projectUUID, name string) (*domain.StoredExplore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.explores[projectUUID] {
		if e.Explore.Name == name {
			out := e
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound("explore %q not found", name)
}

// List implements the interface method for testing.
func (m *MockExploreRepo) List(_ context.Context, projectUUID string, page domain.PageRequest) ([]domain.ExploreSummary, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.explores[projectUUID]
	var out []domain.ExploreSummary
	for i := page.Offset(); i < len(all) && len(out) < page.Limit(); i++ {
		e := all[i]
		out = append(out, domain.ExploreSummary{Name: e.Explore.Name, Label: e.Explore.Label, CompiledAt: e.CompiledAt})
	}
	return out, int64(len(all)), nil
}

// === Metric Catalog Mock ===

// MockMetricCatalog implements domain.MetricCatalog for testing.
type MockMetricCatalog struct {
	GetMetricFn func(ctx context.Context, projectUUID, exploreName, metricName string, granularityOverride domain.TimeFrame) (*domain.MetricWithAssociatedTimeDimension, error)
}

// GetMetric implements the interface method for testing.
func (m *MockMetricCatalog) GetMetric(ctx context.Context, projectUUID, exploreName, metricName string, granularityOverride domain.TimeFrame) (*domain.MetricWithAssociatedTimeDimension, error) {
	if m.GetMetricFn != nil {
		return m.GetMetricFn(ctx, projectUUID, exploreName, metricName, granularityOverride)
	}
	panic("unexpected call to MockMetricCatalog.GetMetric")
}

// === Metric Query Runner Mock ===

// MockMetricQueryRunner implements domain.MetricQueryRunner and records every query.
type MockMetricQueryRunner struct {
	RunMetricQueryFn func(ctx context.Context, projectUUID, exploreName string, q domain.MetricQuery) (*domain.QueryResult, error)

	mu      sync.Mutex
	Queries []domain.MetricQuery
}

// RunMetricQuery implements the interface method for testing.
func (m *MockMetricQueryRunner) RunMetricQuery(ctx context.Context, projectUUID, exploreName string, q domain.MetricQuery) (*domain.QueryResult, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, q)
	m.mu.Unlock()
	if m.RunMetricQueryFn != nil {
		return m.RunMetricQueryFn(ctx, projectUUID, exploreName, q)
	}
	panic("unexpected call to MockMetricQueryRunner.RunMetricQuery")
}

// Recorded returns a copy of the recorded queries.
func (m *MockMetricQueryRunner) Recorded() []domain.MetricQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.MetricQuery(nil), m.Queries...)
}

// === Warehouse Client Mock ===

// MockWarehouseClient implements domain.WarehouseClient for testing.
type MockWarehouseClient struct {
	Adapter    domain.AdapterType
	RunQueryFn func(ctx context.Context, sql string) (*domain.WarehouseResults, error)
	CatalogFn  func(ctx context.Context, refs []domain.TableRef) (domain.WarehouseCatalog, error)

	mu   sync.Mutex
	SQLs []string
}

// AdapterType implements the interface method for testing.
func (m *MockWarehouseClient) AdapterType() domain.AdapterType {
	if m.Adapter == "" {
		return domain.AdapterDuckDB
	}
	return m.Adapter
}

// RunQuery implements the interface method for testing.
func (m *MockWarehouseClient) RunQuery(ctx context.Context, sql string) (*domain.WarehouseResults, error) {
	m.mu.Lock()
	m.SQLs = append(m.SQLs, sql)
	m.mu.Unlock()
	if m.RunQueryFn != nil {
		return m.RunQueryFn(ctx, sql)
	}
	return &domain.WarehouseResults{}, nil
}

// Catalog implements the interface method for testing.
func (m *MockWarehouseClient) Catalog(ctx context.Context, refs []domain.TableRef) (domain.WarehouseCatalog, error) {
	if m.CatalogFn != nil {
		return m.CatalogFn(ctx, refs)
	}
	panic("unexpected call to MockWarehouseClient.Catalog")
}

// === Artifact Reader Mock ===

// MockArtifactReader implements domain.ArtifactReader over an in-memory map of uri to content.
type MockArtifactReader struct {
	Files map[string][]byte
}

// Read implements the interface method for testing.
func (m *MockArtifactReader) Read(_ context.Context, uri string) ([]byte, error) {
	b, ok := m.Files[uri]
	if !ok {
		return nil, domain.ErrNotFound("artifact %q not found", uri)
	}
	return b, nil
}
