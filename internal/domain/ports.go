package domain

import "context"

// Authorizer answers capability checks. The semantic core calls it, it never embeds policy.
// Implemented by security.ProjectAuthorizer.
type Authorizer interface {
	CanPerform(ctx context.Context, principal ContextPrincipal, action Action, resource ResourceContext) (bool, error)
}

// WarehouseClient executes compiled SQL and snapshots warehouse schemas.
// Implemented by warehouse.DuckDBClient.
type WarehouseClient interface {
	AdapterType() AdapterType
	RunQuery(ctx context.Context, sql string) (*WarehouseResults, error)
	Catalog(ctx context.Context, refs []TableRef) (WarehouseCatalog, error)
}

// ArtifactReader fetches dbt artifacts (manifest.json, catalog.json) by URI.
// Implemented by artifact.Reader.
type ArtifactReader interface {
	Read(ctx context.Context, uri string) ([]byte, error)
}

// MetricCatalog resolves metrics of compiled explores.
// Implemented by catalog.Service.
type MetricCatalog interface {
	GetMetric(ctx context.Context, projectUUID, exploreName, metricName string, granularityOverride TimeFrame) (*MetricWithAssociatedTimeDimension, error)
}

// MetricQueryRunner is the warehouse execution boundary for structured queries.
// Implemented by query.Service.
type MetricQueryRunner interface {
	RunMetricQuery(ctx context.Context, projectUUID, exploreName string, q MetricQuery) (*QueryResult, error)
}
