package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yu-iskw/lightdash/internal/domain"
	"github.com/yu-iskw/lightdash/internal/sqlcompile"
)

var _ domain.MetricQueryRunner = (*Service)(nil)

// Service compiles structured metric queries against stored explores and runs them on the warehouse.
type Service struct {
	projects  domain.ProjectRepository
	explores  domain.ExploreRepository
	warehouse domain.WarehouseClient
	maxLimit  int
	logger    *slog.Logger
}

// NewService creates a Service. maxLimit <= 0 uses domain.DefaultQueryMaxLimit.
func NewService(projects domain.ProjectRepository, explores domain.ExploreRepository, warehouse domain.WarehouseClient, maxLimit int, logger *slog.Logger) *Service {
	if maxLimit <= 0 {
		maxLimit = domain.DefaultQueryMaxLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{projects: projects, explores: explores, warehouse: warehouse, maxLimit: maxLimit, logger: logger}
}

// MaxLimit returns the row limit applied to every query.
func (s *Service) MaxLimit() int { return s.maxLimit }

// Compile renders q for the project's warehouse without running it.
func (s *Service) Compile(ctx context.Context, projectUUID, exploreName string, q domain.MetricQuery) (*sqlcompile.CompiledQuery, error) {
	project, err := s.projects.GetByUUID(ctx, projectUUID)
	if err != nil {
		return nil, err
	}
	if got := s.warehouse.AdapterType(); project.AdapterType != got {
		return nil, domain.ErrValidation("project %q targets %s but the warehouse is %s", projectUUID, project.AdapterType, got)
	}
	stored, err := s.explores.Get(ctx, projectUUID, exploreName)
	if err != nil {
		return nil, err
	}

	q.ExploreName = exploreName
	if q.Limit <= 0 || q.Limit > s.maxLimit {
		q.Limit = s.maxLimit
	}
	return sqlcompile.NewCompiler(project.AdapterType).Compile(&stored.Explore, q)
}

// RunMetricQuery compiles q, executes it and shapes rows by field id.
func (s *Service) RunMetricQuery(ctx context.Context, projectUUID, exploreName string, q domain.MetricQuery) (*domain.QueryResult, error) {
	compiled, err := s.Compile(ctx, projectUUID, exploreName, q)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := s.warehouse.RunQuery(ctx, compiled.SQL)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		s.logger.WarnContext(ctx, "metric query failed",
			"project_uuid", projectUUID, "explore", exploreName, "duration_ms", duration, "error", err)
		return nil, fmt.Errorf("run metric query on explore %q: %w", exploreName, err)
	}

	calcs := make(map[string]bool, len(q.TableCalculations))
	for _, tc := range q.TableCalculations {
		calcs[tc.Name] = true
	}
	rows := make([]domain.ResultRow, 0, len(res.Rows))
	for _, raw := range res.Rows {
		row := make(domain.ResultRow, len(compiled.Fields)+len(calcs))
		for col, v := range raw {
			if f, ok := compiled.Fields[col]; ok {
				row[col] = domain.ResultCell{Value: domain.ResultValue{Raw: v, Formatted: FormatValue(f, v)}}
			} else if calcs[col] {
				row[col] = domain.ResultCell{Value: domain.ResultValue{Raw: v, Formatted: FormatValue(nil, v)}}
			}
		}
		rows = append(rows, row)
	}

	s.logger.DebugContext(ctx, "metric query",
		"project_uuid", projectUUID, "explore", exploreName, "rows", len(rows), "duration_ms", duration)
	return &domain.QueryResult{Rows: rows, Fields: compiled.Fields}, nil
}
