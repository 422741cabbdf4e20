// Package metricsexplorer compiles metrics-explorer requests into metric queries, runs
// them with an optional comparison series and aligns the results into plot points.
package metricsexplorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yu-iskw/lightdash/internal/domain"
)

// Service runs metrics-explorer and metric-total queries.
type Service struct {
	auth     domain.Authorizer
	projects domain.ProjectRepository
	catalog  domain.MetricCatalog
	runner   domain.MetricQueryRunner
	maxLimit int
	now      func() time.Time
	logger   *slog.Logger
}

// NewService creates a Service. maxLimit is the server row limit applied to explorer queries.
func NewService(
	auth domain.Authorizer,
	projects domain.ProjectRepository,
	catalog domain.MetricCatalog,
	runner domain.MetricQueryRunner,
	maxLimit int,
	logger *slog.Logger,
) *Service {
	if maxLimit <= 0 {
		maxLimit = domain.DefaultQueryMaxLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		auth:     auth,
		projects: projects,
		catalog:  catalog,
		runner:   runner,
		maxLimit: maxLimit,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces the clock used to compute metric-total date ranges.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// QueryRequest is one metrics-explorer request.
type QueryRequest struct {
	ProjectUUID string
	ExploreName string
	MetricName  string
	StartDate   string
	EndDate     string
	Query       domain.MetricExplorerQuery
	// TimeDimensionOverride replaces the metric's own time dimension when set.
	TimeDimensionOverride *domain.TimeDimensionConfig
}

func (s *Service) authorizeView(ctx context.Context, projectUUID string) error {
	principal, ok := domain.PrincipalFromContext(ctx)
	if !ok {
		return domain.ErrAccessDenied("authentication required")
	}
	project, err := s.projects.GetByUUID(ctx, projectUUID)
	if err != nil {
		return err
	}
	allowed, err := s.auth.CanPerform(ctx, principal, domain.ActionView, domain.ResourceContext{
		Type:             "project",
		OrganizationUUID: project.OrganizationUUID,
		ProjectUUID:      project.UUID,
	})
	if err != nil {
		return fmt.Errorf("check permission: %w", err)
	}
	if !allowed {
		return domain.ErrAccessDenied("%q cannot view project %q", principal.Name, projectUUID)
	}
	return nil
}

// compareSeries is the outcome of a comparison sub-query.
type compareSeries struct {
	result    *domain.QueryResult
	dimension string
	metric    *domain.MetricWithAssociatedTimeDimension
}

// RunMetricExplorerQuery plots a metric over a date range, optionally segmented or
// compared with the previous year or with a second metric.
func (s *Service) RunMetricExplorerQuery(ctx context.Context, req QueryRequest) (*domain.MetricsExplorerQueryResults, error) {
	if req.Query == nil {
		return nil, domain.ErrValidation("query is required")
	}
	if err := s.authorizeView(ctx, req.ProjectUUID); err != nil {
		return nil, err
	}
	start := time.Now()

	metric, err := s.catalog.GetMetric(ctx, req.ProjectUUID, req.ExploreName, req.MetricName, "")
	if err != nil {
		return nil, err
	}
	dateRange, err := ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	td := req.TimeDimensionOverride
	if td == nil {
		td = metric.TimeDimension
	}
	if td == nil {
		return nil, domain.ErrValidation("Time dimension not found")
	}
	grain := td.Interval
	if grain == "" {
		grain = GrainForDateRange(dateRange)
	}
	timeDimensionID := domain.GetItemID(td.Table, domain.TimeIntervalDimensionName(td.Field, grain))
	resolvedTD := domain.TimeDimensionConfig{Table: td.Table, Field: td.Field, Interval: grain}

	var segmentID string
	if q, ok := req.Query.(domain.NoComparison); ok {
		segmentID = q.SegmentDimension
	}

	dimensions := []string{timeDimensionID}
	if segmentID != "" {
		dimensions = append(dimensions, segmentID)
	}
	baseQuery := domain.MetricQuery{
		ExploreName:       req.ExploreName,
		Dimensions:        dimensions,
		Metrics:           []string{metric.FieldID()},
		Filters:           domain.Filters{Dimensions: DateRangeFilters(resolvedTD, grain, dateRange)},
		Sorts:             []domain.SortField{{FieldID: timeDimensionID}},
		Limit:             s.maxLimit,
		TableCalculations: []domain.TableCalculation{},
	}

	var (
		current *domain.QueryResult
		compare *compareSeries
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.runner.RunMetricQuery(gctx, req.ProjectUUID, req.ExploreName, baseQuery)
		if err != nil {
			return err
		}
		current = res
		return nil
	})
	switch q := req.Query.(type) {
	case domain.NoComparison:
	case domain.PreviousPeriodComparison:
		g.Go(func() error {
			cs, err := s.runPreviousPeriod(gctx, req, metric, baseQuery, resolvedTD, dateRange)
			if err != nil {
				return err
			}
			compare = cs
			return nil
		})
	case domain.DifferentMetricComparison:
		g.Go(func() error {
			cs, err := s.runDifferentMetric(gctx, req, q, dateRange, grain)
			if err != nil {
				return err
			}
			compare = cs
			return nil
		})
	default:
		return nil, fmt.Errorf("unknown comparison type %T", req.Query)
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fields := make(map[string]domain.Field, len(current.Fields))
	for id, f := range current.Fields {
		fields[id] = f
	}
	if compare != nil {
		for id, f := range compare.result.Fields {
			fields[id] = f
		}
	}

	baseDimension, ok := fields[timeDimensionID].(domain.Dimension)
	if !ok {
		return nil, fmt.Errorf("time dimension %s not found or invalid", timeDimensionID)
	}

	resolved := *metric
	resolved.TimeDimension = &resolvedTD

	out := &domain.MetricsExplorerQueryResults{Fields: fields, Metric: resolved}
	var points []domain.MetricExploreDataPoint
	if compare == nil {
		if segmentID != "" {
			if d, ok := fields[segmentID].(domain.Dimension); ok {
				out.SegmentDimension = &d
			}
		}
		points, err = dataPoints(baseDimension, resolved, current.Rows, segmentID)
	} else {
		compareDimension, ok := compare.result.Fields[compare.dimension].(domain.Dimension)
		if !ok {
			return nil, errors.New("compare dimension not found or invalid")
		}
		out.CompareMetric = compare.metric
		points, err = dataPointsWithCompare(req.Query.Comparison(), baseDimension, compareDimension,
			resolved, *compare.metric, current.Rows, compare.result.Rows)
	}
	if err != nil {
		return nil, err
	}
	out.Results = finalizePoints(points)

	s.logger.Debug("metrics explorer query",
		"project_uuid", req.ProjectUUID,
		"explore", req.ExploreName,
		"metric", req.MetricName,
		"comparison", req.Query.Comparison(),
		"points", len(out.Results),
		"duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

// runPreviousPeriod re-runs the base selection over the range shifted back one year.
func (s *Service) runPreviousPeriod(ctx context.Context, req QueryRequest, metric *domain.MetricWithAssociatedTimeDimension, base domain.MetricQuery, td domain.TimeDimensionConfig, r DateRange) (*compareSeries, error) {
	q := base
	q.Filters = domain.Filters{Dimensions: DateRangeFilters(td, td.Interval, ShiftRange(r, domain.TimeFrameYear, -1))}
	res, err := s.runner.RunMetricQuery(ctx, req.ProjectUUID, req.ExploreName, q)
	if err != nil {
		return nil, err
	}
	return &compareSeries{result: res, dimension: q.Dimensions[0], metric: metric}, nil
}

// runDifferentMetric queries a second metric over the same range on its own time dimension.
func (s *Service) runDifferentMetric(ctx context.Context, req QueryRequest, q domain.DifferentMetricComparison, r DateRange, baseGrain domain.TimeFrame) (*compareSeries, error) {
	var override domain.TimeFrame
	if req.TimeDimensionOverride != nil {
		override = req.TimeDimensionOverride.Interval
	}
	metric, err := s.catalog.GetMetric(ctx, req.ProjectUUID, q.Metric.Table, q.Metric.Name, override)
	if err != nil {
		return nil, err
	}
	td := metric.TimeDimension
	if td == nil {
		return nil, domain.ErrValidation("Comparison metric should always have an associated time dimension")
	}

	grain := override
	if grain == "" {
		grain = td.Interval
	}
	if grain == "" {
		grain = baseGrain
	}
	dimensionID := domain.GetItemID(td.Table, domain.TimeIntervalDimensionName(td.Field, grain))
	compareTD := domain.TimeDimensionConfig{Table: td.Table, Field: td.Field, Interval: grain}

	mq := domain.MetricQuery{
		ExploreName:       q.Metric.Table,
		Dimensions:        []string{dimensionID},
		Metrics:           []string{metric.FieldID()},
		Filters:           domain.Filters{Dimensions: DateRangeFilters(compareTD, grain, r)},
		Sorts:             []domain.SortField{{FieldID: dimensionID}},
		Limit:             s.maxLimit,
		TableCalculations: []domain.TableCalculation{},
	}
	res, err := s.runner.RunMetricQuery(ctx, req.ProjectUUID, q.Metric.Table, mq)
	if err != nil {
		return nil, err
	}
	return &compareSeries{result: res, dimension: dimensionID, metric: metric}, nil
}

// GetMetricTotal returns the metric aggregated over the current unit of timeFrame and,
// for a previous-period comparison, over the unit before it.
func (s *Service) GetMetricTotal(ctx context.Context, projectUUID, exploreName, metricName string, timeFrame domain.TimeFrame, comparison domain.MetricTotalComparisonType) (*domain.MetricTotalResults, error) {
	if err := s.authorizeView(ctx, projectUUID); err != nil {
		return nil, err
	}
	metric, err := s.catalog.GetMetric(ctx, projectUUID, exploreName, metricName, timeFrame)
	if err != nil {
		return nil, err
	}
	if metric.TimeDimension == nil {
		return nil, domain.ErrValidation("Metric %s does not have a valid time dimension", metricName)
	}
	td := *metric.TimeDimension
	if td.Interval == "" {
		td.Interval = timeFrame
	}

	dateRange, err := DefaultRangeForTotal(timeFrame, s.now())
	if err != nil {
		return nil, err
	}
	totalQuery := func(r DateRange) domain.MetricQuery {
		return domain.MetricQuery{
			ExploreName:       exploreName,
			Dimensions:        []string{},
			Metrics:           []string{metric.FieldID()},
			Filters:           domain.Filters{Dimensions: DateRangeFilters(td, td.Interval, r)},
			Sorts:             []domain.SortField{},
			Limit:             1,
			TableCalculations: []domain.TableCalculation{},
		}
	}

	var current, previous *domain.QueryResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.runner.RunMetricQuery(gctx, projectUUID, exploreName, totalQuery(dateRange))
		current = res
		return err
	})
	if comparison == domain.MetricTotalComparisonPreviousPeriod {
		g.Go(func() error {
			res, err := s.runner.RunMetricQuery(gctx, projectUUID, exploreName, totalQuery(ShiftRange(dateRange, timeFrame, -1)))
			previous = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.MetricTotalResults{
		Value:           firstValue(current, metric.FieldID()),
		ComparisonValue: firstValue(previous, metric.FieldID()),
	}, nil
}

func firstValue(res *domain.QueryResult, fieldID string) *domain.ResultValue {
	if res == nil || len(res.Rows) == 0 {
		return nil
	}
	cell, ok := res.Rows[0][fieldID]
	if !ok {
		return nil
	}
	v := cell.Value
	return &v
}
