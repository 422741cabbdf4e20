package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yu-iskw/lightdash/internal/domain"
	"github.com/yu-iskw/lightdash/internal/testutil"
)

const projectUUID = "3675b69e-8324-4110-bdca-059031aa8da3"

func ordersExplore() domain.Explore {
	round := 1
	return domain.Explore{
		Name:      "orders",
		BaseTable: "orders",
		Tables: map[string]domain.Table{
			"orders": {
				Name:     "orders",
				SQLTable: `"main"."orders"`,
				Dimensions: []domain.Dimension{
					{Name: "status", Table: "orders", Type: domain.DimensionTypeString, SQL: "${TABLE}.status"},
					{Name: "order_date_month", Table: "orders", Type: domain.DimensionTypeDate, SQL: "DATE_TRUNC('month', ${TABLE}.order_date)", TimeInterval: domain.TimeFrameMonth},
				},
				Metrics: []domain.Metric{
					{Name: "total_revenue", Table: "orders", Type: domain.MetricTypeSum, SQL: "${TABLE}.amount", Format: "usd"},
					{Name: "avg_amount", Table: "orders", Type: domain.MetricTypeAverage, SQL: "${TABLE}.amount", Round: &round},
				},
			},
		},
	}
}

type fixture struct {
	svc       *Service
	warehouse *testutil.MockWarehouseClient
}

func newFixture(t *testing.T, adapter domain.AdapterType, run func(ctx context.Context, sql string) (*domain.WarehouseResults, error)) fixture {
	t.Helper()
	explores := &testutil.MockExploreRepo{}
	require.NoError(t, explores.ReplaceAll(context.Background(), projectUUID, []domain.Explore{ordersExplore()}, time.Now()))
	wh := &testutil.MockWarehouseClient{RunQueryFn: run}
	projects := testutil.StaticProjects(domain.Project{UUID: projectUUID, Name: "jaffle", AdapterType: adapter})
	return fixture{svc: NewService(projects, explores, wh, 100, nil), warehouse: wh}
}

func TestRunMetricQuery(t *testing.T) {
	month := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, domain.AdapterDuckDB, func(_ context.Context, _ string) (*domain.WarehouseResults, error) {
		return &domain.WarehouseResults{
			Columns: []string{"orders_order_date_month", "orders_total_revenue", "orders_avg_amount"},
			Rows: []map[string]any{
				{"orders_order_date_month": month, "orders_total_revenue": float64(1234.5), "orders_avg_amount": float64(12.345)},
				{"orders_order_date_month": nil, "orders_total_revenue": nil, "orders_avg_amount": nil, "unexpected": 1},
			},
		}, nil
	})

	res, err := f.svc.RunMetricQuery(context.Background(), projectUUID, "orders", domain.MetricQuery{
		Dimensions: []string{"orders_order_date_month"},
		Metrics:    []string{"orders_total_revenue", "orders_avg_amount"},
		Sorts:      []domain.SortField{{FieldID: "orders_order_date_month"}},
		Limit:      10,
	})
	require.NoError(t, err)

	require.Len(t, f.warehouse.SQLs, 1)
	assert.Contains(t, f.warehouse.SQLs[0], `DATE_TRUNC('month', "orders".order_date) AS "orders_order_date_month"`)
	assert.Contains(t, f.warehouse.SQLs[0], "LIMIT 10")

	require.Len(t, res.Rows, 2)
	first := res.Rows[0]
	assert.Equal(t, "2024-03", first["orders_order_date_month"].Value.Formatted)
	assert.Equal(t, month, first["orders_order_date_month"].Value.Raw)
	assert.Equal(t, "$1234.50", first["orders_total_revenue"].Value.Formatted)
	assert.Equal(t, "12.3", first["orders_avg_amount"].Value.Formatted)

	second := res.Rows[1]
	assert.Equal(t, "∅", second["orders_total_revenue"].Value.Formatted)
	assert.NotContains(t, second, "unexpected")

	assert.Len(t, res.Fields, 3)
}

func TestRunMetricQuery_ClampsLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  string
	}{
		{"unset uses max", 0, "LIMIT 100"},
		{"above max", 100000, "LIMIT 100"},
		{"below max", 7, "LIMIT 7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, domain.AdapterDuckDB, nil)
			_, err := f.svc.RunMetricQuery(context.Background(), projectUUID, "orders", domain.MetricQuery{
				Metrics: []string{"orders_total_revenue"},
				Limit:   tt.limit,
			})
			require.NoError(t, err)
			require.Len(t, f.warehouse.SQLs, 1)
			assert.Contains(t, f.warehouse.SQLs[0], tt.want)
		})
	}
}

func TestRunMetricQuery_Errors(t *testing.T) {
	t.Run("unknown explore", func(t *testing.T) {
		f := newFixture(t, domain.AdapterDuckDB, nil)
		_, err := f.svc.RunMetricQuery(context.Background(), projectUUID, "payments", domain.MetricQuery{Metrics: []string{"x"}})
		var nf *domain.NotFoundError
		require.ErrorAs(t, err, &nf)
	})

	t.Run("unknown project", func(t *testing.T) {
		f := newFixture(t, domain.AdapterDuckDB, nil)
		_, err := f.svc.RunMetricQuery(context.Background(), "nope", "orders", domain.MetricQuery{Metrics: []string{"orders_total_revenue"}})
		var nf *domain.NotFoundError
		require.ErrorAs(t, err, &nf)
	})

	t.Run("adapter mismatch", func(t *testing.T) {
		f := newFixture(t, domain.AdapterSnowflake, nil)
		_, err := f.svc.RunMetricQuery(context.Background(), projectUUID, "orders", domain.MetricQuery{Metrics: []string{"orders_total_revenue"}})
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Empty(t, f.warehouse.SQLs)
	})

	t.Run("invalid query", func(t *testing.T) {
		f := newFixture(t, domain.AdapterDuckDB, nil)
		_, err := f.svc.RunMetricQuery(context.Background(), projectUUID, "orders", domain.MetricQuery{})
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("warehouse failure", func(t *testing.T) {
		boom := errors.New("connection reset")
		f := newFixture(t, domain.AdapterDuckDB, func(context.Context, string) (*domain.WarehouseResults, error) {
			return nil, boom
		})
		_, err := f.svc.RunMetricQuery(context.Background(), projectUUID, "orders", domain.MetricQuery{Metrics: []string{"orders_total_revenue"}})
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), `explore "orders"`)
	})
}

func TestFormatValue(t *testing.T) {
	two := 2
	ts := time.Date(2024, time.August, 17, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		name  string
		field domain.Field
		value any
		want  string
	}{
		{"null", domain.Metric{}, nil, "∅"},
		{"integer float", domain.Metric{}, float64(42), "42"},
		{"int64", nil, int64(7), "7"},
		{"rounded", domain.Metric{Round: &two}, 3.14159, "3.14"},
		{"percent", domain.Metric{Format: "percent"}, 0.256, "26%"},
		{"eur", domain.Metric{Format: "eur"}, float64(5), "€5.00"},
		{"bool", domain.Dimension{}, true, "True"},
		{"string", domain.Dimension{}, "shipped", "shipped"},
		{"quarter", domain.Dimension{TimeInterval: domain.TimeFrameQuarter}, ts, "2024-Q3"},
		{"year", domain.Dimension{TimeInterval: domain.TimeFrameYear}, ts, "2024"},
		{"date", domain.Dimension{Type: domain.DimensionTypeDate}, ts, "2024-08-17"},
		{"timestamp", domain.Dimension{Type: domain.DimensionTypeTimestamp}, ts, "2024-08-17 09:30:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.field, tt.value))
		})
	}
}
