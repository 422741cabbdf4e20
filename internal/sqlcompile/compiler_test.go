package sqlcompile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yu-iskw/lightdash/internal/domain"
)

func ordersExplore() *domain.Explore {
	pct := 90.0
	orders := domain.Table{
		Name:     "orders",
		SQLTable: `"db"."shop"."orders"`,
		Dimensions: []domain.Dimension{
			{Name: "order_id", Table: "orders", Type: domain.DimensionTypeNumber, SQL: "${TABLE}.order_id"},
			{Name: "customer_id", Table: "orders", Type: domain.DimensionTypeNumber, SQL: "${TABLE}.customer_id"},
			{Name: "status", Table: "orders", Type: domain.DimensionTypeString, SQL: "${TABLE}.status"},
			{Name: "order_date", Table: "orders", Type: domain.DimensionTypeDate, SQL: "${TABLE}.order_date"},
			{Name: "order_date_month", Table: "orders", Type: domain.DimensionTypeDate, SQL: "DATE_TRUNC('month', ${TABLE}.order_date)", TimeInterval: domain.TimeFrameMonth},
			{Name: "is_completed", Table: "orders", Type: domain.DimensionTypeBoolean, SQL: "${status} = 'completed'"},
		},
		Metrics: []domain.Metric{
			{Name: "total_revenue", Table: "orders", Type: domain.MetricTypeSum, SQL: "${TABLE}.amount"},
			{Name: "order_count", Table: "orders", Type: domain.MetricTypeCount, SQL: "${TABLE}.order_id"},
			{Name: "completed_revenue", Table: "orders", Type: domain.MetricTypeSum, SQL: "${TABLE}.amount",
				Filters: []domain.MetricFilterRule{{Target: domain.FieldRef{FieldRef: "status"}, Operator: domain.FilterOperatorEquals, Values: []any{"completed"}}}},
			{Name: "avg_order", Table: "orders", Type: domain.MetricTypeNumber, SQL: "${total_revenue} / NULLIF(${order_count}, 0)"},
			{Name: "p90_amount", Table: "orders", Type: domain.MetricTypePercentile, SQL: "${TABLE}.amount", Percentile: &pct},
			{Name: "buyers", Table: "orders", Type: domain.MetricTypeCountDistinct, SQL: "${customers.customer_id}"},
		},
	}
	customers := domain.Table{
		Name:     "customers",
		SQLTable: `"db"."shop"."customers"`,
		SQLWhere: "${TABLE}.deleted_at IS NULL",
		Dimensions: []domain.Dimension{
			{Name: "customer_id", Table: "customers", Type: domain.DimensionTypeNumber, SQL: "${TABLE}.customer_id"},
			{Name: "first_name", Table: "customers", Type: domain.DimensionTypeString, SQL: "${TABLE}.first_name"},
		},
	}
	payments := domain.Table{
		Name:     "payments",
		SQLTable: `"db"."shop"."payments"`,
		Dimensions: []domain.Dimension{
			{Name: "method", Table: "payments", Type: domain.DimensionTypeString, SQL: "${TABLE}.method"},
		},
	}
	return &domain.Explore{
		Name:      "orders",
		BaseTable: "orders",
		Joins: []domain.CompiledJoin{
			{Table: "customers", SQLOn: "${orders.customer_id} = ${customers.customer_id}", Type: domain.JoinTypeLeft},
			{Table: "payments", SQLOn: "${orders.order_id} = ${payments.order_id}", Type: domain.JoinTypeInner},
		},
		Tables: map[string]domain.Table{"orders": orders, "customers": customers, "payments": payments},
	}
}

func TestCompile_BaseTableOnly(t *testing.T) {
	c := NewCompiler(domain.AdapterPostgres)
	out, err := c.Compile(ordersExplore(), domain.MetricQuery{
		Dimensions: []string{"orders_status"},
		Metrics:    []string{"orders_total_revenue"},
		Sorts:      []domain.SortField{{FieldID: "orders_total_revenue", Descending: true}},
		Limit:      10,
	})
	require.NoError(t, err)

	want := `SELECT
  "orders".status AS "orders_status",
  SUM("orders".amount) AS "orders_total_revenue"
FROM "db"."shop"."orders" AS "orders"
GROUP BY 1
ORDER BY "orders_total_revenue" DESC
LIMIT 10`
	assert.Equal(t, want, out.SQL)
	assert.Len(t, out.Fields, 2)
	assert.Equal(t, domain.FieldTypeMetric, out.Fields["orders_total_revenue"].Kind())
}

func TestCompile_JoinsOnlyWhatIsReferenced(t *testing.T) {
	c := NewCompiler(domain.AdapterPostgres)
	out, err := c.Compile(ordersExplore(), domain.MetricQuery{
		Dimensions: []string{"customers_first_name"},
		Metrics:    []string{"orders_order_count"},
	})
	require.NoError(t, err)

	want := `SELECT
  "customers".first_name AS "customers_first_name",
  COUNT("orders".order_id) AS "orders_order_count"
FROM "db"."shop"."orders" AS "orders"
LEFT OUTER JOIN "db"."shop"."customers" AS "customers"
  ON "orders".customer_id = "customers".customer_id
WHERE ("customers".deleted_at IS NULL)
GROUP BY 1`
	assert.Equal(t, want, out.SQL)
	assert.NotContains(t, out.SQL, "payments")
}

func TestCompile_MetricReferencingJoinedTablePullsJoin(t *testing.T) {
	out, err := NewCompiler(domain.AdapterDuckDB).Compile(ordersExplore(), domain.MetricQuery{
		Metrics: []string{"orders_buyers"},
	})
	require.NoError(t, err)
	assert.Contains(t, out.SQL, `COUNT(DISTINCT "customers".customer_id) AS "orders_buyers"`)
	assert.Contains(t, out.SQL, `LEFT OUTER JOIN "db"."shop"."customers" AS "customers"`)
	assert.NotContains(t, out.SQL, "GROUP BY")
}

func TestCompile_NestedReferences(t *testing.T) {
	out, err := NewCompiler(domain.AdapterPostgres).Compile(ordersExplore(), domain.MetricQuery{
		Dimensions: []string{"orders_is_completed"},
		Metrics:    []string{"orders_avg_order", "orders_completed_revenue"},
	})
	require.NoError(t, err)
	assert.Contains(t, out.SQL, `"orders".status = 'completed' AS "orders_is_completed"`)
	assert.Contains(t, out.SQL, `SUM("orders".amount) / NULLIF(COUNT("orders".order_id), 0) AS "orders_avg_order"`)
	assert.Contains(t, out.SQL, `SUM(CASE WHEN (("orders".status) = 'completed') THEN "orders".amount ELSE NULL END) AS "orders_completed_revenue"`)
}

func TestCompile_Percentile(t *testing.T) {
	tests := []struct {
		adapter domain.AdapterType
		want    string
	}{
		{domain.AdapterDuckDB, `QUANTILE_CONT("orders".amount, 0.9)`},
		{domain.AdapterBigQuery, "APPROX_QUANTILES(`orders`.amount, 100)[OFFSET(90)]"},
		{domain.AdapterPostgres, `PERCENTILE_CONT(0.9) WITHIN GROUP (ORDER BY "orders".amount)`},
		{domain.AdapterTrino, `APPROX_PERCENTILE("orders".amount, 0.9)`},
	}
	for _, tt := range tests {
		t.Run(string(tt.adapter), func(t *testing.T) {
			out, err := NewCompiler(tt.adapter).Compile(ordersExplore(), domain.MetricQuery{Metrics: []string{"orders_p90_amount"}})
			require.NoError(t, err)
			assert.Contains(t, out.SQL, tt.want)
		})
	}
}

func TestCompile_Filters(t *testing.T) {
	q := domain.MetricQuery{
		Dimensions: []string{"orders_order_date_month"},
		Metrics:    []string{"orders_total_revenue"},
		Filters: domain.Filters{
			Dimensions: &domain.FilterGroup{ID: "root", And: []domain.FilterGroupItem{
				{Rule: &domain.FilterRule{ID: "a", Target: domain.FieldTarget{FieldID: "orders_order_date_month"},
					Operator: domain.FilterOperatorInBetween, Values: []any{"2024-01-01", "2024-03-31"}}},
				{Group: &domain.FilterGroup{ID: "g", Or: []domain.FilterGroupItem{
					{Rule: &domain.FilterRule{ID: "b", Target: domain.FieldTarget{FieldID: "orders_status"},
						Operator: domain.FilterOperatorEquals, Values: []any{"shipped", "completed"}}},
					{Rule: &domain.FilterRule{ID: "c", Target: domain.FieldTarget{FieldID: "orders_status"},
						Operator: domain.FilterOperatorIsNull}},
				}}},
			}},
			Metrics: &domain.FilterGroup{ID: "m", And: []domain.FilterGroupItem{
				{Rule: &domain.FilterRule{ID: "d", Target: domain.FieldTarget{FieldID: "orders_total_revenue"},
					Operator: domain.FilterOperatorGreaterThan, Values: []any{float64(100)}}},
			}},
		},
	}
	out, err := NewCompiler(domain.AdapterPostgres).Compile(ordersExplore(), q)
	require.NoError(t, err)

	assert.Contains(t, out.SQL, `WHERE (((DATE_TRUNC('month', "orders".order_date)) >= DATE '2024-01-01' AND (DATE_TRUNC('month', "orders".order_date)) <= DATE '2024-03-31') AND ((("orders".status) IN ('shipped', 'completed')) OR (("orders".status) IS NULL)))`)
	assert.Contains(t, out.SQL, "GROUP BY 1\nHAVING ((SUM(\"orders\".amount)) > 100)")
}

func TestRenderRule(t *testing.T) {
	tests := []struct {
		name   string
		op     domain.FilterOperator
		typ    domain.DimensionType
		values []any
		want   string
	}{
		{"equals one", domain.FilterOperatorEquals, domain.DimensionTypeString, []any{"a"}, "(x) = 'a'"},
		{"equals none", domain.FilterOperatorEquals, domain.DimensionTypeString, nil, "1=1"},
		{"not equals keeps nulls", domain.FilterOperatorNotEquals, domain.DimensionTypeString, []any{"a"}, "((x) != 'a' OR (x) IS NULL)"},
		{"not equals many", domain.FilterOperatorNotEquals, domain.DimensionTypeNumber, []any{float64(1), float64(2)}, "((x) NOT IN (1, 2) OR (x) IS NULL)"},
		{"quote escaping", domain.FilterOperatorEquals, domain.DimensionTypeString, []any{"O'Brien"}, "(x) = 'O''Brien'"},
		{"starts with", domain.FilterOperatorStartsWith, domain.DimensionTypeString, []any{"ab"}, "(x) LIKE 'ab%'"},
		{"ends with", domain.FilterOperatorEndsWith, domain.DimensionTypeString, []any{"ab"}, "(x) LIKE '%ab'"},
		{"include", domain.FilterOperatorInclude, domain.DimensionTypeString, []any{"ab", "cd"}, "(LOWER(x) LIKE LOWER('%ab%') OR LOWER(x) LIKE LOWER('%cd%'))"},
		{"does not include", domain.FilterOperatorNotInclude, domain.DimensionTypeString, []any{"ab"}, "LOWER(x) NOT LIKE LOWER('%ab%')"},
		{"less than", domain.FilterOperatorLessThan, domain.DimensionTypeNumber, []any{float64(2.5)}, "(x) < 2.5"},
		{"timestamp literal", domain.FilterOperatorGreaterThanOrEqual, domain.DimensionTypeTimestamp, []any{"2024-01-01 00:00:00"}, "(x) >= TIMESTAMP '2024-01-01 00:00:00'"},
		{"not in between", domain.FilterOperatorNotInBetween, domain.DimensionTypeNumber, []any{float64(1), float64(5)}, "((x) < 1 OR (x) > 5)"},
		{"boolean", domain.FilterOperatorEquals, domain.DimensionTypeBoolean, []any{true}, "(x) = TRUE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderRule(domain.AdapterPostgres, "x", tt.typ, tt.op, tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := renderRule(domain.AdapterPostgres, "x", domain.DimensionTypeNumber, domain.FilterOperatorInBetween, []any{float64(1)})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = renderRule(domain.AdapterPostgres, "x", domain.DimensionTypeNumber, "matches", nil)
	require.ErrorAs(t, err, &ve)
}

func TestCompile_TableCalculations(t *testing.T) {
	out, err := NewCompiler(domain.AdapterPostgres).Compile(ordersExplore(), domain.MetricQuery{
		Dimensions:        []string{"orders_status"},
		Metrics:           []string{"orders_total_revenue"},
		TableCalculations: []domain.TableCalculation{{Name: "doubled", SQL: "${orders.total_revenue} * 2"}},
		Sorts:             []domain.SortField{{FieldID: "doubled"}},
		Limit:             5,
	})
	require.NoError(t, err)
	assert.Contains(t, out.SQL, "WITH metrics AS (\nSELECT\n")
	assert.Contains(t, out.SQL, `"orders_total_revenue" * 2 AS "doubled"`)
	assert.Contains(t, out.SQL, "FROM metrics\nORDER BY \"doubled\"\nLIMIT 5")
}

func TestCompile_BigQueryQuoting(t *testing.T) {
	out, err := NewCompiler(domain.AdapterBigQuery).Compile(ordersExplore(), domain.MetricQuery{
		Dimensions: []string{"orders_status"},
	})
	require.NoError(t, err)
	assert.Contains(t, out.SQL, "`orders`.status AS `orders_status`")
	assert.Contains(t, out.SQL, "AS `orders`")
}

func TestCompile_Errors(t *testing.T) {
	cyclic := ordersExplore()
	tbl := cyclic.Tables["orders"]
	tbl.Dimensions = append(tbl.Dimensions,
		domain.Dimension{Name: "a", Table: "orders", SQL: "${b}"},
		domain.Dimension{Name: "b", Table: "orders", SQL: "${a}"},
		domain.Dimension{Name: "dangling", Table: "orders", SQL: "${nope}"},
		domain.Dimension{Name: "uses_metric", Table: "orders", SQL: "${total_revenue}"},
	)
	cyclic.Tables["orders"] = tbl

	tests := []struct {
		name string
		q    domain.MetricQuery
	}{
		{"empty selection", domain.MetricQuery{}},
		{"unknown field", domain.MetricQuery{Dimensions: []string{"orders_nope"}}},
		{"metric as dimension", domain.MetricQuery{Dimensions: []string{"orders_total_revenue"}}},
		{"dimension as metric", domain.MetricQuery{Metrics: []string{"orders_status"}}},
		{"cycle", domain.MetricQuery{Dimensions: []string{"orders_a"}}},
		{"unknown reference", domain.MetricQuery{Dimensions: []string{"orders_dangling"}}},
		{"dimension referencing metric", domain.MetricQuery{Dimensions: []string{"orders_uses_metric"}}},
		{"sort not selected", domain.MetricQuery{Dimensions: []string{"orders_status"}, Sorts: []domain.SortField{{FieldID: "orders_order_id"}}}},
		{"dimension filter on metric", domain.MetricQuery{Dimensions: []string{"orders_status"}, Filters: domain.Filters{
			Dimensions: &domain.FilterGroup{And: []domain.FilterGroupItem{{Rule: &domain.FilterRule{
				Target: domain.FieldTarget{FieldID: "orders_total_revenue"}, Operator: domain.FilterOperatorNotNull}}}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCompiler(domain.AdapterPostgres).Compile(cyclic, tt.q)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"a""b"`, QuoteIdentifier(domain.AdapterSnowflake, `a"b`))
	assert.Equal(t, "`a``b`", QuoteIdentifier(domain.AdapterDatabricks, "a`b"))
	assert.Equal(t, `'it''s'`, QuoteLiteral(domain.AdapterPostgres, "it's"))
	assert.Equal(t, `'a\\b'`, QuoteLiteral(domain.AdapterBigQuery, `a\b`))
}
