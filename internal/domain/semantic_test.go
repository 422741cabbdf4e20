package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetItemID(t *testing.T) {
	assert.Equal(t, "orders_amount", GetItemID("orders", "amount"))
	assert.Equal(t, "orders_customers__id", GetItemID("orders", "customers.id"))
	assert.Equal(t, "orders_created_at_month", GetItemID("orders", TimeIntervalDimensionName("created_at", TimeFrameMonth)))
}

func TestParseMetricType(t *testing.T) {
	mt, err := ParseMetricType("COUNT_DISTINCT")
	require.NoError(t, err)
	assert.Equal(t, MetricTypeCountDistinct, mt)
	assert.True(t, mt.IsAggregate())
	assert.False(t, MetricTypeNumber.IsAggregate())

	_, err = ParseMetricType("mode")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestTable_Lookups(t *testing.T) {
	tbl := Table{
		Name:       "orders",
		Dimensions: []Dimension{{Name: "id", Table: "orders"}, {Name: "status", Table: "orders"}},
		Metrics:    []Metric{{Name: "order_count", Table: "orders"}},
	}

	d, ok := tbl.Dimension("status")
	require.True(t, ok)
	assert.Equal(t, "orders_status", d.FieldID())

	_, ok = tbl.Metric("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"orders_id", "orders_status", "orders_order_count"}, tbl.FieldIDs())
}

func TestExplore_FindField(t *testing.T) {
	e := Explore{
		Name:      "orders",
		BaseTable: "orders",
		Tables: map[string]Table{
			"orders":    {Name: "orders", Metrics: []Metric{{Name: "total", Table: "orders"}}},
			"customers": {Name: "customers", Dimensions: []Dimension{{Name: "country", Table: "customers"}}},
		},
	}

	f, ok := e.FindField("customers_country")
	require.True(t, ok)
	assert.Equal(t, FieldTypeDimension, f.Kind())

	f, ok = e.FindField("orders_total")
	require.True(t, ok)
	assert.Equal(t, FieldTypeMetric, f.Kind())

	_, ok = e.FindField("orders_nope")
	assert.False(t, ok)
}

func TestTimeFrame(t *testing.T) {
	tf, err := ParseTimeFrame("quarter")
	require.NoError(t, err)
	assert.Equal(t, TimeFrameQuarter, tf)
	assert.Equal(t, "quarter", tf.Suffix())
	assert.Greater(t, TimeFrameYear.Rank(), TimeFrameDay.Rank())
	assert.Equal(t, -1, TimeFrameMonthName.Rank())
	assert.True(t, TimeFrameDayOfWeekName.IsDatePart())

	_, err = ParseTimeFrame("fortnight")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}
