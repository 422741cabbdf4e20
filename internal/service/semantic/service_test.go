package semantic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yu-iskw/lightdash/internal/domain"
)

const manifestFixture = `{
	"metadata": {"dbt_version": "1.4.0", "adapter_type": "postgres"},
	"nodes": {
		"model.shop.orders": {
			"unique_id": "model.shop.orders", "resource_type": "model", "name": "orders",
			"database": "dev", "schema": "public", "relation_name": "\"dev\".\"public\".\"orders\"",
			"meta": {"joins": [{"join": "customers", "sql_on": "${orders.customer_id} = ${customers.customer_id}"}]},
			"columns": {
				"order_id": {"name": "order_id"},
				"customer_id": {"name": "customer_id"},
				"order_date": {"name": "order_date"},
				"amount": {"name": "amount", "meta": {"metrics": {"total_revenue": {"type": "sum"}}}}
			}
		},
		"model.shop.customers": {
			"unique_id": "model.shop.customers", "resource_type": "model", "name": "customers",
			"database": "dev", "schema": "public", "relation_name": "\"dev\".\"public\".\"customers\"",
			"columns": {"customer_id": {"name": "customer_id"}, "first_name": {"name": "first_name"}}
		},
		"model.shop.disabled": {
			"unique_id": "model.shop.disabled", "resource_type": "model", "name": "disabled",
			"config": {"enabled": false}, "columns": {}
		},
		"seed.shop.raw": {"unique_id": "seed.shop.raw", "resource_type": "seed", "name": "raw"}
	},
	"metrics": {
		"metric.shop.order_count": {
			"unique_id": "metric.shop.order_count", "name": "order_count",
			"calculation_method": "count", "expression": "order_id",
			"depends_on": {"nodes": ["model.shop.orders"]}
		}
	}
}`

func translatorCatalog() domain.WarehouseCatalog {
	wc := domain.WarehouseCatalog{}
	wc.Add("dev", "public", "orders", "order_id", "integer")
	wc.Add("dev", "public", "orders", "customer_id", "integer")
	wc.Add("dev", "public", "orders", "order_date", "date")
	wc.Add("dev", "public", "orders", "amount", "numeric(12,2)")
	wc.Add("dev", "public", "customers", "customer_id", "integer")
	wc.Add("dev", "public", "customers", "first_name", "character varying")
	return wc
}

func TestTranslator_Translate(t *testing.T) {
	var manifest domain.DbtManifest
	require.NoError(t, json.Unmarshal([]byte(manifestFixture), &manifest))

	tr := NewTranslator(domain.AdapterPostgres, domain.DefaultSpotlightConfig(), AttachOptions{ThrowOnMissing: true})
	res, err := tr.Translate(&manifest, translatorCatalog())
	require.NoError(t, err)

	require.Len(t, res.Tables, 2)
	assert.Equal(t, "customers", res.Tables[0].Name)
	orders := res.Tables[1]
	assert.Equal(t, "orders", orders.Name)
	assert.Equal(t, []string{"order_count", "total_revenue"}, metricNames(&orders))
	assert.Empty(t, res.Tables[0].Metrics)

	date, ok := orders.Dimension("order_date")
	require.True(t, ok)
	assert.Equal(t, domain.DimensionTypeDate, date.Type)
	month, ok := orders.Dimension("order_date_month")
	require.True(t, ok)
	assert.Equal(t, "DATE_TRUNC('month', ${TABLE}.order_date)", month.SQL)
	amount, _ := orders.Dimension("amount")
	assert.Equal(t, domain.DimensionTypeNumber, amount.Type)

	require.Len(t, res.Explores, 2)
	ordersExplore := res.Explores[1]
	assert.Equal(t, "orders", ordersExplore.Name)
	require.Len(t, ordersExplore.Joins, 1)
	_, ok = ordersExplore.FindField("customers_first_name")
	assert.True(t, ok)
}

func TestTranslator_StrictMissingTable(t *testing.T) {
	var manifest domain.DbtManifest
	require.NoError(t, json.Unmarshal([]byte(manifestFixture), &manifest))

	tr := NewTranslator(domain.AdapterPostgres, domain.DefaultSpotlightConfig(), AttachOptions{ThrowOnMissing: true})
	_, err := tr.Translate(&manifest, domain.WarehouseCatalog{})
	var me *domain.MissingCatalogEntryError
	require.ErrorAs(t, err, &me)

	lenient := NewTranslator(domain.AdapterPostgres, domain.DefaultSpotlightConfig(), AttachOptions{})
	res, err := lenient.Translate(&manifest, domain.WarehouseCatalog{})
	require.NoError(t, err)
	amount, _ := res.Tables[1].Dimension("amount")
	assert.Equal(t, domain.DimensionTypeString, amount.Type)
}

func TestTranslator_ConversionErrorNamesModel(t *testing.T) {
	var manifest domain.DbtManifest
	require.NoError(t, json.Unmarshal([]byte(manifestFixture), &manifest))
	node := manifest.Nodes["model.shop.customers"]
	node.Meta.Metrics = domain.OrderedMap[domain.DbtMetricMeta]{{Key: "first_name", Value: domain.DbtMetricMeta{Type: "count", SQL: "1"}}}
	manifest.Nodes["model.shop.customers"] = node

	tr := NewTranslator(domain.AdapterPostgres, domain.DefaultSpotlightConfig(), AttachOptions{})
	_, err := tr.Translate(&manifest, translatorCatalog())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `convert model "customers"`)
	var pe *domain.ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestTableRefs(t *testing.T) {
	var manifest domain.DbtManifest
	require.NoError(t, json.Unmarshal([]byte(manifestFixture), &manifest))
	assert.Equal(t, []domain.TableRef{
		{Database: "dev", Schema: "public", Table: "customers"},
		{Database: "dev", Schema: "public", Table: "orders"},
	}, TableRefs(&manifest))
}
