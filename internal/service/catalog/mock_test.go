package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/yu-iskw/lightdash/internal/domain"
	"github.com/yu-iskw/lightdash/internal/service/semantic"
	"github.com/yu-iskw/lightdash/internal/testutil"
)

// errTest is a sentinel error for test scenarios.
var errTest = fmt.Errorf("test error")

const projectUUID = "0a4c0f8e-52c3-4b7e-9d0c-6c4c1b1d2e3f"

var fixedNow = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

func ctxWithPrincipal(name string) context.Context {
	return domain.WithPrincipal(context.Background(), domain.ContextPrincipal{Name: name, Type: "user"})
}

const manifestJSON = `{
	"metadata": {"dbt_version": "1.7.0", "adapter_type": "postgres"},
	"nodes": {
		"model.shop.orders": {
			"unique_id": "model.shop.orders", "resource_type": "model", "name": "orders",
			"database": "dev", "schema": "public", "relation_name": "\"dev\".\"public\".\"orders\"",
			"meta": {
				"default_time_dimension": {"field": "order_date", "interval": "DAY"},
				"joins": [{"join": "customers", "sql_on": "${orders.customer_id} = ${customers.customer_id}"}]
			},
			"columns": {
				"order_id": {"name": "order_id"},
				"customer_id": {"name": "customer_id"},
				"order_date": {"name": "order_date"},
				"amount": {"name": "amount", "meta": {"metrics": {
					"total_revenue": {"type": "sum"},
					"monthly_revenue": {"type": "sum", "default_time_dimension": {"field": "order_date", "interval": "MONTH"}}
				}}}
			}
		},
		"model.shop.customers": {
			"unique_id": "model.shop.customers", "resource_type": "model", "name": "customers",
			"database": "dev", "schema": "public", "relation_name": "\"dev\".\"public\".\"customers\"",
			"columns": {
				"customer_id": {"name": "customer_id", "meta": {"metrics": {"customer_count": {"type": "count_distinct"}}}},
				"first_name": {"name": "first_name"}
			}
		}
	},
	"metrics": {}
}`

const catalogJSON = `{
	"nodes": {
		"model.shop.orders": {
			"metadata": {"database": "dev", "schema": "public", "name": "orders", "type": "BASE TABLE"},
			"columns": {
				"order_id": {"name": "order_id", "type": "integer", "index": 1},
				"customer_id": {"name": "customer_id", "type": "integer", "index": 2},
				"order_date": {"name": "order_date", "type": "date", "index": 3},
				"amount": {"name": "amount", "type": "numeric", "index": 4}
			}
		},
		"model.shop.customers": {
			"metadata": {"database": "dev", "schema": "public", "name": "customers", "type": "BASE TABLE"},
			"columns": {
				"customer_id": {"name": "customer_id", "type": "integer", "index": 1},
				"first_name": {"name": "first_name", "type": "text", "index": 2}
			}
		}
	}
}`

type fixture struct {
	svc       *Service
	explores  *testutil.MockExploreRepo
	artifacts *testutil.MockArtifactReader
	warehouse *testutil.MockWarehouseClient
	auth      *testutil.MockAuthorizer
	project   domain.Project
}

func newFixture(withCatalog bool) *fixture {
	project := domain.Project{
		UUID:             projectUUID,
		OrganizationUUID: "org-1",
		Name:             "shop",
		AdapterType:      domain.AdapterPostgres,
		ManifestURI:      "s3://dbt/manifest.json",
		Spotlight:        domain.DefaultSpotlightConfig(),
	}
	files := map[string][]byte{"s3://dbt/manifest.json": []byte(manifestJSON)}
	if withCatalog {
		project.CatalogURI = "s3://dbt/catalog.json"
		files["s3://dbt/catalog.json"] = []byte(catalogJSON)
	}

	f := &fixture{
		explores:  &testutil.MockExploreRepo{},
		artifacts: &testutil.MockArtifactReader{Files: files},
		warehouse: &testutil.MockWarehouseClient{Adapter: domain.AdapterPostgres},
		auth:      &testutil.MockAuthorizer{},
		project:   project,
	}
	f.svc = NewService(f.auth, testutil.StaticProjects(project), f.explores, f.artifacts, f.warehouse,
		semantic.AttachOptions{ThrowOnMissing: true}, nil)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}
