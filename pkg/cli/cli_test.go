package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yu-iskw/lightdash/internal/domain"
)

const testManifest = `{
	"metadata": {"dbt_version": "1.8.0", "adapter_type": "duckdb"},
	"nodes": {
		"model.shop.orders": {
			"unique_id": "model.shop.orders", "resource_type": "model", "name": "orders",
			"database": "dev", "schema": "main", "relation_name": "\"dev\".\"main\".\"orders\"",
			"meta": {"joins": [{"join": "customers", "sql_on": "${orders.customer_id} = ${customers.customer_id}"}]},
			"columns": {
				"order_id": {"name": "order_id"},
				"customer_id": {"name": "customer_id"},
				"amount": {"name": "amount", "meta": {"metrics": {"total_revenue": {"type": "sum"}}}}
			}
		},
		"model.shop.customers": {
			"unique_id": "model.shop.customers", "resource_type": "model", "name": "customers",
			"database": "dev", "schema": "main", "relation_name": "\"dev\".\"main\".\"customers\"",
			"columns": {"customer_id": {"name": "customer_id"}}
		}
	},
	"metrics": {}
}`

const testCatalog = `{
	"nodes": {
		"model.shop.orders": {
			"metadata": {"database": "dev", "schema": "main", "name": "orders", "type": "BASE TABLE"},
			"columns": {
				"order_id": {"name": "order_id", "type": "INTEGER", "index": 1},
				"customer_id": {"name": "customer_id", "type": "INTEGER", "index": 2},
				"amount": {"name": "amount", "type": "INTEGER", "index": 3}
			}
		},
		"model.shop.customers": {
			"metadata": {"database": "dev", "schema": "main", "name": "customers", "type": "BASE TABLE"},
			"columns": {"customer_id": {"name": "customer_id", "type": "INTEGER", "index": 1}}
		}
	}
}`

// writeProject lays out a dbt target directory and returns the manifest and catalog paths.
func writeProject(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.json")
	catalog := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(manifest, []byte(testManifest), 0o600))
	require.NoError(t, os.WriteFile(catalog, []byte(testCatalog), 0o600))
	return manifest, catalog
}

// run executes the root command and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LIGHTDASH_OUTPUT", "")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCompileCmd_Table(t *testing.T) {
	manifest, catalog := writeProject(t)

	out, err := run(t, "compile", "--manifest", manifest, "--catalog", catalog)
	require.NoError(t, err)
	assert.Contains(t, out, "EXPLORE")
	assert.Contains(t, out, "BASE TABLE")
	assert.Regexp(t, `orders\s+orders\s+customers`, out)
	assert.Regexp(t, `customers\s+customers\s+-`, out)
}

func TestCompileCmd_JSON(t *testing.T) {
	manifest, catalog := writeProject(t)

	out, err := run(t, "compile", "-o", "json", "--manifest", manifest, "--catalog", catalog)
	require.NoError(t, err)

	var explores []domain.Explore
	require.NoError(t, json.Unmarshal([]byte(out), &explores))
	require.Len(t, explores, 2)
	names := []string{explores[0].Name, explores[1].Name}
	assert.ElementsMatch(t, []string{"orders", "customers"}, names)
}

func TestCompileCmd_Errors(t *testing.T) {
	manifest, catalog := writeProject(t)

	t.Run("missing manifest", func(t *testing.T) {
		_, err := run(t, "compile", "--manifest", filepath.Join(t.TempDir(), "nope.json"))
		var nf *domain.NotFoundError
		require.ErrorAs(t, err, &nf)
	})

	t.Run("unknown adapter", func(t *testing.T) {
		_, err := run(t, "compile", "--manifest", manifest, "--catalog", catalog, "--adapter", "oracle")
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("bad output format", func(t *testing.T) {
		_, err := run(t, "compile", "-o", "yaml", "--manifest", manifest)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported output format")
	})
}

func TestValidateCmd(t *testing.T) {
	manifest, catalog := writeProject(t)

	out, err := run(t, "validate", "--manifest", manifest, "--catalog", catalog)
	require.NoError(t, err)
	assert.Contains(t, out, "Project is valid: 2 tables, 2 explores")

	// Without a schema snapshot strict mode cannot type any column.
	_, err = run(t, "validate", "--manifest", manifest)
	var me *domain.MissingCatalogEntryError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "missing_catalog_entry", errorKind(err))

	out, err = run(t, "validate", "-o", "json", "--manifest", manifest, "--strict=false")
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "duckdb", body["adapter"])
}

func TestSQLCmd(t *testing.T) {
	manifest, catalog := writeProject(t)

	out, err := run(t, "sql", "--manifest", manifest, "--catalog", catalog,
		"--explore", "orders", "--metric", "orders_total_revenue", "--limit", "10")
	require.NoError(t, err)
	assert.Contains(t, out, `SUM("orders".amount) AS "orders_total_revenue"`)
	assert.Contains(t, out, "LIMIT 10")

	_, err = run(t, "sql", "--manifest", manifest, "--catalog", catalog, "--explore", "payments", "--metric", "x")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)

	_, err = run(t, "sql", "--manifest", manifest, "--catalog", catalog)
	require.Error(t, err, "--explore is required")
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"dev","commit":"none"}`, out)

	out, err = run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "lightdash version dev (commit: none)\n", out)
}

func TestValidateOutputFormat(t *testing.T) {
	for _, ok := range []string{"", "table", "json"} {
		require.NoError(t, validateOutputFormat(ok))
	}
	require.Error(t, validateOutputFormat("yaml"))
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	printTable(&buf, []string{}, [][]string{{"a"}})
	assert.Empty(t, buf.String())

	printTable(&buf, []string{"name", "age"}, [][]string{{"Alice", "30"}})
	assert.Equal(t, "NAME   AGE\nAlice  30\n", buf.String())
}
