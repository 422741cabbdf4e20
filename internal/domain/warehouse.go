package domain

import "strings"

// AdapterType identifies the warehouse dialect a project compiles against.
type AdapterType string

const (
	AdapterBigQuery   AdapterType = "bigquery"
	AdapterSnowflake  AdapterType = "snowflake"
	AdapterPostgres   AdapterType = "postgres"
	AdapterRedshift   AdapterType = "redshift"
	AdapterDatabricks AdapterType = "databricks"
	AdapterTrino      AdapterType = "trino"
	AdapterDuckDB     AdapterType = "duckdb"
)

// ParseAdapterType validates an adapter name.
func ParseAdapterType(s string) (AdapterType, error) {
	switch a := AdapterType(strings.ToLower(strings.TrimSpace(s))); a {
	case AdapterBigQuery, AdapterSnowflake, AdapterPostgres, AdapterRedshift,
		AdapterDatabricks, AdapterTrino, AdapterDuckDB:
		return a, nil
	}
	return "", ErrValidation("unsupported adapter type %q", s)
}

// WarehouseTableSchema maps column name to native warehouse type.
type WarehouseTableSchema map[string]string

// WarehouseCatalog is a schema snapshot: database -> schema -> table -> column -> type.
type WarehouseCatalog map[string]map[string]map[string]WarehouseTableSchema

// Add records one column type, creating intermediate levels as needed.
func (c WarehouseCatalog) Add(database, schema, table, column, dataType string) {
	schemas, ok := c[database]
	if !ok {
		schemas = map[string]map[string]WarehouseTableSchema{}
		c[database] = schemas
	}
	tables, ok := schemas[schema]
	if !ok {
		tables = map[string]WarehouseTableSchema{}
		schemas[schema] = tables
	}
	cols, ok := tables[table]
	if !ok {
		cols = WarehouseTableSchema{}
		tables[table] = cols
	}
	cols[column] = dataType
}

// Table returns the column map of one relation.
func (c WarehouseCatalog) Table(database, schema, table string) (WarehouseTableSchema, bool) {
	cols, ok := c[database][schema][table]
	return cols, ok
}

// TableRef is a fully qualified warehouse relation.
type TableRef struct {
	Database string
	Schema   string
	Table    string
}

// WarehouseResults is the raw output of a warehouse query.
type WarehouseResults struct {
	Columns []string
	Rows    []map[string]any
}
