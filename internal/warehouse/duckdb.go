// Package warehouse executes compiled SQL against the analytics warehouse.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver

	"github.com/yu-iskw/lightdash/internal/domain"
)

var _ domain.WarehouseClient = (*DuckDBClient)(nil)

// DuckDBClient is a WarehouseClient backed by a DuckDB database.
type DuckDBClient struct {
	db *sql.DB
}

// OpenDuckDB opens a DuckDB database. An empty dsn opens an in-memory database.
func OpenDuckDB(dsn string) (*DuckDBClient, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return &DuckDBClient{db: db}, nil
}

// NewDuckDBClient wraps an existing DuckDB connection.
func NewDuckDBClient(db *sql.DB) *DuckDBClient {
	return &DuckDBClient{db: db}
}

// DB exposes the underlying connection.
func (c *DuckDBClient) DB() *sql.DB { return c.db }

// Close closes the database.
func (c *DuckDBClient) Close() error { return c.db.Close() }

// AdapterType returns domain.AdapterDuckDB.
func (c *DuckDBClient) AdapterType() domain.AdapterType { return domain.AdapterDuckDB }

// RunQuery executes a SELECT and returns every row keyed by column name.
func (c *DuckDBClient) RunQuery(ctx context.Context, query string) (*domain.WarehouseResults, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrValidation("sql query is required")
	}
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	res, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("scan results: %w", err)
	}
	return res, nil
}

// Catalog snapshots column types for refs from information_schema.columns.
// Relations that do not exist are simply absent from the result.
func (c *DuckDBClient) Catalog(ctx context.Context, refs []domain.TableRef) (domain.WarehouseCatalog, error) {
	catalog := domain.WarehouseCatalog{}
	if len(refs) == 0 {
		return catalog, nil
	}

	var (
		conds []string
		args  []any
	)
	for _, r := range refs {
		conds = append(conds, "(table_catalog = ? AND table_schema = ? AND table_name = ?)")
		args = append(args, r.Database, r.Schema, r.Table)
	}
	query := `SELECT table_catalog, table_schema, table_name, column_name, data_type
		FROM information_schema.columns
		WHERE ` + strings.Join(conds, " OR ") + `
		ORDER BY table_catalog, table_schema, table_name, ordinal_position`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query information_schema: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var database, schema, table, column, dataType string
		if err := rows.Scan(&database, &schema, &table, &column, &dataType); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		catalog.Add(database, schema, table, column, dataType)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return catalog, nil
}

func scanRows(rows *sql.Rows) (*domain.WarehouseResults, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := &domain.WarehouseResults{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, v := range vals {
			// byte slices become strings for JSON serialization
			if b, ok := v.([]byte); ok {
				row[cols[i]] = string(b)
			} else {
				row[cols[i]] = v
			}
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
